package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"regsniper/internal/logbus"
	"regsniper/internal/model"
)

var watchLogs bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the agent status (and logs) live",
	Long: `Watch prints one line per status update (once a second while a session
runs). With --logs the agent log is interleaved.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchLogs, "logs", false, "Include agent log entries")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := loadControl()
	if err != nil {
		return err
	}
	defer deps.bus.Close()

	types := []string{logbus.TypeStatus}
	if watchLogs {
		types = append(types, logbus.TypeLog)
	}
	out := cmd.OutOrStdout()
	return deps.client.Watch(ctx, types, func(msg logbus.Message) error {
		return printMessage(out, msg)
	})
}

// printMessage renders one stream message. Data arrives as generic JSON and
// is decoded again into its concrete type.
func printMessage(w io.Writer, msg logbus.Message) error {
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	ts := time.UnixMilli(msg.Time).Format("15:04:05")
	switch msg.Type {
	case logbus.TypeStatus:
		var st model.StatusSnapshot
		if err := json.Unmarshal(raw, &st); err != nil {
			return err
		}
		if !st.Visible {
			st.Running = false
		}
		_, err = fmt.Fprintf(w, "%s %s\n", ts, formatStatus(st))
	case logbus.TypeLog:
		var entry logbus.LogData
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s [%s] %s", ts, entry.Level, entry.Msg)
		if err == nil && len(entry.Fields) > 0 {
			fields, _ := json.Marshal(entry.Fields)
			_, err = fmt.Fprintf(w, " %s", fields)
		}
		if err == nil {
			_, err = fmt.Fprintln(w)
		}
	}
	return err
}
