package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"regsniper/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the agent status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := loadControl()
	if err != nil {
		return err
	}
	defer deps.bus.Close()

	st, err := deps.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatStatus(st))
	return nil
}

func formatStatus(st model.StatusSnapshot) string {
	if !st.Running {
		return "Idle"
	}
	var b strings.Builder
	b.WriteString("Running")
	if len(st.TargetIdentifiers) > 0 {
		fmt.Fprintf(&b, " | CRNs: %s", strings.Join(st.TargetIdentifiers, ", "))
	}
	fmt.Fprintf(&b, " | Attempts: %d | Next attempt in %ds", st.AttemptCount, st.SecondsRemaining)
	if st.PageURL != "" {
		fmt.Fprintf(&b, " | %s", st.PageURL)
	}
	return b.String()
}
