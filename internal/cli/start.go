package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	startCRNs     string
	startCRNList  []string
	startFile     string
	startInterval string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start retrying registration for a list of CRNs",
	Long: `Start sends the CRNs to the agent, which fills them into the add/drop
form and submits it immediately and then every --interval seconds.

The interval is clamped to 15..300 seconds; anything unparsable means 30.

Example:
  regctl start --crn 12345 --crn 67890 --interval 20
  regctl start --crns "12345
67890"
  regctl start --file crns.txt`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startCRNs, "crns", "", "CRNs, one per line")
	startCmd.Flags().StringArrayVar(&startCRNList, "crn", nil, "A CRN (repeatable)")
	startCmd.Flags().StringVarP(&startFile, "file", "f", "", "File with one CRN per line")
	startCmd.Flags().StringVarP(&startInterval, "interval", "i", "30", "Seconds between attempts")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := collectIdentifiers(startCRNs, startCRNList, startFile)
	if err != nil {
		return err
	}

	deps, err := loadControl()
	if err != nil {
		return err
	}
	defer deps.bus.Close()

	msg, err := deps.surface.Start(ctx, raw, startInterval)
	if err != nil {
		deps.bus.Log("debug", "start failed", map[string]any{"error": err.Error()})
		return errors.New(msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

// collectIdentifiers joins every CRN source into the newline separated form
// the control surface parses.
func collectIdentifiers(block string, list []string, file string) (string, error) {
	parts := make([]string, 0, 3)
	if block != "" {
		parts = append(parts, block)
	}
	if len(list) > 0 {
		parts = append(parts, strings.Join(list, "\n"))
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read CRN file: %w", err)
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, "\n"), nil
}
