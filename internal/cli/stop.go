package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the registration loop",
	Long: `Stop tells the agent to clear its session. The agent forgets the CRNs,
the attempt count and any pending waitlist submission.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := loadControl()
	if err != nil {
		return err
	}
	defer deps.bus.Close()

	msg, err := deps.surface.Stop(ctx)
	if err != nil {
		deps.bus.Log("debug", "stop not delivered", map[string]any{"error": err.Error()})
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
