package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"regsniper/internal/config"
	"regsniper/internal/control"
	"regsniper/internal/logbus"
	"regsniper/internal/portal"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	agentURL   string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "regctl",
	Short: "Control the Minerva course registration agent",
	Long: `regctl starts and stops the registration agent running next to the
browser tab, and shows its live status.

The agent retries registration for the given CRNs at a fixed interval and
falls back to the waitlist when a section is full.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("regctl version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&agentURL, "agent-url", "", "Agent host base URL (overrides control.agentURL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Console log level")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

type controlDeps struct {
	cfg     config.Config
	client  *control.Client
	surface *control.Surface
	bus     *logbus.Bus
}

func loadControl() (controlDeps, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return controlDeps{}, fmt.Errorf("failed to load config: %w", err)
	}
	if u := strings.TrimSpace(agentURL); u != "" {
		cfg.Control.AgentURL = u
	}
	bus := logbus.New(50, logbus.WithConsole(logbus.NewConsoleLogger(logLevel)))
	client := control.NewClient(cfg.Control, bus)
	return controlDeps{
		cfg:     cfg,
		client:  client,
		surface: control.NewSurface(client, portal.ContractFromConfig(cfg.Portal)),
		bus:     bus,
	}, nil
}
