// Package app contains the Cobra command tree for worktrack.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/worktrack/internal/config"
	"github.com/blackwell-systems/worktrack/internal/output"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "worktrack",
	Short: "Activity telemetry and productivity scoring",
	Long: `worktrack samples the foreground application, detects idle periods,
classifies what you are doing into productivity categories and reports
activity and per-bucket summaries to a telemetry collector.

Run 'worktrack track' to start a tracking session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("worktrack", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  track     Run a tracking session (ctrl-c to stop)")
		fmt.Println("  classify  Show how names are categorised")
		fmt.Println("  history   List journaled bucket summaries and sessions")
		fmt.Println("  outbox    Inspect, drain or purge undelivered payloads")
		fmt.Println("  doctor    Check OS tools, collector and store")
		fmt.Println("  mcp       Serve the activity journal over MCP stdio")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/worktrack/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
}

// loadConfig loads the configuration and applies the global output flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	output.ConfigureColor(cfg.Output.Color && !flagNoColor, os.Stdout)
	if flagVerbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
