// Action Replay - humanized playback of recorded input groups
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	configPath string
	logLevel   string
	logFormat  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "actionreplay",
		Short: "Replay recorded keyboard and mouse groups with human-like timing",
		Long: `actionreplay plays back recorded action groups through the OS input queue.
Cursor moves follow eased, jittered paths and the recorded gaps between events
are kept, so the replay looks like a person at the controls.

Example:
  actionreplay play login.json
  actionreplay serve
  actionreplay gamemode --sensitivity 1.5`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: per-user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")

	rootCmd.AddCommand(
		newPlayCmd(),
		newServeCmd(),
		newGameModeCmd(),
		newInspectCmd(),
		newAutostartCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("actionreplay version %s\n", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
