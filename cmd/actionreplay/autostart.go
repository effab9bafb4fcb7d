package main

import (
	"fmt"

	"actionreplay/internal/autostart"

	"github.com/spf13/cobra"
)

func newAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting the tray service on login",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Start `actionreplay serve` on login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				serveArgs := []string{"serve"}
				if configPath != "" {
					serveArgs = append(serveArgs, "--config", configPath)
				}
				e, err := autostart.Current(serveArgs...)
				if err != nil {
					return err
				}
				if err := autostart.Enable(e); err != nil {
					return fmt.Errorf("enable autostart: %w", err)
				}
				fmt.Println("✓ Autostart enabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Stop starting on login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := autostart.Disable(autostart.DefaultLabel); err != nil {
					return fmt.Errorf("disable autostart: %w", err)
				}
				fmt.Println("✓ Autostart disabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether autostart is enabled",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				if autostart.IsEnabled(autostart.DefaultLabel) {
					fmt.Println("enabled")
				} else {
					fmt.Println("disabled")
				}
			},
		},
	)
	return cmd
}
