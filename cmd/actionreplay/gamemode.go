package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"actionreplay/internal/input"
	"actionreplay/internal/platform"
	"actionreplay/internal/rawinput"

	"github.com/spf13/cobra"
)

func newGameModeCmd() *cobra.Command {
	var sensitivity float64
	cmd := &cobra.Command{
		Use:   "gamemode",
		Short: "Forward physical mouse deltas as scaled relative input",
		Long: `gamemode listens to raw mouse motion and re-injects every delta scaled by
the sensitivity, for applications that read relative input. Deltas the
listener injected itself are filtered so they are not forwarded twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("sensitivity") {
				a.cfg.GameMode.Sensitivity = sensitivity
			}
			return runGameMode(a)
		},
	}
	cmd.Flags().Float64Var(&sensitivity, "sensitivity", 1.0, "Delta scale")
	return cmd
}

func runGameMode(a *app) error {
	p, err := platform.New()
	if err != nil {
		return fmt.Errorf("input platform: %w", err)
	}
	em := input.NewEmitter(p, input.EmitterOptions{Logger: a.logger})

	echo := time.Duration(a.cfg.GameMode.EchoWindowMS) * time.Millisecond
	if echo <= 0 {
		echo = rawinput.DefaultEchoWindow
	}
	l := rawinput.NewListener(platform.NewRawSource(), em, rawinput.Options{
		Sensitivity: a.cfg.GameMode.Sensitivity,
		EchoWindow:  echo,
		Logger:      a.logger,
	})
	if err := l.Start(); err != nil {
		return err
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The cancel hotkey also leaves game mode
	hk := newHotkeys(a.logger)
	if combo := a.cfg.General.CancelHotkey; combo != "" {
		if err := hk.register(combo, false, stop); err != nil {
			a.logger.Warn("Hotkey: failed to register cancel hotkey", "combo", combo, "error", err)
		}
	}
	hk.start()
	defer hk.stop()

	fmt.Printf("→ Game mode forwarding at sensitivity %.2f. Press Ctrl+C", a.cfg.GameMode.Sensitivity)
	if a.cfg.General.CancelHotkey != "" {
		fmt.Printf(" or %s", a.cfg.General.CancelHotkey)
	}
	fmt.Println(" to stop.")

	<-ctx.Done()
	a.logger.Info("Game mode: stopping")
	return nil
}
