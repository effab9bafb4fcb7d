package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"actionreplay/internal/action"
	"actionreplay/internal/library"
	"actionreplay/internal/playback"

	"github.com/spf13/cobra"
)

func newPlayCmd() *cobra.Command {
	var (
		gameMode    bool
		sensitivity float64
		seed        int64
	)
	cmd := &cobra.Command{
		Use:   "play <file|group>",
		Short: "Play a group file, or a group from the library by name or ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("game-mode") {
				a.cfg.GameMode.Enabled = gameMode
			}
			if cmd.Flags().Changed("sensitivity") {
				a.cfg.GameMode.Sensitivity = sensitivity
			}
			if cmd.Flags().Changed("seed") {
				a.cfg.Playback.Seed = seed
			}
			return runPlay(a, args[0])
		},
	}
	cmd.Flags().BoolVar(&gameMode, "game-mode", false, "Replay moves as relative deltas")
	cmd.Flags().Float64Var(&sensitivity, "sensitivity", 1.0, "Game mode delta scale")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Trajectory seed (0: random)")
	return cmd
}

// resolveGroup reads ref as a file, falling back to a library lookup
func resolveGroup(a *app, ref string) (*action.Group, error) {
	if _, err := os.Stat(ref); err == nil {
		return library.LoadFile(ref)
	}
	lib := library.Open(a.cfgMgr.GroupsDir(), a.logger)
	if err := lib.Reload(); err != nil {
		return nil, err
	}
	return lib.Get(ref)
}

func runPlay(a *app, ref string) error {
	g, err := resolveGroup(a, ref)
	if err != nil {
		return err
	}

	orch, err := a.newPlayer(a.cfg.PlaybackSettings(), func(ev playback.Event) {
		if ev.Kind == playback.EventSkipped {
			fmt.Printf("  skipped item %d (%s)\n", ev.Index, ev.Item.Type)
		}
	})
	if err != nil {
		return err
	}

	hk := newHotkeys(a.logger)
	hk.registerCancel(a.cfg.General.CancelHotkey, orch)
	hk.start()
	defer hk.stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("→ Playing %s (%d items", g.Name, len(g.Items))
	if a.cfg.General.CancelHotkey != "" {
		fmt.Printf(", %s to cancel", a.cfg.General.CancelHotkey)
	}
	fmt.Println(")")

	res := orch.Start(ctx, g)
	fmt.Printf("→ %s: %d executed, %d skipped in %s\n", res.Status, res.Executed, res.Skipped, res.Elapsed.Round(time.Millisecond))

	switch {
	case res.Status == playback.StatusFailed:
		return fmt.Errorf("playback failed: %w", res.Err)
	case res.Status == playback.StatusCancelled && errors.Is(ctx.Err(), context.Canceled):
		return errors.New("interrupted")
	}
	return nil
}
