package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"actionreplay/internal/action"
	"actionreplay/internal/api"
	"actionreplay/internal/library"
	"actionreplay/internal/playback"
	"actionreplay/internal/tray"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var noTray bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run in the background with tray menu, hotkeys and local API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			return runService(a, noTray)
		},
	}
	cmd.Flags().BoolVar(&noTray, "no-tray", false, "Run without the tray icon")
	return cmd
}

// observers fans playback events out to the tray and API
type observers struct {
	mu  sync.Mutex
	fns []playback.Observer
}

func (o *observers) add(fn playback.Observer) {
	o.mu.Lock()
	o.fns = append(o.fns, fn)
	o.mu.Unlock()
}

func (o *observers) notify(ev playback.Event) {
	o.mu.Lock()
	fns := o.fns
	o.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func runService(a *app, noTray bool) error {
	a.logger.Info("Action Replay service starting...", "version", version, "config", a.cfgMgr.Path())

	lib := library.Open(a.cfgMgr.GroupsDir(), a.logger)
	if err := lib.Reload(); err != nil {
		return err
	}

	var obs observers
	orch, err := a.newPlayer(a.cfg.PlaybackSettings(), obs.notify)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	playAsync := func(g *action.Group) {
		go func() {
			res := orch.Start(ctx, g)
			if res.Err != nil {
				a.logger.Warn("Service: playback rejected or failed", "group", g.Name, "error", res.Err)
			}
		}()
	}

	// Start API server if enabled
	if a.cfg.General.APIEnabled {
		apiServer := api.NewServer(lib, orch, api.Options{
			Token:    a.cfg.General.APIToken,
			GameMode: a.cfg.GameMode.Enabled,
			Logger:   a.logger,
		})
		obs.add(apiServer.Publish)
		go func() {
			if err := apiServer.Start(ctx, a.cfg.General.APIPort); err != nil {
				a.logger.Error("API server error, continuing without remote control", "error", err)
			}
		}()
	}

	// Hotkeys: cancel plus one per binding
	hk := newHotkeys(a.logger)
	refreshShortcuts := func() {
		cfg := a.cfgMgr.Get()
		hk.mgr.Clear()
		hk.registerCancel(cfg.General.CancelHotkey, orch)
		for _, b := range cfg.Bindings {
			g, err := lib.Get(b.Group)
			if err != nil {
				a.logger.Warn("Shortcuts: binding for unknown group", "group", b.Group, "error", err)
				continue
			}
			if err := hk.register(b.Hotkey, true, func() {
				a.logger.Info("Hotkey: playing group", "group", g.Name)
				playAsync(g)
			}); err != nil {
				a.logger.Warn("Shortcuts: failed to register hotkey", "group", b.Group, "hotkey", b.Hotkey, "error", err)
			}
		}
		a.logger.Info("Shortcuts: refreshed", "bindings", len(cfg.Bindings))
	}
	refreshShortcuts()
	a.cfgMgr.RegisterChangeCallback(refreshShortcuts)
	hk.start()
	defer hk.stop()

	if noTray {
		a.logger.Info("Action Replay service running. Press Ctrl+C to stop.")
		<-ctx.Done()
		orch.Cancel()
		return nil
	}

	t := tray.NewPlaybackMenu(lib.List(), tray.Actions{
		Play: playAsync,
		Stop: func() { orch.Cancel() },
		Quit: func() { orch.Cancel() },
	})
	obs.add(t.Observe)

	go func() {
		<-ctx.Done()
		a.logger.Info("Shutting down...")
		orch.Cancel()
		t.Stop()
	}()

	a.logger.Info("Action Replay service running. Press Ctrl+C to stop.", "groups", len(lib.List()))
	t.Run()
	stop()
	return nil
}
