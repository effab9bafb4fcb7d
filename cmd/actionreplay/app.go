package main

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"actionreplay/internal/action"
	"actionreplay/internal/config"
	"actionreplay/internal/hotkey"
	"actionreplay/internal/input"
	"actionreplay/internal/logging"
	"actionreplay/internal/osutils"
	"actionreplay/internal/platform"
	"actionreplay/internal/playback"
)

// app carries what every command shares
type app struct {
	cfgMgr *config.Manager
	cfg    *config.Config
	logger *slog.Logger
}

func loadApp() (*app, error) {
	// Bootstrap logger until the config says otherwise
	boot, _ := logging.New(logging.Options{Level: logLevel, Format: logFormat})
	if boot == nil {
		boot = slog.Default()
	}

	var cfgMgr *config.Manager
	if configPath != "" {
		cfgMgr = config.NewManagerAt(configPath, boot)
	} else {
		m, err := config.NewManager(boot)
		if err != nil {
			return nil, fmt.Errorf("initialize config: %w", err)
		}
		cfgMgr = m
	}
	if err := cfgMgr.Load(); err != nil {
		return nil, err
	}
	cfg := cfgMgr.Get()

	level, format := cfg.General.LogLevel, cfg.General.LogFormat
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	logger, err := logging.New(logging.Options{Level: level, Format: format})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return &app{cfgMgr: cfgMgr, cfg: cfg, logger: logger}, nil
}

// newPlayer builds the orchestrator on the native input platform. Each
// accepted playback refreshes the display bounds and applies the configured
// keep-awake and wake nudge; rejected starts touch nothing.
func (a *app) newPlayer(pc playback.Config, observer playback.Observer) (*playback.Orchestrator, error) {
	if err := osutils.EnableDPIAwareness(); err != nil {
		a.logger.Warn("DPI: failed to enable awareness, coordinates may be scaled", "error", err)
	}
	if runtime.GOOS == "windows" && !osutils.IsAdmin() {
		a.logger.Info("Note: input cannot reach elevated windows unless running as Administrator")
	}

	p, err := platform.New()
	if err != nil {
		return nil, fmt.Errorf("input platform: %w", err)
	}
	em := input.NewEmitter(p, input.EmitterOptions{Logger: a.logger})
	orch := playback.New(em, playback.Options{
		Config:   pc,
		Logger:   a.logger,
		Observer: observer,
		BeforeRun: func(g *action.Group) func() {
			em.RefreshScreen()
			var release func()
			if a.cfg.Playback.KeepAwake {
				release = osutils.KeepAwake()
			}
			if a.cfg.Playback.WakeDisplay && !pc.GameMode {
				osutils.WakeUp(em, a.logger)
			}
			return release
		},
	})
	return orch, nil
}

// hotkeys wraps the manager with the debounce and darwin CMD mapping
type hotkeys struct {
	mgr    *hotkey.Manager
	logger *slog.Logger

	mu     sync.Mutex
	lastHk time.Time
}

func newHotkeys(logger *slog.Logger) *hotkeys {
	return &hotkeys{
		mgr:    hotkey.NewManager(platform.NewHotkeyEngine(), logger),
		logger: logger,
	}
}

func (h *hotkeys) debounce() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if time.Since(h.lastHk) < 500*time.Millisecond {
		return false
	}
	h.lastHk = time.Now()
	return true
}

// register adds combo; on macOS a CTRL combo is also bound with CMD
func (h *hotkeys) register(combo string, debounced bool, cb func()) error {
	fn := cb
	if debounced {
		fn = func() {
			if h.debounce() {
				cb()
			}
		}
	}
	if _, err := h.mgr.Register(combo, fn); err != nil {
		return err
	}
	if runtime.GOOS == "darwin" && strings.Contains(strings.ToUpper(combo), "CTRL") {
		cmdVariant := strings.ReplaceAll(strings.ToUpper(combo), "CTRL", "CMD")
		_, _ = h.mgr.Register(cmdVariant, fn)
	}
	return nil
}

// registerCancel binds the configured cancel combo to orch.Cancel
func (h *hotkeys) registerCancel(combo string, orch *playback.Orchestrator) {
	if combo == "" {
		return
	}
	err := h.register(combo, false, func() {
		if orch.Cancel() {
			h.logger.Info("Hotkey: playback cancelled", "combo", combo)
		}
	})
	if err != nil {
		h.logger.Warn("Hotkey: failed to register cancel hotkey", "combo", combo, "error", err)
	}
}

func (h *hotkeys) start() {
	if err := h.mgr.Start(); err != nil {
		h.logger.Warn("Hotkey: engine failed to start, hotkeys disabled", "error", err)
	}
}

func (h *hotkeys) stop() {
	if err := h.mgr.Stop(); err != nil {
		h.logger.Warn("Hotkey: engine stop failed", "error", err)
	}
}
