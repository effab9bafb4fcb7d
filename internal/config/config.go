// Package config provides configuration management for action replay.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"actionreplay/internal/hotkey"
	"actionreplay/internal/playback"
	"actionreplay/internal/trajectory"
)

// AppName names the per-user configuration directory
const AppName = "actionreplay"

// Config represents the application configuration
type Config struct {
	// Playback contains timing and trajectory tunables
	Playback PlaybackConfig `json:"playback"`

	// GameMode contains the relative-delta mode settings
	GameMode GameModeConfig `json:"game_mode"`

	// Bindings maps global hotkeys to groups in the library
	Bindings []Binding `json:"bindings"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// PlaybackConfig tunes the orchestrator and trajectory synthesizer
type PlaybackConfig struct {
	// BaseSteps is the trajectory step count for short moves (default: 20)
	BaseSteps int `json:"base_steps"`

	// StepDelayMS is the base delay between trajectory steps (default: 5)
	StepDelayMS int `json:"step_delay_ms"`

	// MinHoldMS is the shortest press for a recorded down/up pair (default: 50)
	MinHoldMS int `json:"min_hold_ms"`

	// Seed fixes the trajectory randomness; 0 seeds from the clock
	Seed int64 `json:"seed,omitempty"`

	// WakeDisplay nudges the pointer before each playback
	WakeDisplay bool `json:"wake_display"`

	// KeepAwake prevents system sleep while a playback runs
	KeepAwake bool `json:"keep_awake"`
}

// GameModeConfig controls relative-delta playback and forwarding
type GameModeConfig struct {
	// Enabled replays moves as raw deltas instead of absolute positions
	Enabled bool `json:"enabled"`

	// Sensitivity scales every delta (default: 1.0)
	Sensitivity float64 `json:"sensitivity"`

	// EchoWindowMS is how long injected deltas are remembered by the
	// listener to avoid re-forwarding them (default: 50)
	EchoWindowMS int `json:"echo_window_ms"`
}

// Binding plays a group when its hotkey is pressed
type Binding struct {
	// Group is the group name or ID in the library
	Group string `json:"group"`

	// Hotkey is the keyboard shortcut, e.g. "Ctrl+Alt+1"
	Hotkey string `json:"hotkey"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// GroupsDir holds the *.json group files; empty means <config dir>/groups
	GroupsDir string `json:"groups_dir,omitempty"`

	// StartMinimized starts the app minimized to tray
	StartMinimized bool `json:"start_minimized"`

	// APIEnabled enables the local HTTP control API
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port for the API server (default: 18090)
	APIPort int `json:"api_port"`

	// APIToken is an optional bearer token for API requests
	APIToken string `json:"api_token,omitempty"`

	// CancelHotkey stops the active playback (default: "Ctrl+Alt+Esc")
	CancelHotkey string `json:"cancel_hotkey,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "text" or "json"
	LogFormat string `json:"log_format,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Playback: PlaybackConfig{
			BaseSteps:   trajectory.DefaultBaseSteps,
			StepDelayMS: int(trajectory.DefaultStepDelay / time.Millisecond),
			MinHoldMS:   int(playback.DefaultMinHold / time.Millisecond),
			WakeDisplay: true,
			KeepAwake:   true,
		},
		GameMode: GameModeConfig{
			Enabled:      false,
			Sensitivity:  1.0,
			EchoWindowMS: 50,
		},
		Bindings: []Binding{},
		General: GeneralConfig{
			StartMinimized: true,
			APIEnabled:     true,
			APIPort:        18090,
			CancelHotkey:   "Ctrl+Alt+Esc",
			LogLevel:       "info",
			LogFormat:      "text",
		},
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	var errs []error
	if c.Playback.BaseSteps < 0 {
		errs = append(errs, errors.New("playback.base_steps must not be negative"))
	}
	if c.Playback.StepDelayMS < 0 {
		errs = append(errs, errors.New("playback.step_delay_ms must not be negative"))
	}
	if c.Playback.MinHoldMS < 0 {
		errs = append(errs, errors.New("playback.min_hold_ms must not be negative"))
	}
	if c.GameMode.Sensitivity < 0 {
		errs = append(errs, errors.New("game_mode.sensitivity must not be negative"))
	}
	if c.General.APIPort < 0 || c.General.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("general.api_port %d out of range", c.General.APIPort))
	}
	if c.General.CancelHotkey != "" {
		if _, err := hotkey.Parse(c.General.CancelHotkey); err != nil {
			errs = append(errs, fmt.Errorf("general.cancel_hotkey: %w", err))
		}
	}
	for i, b := range c.Bindings {
		if strings.TrimSpace(b.Group) == "" {
			errs = append(errs, fmt.Errorf("bindings[%d]: empty group", i))
		}
		if _, err := hotkey.Parse(b.Hotkey); err != nil {
			errs = append(errs, fmt.Errorf("bindings[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// PlaybackSettings converts the file settings into orchestrator config
func (c *Config) PlaybackSettings() playback.Config {
	return playback.Config{
		BaseSteps:   c.Playback.BaseSteps,
		StepDelay:   time.Duration(c.Playback.StepDelayMS) * time.Millisecond,
		MinHold:     time.Duration(c.Playback.MinHoldMS) * time.Millisecond,
		GameMode:    c.GameMode.Enabled,
		Sensitivity: c.GameMode.Sensitivity,
		Seed:        c.Playback.Seed,
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
	logger     *slog.Logger
}

// NewManager creates a configuration manager for the per-user config file
func NewManager(logger *slog.Logger) (*Manager, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(filepath.Join(dir, "config.json"), logger), nil
}

// NewManagerAt creates a manager for an explicit file path
func NewManagerAt(path string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
		logger:     logger,
	}
}

// Dir returns the per-user configuration directory, creating it if needed
func Dir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", AppName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, AppName)
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(base, AppName)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return configDir, nil
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file keeps the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		m.mu.Unlock()
		m.logger.Info("Config: no file, using defaults", "path", m.configPath)
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("parse config %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	m.config = cfg
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	m.logger.Info("Config: saving", "path", m.configPath, "bytes", len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.config
	c.Bindings = append([]Binding(nil), m.config.Bindings...)
	return &c
}

// Set validates and replaces the configuration
func (m *Manager) Set(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = config
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// GetBinding returns the binding for a group
func (m *Manager) GetBinding(group string) *Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Bindings {
		if m.config.Bindings[i].Group == group {
			b := m.config.Bindings[i]
			return &b
		}
	}
	return nil
}

// SetBinding updates or adds a binding
func (m *Manager) SetBinding(b Binding) error {
	if _, err := hotkey.Parse(b.Hotkey); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Bindings {
		if m.config.Bindings[i].Group == b.Group {
			m.config.Bindings[i] = b
			return nil
		}
	}
	m.config.Bindings = append(m.config.Bindings, b)
	return nil
}

// DeleteBinding removes the binding for a group
func (m *Manager) DeleteBinding(group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Bindings {
		if m.config.Bindings[i].Group == group {
			m.config.Bindings = append(m.config.Bindings[:i], m.config.Bindings[i+1:]...)
			return
		}
	}
}

// GroupsDir returns the directory holding group files
func (m *Manager) GroupsDir() string {
	m.mu.Lock()
	dir := m.config.General.GroupsDir
	m.mu.Unlock()
	if dir != "" {
		return dir
	}
	return filepath.Join(filepath.Dir(m.configPath), "groups")
}
