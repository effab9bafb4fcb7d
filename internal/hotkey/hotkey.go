// Package hotkey matches global key and mouse button combinations, such as
// the playback cancel combo, against state reported by a platform engine.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Engine feeds global key and button transitions into a Manager
type Engine interface {
	Start(update func(key string, down bool)) error
	Stop() error
}

// ErrEmptyCombo is returned for combos with no or blank parts
var ErrEmptyCombo = errors.New("empty hotkey combo")

var aliases = map[string]string{
	"CONTROL": "CTRL",
	"OPTION":  "ALT",
	"ESCAPE":  "ESC",
	"RETURN":  "ENTER",
	"WIN":     "CMD",
	"SUPER":   "CMD",
	"META":    "CMD",
	"COMMAND": "CMD",
}

// Manager handles global hotkey and mouse button registration and matching
type Manager struct {
	engine Engine
	logger *slog.Logger

	mu           sync.Mutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool
}

type registeredHotkey struct {
	parts    []string // e.g. ["CTRL", "ALT", "ESC"]
	original string
	callback func()
	// fired is set while the combo stays held so auto-repeat does not
	// trigger it again
	fired bool
}

// NewManager creates a manager; engine may be nil for manual UpdateState use.
func NewManager(engine Engine, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		engine:       engine,
		logger:       logger,
		currentState: make(map[string]bool),
	}
}

// Parse splits a combo like "Ctrl+Alt+Esc" into normalized key names
func Parse(combo string) ([]string, error) {
	if strings.TrimSpace(combo) == "" {
		return nil, ErrEmptyCombo
	}
	parts := strings.Split(combo, "+")
	for i, p := range parts {
		p = NormalizeKey(p)
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyCombo, combo)
		}
		parts[i] = p
	}
	return parts, nil
}

// NormalizeKey upper-cases a key name and resolves aliases
func NormalizeKey(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	if a, ok := aliases[key]; ok {
		return a
	}
	return key
}

// Register adds a combo and its callback, returning the combo index.
func (m *Manager) Register(combo string, callback func()) (int, error) {
	parts, err := Parse(combo)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: combo,
		callback: callback,
	})
	return len(m.hotkeys) - 1, nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState records a key or button transition and fires every combo
// that just became fully pressed.
func (m *Manager) UpdateState(key string, isDown bool) {
	key = NormalizeKey(key)
	if key == "" {
		return
	}

	m.mu.Lock()
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}

	var fire []*registeredHotkey
	for _, hk := range m.hotkeys {
		match := true
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
		}
		switch {
		case match && !hk.fired && isDown:
			hk.fired = true
			fire = append(fire, hk)
		case !match:
			hk.fired = false
		}
	}
	m.mu.Unlock()

	for _, hk := range fire {
		m.logger.Info("Hotkey: triggered", "combo", hk.original)
		go hk.callback()
	}
}

// Start initiates the platform hooks
func (m *Manager) Start() error {
	if m.engine == nil {
		return errors.New("no hotkey engine")
	}
	if err := m.engine.Start(m.UpdateState); err != nil {
		return fmt.Errorf("start hotkey engine: %w", err)
	}
	m.logger.Info("Hotkey: engine started")
	return nil
}

// Stop removes the platform hooks
func (m *Manager) Stop() error {
	if m.engine == nil {
		return nil
	}
	return m.engine.Stop()
}

// VKName maps a Windows virtual-key code to the key name used in combos
func VKName(vk uint32) string {
	switch vk {
	case 0x11, 0xA2, 0xA3:
		return "CTRL"
	case 0x12, 0xA4, 0xA5:
		return "ALT"
	case 0x10, 0xA0, 0xA1:
		return "SHIFT"
	case 0x5B, 0x5C:
		return "CMD"
	case 0x20:
		return "SPACE"
	case 0x0D:
		return "ENTER"
	case 0x1B:
		return "ESC"
	case 0x08:
		return "BACKSPACE"
	case 0x09:
		return "TAB"
	case 0x14:
		return "CAPSLOCK"
	case 0x21:
		return "PAGEUP"
	case 0x22:
		return "PAGEDOWN"
	case 0x23:
		return "END"
	case 0x24:
		return "HOME"
	case 0x25:
		return "LEFT"
	case 0x26:
		return "UP"
	case 0x27:
		return "RIGHT"
	case 0x28:
		return "DOWN"
	case 0x2C:
		return "PRINTSCREEN"
	case 0x2D:
		return "INSERT"
	case 0x2E:
		return "DELETE"
	case 0x13:
		return "PAUSE"
	case 0x91:
		return "SCROLLLOCK"
	}

	if (vk >= 0x41 && vk <= 0x5A) || (vk >= 0x30 && vk <= 0x39) {
		return string(rune(vk))
	}
	if vk >= 0x70 && vk <= 0x87 {
		return fmt.Sprintf("F%d", vk-0x6F)
	}
	return ""
}
