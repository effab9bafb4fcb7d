//go:build darwin || linux

package platform

import (
	"strings"
	"sync"

	hook "github.com/robotn/gohook"

	"actionreplay/internal/hotkey"
)

var (
	keyNamesOnce sync.Once
	keyNames     map[uint16]string
)

// gohook keycode -> combo key name, built from hook.Keycode
func hookKeyName(code uint16) string {
	keyNamesOnce.Do(func() {
		keyNames = make(map[uint16]string, len(hook.Keycode))
		for name, c := range hook.Keycode {
			n := strings.ToUpper(name)
			// right-hand variants match the same combo part
			if len(n) > 1 && n[0] == 'R' {
				switch n[1:] {
				case "CTRL", "ALT", "SHIFT", "CMD":
					n = n[1:]
				}
			}
			if prev, ok := keyNames[c]; ok && len(prev) <= len(n) {
				continue
			}
			keyNames[c] = n
		}
	})
	return keyNames[code]
}

// uiohook numbers buttons left, right, middle; combos use the Windows order
var hookButtons = map[uint16]string{
	1: "MOUSE1",
	2: "MOUSE3",
	3: "MOUSE2",
	4: "MOUSE4",
	5: "MOUSE5",
}

// HookEngine reports key and button transitions through gohook
type HookEngine struct {
	mu sync.Mutex
	id int
}

// NewHotkeyEngine returns the gohook engine
func NewHotkeyEngine() hotkey.Engine {
	return &HookEngine{}
}

// Start subscribes to the shared gohook stream
func (e *HookEngine) Start(update func(key string, down bool)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id != 0 {
		return nil
	}
	e.id = events.subscribe(func(ev hook.Event) {
		switch ev.Kind {
		case hook.KeyHold:
			update(hookKeyName(ev.Keycode), true)
		case hook.KeyUp:
			update(hookKeyName(ev.Keycode), false)
		case hook.MouseHold:
			if name := hookButtons[ev.Button]; name != "" {
				update(name, true)
			}
		case hook.MouseUp:
			if name := hookButtons[ev.Button]; name != "" {
				update(name, false)
			}
		}
	})
	return nil
}

// Stop unsubscribes
func (e *HookEngine) Stop() error {
	e.mu.Lock()
	id := e.id
	e.id = 0
	e.mu.Unlock()
	if id != 0 {
		events.unsubscribe(id)
	}
	return nil
}
