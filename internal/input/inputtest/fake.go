// Package inputtest provides a recording input.Platform for tests.
package inputtest

import (
	"errors"
	"sync"
	"time"

	"actionreplay/internal/action"
)

// Call is one recorded platform invocation
type Call struct {
	Op       string // "move", "relative", "button", "key", "wheel"
	X, Y     int    // normalized for "move", delta for "relative"
	Button   action.Button
	Down     bool
	VK       uint16
	Extended bool
	Up       bool
	Delta    int
	At       time.Time
}

// ErrInjected is returned by operations listed in Platform.Fail
var ErrInjected = errors.New("injection rejected")

// Platform records every call. Width and Height default to 1920x1080.
type Platform struct {
	mu sync.Mutex

	Width, Height int
	CursorX       int
	CursorY       int

	// Fail makes the named operations return ErrInjected.
	Fail map[string]bool
	// Panic makes the named operations panic.
	Panic map[string]bool
	// OnCall runs after every recorded call, outside the lock.
	OnCall func(Call)

	calls []Call
}

// New creates a 1920x1080 fake platform
func New() *Platform {
	return &Platform{Width: 1920, Height: 1080}
}

func (p *Platform) record(c Call) error {
	c.At = time.Now()
	p.mu.Lock()
	fail := p.Fail[c.Op]
	boom := p.Panic[c.Op]
	if !fail && !boom {
		p.calls = append(p.calls, c)
	}
	hook := p.OnCall
	p.mu.Unlock()

	if boom {
		panic("inputtest: " + c.Op)
	}
	if fail {
		return ErrInjected
	}
	if hook != nil {
		hook(c)
	}
	return nil
}

// ScreenSize implements input.Platform
func (p *Platform) ScreenSize() (int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail["screen"] {
		return 0, 0, ErrInjected
	}
	return p.Width, p.Height, nil
}

// CursorPosition implements input.Platform
func (p *Platform) CursorPosition() (int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CursorX, p.CursorY, nil
}

// MoveAbsolute implements input.Platform
func (p *Platform) MoveAbsolute(nx, ny int) error {
	return p.record(Call{Op: "move", X: nx, Y: ny})
}

// MoveRelative implements input.Platform
func (p *Platform) MoveRelative(dx, dy int) error {
	return p.record(Call{Op: "relative", X: dx, Y: dy})
}

// Button implements input.Platform
func (p *Platform) Button(button action.Button, down bool) error {
	return p.record(Call{Op: "button", Button: button, Down: down})
}

// Key implements input.Platform
func (p *Platform) Key(vk uint16, extended bool, up bool) error {
	return p.record(Call{Op: "key", VK: vk, Extended: extended, Up: up})
}

// Wheel implements input.Platform
func (p *Platform) Wheel(delta int) error {
	return p.record(Call{Op: "wheel", Delta: delta})
}

// Calls returns a snapshot of the recorded calls
func (p *Platform) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Ops returns the recorded calls filtered by op
func (p *Platform) Ops(op string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}
