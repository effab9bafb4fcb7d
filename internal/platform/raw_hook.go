//go:build darwin || linux

package platform

import (
	"sync"

	hook "github.com/robotn/gohook"

	"actionreplay/internal/rawinput"
)

// HookSource derives relative motion from successive gohook cursor
// positions. It cannot tell injected motion from physical motion, so the
// listener's echo filter does that work.
type HookSource struct {
	mu      sync.Mutex
	id      int
	havePos bool
	lastX   int
	lastY   int
}

// NewRawSource returns the gohook-backed source
func NewRawSource() rawinput.Source {
	return &HookSource{}
}

// Register subscribes to mouse move and drag events
func (s *HookSource) Register(onDelta func(dx, dy int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != 0 {
		return nil
	}
	s.havePos = false
	s.id = events.subscribe(func(ev hook.Event) {
		if ev.Kind != hook.MouseMove && ev.Kind != hook.MouseDrag {
			return
		}
		x, y := int(ev.X), int(ev.Y)
		s.mu.Lock()
		dx, dy := x-s.lastX, y-s.lastY
		first := !s.havePos
		s.lastX, s.lastY, s.havePos = x, y, true
		s.mu.Unlock()
		if !first {
			onDelta(dx, dy)
		}
	})
	return nil
}

// Unregister drops the subscription; safe to repeat
func (s *HookSource) Unregister() error {
	s.mu.Lock()
	id := s.id
	s.id = 0
	s.mu.Unlock()
	if id != 0 {
		events.unsubscribe(id)
	}
	return nil
}
