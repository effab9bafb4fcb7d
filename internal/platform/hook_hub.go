//go:build darwin || linux

package platform

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// gohook runs a single process-wide event stream. hub starts it for the
// first subscriber, fans events out, and ends it with the last one.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(hook.Event)
	stop   chan struct{}
	done   chan struct{}
}

var events = &hub{subs: make(map[int]func(hook.Event))}

func (h *hub) subscribe(fn func(hook.Event)) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs[id] = fn
	if len(h.subs) == 1 {
		h.stop = make(chan struct{})
		h.done = make(chan struct{})
		go h.run(hook.Start(), h.stop, h.done)
	}
	return id
}

func (h *hub) unsubscribe(id int) {
	h.mu.Lock()
	if _, ok := h.subs[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, id)
	if len(h.subs) > 0 {
		h.mu.Unlock()
		return
	}
	stop, done := h.stop, h.done
	h.mu.Unlock()

	close(stop)
	hook.End()
	<-done
}

func (h *hub) run(ch chan hook.Event, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			h.mu.Lock()
			fns := make([]func(hook.Event), 0, len(h.subs))
			for _, fn := range h.subs {
				fns = append(fns, fn)
			}
			h.mu.Unlock()
			for _, fn := range fns {
				fn(ev)
			}
		}
	}
}
