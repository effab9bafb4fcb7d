// Package rawinput forwards relative pointer motion to the emitter while game
// mode is active.
package rawinput

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Source delivers relative pointer deltas from the operating system.
// Unregister must be safe to call after a failed or partial Register.
type Source interface {
	Register(onDelta func(dx, dy int)) error
	Unregister() error
}

// DeltaSink receives forwarded deltas
type DeltaSink interface {
	SendRawDelta(dx, dy int)
}

// Options configures a Listener
type Options struct {
	// Sensitivity scales every delta; zero means 1.
	Sensitivity float64
	// EchoWindow is how long an injected delta is remembered so the source
	// reporting it back is not re-forwarded. Zero disables the filter.
	EchoWindow time.Duration
	Logger     *slog.Logger
	Clock      func() time.Time
}

// DefaultEchoWindow is the echo suppression window used by the service
const DefaultEchoWindow = 50 * time.Millisecond

var ErrAlreadyRunning = errors.New("raw input listener already running")

// Listener couples a Source to a DeltaSink
type Listener struct {
	source Source
	sink   DeltaSink
	logger *slog.Logger
	sens   float64
	echo   *echoFilter

	mu      sync.Mutex
	running bool
	closed  bool
	// fractional remainders carried between scaled deltas
	remX, remY float64
}

// NewListener creates a listener; Start begins forwarding.
func NewListener(src Source, sink DeltaSink, opts Options) *Listener {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sensitivity <= 0 {
		opts.Sensitivity = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	l := &Listener{
		source: src,
		sink:   sink,
		logger: opts.Logger,
		sens:   opts.Sensitivity,
	}
	if opts.EchoWindow > 0 {
		l.echo = newEchoFilter(opts.EchoWindow, opts.Clock)
	}
	return l
}

// Start registers with the source
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.running = true
	l.closed = false
	l.mu.Unlock()

	if err := l.source.Register(l.handle); err != nil {
		l.logger.Error("RawInput: registration failed", "error", err)
		if uerr := l.source.Unregister(); uerr != nil {
			l.logger.Warn("RawInput: cleanup after failed registration", "error", uerr)
		}
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return fmt.Errorf("register raw input: %w", err)
	}
	l.logger.Info("RawInput: listening", "sensitivity", l.sens)
	return nil
}

// Close unregisters from the source. It always attempts unregistration, even
// when Start failed or was never called, and is safe to call repeatedly.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.running = false
	l.mu.Unlock()

	if err := l.source.Unregister(); err != nil {
		l.logger.Warn("RawInput: unregister failed", "error", err)
		return fmt.Errorf("unregister raw input: %w", err)
	}
	l.logger.Info("RawInput: stopped")
	return nil
}

// Running reports whether the listener is registered
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Listener) handle(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	if l.echo != nil && l.echo.consume(dx, dy) {
		return
	}

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	fx := float64(dx)*l.sens + l.remX
	fy := float64(dy)*l.sens + l.remY
	sx, sy := math.Trunc(fx), math.Trunc(fy)
	l.remX, l.remY = fx-sx, fy-sy
	l.mu.Unlock()

	outX, outY := int(sx), int(sy)
	if outX == 0 && outY == 0 {
		return
	}
	if l.echo != nil {
		l.echo.remember(outX, outY)
	}
	l.sink.SendRawDelta(outX, outY)
}

type injected struct {
	dx, dy int
	at     time.Time
}

// echoFilter remembers recently injected deltas
type echoFilter struct {
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	pending []injected
}

func newEchoFilter(window time.Duration, clock func() time.Time) *echoFilter {
	return &echoFilter{window: window, clock: clock}
}

func (f *echoFilter) remember(dx, dy int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, injected{dx: dx, dy: dy, at: f.clock()})
}

// consume reports whether (dx, dy) matches a still-pending injected delta,
// dropping that entry and every expired one.
func (f *echoFilter) consume(dx, dy int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock()
	kept := f.pending[:0]
	for _, p := range f.pending {
		if now.Sub(p.at) <= f.window {
			kept = append(kept, p)
		}
	}
	f.pending = kept

	for i, p := range f.pending {
		if p.dx == dx && p.dy == dy {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return true
		}
	}
	return false
}
