package input

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"actionreplay/internal/action"
	"actionreplay/internal/trajectory"
)

// Sleeper suspends for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper backed by a timer
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EmitterOptions configures an Emitter
type EmitterOptions struct {
	Logger      *slog.Logger
	Synthesizer *trajectory.Synthesizer
	Sleep       Sleeper
}

// Emitter serializes every write to the OS input queue. Calls never fail:
// platform errors and panics are logged and counted.
type Emitter struct {
	platform Platform
	logger   *slog.Logger
	synth    *trajectory.Synthesizer
	sleep    Sleeper

	mu       sync.Mutex
	width    int
	height   int
	pos      action.Point
	havePos  bool
	failures atomic.Uint64
}

// NewEmitter wraps a platform adapter
func NewEmitter(p Platform, opts EmitterOptions) *Emitter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Synthesizer == nil {
		opts.Synthesizer = trajectory.New(trajectory.Options{Seed: time.Now().UnixNano()})
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	return &Emitter{
		platform: p,
		logger:   opts.Logger,
		synth:    opts.Synthesizer,
		sleep:    opts.Sleep,
	}
}

// Normalize maps a pixel position on a width x height display into the
// absolute range [0, AbsoluteMax]. Out-of-bounds positions are clamped.
func Normalize(x, y, width, height int) (int, int) {
	return normalizeAxis(x, width), normalizeAxis(y, height)
}

func normalizeAxis(v, size int) int {
	if size <= 1 || v <= 0 {
		return 0
	}
	if v >= size-1 {
		return AbsoluteMax
	}
	span := size - 1
	return (v*AbsoluteMax + span/2) / span
}

// Denormalize is the inverse of Normalize, used by adapters whose native API
// takes pixels.
func Denormalize(nx, ny, width, height int) (int, int) {
	return denormalizeAxis(nx, width), denormalizeAxis(ny, height)
}

func denormalizeAxis(n, size int) int {
	if size <= 1 || n <= 0 {
		return 0
	}
	if n >= AbsoluteMax {
		return size - 1
	}
	return (n*(size-1) + AbsoluteMax/2) / AbsoluteMax
}

// MoveTo positions the cursor at pixel (x, y) on the primary display
func (e *Emitter) MoveTo(x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.moveLocked(x, y)
}

// ClickButton moves to (x, y) and presses or releases button there. Both
// writes happen under one lock so no other source can move the cursor in
// between.
func (e *Emitter) ClickButton(button action.Button, isDown bool, x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.moveLocked(x, y)
	e.invoke("button", func() error {
		return e.platform.Button(button, isDown)
	}, "button", button.String(), "down", isDown)
}

// PressButton presses or releases button at the current position without
// moving the cursor.
func (e *Emitter) PressButton(button action.Button, isDown bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invoke("button", func() error {
		return e.platform.Button(button, isDown)
	}, "button", button.String(), "down", isDown)
}

// SendKey presses (isUp false) or releases a virtual key, flagging
// navigation-cluster keys as extended.
func (e *Emitter) SendKey(vk uint16, isUp bool) {
	extended := IsExtendedKey(vk)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invoke("key", func() error {
		return e.platform.Key(vk, extended, isUp)
	}, "vk", fmt.Sprintf("0x%02X", vk), "up", isUp, "extended", extended)
}

// SendRawDelta injects a relative pointer motion without normalization
func (e *Emitter) SendRawDelta(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.invoke("relative", func() error {
		return e.platform.MoveRelative(dx, dy)
	}, "dx", dx, "dy", dy) {
		e.pos.X += dx
		e.pos.Y += dy
	}
}

// Scroll moves to (x, y) and turns the wheel by delta
func (e *Emitter) Scroll(x, y, delta int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.moveLocked(x, y)
	e.wheelLocked(delta)
}

// Wheel turns the wheel at the current position
func (e *Emitter) Wheel(delta int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wheelLocked(delta)
}

func (e *Emitter) wheelLocked(delta int) {
	if delta == 0 {
		delta = action.WheelNotch
	}
	e.invoke("wheel", func() error {
		return e.platform.Wheel(delta)
	}, "delta", delta)
}

// CursorPosition returns the last position written by the emitter, or the
// platform's cursor position before the first write.
func (e *Emitter) CursorPosition() action.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.havePos {
		return e.pos
	}
	var x, y int
	if e.invoke("cursor", func() (err error) {
		x, y, err = e.platform.CursorPosition()
		return err
	}) {
		e.pos = action.Point{X: x, Y: y}
		e.havePos = true
	}
	return e.pos
}

// SmoothMove walks the cursor from start to end along a humanized path.
// steps <= 0 and delay < 0 select the synthesizer defaults. It returns the
// context error when cancelled between steps.
func (e *Emitter) SmoothMove(ctx context.Context, start, end action.Point, steps int, delay time.Duration) error {
	if delay < 0 {
		delay = e.synth.StepDelay()
	}
	for _, st := range e.synth.PathWith(start, end, steps, delay) {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.MoveTo(st.Point.X, st.Point.Y)
		if err := e.sleep(ctx, st.Delay); err != nil {
			return err
		}
	}
	return nil
}

// Failures returns the number of injections that did not execute
func (e *Emitter) Failures() uint64 {
	return e.failures.Load()
}

// RefreshScreen drops the cached display bounds, e.g. after a resolution change.
func (e *Emitter) RefreshScreen() {
	e.mu.Lock()
	e.width, e.height = 0, 0
	e.mu.Unlock()
}

func (e *Emitter) moveLocked(x, y int) {
	if e.width <= 0 || e.height <= 0 {
		var w, h int
		ok := e.invoke("screen", func() (err error) {
			w, h, err = e.platform.ScreenSize()
			return err
		})
		if !ok || w <= 0 || h <= 0 {
			return
		}
		e.width, e.height = w, h
	}

	nx, ny := Normalize(x, y, e.width, e.height)
	if e.invoke("move", func() error {
		return e.platform.MoveAbsolute(nx, ny)
	}, "x", x, "y", y) {
		e.pos = action.Point{X: x, Y: y}
		e.havePos = true
	}
}

// invoke runs one platform call, converting errors and panics into a log
// line. Callers hold e.mu.
func (e *Emitter) invoke(op string, call func() error, attrs ...any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.failures.Add(1)
			e.logger.Error("Emitter: injection panicked", append([]any{"op", op, "panic", r}, attrs...)...)
			ok = false
		}
	}()
	if err := call(); err != nil {
		e.failures.Add(1)
		e.logger.Warn("Emitter: injection failed", append([]any{"op", op, "error", err}, attrs...)...)
		return false
	}
	return true
}
