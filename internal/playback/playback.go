// Package playback replays action groups through the input emitter with
// recorded timing and humanized cursor paths.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"actionreplay/internal/action"
	"actionreplay/internal/input"
	"actionreplay/internal/modifier"
	"actionreplay/internal/trajectory"
)

var (
	// ErrAlreadySimulating is returned when the group is already being played
	ErrAlreadySimulating = errors.New("group is already simulating")
	// ErrBusy is returned when the orchestrator is playing another group
	ErrBusy = errors.New("orchestrator is busy")
	// ErrNoGroup is returned for a nil group
	ErrNoGroup = errors.New("no group to play")
)

// DefaultMinHold is the shortest press replayed for a recorded pair
const DefaultMinHold = 50 * time.Millisecond

// Status is the lifecycle state of a playback
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText encodes the status name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds the playback tunables
type Config struct {
	BaseSteps int
	StepDelay time.Duration
	MinHold   time.Duration
	// GameMode replays moves as relative deltas and never positions the
	// cursor absolutely.
	GameMode    bool
	Sensitivity float64
	Seed        int64
}

// DefaultConfig returns the stock tunables
func DefaultConfig() Config {
	return Config{
		BaseSteps:   trajectory.DefaultBaseSteps,
		StepDelay:   trajectory.DefaultStepDelay,
		MinHold:     DefaultMinHold,
		Sensitivity: 1,
	}
}

// Result summarizes one playback
type Result struct {
	Status   Status
	Err      error
	Executed int
	Skipped  int
	Elapsed  time.Duration
}

// EventKind identifies an observer notification
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventItem
	EventSkipped
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventItem:
		return "item"
	case EventSkipped:
		return "skipped"
	case EventFinished:
		return "finished"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is delivered to the Observer during a playback
type Event struct {
	Kind      EventKind
	GroupID   string
	GroupName string
	Index     int
	Total     int
	Item      action.Item
	Result    Result
}

// Observer receives playback events synchronously; it must not block.
type Observer func(Event)

// Options configures an Orchestrator
type Options struct {
	Config      Config
	Logger      *slog.Logger
	Observer    Observer
	Sleep       input.Sleeper
	Synthesizer *trajectory.Synthesizer
	// BeforeRun is called once a playback has been accepted, before its
	// first item. The returned func, if not nil, runs when it ends.
	BeforeRun func(g *action.Group) (after func())
}

// Orchestrator plays one group at a time
type Orchestrator struct {
	emit     input.Injector
	cfg      Config
	logger   *slog.Logger
	observer Observer
	sleep    input.Sleeper
	synth    *trajectory.Synthesizer
	pipeline *modifier.Pipeline
	before   func(*action.Group) func()

	mu      sync.Mutex
	running bool
	state   Status
	current *action.Group
	cancel  context.CancelFunc
}

// New creates an orchestrator writing through emit
func New(emit input.Injector, opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg.MinHold <= 0 {
		cfg.MinHold = DefaultMinHold
	}
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = 1
	}
	if cfg.StepDelay < 0 {
		cfg.StepDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sleep == nil {
		opts.Sleep = input.SleepContext
	}
	if opts.Synthesizer == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		opts.Synthesizer = trajectory.New(trajectory.Options{
			BaseSteps: cfg.BaseSteps,
			StepDelay: cfg.StepDelay,
			Seed:      seed,
		})
	}
	return &Orchestrator{
		emit:     emit,
		cfg:      cfg,
		logger:   opts.Logger,
		observer: opts.Observer,
		sleep:    opts.Sleep,
		synth:    opts.Synthesizer,
		pipeline: modifier.New(opts.Logger),
		before:   opts.BeforeRun,
	}
}

// State returns the status of the current or last playback
func (o *Orchestrator) State() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Current returns the group being played, or nil
func (o *Orchestrator) Current() *action.Group {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Cancel stops the active playback. It reports whether one was running.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Start plays g to completion, cancellation or failure. It blocks until the
// playback ends.
func (o *Orchestrator) Start(ctx context.Context, g *action.Group) (res Result) {
	if g == nil {
		return Result{Status: StatusFailed, Err: ErrNoGroup}
	}
	if !g.TryBeginSimulation() {
		o.logger.Warn("Playback: rejected", "group", g.Name, "error", ErrAlreadySimulating)
		return Result{Status: StatusFailed, Err: ErrAlreadySimulating}
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		g.EndSimulation()
		o.logger.Warn("Playback: rejected", "group", g.Name, "error", ErrBusy)
		return Result{Status: StatusFailed, Err: ErrBusy}
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.running = true
	o.state = StatusRunning
	o.current = g
	o.cancel = cancel
	o.mu.Unlock()

	started := time.Now()
	defer func() {
		cancel()
		g.EndSimulation()
		res.Elapsed = time.Since(started)

		o.mu.Lock()
		o.running = false
		o.state = res.Status
		o.current = nil
		o.cancel = nil
		o.mu.Unlock()

		o.logger.Info("Playback: finished", "group", g.Name, "status", res.Status.String(),
			"executed", res.Executed, "skipped", res.Skipped, "elapsed", res.Elapsed, "error", res.Err)
		o.notify(Event{Kind: EventFinished, GroupID: g.ID, GroupName: g.Name, Result: res})
	}()

	o.logger.Info("Playback: started", "group", g.Name, "items", len(g.Items), "game_mode", o.cfg.GameMode)
	return o.run(runCtx, g)
}

func (o *Orchestrator) notify(ev Event) {
	if o.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Playback: observer panicked", "panic", r)
		}
	}()
	o.observer(ev)
}

// run executes a working copy of g. It never panics.
func (o *Orchestrator) run(ctx context.Context, g *action.Group) (res Result) {
	r := &runner{o: o, ctx: ctx, held: make(map[holdKey]bool)}
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("Playback: panicked", "group", g.Name, "panic", p)
			func() {
				defer func() { _ = recover() }()
				r.releaseAll()
			}()
			res.Status = StatusFailed
			res.Err = fmt.Errorf("playback panicked: %v", p)
		}
	}()

	if o.before != nil {
		if after := o.before(g); after != nil {
			defer after()
		}
	}

	work := g.Clone()
	items := o.pipeline.Apply(work.Items, work.Modifiers)
	downs := pairReleases(items)
	// replay clock at which each paired down was pressed
	pressedAt := make(map[int]time.Duration)
	o.notify(Event{Kind: EventStarted, GroupID: g.ID, GroupName: g.Name, Total: len(items)})

	r.pos = o.emit.CursorPosition()
	var prevTs int64
	havePrev := false

	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return r.cancelled(res)
		}
		if err := it.Validate(); err != nil {
			res.Skipped++
			o.logger.Warn("Playback: skipped malformed item", "index", i, "type", it.Type.String(), "error", err)
			o.notify(Event{Kind: EventSkipped, GroupID: g.ID, GroupName: g.Name, Index: i, Total: len(items), Item: it})
			continue
		}

		if havePrev {
			gap := time.Duration(it.Timestamp-prevTs) * time.Millisecond
			if gap < 0 {
				gap = 0
			}
			if d := downs[i]; d >= 0 && it.Timestamp-items[d].Timestamp <= 0 {
				// recorded with no hold: keep it down for MinHold in total
				if rest := o.cfg.MinHold - (r.clock - pressedAt[d]); rest > gap {
					gap = rest
				}
			}
			if err := r.wait(gap); err != nil {
				return r.cancelled(res)
			}
		}
		prevTs, havePrev = it.Timestamp, true

		if err := r.execute(it, hasRelease(items, i)); err != nil {
			return r.cancelled(res)
		}
		if isDown(it.Type) {
			pressedAt[i] = r.clock
		}
		res.Executed++
		o.notify(Event{Kind: EventItem, GroupID: g.ID, GroupName: g.Name, Index: i, Total: len(items), Item: it})
	}

	if n := r.releaseAll(); n > 0 {
		o.logger.Warn("Playback: released input still held at end of recording", "count", n)
	}
	res.Status = StatusCompleted
	return res
}

type holdKind int

const (
	heldKey holdKind = iota
	heldButton
)

type holdKey struct {
	kind   holdKind
	button action.Button
	vk     uint16
}

func keyOf(it action.Item) holdKey {
	if it.Type.IsButton() {
		return holdKey{kind: heldButton, button: it.Button}
	}
	return holdKey{kind: heldKey, vk: it.KeyCode}
}

func isDown(t action.EventType) bool {
	return t == action.KeyDown || t == action.ButtonDown
}

func isUp(t action.EventType) bool {
	return t == action.KeyUp || t == action.ButtonUp
}

// pairReleases returns, for each up item that closes an earlier down of the
// same key or button, the index of that down; -1 everywhere else.
func pairReleases(items []action.Item) []int {
	downs := make([]int, len(items))
	open := make(map[holdKey]int)
	for i, it := range items {
		downs[i] = -1
		if it.Validate() != nil {
			continue
		}
		switch {
		case isDown(it.Type):
			open[keyOf(it)] = i
		case isUp(it.Type):
			k := keyOf(it)
			if d, ok := open[k]; ok {
				downs[i] = d
				delete(open, k)
			}
		}
	}
	return downs
}

// hasRelease reports whether the down at i is closed by a later up before
// the same key or button goes down again.
func hasRelease(items []action.Item, i int) bool {
	if !isDown(items[i].Type) {
		return false
	}
	k := keyOf(items[i])
	for _, it := range items[i+1:] {
		if it.Validate() != nil || keyOf(it) != k {
			continue
		}
		if isUp(it.Type) {
			return true
		}
		if isDown(it.Type) {
			return false
		}
	}
	return false
}

// runner carries the per-playback state
type runner struct {
	o    *Orchestrator
	ctx  context.Context
	pos  action.Point
	held map[holdKey]bool
	// fractional game mode remainder
	remX, remY float64
	// total time waited so far
	clock time.Duration
}

func (r *runner) wait(d time.Duration) error {
	if d <= 0 {
		return r.ctx.Err()
	}
	r.clock += d
	return r.o.sleep(r.ctx, d)
}

func (r *runner) cancelled(res Result) Result {
	n := r.releaseAll()
	r.o.logger.Info("Playback: cancelled", "released", n)
	res.Status = StatusCancelled
	return res
}

func (r *runner) execute(it action.Item, released bool) error {
	emit := r.o.emit
	switch it.Type {
	case action.MouseMove:
		return r.moveTo(*it.Coordinates)

	case action.ButtonDown, action.ButtonUp:
		if err := r.moveTo(*it.Coordinates); err != nil {
			return err
		}
		down := it.Type == action.ButtonDown
		r.button(it.Button, down)
		if down && !released && it.Duration > 0 {
			if err := r.wait(it.Hold()); err != nil {
				return err
			}
			r.button(it.Button, false)
		}

	case action.KeyDown:
		emit.SendKey(it.KeyCode, false)
		r.held[keyOf(it)] = true
		if !released && it.Duration > 0 {
			if err := r.wait(it.Hold()); err != nil {
				return err
			}
			emit.SendKey(it.KeyCode, true)
			delete(r.held, keyOf(it))
		}

	case action.KeyUp:
		emit.SendKey(it.KeyCode, true)
		delete(r.held, keyOf(it))

	case action.Wheel:
		if err := r.moveTo(*it.Coordinates); err != nil {
			return err
		}
		if r.o.cfg.GameMode {
			emit.Wheel(it.WheelDelta)
		} else {
			emit.Scroll(r.pos.X, r.pos.Y, it.WheelDelta)
		}
	}
	return nil
}

func (r *runner) button(b action.Button, down bool) {
	if r.o.cfg.GameMode {
		r.o.emit.PressButton(b, down)
	} else {
		r.o.emit.ClickButton(b, down, r.pos.X, r.pos.Y)
	}
	k := holdKey{kind: heldButton, button: b}
	if down {
		r.held[k] = true
	} else {
		delete(r.held, k)
	}
}

// moveTo walks the cursor to target along a synthesized path, one step per
// delay. In game mode each step is sent as a scaled relative delta.
func (r *runner) moveTo(target action.Point) error {
	if target == r.pos {
		return nil
	}
	cfg := r.o.cfg
	for _, st := range r.o.synth.PathWith(r.pos, target, 0, cfg.StepDelay) {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if cfg.GameMode {
			fx := float64(st.Point.X-r.pos.X)*cfg.Sensitivity + r.remX
			fy := float64(st.Point.Y-r.pos.Y)*cfg.Sensitivity + r.remY
			sx, sy := math.Trunc(fx), math.Trunc(fy)
			r.remX, r.remY = fx-sx, fy-sy
			r.o.emit.SendRawDelta(int(sx), int(sy))
		} else {
			r.o.emit.MoveTo(st.Point.X, st.Point.Y)
		}
		r.pos = st.Point
		if err := r.wait(st.Delay); err != nil {
			return err
		}
	}
	return nil
}

// releaseAll lets go of every key and button pressed during this playback
func (r *runner) releaseAll() int {
	n := 0
	for k := range r.held {
		switch k.kind {
		case heldKey:
			r.o.emit.SendKey(k.vk, true)
		case heldButton:
			r.o.emit.PressButton(k.button, false)
		}
		n++
	}
	clear(r.held)
	return n
}
