package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"actionreplay/internal/action"
	"actionreplay/internal/input"
	"actionreplay/internal/input/inputtest"
	"actionreplay/internal/modifier"
)

type recSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *recSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recSleeper) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

func (s *recSleeper) contains(d time.Duration) bool {
	for _, v := range s.all() {
		if v == d {
			return true
		}
	}
	return false
}

func pt(x, y int) *action.Point {
	return &action.Point{X: x, Y: y}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 1
	cfg.StepDelay = time.Millisecond
	return cfg
}

func newTestOrchestrator(p *inputtest.Platform, cfg Config, sleep input.Sleeper, obs Observer) *Orchestrator {
	e := input.NewEmitter(p, input.EmitterOptions{Sleep: sleep})
	return New(e, Options{Config: cfg, Sleep: sleep, Observer: obs})
}

func TestMoveThenClickPreservesRecordedHold(t *testing.T) {
	p := inputtest.New()
	o := newTestOrchestrator(p, testConfig(), nil, nil)

	g := action.NewGroup("click")
	g.Append(
		action.Item{Timestamp: 0, Type: action.MouseMove, Coordinates: pt(400, 300)},
		action.Item{Timestamp: 100, Type: action.ButtonDown, Button: action.ButtonLeft, Coordinates: pt(400, 300)},
		action.Item{Timestamp: 150, Type: action.ButtonUp, Button: action.ButtonLeft, Coordinates: pt(400, 300)},
	)

	res := o.Start(context.Background(), g)
	if res.Status != StatusCompleted || res.Err != nil {
		t.Fatalf("Expected completed, got %v (%v)", res.Status, res.Err)
	}
	if res.Executed != 3 {
		t.Errorf("Expected 3 executed items, got %d", res.Executed)
	}

	calls := p.Calls()
	var down, up *inputtest.Call
	for i := range calls {
		if calls[i].Op != "button" {
			continue
		}
		if calls[i].Down {
			down = &calls[i]
			if i == 0 || calls[i-1].Op != "move" {
				t.Error("Expected the press to directly follow a move")
			}
			nx, ny := input.Normalize(400, 300, 1920, 1080)
			if calls[i-1].X != nx || calls[i-1].Y != ny {
				t.Errorf("Expected press at (%d,%d), got (%d,%d)", nx, ny, calls[i-1].X, calls[i-1].Y)
			}
		} else {
			up = &calls[i]
		}
	}
	if down == nil || up == nil {
		t.Fatalf("Expected a press and a release, got %+v", calls)
	}
	if gap := up.At.Sub(down.At); gap < 50*time.Millisecond {
		t.Errorf("Expected at least 50ms between press and release, got %v", gap)
	}
}

func TestZeroGapReleaseUsesMinHold(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}
	o := newTestOrchestrator(p, testConfig(), s.sleep, nil)

	g := action.NewGroup("tap")
	g.Append(
		action.Item{Timestamp: 20, Type: action.ButtonDown, Button: action.ButtonRight, Coordinates: pt(0, 0)},
		action.Item{Timestamp: 20, Type: action.ButtonUp, Button: action.ButtonRight, Coordinates: pt(0, 0)},
		action.Item{Timestamp: 30, Type: action.KeyDown, KeyCode: 0x41},
		action.Item{Timestamp: 10, Type: action.KeyUp, KeyCode: 0x41},
	)

	res := o.Start(context.Background(), g)
	if res.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v", res.Status)
	}

	want := []time.Duration{DefaultMinHold, 10 * time.Millisecond, DefaultMinHold}
	got := s.all()
	if len(got) != len(want) {
		t.Fatalf("Expected sleeps %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected sleep %d = %v, got %v", i, want[i], got[i])
		}
	}
}

func TestCancelMidTrajectoryReleasesHeldInput(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}
	var o *Orchestrator

	moves := 0
	var mu sync.Mutex
	p.OnCall = func(c inputtest.Call) {
		if c.Op != "move" {
			return
		}
		mu.Lock()
		moves++
		n := moves
		mu.Unlock()
		if n == 3 {
			o.Cancel()
		}
	}
	o = newTestOrchestrator(p, testConfig(), s.sleep, nil)

	g := action.NewGroup("drag")
	g.Append(
		action.Item{Timestamp: 0, Type: action.KeyDown, KeyCode: input.VKLShift},
		action.Item{Timestamp: 0, Type: action.ButtonDown, Button: action.ButtonLeft, Coordinates: pt(0, 0)},
		action.Item{Timestamp: 10, Type: action.MouseMove, Coordinates: pt(1800, 1000)},
		action.Item{Timestamp: 500, Type: action.ButtonUp, Button: action.ButtonLeft, Coordinates: pt(1800, 1000)},
		action.Item{Timestamp: 510, Type: action.KeyUp, KeyCode: input.VKLShift},
	)

	res := o.Start(context.Background(), g)
	if res.Status != StatusCancelled {
		t.Fatalf("Expected cancelled, got %v (%v)", res.Status, res.Err)
	}
	if res.Err != nil {
		t.Errorf("Expected cancellation to not be an error, got %v", res.Err)
	}
	if g.IsSimulating() {
		t.Error("Expected isSimulating to be cleared")
	}
	if o.State() != StatusCancelled {
		t.Errorf("Expected state cancelled, got %v", o.State())
	}

	if n := len(p.Ops("move")); n != 3 {
		t.Errorf("Expected the trajectory to stop after 3 moves, got %d", n)
	}

	released := map[string]bool{}
	for _, c := range p.Calls() {
		switch {
		case c.Op == "button" && !c.Down && c.Button == action.ButtonLeft:
			released["button"] = true
		case c.Op == "key" && c.Up && c.VK == input.VKLShift:
			released["key"] = true
		}
	}
	if !released["button"] || !released["key"] {
		t.Errorf("Expected held button and key to be released, got %v", released)
	}
}

func TestIsSimulatingLifecycle(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}

	g := action.NewGroup("life")
	g.Append(
		action.Item{Timestamp: 0, Type: action.KeyDown, KeyCode: 0x42},
		action.Item{Timestamp: 5, Type: action.KeyUp, KeyCode: 0x42},
	)

	var during []bool
	var kinds []EventKind
	o := newTestOrchestrator(p, testConfig(), s.sleep, func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventItem {
			during = append(during, g.IsSimulating())
		}
	})

	if g.IsSimulating() {
		t.Fatal("Expected a fresh group to be idle")
	}
	res := o.Start(context.Background(), g)
	if res.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v", res.Status)
	}
	if len(during) != 2 || !during[0] || !during[1] {
		t.Errorf("Expected isSimulating during every item, got %v", during)
	}
	if g.IsSimulating() {
		t.Error("Expected isSimulating to be cleared after completion")
	}
	if kinds[0] != EventStarted || kinds[len(kinds)-1] != EventFinished {
		t.Errorf("Expected started ... finished, got %v", kinds)
	}
	if o.Current() != nil {
		t.Error("Expected no current group after completion")
	}
}

func TestRejectsConcurrentPlayback(t *testing.T) {
	p := inputtest.New()
	block := make(chan struct{})
	entered := make(chan struct{}, 1)
	sleep := func(ctx context.Context, d time.Duration) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-block:
			return nil
		}
	}
	defer close(block)

	o := newTestOrchestrator(p, testConfig(), sleep, nil)
	g1 := action.NewGroup("long hold")
	g1.Append(action.Item{Type: action.KeyDown, KeyCode: 0x57, Duration: 1000})

	done := make(chan Result, 1)
	go func() { done <- o.Start(context.Background(), g1) }()
	<-entered

	if res := o.Start(context.Background(), g1); !errors.Is(res.Err, ErrAlreadySimulating) || res.Status != StatusFailed {
		t.Errorf("Expected ErrAlreadySimulating, got %v (%v)", res.Status, res.Err)
	}
	if !g1.IsSimulating() {
		t.Error("Expected the rejected start to leave the running flag alone")
	}

	other := New(input.NewEmitter(p, input.EmitterOptions{}), Options{Config: testConfig()})
	if res := other.Start(context.Background(), g1); !errors.Is(res.Err, ErrAlreadySimulating) {
		t.Errorf("Expected ErrAlreadySimulating from a second orchestrator, got %v", res.Err)
	}

	g2 := action.NewGroup("second")
	g2.Append(action.Item{Type: action.KeyDown, KeyCode: 0x41})
	if res := o.Start(context.Background(), g2); !errors.Is(res.Err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", res.Err)
	}
	if g2.IsSimulating() {
		t.Error("Expected the busy rejection to clear the second group's flag")
	}

	if o.State() != StatusRunning {
		t.Errorf("Expected running state, got %v", o.State())
	}
	if !o.Cancel() {
		t.Error("Expected Cancel to report an active playback")
	}

	select {
	case res := <-done:
		if res.Status != StatusCancelled {
			t.Errorf("Expected cancelled, got %v", res.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not stop after cancel")
	}
	if o.Cancel() {
		t.Error("Expected Cancel to report nothing running")
	}

	keys := p.Ops("key")
	if len(keys) != 2 || keys[0].Up || !keys[1].Up {
		t.Errorf("Expected the held key to be released, got %+v", keys)
	}
}

func TestMalformedItemsAreSkipped(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}
	skipped := 0
	o := newTestOrchestrator(p, testConfig(), s.sleep, func(ev Event) {
		if ev.Kind == EventSkipped {
			skipped++
		}
	})

	g := action.NewGroup("mixed")
	g.Append(
		action.Item{Timestamp: 0, Type: action.MouseMove},
		action.Item{Timestamp: 1, Type: action.KeyDown, KeyCode: 0x41, Coordinates: pt(1, 1)},
		action.Item{Timestamp: 2, Type: action.KeyDown, KeyCode: 0x41, Duration: -5},
		action.Item{Timestamp: 10, Type: action.KeyDown, KeyCode: 0x42},
		action.Item{Timestamp: 20, Type: action.KeyUp, KeyCode: 0x42},
	)

	res := o.Start(context.Background(), g)
	if res.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v", res.Status)
	}
	if res.Executed != 2 || res.Skipped != 3 || skipped != 3 {
		t.Errorf("Expected 2 executed and 3 skipped, got %d/%d (events %d)", res.Executed, res.Skipped, skipped)
	}
	if keys := p.Ops("key"); len(keys) != 2 || keys[0].VK != 0x42 {
		t.Errorf("Expected only the valid pair to be emitted, got %+v", keys)
	}
}

func TestUnpairedDownWithDurationIsHeld(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}
	o := newTestOrchestrator(p, testConfig(), s.sleep, nil)

	g := action.NewGroup("hold")
	g.Append(action.Item{Type: action.KeyDown, KeyCode: 0x57, Duration: 200})

	if res := o.Start(context.Background(), g); res.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v", res.Status)
	}
	keys := p.Ops("key")
	if len(keys) != 2 || keys[0].Up || !keys[1].Up {
		t.Errorf("Expected press then release, got %+v", keys)
	}
	if !s.contains(200 * time.Millisecond) {
		t.Errorf("Expected a 200ms hold, got %v", s.all())
	}
}

func TestModifiersRewriteWorkingCopy(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}
	o := newTestOrchestrator(p, testConfig(), s.sleep, nil)

	g := action.NewGroup("slow")
	g.Append(action.Item{Type: action.KeyDown, KeyCode: 0x57, Duration: 100})
	m, err := modifier.Build(modifier.Spec{
		Name:   "double",
		Kind:   modifier.KindScaleDuration,
		Factor: 2,
	})
	if err != nil {
		t.Fatalf("build modifier: %v", err)
	}
	g.AddModifier(m)

	o.Start(context.Background(), g)
	if !s.contains(200 * time.Millisecond) {
		t.Errorf("Expected the modified 200ms hold, got %v", s.all())
	}
	if g.Items[0].Duration != 100 {
		t.Errorf("Expected the recording to stay untouched, got %d", g.Items[0].Duration)
	}
}

func TestGameModeEmitsScaledRelativeDeltas(t *testing.T) {
	p := inputtest.New()
	p.CursorX, p.CursorY = 100, 100
	s := &recSleeper{}
	cfg := testConfig()
	cfg.GameMode = true
	cfg.Sensitivity = 2
	o := newTestOrchestrator(p, cfg, s.sleep, nil)

	g := action.NewGroup("aim")
	g.Append(
		action.Item{Timestamp: 0, Type: action.MouseMove, Coordinates: pt(300, 150)},
		action.Item{Timestamp: 10, Type: action.ButtonDown, Button: action.ButtonLeft, Coordinates: pt(300, 150)},
		action.Item{Timestamp: 20, Type: action.ButtonUp, Button: action.ButtonLeft, Coordinates: pt(300, 150)},
		action.Item{Timestamp: 30, Type: action.Wheel, Coordinates: pt(300, 150)},
	)

	if res := o.Start(context.Background(), g); res.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v", res.Status)
	}
	if n := len(p.Ops("move")); n != 0 {
		t.Errorf("Expected no absolute moves in game mode, got %d", n)
	}
	var sx, sy int
	rel := p.Ops("relative")
	for _, c := range rel {
		sx += c.X
		sy += c.Y
	}
	if len(rel) < 2 || sx != 400 || sy != 100 {
		t.Errorf("Expected scaled deltas summing to (400,100), got (%d,%d) over %d steps", sx, sy, len(rel))
	}
	if b := p.Ops("button"); len(b) != 2 {
		t.Errorf("Expected press and release, got %+v", b)
	}
	if w := p.Ops("wheel"); len(w) != 1 || w[0].Delta != action.WheelNotch {
		t.Errorf("Expected one wheel notch, got %+v", w)
	}
}

func TestWheelScrollsAtRecordedPosition(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}
	o := newTestOrchestrator(p, testConfig(), s.sleep, nil)

	g := action.NewGroup("scroll")
	g.Append(action.Item{Type: action.Wheel, Coordinates: pt(50, 60), WheelDelta: -240})

	o.Start(context.Background(), g)
	calls := p.Calls()
	if len(calls) < 2 {
		t.Fatalf("Expected moves and a wheel, got %+v", calls)
	}
	last, prev := calls[len(calls)-1], calls[len(calls)-2]
	nx, ny := input.Normalize(50, 60, 1920, 1080)
	if last.Op != "wheel" || last.Delta != -240 || prev.Op != "move" || prev.X != nx || prev.Y != ny {
		t.Errorf("Expected wheel -240 at (%d,%d), got %+v after %+v", nx, ny, last, prev)
	}
}

type panicInjector struct{ input.Injector }

func (panicInjector) CursorPosition() action.Point { return action.Point{} }
func (panicInjector) SendKey(vk uint16, isUp bool) { panic("driver exploded") }

func TestPanicFailsPlaybackAndClearsFlag(t *testing.T) {
	s := &recSleeper{}
	o := New(panicInjector{}, Options{Config: testConfig(), Sleep: s.sleep})

	g := action.NewGroup("boom")
	g.Append(action.Item{Type: action.KeyDown, KeyCode: 0x41})

	res := o.Start(context.Background(), g)
	if res.Status != StatusFailed || res.Err == nil {
		t.Errorf("Expected failed with error, got %v (%v)", res.Status, res.Err)
	}
	if g.IsSimulating() {
		t.Error("Expected isSimulating to be cleared after a panic")
	}
}

func TestNilGroup(t *testing.T) {
	o := New(panicInjector{}, Options{})
	if res := o.Start(context.Background(), nil); !errors.Is(res.Err, ErrNoGroup) {
		t.Errorf("Expected ErrNoGroup, got %v", res.Err)
	}
}

func TestStatusText(t *testing.T) {
	b, _ := StatusCancelled.MarshalText()
	if string(b) != "cancelled" {
		t.Errorf("Expected cancelled, got %s", b)
	}
}

func TestDragReleaseKeepsRecordedHold(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}
	o := newTestOrchestrator(p, testConfig(), s.sleep, nil)

	// the last move and the release share a timestamp
	g := action.NewGroup("drag")
	g.Append(
		action.Item{Timestamp: 0, Type: action.ButtonDown, Button: action.ButtonLeft, Coordinates: pt(0, 0)},
		action.Item{Timestamp: 500, Type: action.MouseMove, Coordinates: pt(300, 0)},
		action.Item{Timestamp: 500, Type: action.ButtonUp, Button: action.ButtonLeft, Coordinates: pt(300, 0)},
	)

	if res := o.Start(context.Background(), g); res.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v (%v)", res.Status, res.Err)
	}
	got := s.all()
	if len(got) == 0 || got[0] != 500*time.Millisecond {
		t.Fatalf("Expected the first sleep to be the recorded 500ms gap, got %v", got)
	}
	if s.contains(DefaultMinHold) {
		t.Errorf("Expected no minimum hold pause for a 500ms drag, got %v", got)
	}
	buttons := p.Ops("button")
	if len(buttons) != 2 || !buttons[0].Down || buttons[1].Down {
		t.Errorf("Expected press then release, got %+v", buttons)
	}
}

func TestMinHoldCountsTimeAlreadyHeld(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}
	o := newTestOrchestrator(p, testConfig(), s.sleep, nil)

	g := action.NewGroup("chord")
	g.Append(
		action.Item{Timestamp: 0, Type: action.KeyDown, KeyCode: input.VKLShift},
		action.Item{Timestamp: 0, Type: action.KeyDown, KeyCode: 0x41, Duration: 20},
		action.Item{Timestamp: 0, Type: action.KeyUp, KeyCode: input.VKLShift},
	)

	if res := o.Start(context.Background(), g); res.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v (%v)", res.Status, res.Err)
	}
	want := []time.Duration{20 * time.Millisecond, DefaultMinHold - 20*time.Millisecond}
	got := s.all()
	if len(got) != len(want) {
		t.Fatalf("Expected sleeps %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected sleep %d = %v, got %v", i, want[i], got[i])
		}
	}
}

func TestHeldKeyCodeZeroIsReleasedAsKey(t *testing.T) {
	p := inputtest.New()
	o := newTestOrchestrator(p, testConfig(), (&recSleeper{}).sleep, nil)

	g := action.NewGroup("zero")
	g.Append(
		action.Item{Timestamp: 0, Type: action.KeyDown, KeyCode: 0},
		action.Item{Timestamp: 0, Type: action.ButtonDown, Button: action.Button(0), Coordinates: pt(0, 0)},
		action.Item{Timestamp: 10, Type: action.ButtonUp, Button: action.Button(0), Coordinates: pt(0, 0)},
	)

	if res := o.Start(context.Background(), g); res.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v (%v)", res.Status, res.Err)
	}
	keys := p.Ops("key")
	if len(keys) != 2 || keys[0].Up || !keys[1].Up || keys[1].VK != 0 {
		t.Errorf("Expected key 0 pressed then released at the end, got %+v", keys)
	}
	if buttons := p.Ops("button"); len(buttons) != 2 {
		t.Errorf("Expected only the recorded button press and release, got %+v", buttons)
	}
}

func TestBeforeRunOnlyForAcceptedPlayback(t *testing.T) {
	p := inputtest.New()
	s := &recSleeper{}

	var o *Orchestrator
	var before, after int
	var nested Result
	busy := action.NewGroup("busy")
	busy.Append(action.Item{Type: action.KeyDown, KeyCode: 0x42, Duration: 10})

	o = New(input.NewEmitter(p, input.EmitterOptions{Sleep: s.sleep}), Options{
		Config: testConfig(),
		Sleep:  s.sleep,
		BeforeRun: func(g *action.Group) func() {
			before++
			if len(p.Calls()) != 0 {
				t.Error("Expected BeforeRun to run before any input")
			}
			nested = o.Start(context.Background(), busy)
			return func() { after++ }
		},
	})

	g := action.NewGroup("tap")
	g.Append(action.Item{Type: action.KeyDown, KeyCode: 0x41, Duration: 10})
	if res := o.Start(context.Background(), g); res.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v (%v)", res.Status, res.Err)
	}
	if !errors.Is(nested.Err, ErrBusy) {
		t.Errorf("Expected ErrBusy for a start during a run, got %v", nested.Err)
	}

	g.TryBeginSimulation()
	if res := o.Start(context.Background(), g); !errors.Is(res.Err, ErrAlreadySimulating) {
		t.Errorf("Expected ErrAlreadySimulating, got %v", res.Err)
	}
	g.EndSimulation()

	if before != 1 || after != 1 {
		t.Errorf("Expected BeforeRun and its release once, got %d and %d", before, after)
	}
	for _, c := range p.Ops("key") {
		if c.VK == 0x42 {
			t.Errorf("Expected no input from the rejected group, got %+v", c)
		}
	}
}
