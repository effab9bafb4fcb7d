package rawinput

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu           sync.Mutex
	onDelta      func(dx, dy int)
	registerErr  error
	registered   int
	unregistered int
}

func (s *fakeSource) Register(fn func(dx, dy int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered++
	if s.registerErr != nil {
		return s.registerErr
	}
	s.onDelta = fn
	return nil
}

func (s *fakeSource) Unregister() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregistered++
	s.onDelta = nil
	return nil
}

func (s *fakeSource) emit(dx, dy int) {
	s.mu.Lock()
	fn := s.onDelta
	s.mu.Unlock()
	if fn != nil {
		fn(dx, dy)
	}
}

type sink struct {
	mu     sync.Mutex
	deltas [][2]int
}

func (s *sink) SendRawDelta(dx, dy int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deltas = append(s.deltas, [2]int{dx, dy})
}

func (s *sink) all() [][2]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]int(nil), s.deltas...)
}

func TestListenerForwardsDeltas(t *testing.T) {
	src := &fakeSource{}
	out := &sink{}
	l := NewListener(src, out, Options{})

	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.emit(3, -2)
	src.emit(0, 0)
	src.emit(-1, 5)

	got := out.all()
	if len(got) != 2 || got[0] != [2]int{3, -2} || got[1] != [2]int{-1, 5} {
		t.Errorf("Expected [(3,-2) (-1,5)], got %v", got)
	}

	if err := l.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	src.emit(9, 9)
	if len(out.all()) != 2 {
		t.Error("Expected no forwarding after close")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Expected repeated close to be a no-op, got %v", err)
	}
	if src.unregistered != 1 {
		t.Errorf("Expected exactly one unregister, got %d", src.unregistered)
	}
}

func TestCloseUnregistersAfterFailedRegistration(t *testing.T) {
	src := &fakeSource{registerErr: errors.New("device busy")}
	l := NewListener(src, &sink{}, Options{})

	if err := l.Start(); err == nil {
		t.Fatal("Expected start to fail")
	}
	if src.unregistered != 1 {
		t.Errorf("Expected cleanup unregister after failed register, got %d", src.unregistered)
	}
	if l.Running() {
		t.Error("Expected listener to not be running")
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if src.unregistered != 2 {
		t.Errorf("Expected Close to still unregister, got %d", src.unregistered)
	}
}

func TestCloseWithoutStartStillUnregisters(t *testing.T) {
	src := &fakeSource{}
	l := NewListener(src, &sink{}, Options{})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if src.unregistered != 1 {
		t.Errorf("Expected unregister on close, got %d", src.unregistered)
	}
}

func TestSensitivityCarriesRemainder(t *testing.T) {
	src := &fakeSource{}
	out := &sink{}
	l := NewListener(src, out, Options{Sensitivity: 0.5})
	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	src.emit(1, 0)
	src.emit(1, 0)
	src.emit(3, -3)

	got := out.all()
	if len(got) != 2 || got[0] != [2]int{1, 0} || got[1] != [2]int{1, -1} {
		t.Errorf("Expected [(1,0) (1,-1)], got %v", got)
	}
}

func TestEchoFilterDropsInjectedDelta(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }

	src := &fakeSource{}
	out := &sink{}
	l := NewListener(src, out, Options{EchoWindow: 50 * time.Millisecond, Clock: clock})
	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	src.emit(4, 4)
	src.emit(4, 4) // the source reporting our own injection
	if n := len(out.all()); n != 1 {
		t.Fatalf("Expected echo to be dropped, got %d forwards", n)
	}

	src.emit(4, 4)
	now = now.Add(100 * time.Millisecond)
	src.emit(4, 4)
	if n := len(out.all()); n != 3 {
		t.Errorf("Expected expired echo to be forwarded, got %d forwards", n)
	}
}
