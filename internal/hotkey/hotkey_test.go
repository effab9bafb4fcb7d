package hotkey

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeEngine struct {
	update  func(string, bool)
	stopped bool
}

func (e *fakeEngine) Start(update func(string, bool)) error {
	e.update = update
	return nil
}

func (e *fakeEngine) Stop() error {
	e.stopped = true
	return nil
}

func waitFor(t *testing.T, n *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if n.Load() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d triggers, got %d", want, n.Load())
}

func TestParse(t *testing.T) {
	parts, err := Parse("Control+alt + Escape")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"CTRL", "ALT", "ESC"}
	if len(parts) != len(want) {
		t.Fatalf("Expected %v, got %v", want, parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("Expected part %d = %s, got %s", i, want[i], parts[i])
		}
	}

	for _, bad := range []string{"", "  ", "Ctrl++Esc", "Ctrl+"} {
		if _, err := Parse(bad); !errors.Is(err, ErrEmptyCombo) {
			t.Errorf("Expected ErrEmptyCombo for %q, got %v", bad, err)
		}
	}
}

func TestComboFiresOncePerPress(t *testing.T) {
	engine := &fakeEngine{}
	m := NewManager(engine, nil)

	var fired atomic.Int32
	if _, err := m.Register("Ctrl+Alt+Esc", func() { fired.Add(1) }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	engine.update("ctrl", true)
	engine.update("alt", true)
	engine.update("esc", true)
	engine.update("esc", true) // auto-repeat
	waitFor(t, &fired, 1)

	engine.update("esc", false)
	engine.update("esc", true)
	waitFor(t, &fired, 2)

	if err := m.Stop(); err != nil || !engine.stopped {
		t.Errorf("Expected engine to be stopped, err=%v", err)
	}
}

func TestPartialComboDoesNotFire(t *testing.T) {
	m := NewManager(nil, nil)
	var fired atomic.Int32
	m.Register("Ctrl+Q", func() { fired.Add(1) })

	m.UpdateState("CTRL", true)
	m.UpdateState("CTRL", false)
	m.UpdateState("Q", true)
	time.Sleep(20 * time.Millisecond)

	if fired.Load() != 0 {
		t.Errorf("Expected no trigger, got %d", fired.Load())
	}

	m.Clear()
	m.UpdateState("CTRL", true)
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("Expected cleared hotkeys to stay silent")
	}
}

func TestStartWithoutEngine(t *testing.T) {
	if err := NewManager(nil, nil).Start(); err == nil {
		t.Error("Expected error without an engine")
	}
}

func TestVKName(t *testing.T) {
	tests := map[uint32]string{
		0xA2: "CTRL",
		0xA5: "ALT",
		0x1B: "ESC",
		0x41: "A",
		0x39: "9",
		0x70: "F1",
		0x7B: "F12",
		0xFF: "",
	}
	for vk, want := range tests {
		if got := VKName(vk); got != want {
			t.Errorf("Expected VKName(0x%02X) = %q, got %q", vk, want, got)
		}
	}
}
