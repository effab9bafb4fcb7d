package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}

	pb := cfg.PlaybackSettings()
	if pb.BaseSteps != 20 || pb.StepDelay != 5*time.Millisecond || pb.MinHold != 50*time.Millisecond {
		t.Errorf("Unexpected playback defaults: %+v", pb)
	}
	if pb.GameMode || pb.Sensitivity != 1.0 {
		t.Errorf("Expected game mode off at sensitivity 1, got %+v", pb)
	}
	if cfg.General.CancelHotkey != "Ctrl+Alt+Esc" {
		t.Errorf("Expected default cancel hotkey, got %q", cfg.General.CancelHotkey)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"), nil)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Get().General.APIPort != 18090 {
		t.Errorf("Expected default port, got %d", m.Get().General.APIPort)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManagerAt(path, nil)

	cfg := m.Get()
	cfg.GameMode.Enabled = true
	cfg.GameMode.Sensitivity = 1.5
	cfg.Playback.StepDelayMS = 8
	if err := m.Set(cfg); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.SetBinding(Binding{Group: "login", Hotkey: "Ctrl+Alt+1"}); err != nil {
		t.Fatalf("set binding: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewManagerAt(path, nil)
	changed := 0
	loaded.RegisterChangeCallback(func() { changed++ })
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	got := loaded.Get()
	if !got.GameMode.Enabled || got.GameMode.Sensitivity != 1.5 || got.Playback.StepDelayMS != 8 {
		t.Errorf("Expected saved values, got %+v", got)
	}
	if b := loaded.GetBinding("login"); b == nil || b.Hotkey != "Ctrl+Alt+1" {
		t.Errorf("Expected saved binding, got %+v", b)
	}
	if changed != 1 {
		t.Errorf("Expected change callback once, got %d", changed)
	}
}

func TestPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"game_mode":{"enabled":true}}`), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewManagerAt(path, nil)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := m.Get()
	if !cfg.GameMode.Enabled || cfg.GameMode.Sensitivity != 1.0 || cfg.Playback.BaseSteps != 20 {
		t.Errorf("Expected defaults under the partial file, got %+v", cfg)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"playback":{"min_hold_ms":-1},"general":{"cancel_hotkey":"Ctrl++"}}`), 0644)

	m := NewManagerAt(path, nil)
	err := m.Load()
	if err == nil {
		t.Fatal("Expected invalid config to fail")
	}
	if !strings.Contains(err.Error(), "min_hold_ms") || !strings.Contains(err.Error(), "cancel_hotkey") {
		t.Errorf("Expected both problems reported, got %v", err)
	}

	if err := m.SetBinding(Binding{Group: "x", Hotkey: ""}); err == nil {
		t.Error("Expected empty hotkey binding to be rejected")
	}
}

func TestBindings(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "c.json"), nil)
	m.SetBinding(Binding{Group: "a", Hotkey: "Ctrl+1"})
	m.SetBinding(Binding{Group: "a", Hotkey: "Ctrl+2"})
	m.SetBinding(Binding{Group: "b", Hotkey: "Ctrl+3"})

	if n := len(m.Get().Bindings); n != 2 {
		t.Fatalf("Expected 2 bindings, got %d", n)
	}
	if b := m.GetBinding("a"); b.Hotkey != "Ctrl+2" {
		t.Errorf("Expected updated hotkey, got %s", b.Hotkey)
	}
	m.DeleteBinding("a")
	if m.GetBinding("a") != nil {
		t.Error("Expected binding to be removed")
	}
}

func TestGroupsDirDefaultsNextToConfig(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerAt(filepath.Join(dir, "config.json"), nil)
	if got := m.GroupsDir(); got != filepath.Join(dir, "groups") {
		t.Errorf("Expected groups dir beside config, got %s", got)
	}
}
