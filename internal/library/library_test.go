package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"actionreplay/internal/action"
	"actionreplay/internal/modifier"
)

const loginJSON = `{
  "id": "0b7c2d1e-0000-4000-8000-000000000001",
  "name": "Login",
  "items": [
    {"timestamp_ms": 0, "type": "mouse_move", "coordinates": {"x": 10, "y": 20}},
    {"timestamp_ms": 40, "type": "button_down", "button": 1, "coordinates": {"x": 10, "y": 20}},
    {"timestamp_ms": 90, "type": "button_up", "button": 1, "coordinates": {"x": 10, "y": 20}},
    {"timestamp_ms": 120, "type": "key_down", "key_code": 13, "duration_ms": 100}
  ],
  "modifiers": [
    {"name": "slow", "kind": "scale_duration", "priority": 10, "factor": 2}
  ]
}`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDecodeBuildsModifiers(t *testing.T) {
	g, specs, err := Decode([]byte(loginJSON))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.Name != "Login" || len(g.Items) != 4 {
		t.Fatalf("Unexpected group: %s with %d items", g.Name, len(g.Items))
	}
	if len(specs) != 1 || len(g.Modifiers) != 1 || g.Modifiers[0].Priority != 10 {
		t.Fatalf("Expected one built modifier, got specs=%v mods=%d", specs, len(g.Modifiers))
	}
	out := modifier.Apply(g.Items, g.Modifiers)
	if out[3].Duration != 200 {
		t.Errorf("Expected scaled duration 200, got %d", out[3].Duration)
	}
}

func TestDecodeGeneratesMissingID(t *testing.T) {
	g, _, err := Decode([]byte(`{"name":"x","items":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if g.ID == "" {
		t.Error("Expected a generated ID")
	}
}

func TestDecodeRejectsBadModifier(t *testing.T) {
	_, _, err := Decode([]byte(`{"name":"x","items":[],"modifiers":[{"kind":"explode"}]}`))
	if err == nil {
		t.Error("Expected unknown modifier kind to fail")
	}
}

func TestReloadSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "login.json", loginJSON)
	writeFile(t, dir, "broken.json", `{"name":`)
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "unnamed.json", `{"items":[]}`)

	lib := Open(dir, nil)
	if err := lib.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	groups := lib.List()
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if groups[0].Name != "Login" || groups[1].Name != "unnamed" {
		t.Errorf("Expected sorted names [Login unnamed], got [%s %s]", groups[0].Name, groups[1].Name)
	}
}

func TestReloadMissingDir(t *testing.T) {
	lib := Open(filepath.Join(t.TempDir(), "nope"), nil)
	if err := lib.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(lib.List()) != 0 {
		t.Error("Expected empty library")
	}
}

func TestGetByIDAndName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "login.json", loginJSON)
	lib := Open(dir, nil)
	lib.Reload()

	byID, err := lib.Get("0b7c2d1e-0000-4000-8000-000000000001")
	if err != nil {
		t.Fatalf("Get by ID: %v", err)
	}
	byName, err := lib.Get("login")
	if err != nil {
		t.Fatalf("Get by name: %v", err)
	}
	if byID != byName {
		t.Error("Expected the same shared group for ID and name")
	}
	if _, err := lib.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReloadKeepsSimulatingGroup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "login.json", loginJSON)
	lib := Open(dir, nil)
	lib.Reload()

	g, _ := lib.Get("Login")
	g.TryBeginSimulation()
	defer g.EndSimulation()

	lib.Reload()
	again, _ := lib.Get("Login")
	if again != g {
		t.Error("Expected the playing group to survive a reload")
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	lib := Open(dir, nil)

	g := action.NewGroup("Open Menu!")
	g.Append(action.Item{Timestamp: 0, Type: action.KeyDown, KeyCode: 0x12, Duration: 30})
	specs := []modifier.Spec{{Kind: modifier.KindClampDuration, Min: 50}}

	path, err := lib.Save(g, specs)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "open-menu.json" {
		t.Errorf("Expected slug file name, got %s", filepath.Base(path))
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.ID != g.ID || loaded.Name != g.Name || len(loaded.Modifiers) != 1 {
		t.Errorf("Unexpected round trip: %+v", loaded)
	}
	if len(lib.List()) != 1 {
		t.Errorf("Expected saved group listed, got %d", len(lib.List()))
	}

	if _, err := lib.Save(g, []modifier.Spec{{Kind: "bogus"}}); err == nil {
		t.Error("Expected invalid specs to be rejected")
	}
}
