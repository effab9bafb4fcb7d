// Package library loads and stores action groups as JSON files.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"actionreplay/internal/action"
	"actionreplay/internal/modifier"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no group matches a name or ID
var ErrNotFound = errors.New("group not found")

// File is the on-disk form of a group: the group JSON plus its modifiers
// as declarative specs.
type File struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Items     []action.Item   `json:"items"`
	Modifiers []modifier.Spec `json:"modifiers,omitempty"`
}

// Decode parses a group file and builds its modifiers
func Decode(data []byte) (*action.Group, []modifier.Spec, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, err
	}
	g := &action.Group{ID: f.ID, Name: f.Name, Items: f.Items}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	mods, err := modifier.BuildAll(f.Modifiers)
	if err != nil {
		return nil, nil, err
	}
	g.Modifiers = mods
	return g, f.Modifiers, nil
}

// Encode renders a group and its modifier specs as indented JSON
func Encode(g *action.Group, specs []modifier.Spec) ([]byte, error) {
	return json.MarshalIndent(File{
		ID:        g.ID,
		Name:      g.Name,
		Items:     g.Items,
		Modifiers: specs,
	}, "", "  ")
}

// LoadFile reads a single group file
func LoadFile(path string) (*action.Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if g.Name == "" {
		g.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return g, nil
}

type entry struct {
	group *action.Group
	specs []modifier.Spec
	path  string
}

// Library is the set of groups in one directory. Groups returned by Get are
// shared, so their simulation flag guards against double playback across
// callers.
type Library struct {
	mu      sync.RWMutex
	dir     string
	logger  *slog.Logger
	entries []*entry
}

// Open creates a library for dir. Call Reload to read it.
func Open(dir string, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{dir: dir, logger: logger}
}

// Dir returns the library directory
func (l *Library) Dir() string {
	return l.dir
}

// Reload rescans the directory. Files that fail to parse are logged and
// skipped; a missing directory yields an empty library.
func (l *Library) Reload() error {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.json"))
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing := make(map[string]*action.Group, len(l.entries))
	for _, e := range l.entries {
		existing[e.group.ID] = e.group
	}

	entries := make([]*entry, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			l.logger.Warn("Library: read failed", "path", p, "error", err)
			continue
		}
		g, specs, err := Decode(data)
		if err != nil {
			l.logger.Warn("Library: skipping invalid group file", "path", p, "error", err)
			continue
		}
		if g.Name == "" {
			g.Name = strings.TrimSuffix(filepath.Base(p), ".json")
		}
		// keep the live group while it plays
		if old, ok := existing[g.ID]; ok && old.IsSimulating() {
			g = old
		}
		entries = append(entries, &entry{group: g, specs: specs, path: p})
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].group.Name) < strings.ToLower(entries[j].group.Name)
	})
	l.entries = entries
	l.logger.Info("Library: loaded", "dir", l.dir, "groups", len(entries))
	return nil
}

// List returns the groups sorted by name
func (l *Library) List() []*action.Group {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*action.Group, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.group
	}
	return out
}

// Get finds a group by ID, then by case-insensitive name
func (l *Library) Get(ref string) (*action.Group, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.group.ID == ref {
			return e.group, nil
		}
	}
	for _, e := range l.entries {
		if strings.EqualFold(e.group.Name, ref) {
			return e.group, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
}

// Save writes g to the library directory and adds or replaces its entry
func (l *Library) Save(g *action.Group, specs []modifier.Spec) (string, error) {
	if _, err := modifier.BuildAll(specs); err != nil {
		return "", err
	}
	data, err := Encode(g, specs)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", fmt.Errorf("create library dir: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, fileName(g.Name, g.ID))
	for _, e := range l.entries {
		if e.group.ID == g.ID {
			path = e.path
			break
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	replaced := false
	for i, e := range l.entries {
		if e.group.ID == g.ID {
			l.entries[i] = &entry{group: g, specs: specs, path: path}
			replaced = true
		}
	}
	if !replaced {
		l.entries = append(l.entries, &entry{group: g, specs: specs, path: path})
	}
	l.logger.Info("Library: saved", "group", g.Name, "path", path)
	return path, nil
}

// fileName turns a group name into a safe file name
func fileName(name, id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = id
	}
	return s + ".json"
}
