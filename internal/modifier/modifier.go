// Package modifier rewrites recorded items through prioritized rules before playback.
package modifier

import (
	"fmt"
	"log/slog"
	"sort"

	"actionreplay/internal/action"
)

// Pipeline applies modifiers to item sequences
type Pipeline struct {
	logger *slog.Logger
}

// New creates a pipeline. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger}
}

// Apply runs items through modifiers using the default logger.
func Apply(items []action.Item, modifiers []action.Modifier) []action.Item {
	return New(nil).Apply(items, modifiers)
}

// Sorted returns the modifiers ordered by descending priority. Equal
// priorities keep their attachment order.
func Sorted(modifiers []action.Modifier) []action.Modifier {
	ordered := append([]action.Modifier(nil), modifiers...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}

// Apply passes every item through every modifier in priority order and
// returns the rewritten copy. The condition is evaluated against the item as
// mutated by the modifiers before it. A modifier that panics is skipped for
// that item and its partial mutation is discarded. Items are never dropped
// or reordered, and the input slice is left untouched.
func (p *Pipeline) Apply(items []action.Item, modifiers []action.Modifier) []action.Item {
	out := make([]action.Item, len(items))
	for i, it := range items {
		out[i] = it.Copy()
	}
	if len(modifiers) == 0 {
		return out
	}

	ordered := Sorted(modifiers)
	for i := range out {
		for _, m := range ordered {
			if err := p.applyOne(&out[i], m); err != nil {
				p.logger.Warn("Modifier: skipped",
					"modifier", m.Name, "item", i, "type", out[i].Type.String(), "error", err)
			}
		}
	}
	return out
}

func (p *Pipeline) applyOne(it *action.Item, m action.Modifier) (err error) {
	if m.Condition == nil || m.Mutate == nil {
		return nil
	}
	backup := it.Copy()
	defer func() {
		if r := recover(); r != nil {
			*it = backup
			err = fmt.Errorf("modifier %q panicked: %v", m.Name, r)
		}
	}()

	if !m.Condition(*it) {
		return nil
	}
	m.Mutate(it)
	return nil
}
