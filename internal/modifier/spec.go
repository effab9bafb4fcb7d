package modifier

import (
	"fmt"
	"math"
	"strings"

	"actionreplay/internal/action"
)

// Kind names a built-in modifier
type Kind string

const (
	KindScaleDuration     Kind = "scale_duration"
	KindClampDuration     Kind = "clamp_duration"
	KindOffsetCoordinates Kind = "offset_coordinates"
	KindScaleCoordinates  Kind = "scale_coordinates"
	KindRemapKey          Kind = "remap_key"
	KindSetButton         Kind = "set_button"
)

// Spec is the declarative, persistable form of a built-in modifier.
type Spec struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Kind        Kind               `json:"kind"`
	Priority    int                `json:"priority"`
	Types       []action.EventType `json:"types,omitempty"` // empty matches every event type

	Factor float64 `json:"factor,omitempty"`
	Min    int64   `json:"min,omitempty"`
	Max    int64   `json:"max,omitempty"`
	DX     int     `json:"dx,omitempty"`
	DY     int     `json:"dy,omitempty"`
	From   uint16  `json:"from,omitempty"`
	To     uint16  `json:"to,omitempty"`

	Button action.Button `json:"button,omitempty"`
}

// Build turns a spec into a modifier
func Build(s Spec) (action.Modifier, error) {
	name := s.Name
	if name == "" {
		name = string(s.Kind)
	}
	m := action.Modifier{
		Name:        name,
		Description: s.Description,
		Priority:    s.Priority,
	}
	typeOK := typeFilter(s.Types)

	switch Kind(strings.ToLower(string(s.Kind))) {
	case KindScaleDuration:
		if s.Factor < 0 {
			return m, fmt.Errorf("%s: factor must not be negative", name)
		}
		m.Condition = func(it action.Item) bool { return typeOK(it) && it.Duration > 0 }
		m.Mutate = ScaleDuration(s.Factor)

	case KindClampDuration:
		if s.Max > 0 && s.Min > s.Max {
			return m, fmt.Errorf("%s: min %d exceeds max %d", name, s.Min, s.Max)
		}
		m.Condition = func(it action.Item) bool {
			return typeOK(it) && (it.Duration < s.Min || (s.Max > 0 && it.Duration > s.Max))
		}
		m.Mutate = ClampDuration(s.Min, s.Max)

	case KindOffsetCoordinates:
		m.Condition = func(it action.Item) bool { return typeOK(it) && it.Coordinates != nil }
		m.Mutate = func(it *action.Item) {
			it.Coordinates.X += s.DX
			it.Coordinates.Y += s.DY
		}

	case KindScaleCoordinates:
		if s.Factor <= 0 {
			return m, fmt.Errorf("%s: factor must be positive", name)
		}
		m.Condition = func(it action.Item) bool { return typeOK(it) && it.Coordinates != nil }
		m.Mutate = func(it *action.Item) {
			it.Coordinates.X = int(math.Round(float64(it.Coordinates.X) * s.Factor))
			it.Coordinates.Y = int(math.Round(float64(it.Coordinates.Y) * s.Factor))
		}

	case KindRemapKey:
		m.Condition = func(it action.Item) bool { return typeOK(it) && it.Type.IsKey() && it.KeyCode == s.From }
		m.Mutate = func(it *action.Item) { it.KeyCode = s.To }

	case KindSetButton:
		if s.Button < action.ButtonLeft || s.Button > action.ButtonMiddle {
			return m, fmt.Errorf("%s: invalid button %d", name, s.Button)
		}
		m.Condition = func(it action.Item) bool { return typeOK(it) && it.Type.IsButton() }
		m.Mutate = func(it *action.Item) { it.Button = s.Button }

	default:
		return m, fmt.Errorf("unknown modifier kind %q", s.Kind)
	}
	return m, nil
}

// BuildAll builds every spec, stopping at the first invalid one.
func BuildAll(specs []Spec) ([]action.Modifier, error) {
	mods := make([]action.Modifier, 0, len(specs))
	for i, s := range specs {
		m, err := Build(s)
		if err != nil {
			return nil, fmt.Errorf("modifier %d: %w", i, err)
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// ScaleDuration multiplies the hold duration by factor.
func ScaleDuration(factor float64) func(*action.Item) {
	return func(it *action.Item) {
		it.Duration = int64(math.Round(float64(it.Duration) * factor))
	}
}

// ClampDuration bounds the hold duration to [lo, hi]; hi <= 0 means unbounded.
func ClampDuration(lo, hi int64) func(*action.Item) {
	return func(it *action.Item) {
		if it.Duration < lo {
			it.Duration = lo
		}
		if hi > 0 && it.Duration > hi {
			it.Duration = hi
		}
	}
}

func typeFilter(types []action.EventType) func(action.Item) bool {
	if len(types) == 0 {
		return func(action.Item) bool { return true }
	}
	set := make(map[action.EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(it action.Item) bool { return set[it.Type] }
}
