// Package action defines the recorded input model consumed by playback.
package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of a recorded input event
type EventType int

const (
	KeyDown EventType = iota + 1
	KeyUp
	MouseMove
	ButtonDown
	ButtonUp
	Wheel
)

var eventTypeNames = map[EventType]string{
	KeyDown:    "key_down",
	KeyUp:      "key_up",
	MouseMove:  "mouse_move",
	ButtonDown: "button_down",
	ButtonUp:   "button_up",
	Wheel:      "wheel",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Positional reports whether events of this type carry screen coordinates
func (t EventType) Positional() bool {
	switch t {
	case MouseMove, ButtonDown, ButtonUp, Wheel:
		return true
	}
	return false
}

// IsKey reports whether the type is a keyboard event
func (t EventType) IsKey() bool {
	return t == KeyDown || t == KeyUp
}

// IsButton reports whether the type is a mouse button event
func (t EventType) IsButton() bool {
	return t == ButtonDown || t == ButtonUp
}

// MarshalText encodes the event type as its lower-case name
func (t EventType) MarshalText() ([]byte, error) {
	name, ok := eventTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown event type %d", int(t))
	}
	return []byte(name), nil
}

// UnmarshalText decodes an event type name
func (t *EventType) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range eventTypeNames {
		if v == s {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", s)
}

// Button identifies a mouse button
type Button int

const (
	ButtonLeft   Button = 1
	ButtonRight  Button = 2
	ButtonMiddle Button = 3
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	}
	return fmt.Sprintf("button(%d)", int(b))
}

// Point is a pixel position on the primary display
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// WheelNotch is the wheel delta of a single detent
const WheelNotch = 120

// Item is one captured event
type Item struct {
	Timestamp   int64     `json:"timestamp_ms"`
	Type        EventType `json:"type"`
	KeyCode     uint16    `json:"key_code,omitempty"`
	Button      Button    `json:"button,omitempty"`
	Duration    int64     `json:"duration_ms,omitempty"`
	Coordinates *Point    `json:"coordinates,omitempty"`
	WheelDelta  int       `json:"wheel_delta,omitempty"`
}

var (
	ErrNegativeDuration   = errors.New("duration must not be negative")
	ErrMissingCoordinates = errors.New("positional event without coordinates")
	ErrUnexpectedPosition = errors.New("non-positional event with coordinates")
	ErrUnknownEventType   = errors.New("unknown event type")
)

// Validate checks the item invariants: non-negative duration and coordinates
// present exactly when the event type is positional.
func (it Item) Validate() error {
	if _, ok := eventTypeNames[it.Type]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEventType, int(it.Type))
	}
	if it.Duration < 0 {
		return ErrNegativeDuration
	}
	if it.Type.Positional() && it.Coordinates == nil {
		return ErrMissingCoordinates
	}
	if !it.Type.Positional() && it.Coordinates != nil {
		return ErrUnexpectedPosition
	}
	return nil
}

// At returns the capture-relative timestamp
func (it Item) At() time.Duration {
	return time.Duration(it.Timestamp) * time.Millisecond
}

// Hold returns the recorded hold length
func (it Item) Hold() time.Duration {
	return time.Duration(it.Duration) * time.Millisecond
}

// Copy returns a deep copy of the item
func (it Item) Copy() Item {
	c := it
	if it.Coordinates != nil {
		p := *it.Coordinates
		c.Coordinates = &p
	}
	return c
}

// Modifier is a named rule that rewrites items matching Condition.
type Modifier struct {
	Name        string
	Description string
	Priority    int
	Condition   func(Item) bool
	Mutate      func(*Item)
}

// Group is a named, ordered capture session
type Group struct {
	ID        string
	Name      string
	Items     []Item
	Modifiers []Modifier

	simulating atomic.Bool
}

// NewGroup creates an empty group with a fresh identifier
func NewGroup(name string) *Group {
	return &Group{
		ID:   uuid.NewString(),
		Name: name,
	}
}

// Append adds an item at the end of the recording.
func (g *Group) Append(items ...Item) {
	g.Items = append(g.Items, items...)
}

// AddModifier attaches a modifier to the group
func (g *Group) AddModifier(m Modifier) {
	g.Modifiers = append(g.Modifiers, m)
}

// IsSimulating reports whether a playback of this group is in flight
func (g *Group) IsSimulating() bool {
	return g.simulating.Load()
}

// TryBeginSimulation marks the group as playing. It returns false when
// another playback already holds the group.
func (g *Group) TryBeginSimulation() bool {
	return g.simulating.CompareAndSwap(false, true)
}

// EndSimulation clears the playing flag
func (g *Group) EndSimulation() {
	g.simulating.Store(false)
}

// Clone returns a working copy of the group. Items are deep-copied so the
// original recording is never touched by playback; the simulation flag is not
// carried over.
func (g *Group) Clone() *Group {
	c := &Group{
		ID:        g.ID,
		Name:      g.Name,
		Items:     make([]Item, len(g.Items)),
		Modifiers: append([]Modifier(nil), g.Modifiers...),
	}
	for i, it := range g.Items {
		c.Items[i] = it.Copy()
	}
	return c
}

// Span returns the time between the first and last item
func (g *Group) Span() time.Duration {
	if len(g.Items) < 2 {
		return 0
	}
	return g.Items[len(g.Items)-1].At() - g.Items[0].At()
}

// groupJSON is the on-disk form of a group. Modifiers are functions and are
// persisted separately as declarative specs by the library.
type groupJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// MarshalJSON encodes the identifier, name and items
func (g *Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(groupJSON{ID: g.ID, Name: g.Name, Items: g.Items})
}

// UnmarshalJSON decodes a group; a missing identifier is generated.
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw groupJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.ID = raw.ID
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.Name = raw.Name
	g.Items = raw.Items
	return nil
}
