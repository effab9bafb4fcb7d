//go:build linux

package platform

import (
	"fmt"

	"github.com/go-vgo/robotgo"

	"actionreplay/internal/action"
	"actionreplay/internal/input"
)

var buttonNames = map[action.Button]string{
	action.ButtonLeft:   "left",
	action.ButtonRight:  "right",
	action.ButtonMiddle: "center",
}

// Injector drives X11 through robotgo
type Injector struct{}

// New returns the robotgo adapter
func New() (input.Platform, error) {
	if w, h := robotgo.GetScreenSize(); w <= 0 || h <= 0 {
		return nil, fmt.Errorf("robotgo: no display (%dx%d)", w, h)
	}
	return &Injector{}, nil
}

// ScreenSize returns the primary display size in pixels
func (i *Injector) ScreenSize() (int, int, error) {
	w, h := robotgo.GetScreenSize()
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("robotgo screen size %dx%d", w, h)
	}
	return w, h, nil
}

// CursorPosition returns the cursor in pixels
func (i *Injector) CursorPosition() (int, int, error) {
	x, y := robotgo.Location()
	return x, y, nil
}

// MoveAbsolute maps the normalized position back to pixels
func (i *Injector) MoveAbsolute(nx, ny int) error {
	w, h, err := i.ScreenSize()
	if err != nil {
		return err
	}
	x, y := input.Denormalize(nx, ny, w, h)
	robotgo.Move(x, y)
	return nil
}

// MoveRelative moves by a raw delta
func (i *Injector) MoveRelative(dx, dy int) error {
	robotgo.MoveRelative(dx, dy)
	return nil
}

// Button presses or releases a mouse button at the cursor
func (i *Injector) Button(button action.Button, down bool) error {
	name, ok := buttonNames[button]
	if !ok {
		return fmt.Errorf("invalid button: %d", button)
	}
	state := "up"
	if down {
		state = "down"
	}
	return robotgo.Toggle(name, state)
}

// Key translates the virtual key to a robotgo key name
func (i *Injector) Key(vk uint16, extended bool, up bool) error {
	name := input.KeyName(vk)
	if name == "" {
		return fmt.Errorf("no key name for vk 0x%02X", vk)
	}
	state := "down"
	if up {
		state = "up"
	}
	return robotgo.KeyToggle(name, state)
}

// Wheel scrolls vertically by whole notches
func (i *Injector) Wheel(delta int) error {
	notches := delta / action.WheelNotch
	if notches == 0 {
		notches = 1
		if delta < 0 {
			notches = -1
		}
	}
	robotgo.Scroll(0, notches)
	return nil
}
