// Package input is the single gateway between playback and the operating
// system's input queue.
package input

import "actionreplay/internal/action"

// AbsoluteMax is the upper bound of the normalized absolute coordinate space
// handed to platforms (0..65535 on both axes, primary display).
const AbsoluteMax = 65535

// Platform defines the per-OS injection capabilities
type Platform interface {
	// ScreenSize returns the primary display size in pixels
	ScreenSize() (width, height int, err error)

	// CursorPosition returns the current cursor position in pixels
	CursorPosition() (x, y int, err error)

	// MoveAbsolute positions the cursor using normalized coordinates
	MoveAbsolute(nx, ny int) error

	// MoveRelative injects a relative pointer motion
	MoveRelative(dx, dy int) error

	// Button presses or releases a mouse button at the current position
	Button(button action.Button, down bool) error

	// Key presses or releases a virtual key
	Key(vk uint16, extended bool, up bool) error

	// Wheel scrolls the vertical wheel by delta (120 per notch)
	Wheel(delta int) error
}

// Injector is the emission surface used by playback and game mode
type Injector interface {
	MoveTo(x, y int)
	ClickButton(button action.Button, isDown bool, x, y int)
	PressButton(button action.Button, isDown bool)
	SendKey(vk uint16, isUp bool)
	SendRawDelta(dx, dy int)
	Scroll(x, y, delta int)
	Wheel(delta int)
	CursorPosition() action.Point
}

var _ Injector = (*Emitter)(nil)
