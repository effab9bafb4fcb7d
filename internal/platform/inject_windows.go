//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"actionreplay/internal/action"
	"actionreplay/internal/input"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procSendInput        = user32.NewProc("SendInput")
	procGetSystemMetrics = user32.NewProc("GetSystemMetrics")
	procGetCursorPos     = user32.NewProc("GetCursorPos")
	procMapVirtualKey    = user32.NewProc("MapVirtualKeyW")
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseeventfMove       = 0x0001
	mouseeventfLeftDown   = 0x0002
	mouseeventfLeftUp     = 0x0004
	mouseeventfRightDown  = 0x0008
	mouseeventfRightUp    = 0x0010
	mouseeventfMiddleDown = 0x0020
	mouseeventfMiddleUp   = 0x0040
	mouseeventfWheel      = 0x0800
	mouseeventfAbsolute   = 0x8000

	keyeventfExtendedKey = 0x0001
	keyeventfKeyUp       = 0x0002

	smCXScreen = 0
	smCYScreen = 1

	mapvkVKToVSC = 0
)

type mouseInput struct {
	Dx          int32
	Dy          int32
	MouseData   uint32
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type keybdInput struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

// INPUT with the mouse member of the union
type mouseEvent struct {
	Type uint32
	Mi   mouseInput
}

// INPUT with the keyboard member; padded to the size of the union
type keyboardEvent struct {
	Type uint32
	Ki   keybdInput
	_    [8]byte
}

type point struct {
	X, Y int32
}

// Injector writes through SendInput
type Injector struct{}

// New returns the Windows SendInput adapter
func New() (input.Platform, error) {
	if err := procSendInput.Find(); err != nil {
		return nil, fmt.Errorf("load SendInput: %w", err)
	}
	return &Injector{}, nil
}

// ScreenSize returns the primary display size in pixels
func (i *Injector) ScreenSize() (int, int, error) {
	w, _, _ := procGetSystemMetrics.Call(smCXScreen)
	h, _, _ := procGetSystemMetrics.Call(smCYScreen)
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("GetSystemMetrics returned %dx%d", w, h)
	}
	return int(w), int(h), nil
}

// CursorPosition returns the cursor in pixels
func (i *Injector) CursorPosition() (int, int, error) {
	var pt point
	ret, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return 0, 0, fmt.Errorf("GetCursorPos: %w", err)
	}
	return int(pt.X), int(pt.Y), nil
}

// MoveAbsolute moves to a normalized [0, 65535] position
func (i *Injector) MoveAbsolute(nx, ny int) error {
	return sendMouse(mouseInput{
		Dx:      int32(nx),
		Dy:      int32(ny),
		DwFlags: mouseeventfMove | mouseeventfAbsolute,
	})
}

// MoveRelative moves by a raw delta
func (i *Injector) MoveRelative(dx, dy int) error {
	return sendMouse(mouseInput{
		Dx:      int32(dx),
		Dy:      int32(dy),
		DwFlags: mouseeventfMove,
	})
}

// Button presses or releases a mouse button at the current position
func (i *Injector) Button(button action.Button, down bool) error {
	var flags uint32
	switch button {
	case action.ButtonLeft:
		flags = pick(down, mouseeventfLeftDown, mouseeventfLeftUp)
	case action.ButtonRight:
		flags = pick(down, mouseeventfRightDown, mouseeventfRightUp)
	case action.ButtonMiddle:
		flags = pick(down, mouseeventfMiddleDown, mouseeventfMiddleUp)
	default:
		return fmt.Errorf("invalid button: %d", button)
	}
	return sendMouse(mouseInput{DwFlags: flags})
}

// Key sends a virtual key with its scan code so games reading scan codes
// see it too.
func (i *Injector) Key(vk uint16, extended bool, up bool) error {
	scan, _, _ := procMapVirtualKey.Call(uintptr(vk), mapvkVKToVSC)
	var flags uint32
	if extended {
		flags |= keyeventfExtendedKey
	}
	if up {
		flags |= keyeventfKeyUp
	}
	ev := keyboardEvent{
		Type: inputKeyboard,
		Ki: keybdInput{
			WVk:     vk,
			WScan:   uint16(scan),
			DwFlags: flags,
		},
	}
	return send(unsafe.Pointer(&ev), unsafe.Sizeof(ev))
}

// Wheel turns the vertical wheel; positive is away from the user
func (i *Injector) Wheel(delta int) error {
	return sendMouse(mouseInput{
		MouseData: uint32(int32(delta)),
		DwFlags:   mouseeventfWheel,
	})
}

func sendMouse(mi mouseInput) error {
	ev := mouseEvent{Type: inputMouse, Mi: mi}
	return send(unsafe.Pointer(&ev), unsafe.Sizeof(ev))
}

func send(ev unsafe.Pointer, size uintptr) error {
	ret, _, err := procSendInput.Call(1, uintptr(ev), size)
	if ret != 1 {
		return fmt.Errorf("SendInput: %w", err)
	}
	return nil
}

func pick(cond bool, a, b uint32) uint32 {
	if cond {
		return a
	}
	return b
}
