//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <ApplicationServices/ApplicationServices.h>

static bool hasAccessibility() {
    return AXIsProcessTrusted();
}

static CGSize mainDisplaySize() {
    return CGDisplayBounds(CGMainDisplayID()).size;
}

static CGPoint cursorLocation() {
    CGEventRef event = CGEventCreate(NULL);
    CGPoint cursor = CGEventGetLocation(event);
    CFRelease(event);
    return cursor;
}

// held: 0 none, 1 left, 2 right, 3 middle. While a button is held the
// window server expects drag events instead of plain moves.
static void postMove(CGFloat x, CGFloat y, int held) {
    CGEventType type = kCGEventMouseMoved;
    CGMouseButton button = kCGMouseButtonLeft;
    switch (held) {
        case 1: type = kCGEventLeftMouseDragged; break;
        case 2: type = kCGEventRightMouseDragged; button = kCGMouseButtonRight; break;
        case 3: type = kCGEventOtherMouseDragged; button = kCGMouseButtonCenter; break;
    }
    CGEventRef event = CGEventCreateMouseEvent(NULL, type, CGPointMake(x, y), button);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

static void postRelative(int dx, int dy) {
    CGPoint pos = cursorLocation();
    CGPoint next = CGPointMake(pos.x + dx, pos.y + dy);
    CGEventRef event = CGEventCreateMouseEvent(NULL, kCGEventMouseMoved, next, kCGMouseButtonLeft);
    CGEventSetIntegerValueField(event, kCGMouseEventDeltaX, dx);
    CGEventSetIntegerValueField(event, kCGMouseEventDeltaY, dy);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

static void postButton(int button, bool pressed) {
    CGMouseButton cgButton;
    CGEventType type;
    switch (button) {
        case 1:
            cgButton = kCGMouseButtonLeft;
            type = pressed ? kCGEventLeftMouseDown : kCGEventLeftMouseUp;
            break;
        case 2:
            cgButton = kCGMouseButtonRight;
            type = pressed ? kCGEventRightMouseDown : kCGEventRightMouseUp;
            break;
        case 3:
            cgButton = kCGMouseButtonCenter;
            type = pressed ? kCGEventOtherMouseDown : kCGEventOtherMouseUp;
            break;
        default:
            return;
    }
    CGEventRef event = CGEventCreateMouseEvent(NULL, type, cursorLocation(), cgButton);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

static void postKey(CGKeyCode code, bool pressed) {
    CGEventRef event = CGEventCreateKeyboardEvent(NULL, code, pressed);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

static void postWheel(int lines) {
    CGEventRef event = CGEventCreateScrollWheelEvent(NULL, kCGScrollEventUnitLine, 1, lines);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"

	"actionreplay/internal/action"
	"actionreplay/internal/input"
)

// virtual-key code to CGKeyCode
var macKeyCodes = map[uint16]uint16{
	'A': 0x00, 'B': 0x0B, 'C': 0x08, 'D': 0x02, 'E': 0x0E, 'F': 0x03, 'G': 0x05,
	'H': 0x04, 'I': 0x22, 'J': 0x26, 'K': 0x28, 'L': 0x25, 'M': 0x2E, 'N': 0x2D,
	'O': 0x1F, 'P': 0x23, 'Q': 0x0C, 'R': 0x0F, 'S': 0x01, 'T': 0x11, 'U': 0x20,
	'V': 0x09, 'W': 0x0D, 'X': 0x07, 'Y': 0x10, 'Z': 0x06,

	'0': 0x1D, '1': 0x12, '2': 0x13, '3': 0x14, '4': 0x15,
	'5': 0x17, '6': 0x16, '7': 0x1A, '8': 0x1C, '9': 0x19,

	input.VKF1: 0x7A, input.VKF1 + 1: 0x78, input.VKF1 + 2: 0x63, input.VKF1 + 3: 0x76,
	input.VKF1 + 4: 0x60, input.VKF1 + 5: 0x61, input.VKF1 + 6: 0x62, input.VKF1 + 7: 0x64,
	input.VKF1 + 8: 0x65, input.VKF1 + 9: 0x6D, input.VKF1 + 10: 0x67, input.VKF1 + 11: 0x6F,

	input.VKBack:    0x33,
	input.VKTab:     0x30,
	input.VKReturn:  0x24,
	input.VKShift:   0x38,
	input.VKControl: 0x3B,
	input.VKMenu:    0x3A,
	input.VKCapital: 0x39,
	input.VKEscape:  0x35,
	input.VKSpace:   0x31,

	input.VKLeft:  0x7B,
	input.VKUp:    0x7E,
	input.VKRight: 0x7C,
	input.VKDown:  0x7D,

	input.VKPrior:  0x74,
	input.VKNext:   0x79,
	input.VKEnd:    0x77,
	input.VKHome:   0x73,
	input.VKInsert: 0x72, // Help
	input.VKDelete: 0x75, // forward delete

	input.VKLWin:     0x37,
	input.VKRWin:     0x36,
	input.VKLShift:   0x38,
	input.VKRShift:   0x3C,
	input.VKLControl: 0x3B,
	input.VKRControl: 0x3E,
	input.VKLMenu:    0x3A,
	input.VKRMenu:    0x3D,

	0xBA: 0x29, 0xBB: 0x18, 0xBC: 0x2B, 0xBD: 0x1B, 0xBE: 0x2F, 0xBF: 0x2C,
	0xC0: 0x32, 0xDB: 0x21, 0xDC: 0x2A, 0xDD: 0x1E, 0xDE: 0x27,

	input.VKNumpad0:      0x52,
	input.VKNumpad0 + 1:  0x53,
	input.VKNumpad0 + 2:  0x54,
	input.VKNumpad0 + 3:  0x55,
	input.VKNumpad0 + 4:  0x56,
	input.VKNumpad0 + 5:  0x57,
	input.VKNumpad0 + 6:  0x58,
	input.VKNumpad0 + 7:  0x59,
	input.VKNumpad0 + 8:  0x5B,
	input.VKNumpad0 + 9:  0x5C,
	input.VKNumpad0 + 10: 0x43,
	input.VKNumpad0 + 11: 0x45,
	input.VKNumpad0 + 13: 0x4E,
	input.VKNumpad0 + 14: 0x41,
	input.VKDivide:       0x4B,
}

var errNoAccessibility = errors.New("accessibility permission not granted")

// Injector posts CoreGraphics events at the HID tap
type Injector struct {
	mu   sync.Mutex
	held int
}

// New returns the CoreGraphics adapter. Posting events requires the
// Accessibility permission.
func New() (input.Platform, error) {
	if !bool(C.hasAccessibility()) {
		return nil, fmt.Errorf("CoreGraphics injector: %w", errNoAccessibility)
	}
	return &Injector{}, nil
}

// ScreenSize returns the main display size in points
func (i *Injector) ScreenSize() (int, int, error) {
	size := C.mainDisplaySize()
	w, h := int(size.width), int(size.height)
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("CGDisplayBounds returned %dx%d", w, h)
	}
	return w, h, nil
}

// CursorPosition returns the cursor in points
func (i *Injector) CursorPosition() (int, int, error) {
	pt := C.cursorLocation()
	return int(pt.x), int(pt.y), nil
}

// MoveAbsolute maps the normalized position back to points
func (i *Injector) MoveAbsolute(nx, ny int) error {
	w, h, err := i.ScreenSize()
	if err != nil {
		return err
	}
	x, y := input.Denormalize(nx, ny, w, h)
	i.mu.Lock()
	held := i.held
	i.mu.Unlock()
	C.postMove(C.CGFloat(x), C.CGFloat(y), C.int(held))
	return nil
}

// MoveRelative posts a move carrying the raw delta fields
func (i *Injector) MoveRelative(dx, dy int) error {
	C.postRelative(C.int(dx), C.int(dy))
	return nil
}

// Button presses or releases a mouse button at the cursor
func (i *Injector) Button(button action.Button, down bool) error {
	if button < action.ButtonLeft || button > action.ButtonMiddle {
		return fmt.Errorf("invalid button: %d", button)
	}
	i.mu.Lock()
	if down {
		i.held = int(button)
	} else if i.held == int(button) {
		i.held = 0
	}
	i.mu.Unlock()
	C.postButton(C.int(button), C.bool(down))
	return nil
}

// Key translates the virtual key and posts it; the extended flag has no
// CoreGraphics equivalent.
func (i *Injector) Key(vk uint16, extended bool, up bool) error {
	code, ok := macKeyCodes[vk]
	if !ok {
		return fmt.Errorf("no key code for vk 0x%02X", vk)
	}
	C.postKey(C.CGKeyCode(code), C.bool(!up))
	return nil
}

// Wheel scrolls by whole lines, one per notch
func (i *Injector) Wheel(delta int) error {
	lines := delta / action.WheelNotch
	if lines == 0 {
		lines = 1
		if delta < 0 {
			lines = -1
		}
	}
	C.postWheel(C.int(lines))
	return nil
}
