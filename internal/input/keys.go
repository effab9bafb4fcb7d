package input

import "fmt"

// Windows virtual-key codes. Recordings use these on every platform; the
// darwin and linux adapters translate them.
const (
	VKBack     uint16 = 0x08
	VKTab      uint16 = 0x09
	VKReturn   uint16 = 0x0D
	VKShift    uint16 = 0x10
	VKControl  uint16 = 0x11
	VKMenu     uint16 = 0x12
	VKPause    uint16 = 0x13
	VKCapital  uint16 = 0x14
	VKEscape   uint16 = 0x1B
	VKSpace    uint16 = 0x20
	VKPrior    uint16 = 0x21
	VKNext     uint16 = 0x22
	VKEnd      uint16 = 0x23
	VKHome     uint16 = 0x24
	VKLeft     uint16 = 0x25
	VKUp       uint16 = 0x26
	VKRight    uint16 = 0x27
	VKDown     uint16 = 0x28
	VKSnapshot uint16 = 0x2C
	VKInsert   uint16 = 0x2D
	VKDelete   uint16 = 0x2E
	VKLWin     uint16 = 0x5B
	VKRWin     uint16 = 0x5C
	VKApps     uint16 = 0x5D
	VKNumpad0  uint16 = 0x60
	VKMultiply uint16 = 0x6A
	VKAdd      uint16 = 0x6B
	VKSubtract uint16 = 0x6D
	VKDecimal  uint16 = 0x6E
	VKDivide   uint16 = 0x6F
	VKF1       uint16 = 0x70
	VKF24      uint16 = 0x87
	VKNumLock  uint16 = 0x90
	VKScroll   uint16 = 0x91
	VKLShift   uint16 = 0xA0
	VKRShift   uint16 = 0xA1
	VKLControl uint16 = 0xA2
	VKRControl uint16 = 0xA3
	VKLMenu    uint16 = 0xA4
	VKRMenu    uint16 = 0xA5
)

// extendedKeys need KEYEVENTF_EXTENDEDKEY on Windows: the navigation
// cluster, NumLock, PrintScreen, Pause, right-hand modifiers, the Windows and
// Apps keys and numpad divide.
var extendedKeys = map[uint16]bool{
	VKPrior:    true,
	VKNext:     true,
	VKEnd:      true,
	VKHome:     true,
	VKLeft:     true,
	VKUp:       true,
	VKRight:    true,
	VKDown:     true,
	VKInsert:   true,
	VKDelete:   true,
	VKNumLock:  true,
	VKSnapshot: true,
	VKPause:    true,
	VKRControl: true,
	VKRMenu:    true,
	VKLWin:     true,
	VKRWin:     true,
	VKApps:     true,
	VKDivide:   true,
}

// IsExtendedKey reports whether vk must be injected with the extended-key flag
func IsExtendedKey(vk uint16) bool {
	return extendedKeys[vk]
}

var keyNames = map[uint16]string{
	VKBack:     "backspace",
	VKTab:      "tab",
	VKReturn:   "enter",
	VKShift:    "shift",
	VKControl:  "ctrl",
	VKMenu:     "alt",
	VKPause:    "pause",
	VKCapital:  "capslock",
	VKEscape:   "esc",
	VKSpace:    "space",
	VKPrior:    "pageup",
	VKNext:     "pagedown",
	VKEnd:      "end",
	VKHome:     "home",
	VKLeft:     "left",
	VKUp:       "up",
	VKRight:    "right",
	VKDown:     "down",
	VKSnapshot: "printscreen",
	VKInsert:   "insert",
	VKDelete:   "delete",
	VKLWin:     "lcmd",
	VKRWin:     "rcmd",
	VKApps:     "menu",
	VKMultiply: "num*",
	VKAdd:      "num+",
	VKSubtract: "num-",
	VKDecimal:  "num.",
	VKDivide:   "num/",
	VKNumLock:  "num_lock",
	VKScroll:   "scroll",
	VKLShift:   "lshift",
	VKRShift:   "rshift",
	VKLControl: "lctrl",
	VKRControl: "rctrl",
	VKLMenu:    "lalt",
	VKRMenu:    "ralt",
	0xBA:       ";",
	0xBB:       "=",
	0xBC:       ",",
	0xBD:       "-",
	0xBE:       ".",
	0xBF:       "/",
	0xC0:       "`",
	0xDB:       "[",
	0xDC:       "\\",
	0xDD:       "]",
	0xDE:       "'",
}

// KeyName returns the portable lower-case name of a virtual key, or "" when
// the key has no name.
func KeyName(vk uint16) string {
	switch {
	case vk >= 'A' && vk <= 'Z':
		return string(rune(vk + ('a' - 'A')))
	case vk >= '0' && vk <= '9':
		return string(rune(vk))
	case vk >= VKNumpad0 && vk <= VKNumpad0+9:
		return fmt.Sprintf("num%d", vk-VKNumpad0)
	case vk >= VKF1 && vk <= VKF24:
		return fmt.Sprintf("f%d", vk-VKF1+1)
	}
	return keyNames[vk]
}
