//go:build windows

package platform

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"actionreplay/internal/hotkey"
)

var (
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105

	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C

	llkhfInjected = 0x10
	llmhfInjected = 0x01
)

type kbdLLHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msLLHookStruct struct {
	Pt          point
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

var (
	hookMu       sync.Mutex
	hookUpdate   func(key string, down bool)
	keyboardHook uintptr
	mouseHook    uintptr
	keyboardCB   uintptr
	mouseCB      uintptr
	hookCBOnce   sync.Once
)

// HookEngine installs low-level keyboard and mouse hooks on a dedicated
// thread. Injected events are ignored so playback cannot trigger hotkeys.
type HookEngine struct {
	mu       sync.Mutex
	threadID uintptr
	done     chan struct{}
}

// NewHotkeyEngine returns the low-level hook engine
func NewHotkeyEngine() hotkey.Engine {
	return &HookEngine{}
}

// Start installs the hooks and runs their message loop
func (e *HookEngine) Start(update func(key string, down bool)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done != nil {
		return errors.New("hotkey hooks already installed")
	}

	hookMu.Lock()
	hookUpdate = update
	hookMu.Unlock()

	hookCBOnce.Do(func() {
		keyboardCB = windows.NewCallback(keyboardHookProc)
		mouseCB = windows.NewCallback(mouseHookProc)
	})

	type started struct {
		tid uintptr
		err error
	}
	ready := make(chan started, 1)
	done := make(chan struct{})
	go func() {
		// Hooks must be registered in the same thread that runs the message loop
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)

		hMod, _, _ := procGetModuleHandle.Call(0)
		kh, _, err := procSetWindowsHookEx.Call(whKeyboardLL, keyboardCB, hMod, 0)
		if kh == 0 {
			ready <- started{err: fmt.Errorf("keyboard hook: %w", err)}
			return
		}
		mh, _, err := procSetWindowsHookEx.Call(whMouseLL, mouseCB, hMod, 0)
		if mh == 0 {
			procUnhookWindowsHookEx.Call(kh)
			ready <- started{err: fmt.Errorf("mouse hook: %w", err)}
			return
		}
		hookMu.Lock()
		keyboardHook, mouseHook = kh, mh
		hookMu.Unlock()

		tid, _, _ := procGetCurrentThreadID.Call()
		ready <- started{tid: tid}

		var m msg
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
			procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
		}

		procUnhookWindowsHookEx.Call(kh)
		procUnhookWindowsHookEx.Call(mh)
		hookMu.Lock()
		keyboardHook, mouseHook = 0, 0
		hookMu.Unlock()
	}()

	res := <-ready
	if res.err != nil {
		return res.err
	}
	e.threadID, e.done = res.tid, done
	return nil
}

// Stop ends the message loop and removes the hooks
func (e *HookEngine) Stop() error {
	e.mu.Lock()
	tid, done := e.threadID, e.done
	e.threadID, e.done = 0, nil
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	procPostThreadMessage.Call(tid, wmQuit, 0, 0)
	<-done
	return nil
}

func dispatch(key string, down bool) {
	hookMu.Lock()
	fn := hookUpdate
	hookMu.Unlock()
	if fn != nil && key != "" {
		fn(key, down)
	}
}

func keyboardHookProc(nCode int, wParam, lParam uintptr) uintptr {
	if nCode == 0 {
		kbd := (*kbdLLHookStruct)(unsafe.Pointer(lParam))
		if kbd.Flags&llkhfInjected == 0 {
			switch wParam {
			case wmKeyDown, wmSysKeyDown:
				dispatch(hotkey.VKName(kbd.VkCode), true)
			case wmKeyUp, wmSysKeyUp:
				dispatch(hotkey.VKName(kbd.VkCode), false)
			}
		}
	}
	hookMu.Lock()
	h := keyboardHook
	hookMu.Unlock()
	ret, _, _ := procCallNextHookEx.Call(h, uintptr(nCode), wParam, lParam)
	return ret
}

func mouseHookProc(nCode int, wParam, lParam uintptr) uintptr {
	if nCode == 0 {
		ms := (*msLLHookStruct)(unsafe.Pointer(lParam))
		if ms.Flags&llmhfInjected == 0 {
			switch wParam {
			case wmLButtonDown, wmLButtonUp:
				dispatch("MOUSE1", wParam == wmLButtonDown)
			case wmRButtonDown, wmRButtonUp:
				dispatch("MOUSE3", wParam == wmRButtonDown)
			case wmMButtonDown, wmMButtonUp:
				dispatch("MOUSE2", wParam == wmMButtonDown)
			case wmXButtonDown, wmXButtonUp:
				name := "MOUSE5"
				if ms.MouseData>>16 == 1 {
					name = "MOUSE4"
				}
				dispatch(name, wParam == wmXButtonDown)
			}
		}
	}
	hookMu.Lock()
	h := mouseHook
	hookMu.Unlock()
	ret, _, _ := procCallNextHookEx.Call(h, uintptr(nCode), wParam, lParam)
	return ret
}
