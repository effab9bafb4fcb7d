//go:build windows

package platform

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"actionreplay/internal/rawinput"
)

var (
	kernel32                    = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle         = kernel32.NewProc("GetModuleHandleW")
	procGetCurrentThreadID      = kernel32.NewProc("GetCurrentThreadId")
	procRegisterClassEx         = user32.NewProc("RegisterClassExW")
	procCreateWindowEx          = user32.NewProc("CreateWindowExW")
	procDestroyWindow           = user32.NewProc("DestroyWindow")
	procDefWindowProc           = user32.NewProc("DefWindowProcW")
	procGetMessage              = user32.NewProc("GetMessageW")
	procTranslateMessage        = user32.NewProc("TranslateMessage")
	procDispatchMessage         = user32.NewProc("DispatchMessageW")
	procPostThreadMessage       = user32.NewProc("PostThreadMessageW")
	procRegisterRawInputDevices = user32.NewProc("RegisterRawInputDevices")
	procGetRawInputData         = user32.NewProc("GetRawInputData")
)

const (
	wmQuit  = 0x0012
	wmInput = 0x00FF

	ridInput        = 0x10000003
	rimTypeMouse    = 0
	ridevRemove     = 0x00000001
	ridevInputSink  = 0x00000100
	mouseMoveAbs    = 0x01
	hidUsagePage    = 0x01
	hidUsageMouse   = 0x02
	hwndMessage     = ^uintptr(2) // (HWND)-3
	rawClassName    = "ActionReplayRawInput"
	rawStopDeadline = 2 * time.Second
)

type wndClassEx struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     windows.Handle
	HIcon         windows.Handle
	HCursor       windows.Handle
	HbrBackground windows.Handle
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       windows.Handle
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type rawInputDevice struct {
	UsUsagePage uint16
	UsUsage     uint16
	DwFlags     uint32
	HwndTarget  uintptr
}

type rawInputHeader struct {
	DwType  uint32
	DwSize  uint32
	HDevice windows.Handle
	WParam  uintptr
}

// RAWMOUSE; usButtonFlags/usButtonData overlay ulButtons
type rawMouse struct {
	UsFlags            uint16
	_                  uint16
	UsButtonFlags      uint16
	UsButtonData       uint16
	UlRawButtons       uint32
	LLastX             int32
	LLastY             int32
	UlExtraInformation uint32
}

type rawInputMouse struct {
	Header rawInputHeader
	Mouse  rawMouse
}

var (
	registerClassOnce sync.Once
	registerClassErr  error
	wndProcPtr        uintptr

	// window procedures cannot carry a receiver
	activeMu  sync.Mutex
	activeRaw *RawSource
)

// RawSource reads relative mouse motion through the Raw Input API on a
// message-only window owned by a locked OS thread.
type RawSource struct {
	mu       sync.Mutex
	onDelta  func(dx, dy int)
	threadID uintptr
	done     chan struct{}
}

// NewRawSource returns the Raw Input source
func NewRawSource() rawinput.Source {
	return &RawSource{}
}

// Register creates the window, registers the mouse as a raw input device
// and starts the message loop.
func (s *RawSource) Register(onDelta func(dx, dy int)) error {
	activeMu.Lock()
	if activeRaw != nil {
		activeMu.Unlock()
		return errors.New("raw input source already registered")
	}
	activeRaw = s
	activeMu.Unlock()

	s.mu.Lock()
	s.onDelta = onDelta
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	ready := make(chan error, 1)
	go s.loop(ready, done)
	return <-ready
}

// Unregister removes the device registration and stops the message loop.
// It is a no-op for sources that never got a window.
func (s *RawSource) Unregister() error {
	s.mu.Lock()
	threadID, done := s.threadID, s.done
	s.threadID = 0
	s.onDelta = nil
	s.mu.Unlock()

	activeMu.Lock()
	if activeRaw == s {
		activeRaw = nil
	}
	activeMu.Unlock()

	if threadID == 0 {
		return nil
	}

	rid := rawInputDevice{UsUsagePage: hidUsagePage, UsUsage: hidUsageMouse, DwFlags: ridevRemove}
	ret, _, callErr := procRegisterRawInputDevices.Call(
		uintptr(unsafe.Pointer(&rid)), 1, unsafe.Sizeof(rid))
	var err error
	if ret == 0 {
		err = fmt.Errorf("RegisterRawInputDevices(remove): %w", callErr)
	}

	procPostThreadMessage.Call(threadID, wmQuit, 0, 0)
	select {
	case <-done:
	case <-time.After(rawStopDeadline):
		err = errors.Join(err, errors.New("raw input message loop did not exit"))
	}
	return err
}

func (s *RawSource) loop(ready chan<- error, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	hwnd, err := createMessageWindow()
	if err != nil {
		ready <- err
		return
	}
	defer procDestroyWindow.Call(hwnd)

	tid, _, _ := procGetCurrentThreadID.Call()
	s.mu.Lock()
	s.threadID = tid
	s.mu.Unlock()

	rid := rawInputDevice{
		UsUsagePage: hidUsagePage,
		UsUsage:     hidUsageMouse,
		DwFlags:     ridevInputSink,
		HwndTarget:  hwnd,
	}
	ret, _, callErr := procRegisterRawInputDevices.Call(
		uintptr(unsafe.Pointer(&rid)), 1, unsafe.Sizeof(rid))
	if ret == 0 {
		ready <- fmt.Errorf("RegisterRawInputDevices: %w", callErr)
		return
	}
	ready <- nil

	var m msg
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func createMessageWindow() (uintptr, error) {
	className, _ := windows.UTF16PtrFromString(rawClassName)
	hInstance, _, _ := procGetModuleHandle.Call(0)

	registerClassOnce.Do(func() {
		wndProcPtr = windows.NewCallback(rawWindowProc)
		wc := wndClassEx{
			CbSize:        uint32(unsafe.Sizeof(wndClassEx{})),
			LpfnWndProc:   wndProcPtr,
			HInstance:     windows.Handle(hInstance),
			LpszClassName: className,
		}
		if ret, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc))); ret == 0 {
			registerClassErr = fmt.Errorf("RegisterClassEx: %w", err)
		}
	})
	if registerClassErr != nil {
		return 0, registerClassErr
	}

	hwnd, _, err := procCreateWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		0, 0,
		0, 0, 0, 0,
		hwndMessage, 0, hInstance, 0,
	)
	if hwnd == 0 {
		return 0, fmt.Errorf("CreateWindowEx: %w", err)
	}
	return hwnd, nil
}

func rawWindowProc(hwnd, message, wParam, lParam uintptr) uintptr {
	if message == wmInput {
		handleRawInput(lParam)
	}
	ret, _, _ := procDefWindowProc.Call(hwnd, message, wParam, lParam)
	return ret
}

func handleRawInput(lParam uintptr) {
	var data rawInputMouse
	size := uint32(unsafe.Sizeof(data))
	ret, _, _ := procGetRawInputData.Call(
		lParam,
		ridInput,
		uintptr(unsafe.Pointer(&data)),
		uintptr(unsafe.Pointer(&size)),
		unsafe.Sizeof(rawInputHeader{}),
	)
	if int32(ret) <= 0 || data.Header.DwType != rimTypeMouse {
		return
	}
	// SendInput events arrive without a device handle
	if data.Header.HDevice == 0 {
		return
	}
	if data.Mouse.UsFlags&mouseMoveAbs != 0 {
		return
	}

	activeMu.Lock()
	s := activeRaw
	activeMu.Unlock()
	if s == nil {
		return
	}
	s.mu.Lock()
	fn := s.onDelta
	s.mu.Unlock()
	if fn != nil {
		fn(int(data.Mouse.LLastX), int(data.Mouse.LLastY))
	}
}
