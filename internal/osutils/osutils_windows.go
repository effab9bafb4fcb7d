//go:build windows

package osutils

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

var (
	user32                            = windows.NewLazySystemDLL("user32.dll")
	kernel32                          = windows.NewLazySystemDLL("kernel32.dll")
	procSetProcessDpiAwarenessContext = user32.NewProc("SetProcessDpiAwarenessContext")
	procSetProcessDPIAware            = user32.NewProc("SetProcessDPIAware")
	procSetThreadExecutionState       = kernel32.NewProc("SetThreadExecutionState")
)

const (
	// DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2
	dpiPerMonitorAwareV2 = ^uintptr(3)

	esContinuous      = 0x80000000
	esSystemRequired  = 0x00000001
	esDisplayRequired = 0x00000002
)

// IsAdmin checks if the current process has administrative privileges.
// SendInput cannot reach windows of elevated processes otherwise.
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}

// EnableDPIAwareness makes GetSystemMetrics report physical pixels so
// recorded coordinates line up on scaled displays. Must run before any
// window is created.
func EnableDPIAwareness() error {
	if procSetProcessDpiAwarenessContext.Find() == nil {
		ret, _, err := procSetProcessDpiAwarenessContext.Call(dpiPerMonitorAwareV2)
		if ret != 0 {
			return nil
		}
		// already set by manifest or an earlier call
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return nil
		}
	}
	ret, _, err := procSetProcessDPIAware.Call()
	if ret == 0 {
		return fmt.Errorf("SetProcessDPIAware: %w", err)
	}
	return nil
}

// KeepAwake stops the system and display from sleeping until the returned
// function is called. SetThreadExecutionState is per thread, so both calls
// run on one locked thread.
func KeepAwake() func() {
	return onThread(func() {
		procSetThreadExecutionState.Call(esContinuous | esSystemRequired | esDisplayRequired)
	}, func() {
		procSetThreadExecutionState.Call(esContinuous)
	})
}
