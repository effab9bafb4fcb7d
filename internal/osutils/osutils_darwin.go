//go:build darwin

package osutils

import (
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// IsAdmin reports whether the process runs as root
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// EnableDPIAwareness is a no-op; CoreGraphics works in points.
func EnableDPIAwareness() error {
	return nil
}

// KeepAwake holds a caffeinate assertion tied to this process until the
// returned function is called.
func KeepAwake() func() {
	cmd := exec.Command("caffeinate", "-d", "-i", "-w", strconv.Itoa(os.Getpid()))
	if err := cmd.Start(); err != nil {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		})
	}
}
