//go:build !windows && !darwin

package osutils

import "os"

// IsAdmin reports whether the process runs as root
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// EnableDPIAwareness is a no-op outside Windows
func EnableDPIAwareness() error {
	return nil
}

// KeepAwake is a no-op here
func KeepAwake() func() {
	return func() {}
}
