//go:build !windows

package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Enable enables auto-start on login
func Enable(e Entry) error {
	path, render, err := entryFile(e.Label)
	if err != nil {
		return err
	}
	content, err := render(e)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// Disable disables auto-start on login
func Disable(label string) error {
	path, _, err := entryFile(label)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if auto-start is enabled
func IsEnabled(label string) bool {
	path, _, err := entryFile(label)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// entryFile returns the LaunchAgent plist on macOS and the XDG autostart
// desktop file elsewhere.
func entryFile(label string) (string, func(Entry) (string, error), error) {
	home, err := homeDir()
	if err != nil {
		return "", nil, err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", label+".plist"), renderPlist, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, "autostart", label+".desktop"), renderDesktop, nil
	}
	return "", nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
}
