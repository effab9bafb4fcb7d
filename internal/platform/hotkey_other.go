//go:build !windows && !darwin && !linux

package platform

import "actionreplay/internal/hotkey"

type noHotkeys struct{}

// NewHotkeyEngine returns an engine that cannot start
func NewHotkeyEngine() hotkey.Engine {
	return noHotkeys{}
}

func (noHotkeys) Start(func(string, bool)) error { return ErrUnsupported }
func (noHotkeys) Stop() error                    { return nil }
