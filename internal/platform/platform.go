// Package platform holds the per-OS adapters: input injection behind
// input.Platform, relative pointer sources for rawinput, and the key hook
// engine used by hotkey.
package platform

import "errors"

// ErrUnsupported is returned on operating systems without an adapter
var ErrUnsupported = errors.New("platform: not supported on this OS")
