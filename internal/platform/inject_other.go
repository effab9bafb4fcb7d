//go:build !windows && !darwin && !linux

package platform

import "actionreplay/internal/input"

// New reports that no injector exists for this OS
func New() (input.Platform, error) {
	return nil, ErrUnsupported
}
