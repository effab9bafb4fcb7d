//go:build !windows && !darwin && !linux

package platform

import "actionreplay/internal/rawinput"

type noRawSource struct{}

// NewRawSource returns a source whose Register always fails
func NewRawSource() rawinput.Source {
	return noRawSource{}
}

func (noRawSource) Register(func(dx, dy int)) error { return ErrUnsupported }
func (noRawSource) Unregister() error               { return nil }
