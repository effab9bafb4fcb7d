// Package osutils collects small OS integrations used around playback.
package osutils

import (
	"log/slog"
	"runtime"
	"sync"
)

// DeltaSink is anything that can inject a relative pointer motion
type DeltaSink interface {
	SendRawDelta(dx, dy int)
}

// WakeUp nudges the pointer one pixel and back to wake the display from
// sleep or screensaver before a playback starts.
func WakeUp(sink DeltaSink, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("WakeUp: nudging pointer")
	sink.SendRawDelta(1, 1)
	sink.SendRawDelta(-1, -1)
}

// onThread runs acquire on a goroutine locked to its OS thread and returns a
// func that runs release on that same thread. Per-thread OS state set by
// acquire is undone where it was set. The returned func blocks until
// release has run and is safe to call more than once.
func onThread(acquire, release func()) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	ready := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)
		acquire()
		close(ready)
		<-stop
		release()
	}()
	<-ready

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
		<-done
	}
}
