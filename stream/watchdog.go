package stream

import (
	"sync/atomic"
	"time"
)

// watchdog detects upstream inactivity. The loop polls Fired at fragment
// boundaries; onFire additionally cancels the attempt's stream context so a
// blocked read returns promptly.
type watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func startWatchdog(timeout time.Duration, onFire func()) *watchdog {
	w := &watchdog{timeout: timeout}
	if timeout <= 0 {
		return w
	}
	w.timer = time.AfterFunc(timeout, func() {
		w.fired.Store(true)
		if onFire != nil {
			onFire()
		}
	})
	return w
}

// Fired reports whether the timeout elapsed.
func (w *watchdog) Fired() bool {
	return w.fired.Load()
}

// Reset restarts the countdown. A fired watchdog stays fired.
func (w *watchdog) Reset() {
	if w.timer == nil || w.fired.Load() {
		return
	}
	w.timer.Reset(w.timeout)
}

// Pause halts the countdown until Resume.
func (w *watchdog) Pause() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Resume starts a fresh countdown. A watchdog that fired before Pause stays
// fired.
func (w *watchdog) Resume() {
	w.Reset()
}

func (w *watchdog) Stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}
