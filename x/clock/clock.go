// Package clock abstracts wall-clock time and one-shot timers so that timing
// primitives can run against real time in production and manual time in tests.
package clock

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// Clock provides the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// System is the Clock backed by the time package.
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// AfterFunc creates a timer that runs fn after d.
func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return &systemTimer{timer: time.AfterFunc(d, fn)}
}

// systemTimer implements Timer using time.Timer.
type systemTimer struct {
	timer *time.Timer
}

func (t *systemTimer) Stop() bool {
	return t.timer.Stop()
}

// OrSystem returns c, or System when c is nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return System
	}
	return c
}
