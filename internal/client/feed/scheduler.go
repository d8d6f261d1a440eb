package feed

import "time"

// Timer is a cancellable deferred callback. Stop reports whether the
// callback was prevented from running.
type Timer interface {
	Stop() bool
}

// Scheduler creates timers. The engine takes it as a dependency so
// tests can advance virtual time instead of sleeping through the undo
// window.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemScheduler returns a Scheduler backed by real time.
func SystemScheduler() Scheduler {
	return systemScheduler{}
}
