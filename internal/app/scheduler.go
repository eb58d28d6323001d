package app

import "time"

// Timer is a handle to scheduled work. Stop is advisory: the callback may
// already be running when Stop returns false.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after delay.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Timer
}

// TimerScheduler schedules on the runtime timer heap.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(delay time.Duration, fn func()) Timer {
	return time.AfterFunc(delay, fn)
}
