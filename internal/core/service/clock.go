package service

import "time"

// Timer is a scheduled task that can be cancelled before it fires.
type Timer interface {
	// Stop cancels the task, returns false if it already fired or was stopped
	Stop() bool
}

// Clock schedules tasks. The scheduler owns every Timer it creates.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type realClock struct{}

// RealClock schedules on the runtime timer heap.
func RealClock() Clock { return realClock{} }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) Now() time.Time { return time.Now() }
