package session

import "time"

// Clock abstracts time for a Session's wait states, mirroring the teacher's
// Engine.Now clock-injection idiom so tests can simulate a wait-state
// timeout instead of sleeping real wall-clock time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// realClock is the default Clock, backed by the real wall clock.
type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
