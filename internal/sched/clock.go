package sched

import "time"

// Clock abstracts time.Now so loop and wake behaviour is testable with a
// deterministic source.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
