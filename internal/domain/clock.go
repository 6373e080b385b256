package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is the package time source. "Today" for staleness checks and the
// forecast version stamp both read it, so tests freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock.
func Now() time.Time {
	return clock.Now()
}

// Today returns the current UTC calendar date.
func Today() time.Time {
	return truncateDay(clock.Now())
}
