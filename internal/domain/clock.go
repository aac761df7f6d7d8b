package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake to exercise the
// refresh policy's staleness windows deterministically.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for the domain. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current domain time. Adapters stamping stored responses
// use this so they agree with the refresh policy's idea of "now".
func Now() time.Time { return clock.Now() }
