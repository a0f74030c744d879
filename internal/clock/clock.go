// Package clock provides an injectable time source so lockout and expiry
// behavior can be tested deterministically.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns the wall clock, truncated to UTC.
func System() Clock { return systemClock{} }
