// Package system provides the real clock used outside tests.
package system

import "time"

// Clock implements crawler.Clock using time.Now. Values keep the monotonic
// reading, so elapsed times survive wall clock adjustments.
type Clock struct{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}
