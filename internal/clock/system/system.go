// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements icon.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Func exposes Now for constructors that take a plain time source.
func (c Clock) Func() func() time.Time {
	return c.Now
}
