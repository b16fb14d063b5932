// Package system provides the wall clock used to stamp articles.
package system

import "time"

// Clock implements article.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to microseconds, the finest
// precision postgres timestamptz keeps, so values survive a store round trip.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
