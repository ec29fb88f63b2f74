// time.go — Monotonic clock with a wall-clock origin.
package util

import "time"

// Clock reports monotonic milliseconds elapsed since a fixed origin.
type Clock interface {
	Now() float64
}

// MonotonicClock measures time from the instant it was created.
// Now never goes backwards; TimeOrigin converts its readings to wall clock.
type MonotonicClock struct {
	origin time.Time
}

// NewMonotonicClock creates a clock whose origin is the current instant.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

// Now returns milliseconds since the origin, using the monotonic reading.
func (c *MonotonicClock) Now() float64 {
	return Milliseconds(time.Since(c.origin))
}

// TimeOrigin returns the origin as Unix milliseconds.
// Adding it to a Now() reading yields a wall-clock timestamp.
func (c *MonotonicClock) TimeOrigin() float64 {
	return float64(c.origin.UnixNano()) / float64(time.Millisecond)
}

// Milliseconds converts a duration to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
