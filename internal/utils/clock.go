package utils

import "time"

// Clock abstracts wall-clock access so deadline math in the attempt
// services and the scheduler is deterministic under test.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// NewClock returns a Clock backed by time.Now in UTC.
func NewClock() Clock {
	return realClock{}
}

// FixedClock is a test clock that returns a settable instant.
type FixedClock struct {
	Instant time.Time
}

func (c *FixedClock) Now() time.Time {
	return c.Instant
}

// Advance moves the fixed clock forward.
func (c *FixedClock) Advance(d time.Duration) {
	c.Instant = c.Instant.Add(d)
}
