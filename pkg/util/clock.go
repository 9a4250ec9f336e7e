package util

import "time"

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FakeClock is a manually advanced clock for expiry tests.
type FakeClock struct {
	Current time.Time
}

func (c *FakeClock) Now() time.Time { return c.Current }

func (c *FakeClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }
