package application

import "time"

// Clock interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, UTC dipotong ke mikrodetik supaya sama dengan presisi kolom DB.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// FixedClock returns the same instant until Advance is called. Used by tests and local runs.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
