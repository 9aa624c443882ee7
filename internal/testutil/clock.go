// Package testutil holds deterministic stand-ins for the clock and token
// sources, so scenario traces are byte-identical across runs.
package testutil

import "sync/atomic"

// Clock is a resettable logical clock. The first Next returns 1.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, or 0.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Reset moves the clock back to 0.
func (c *Clock) Reset() {
	c.seq.Store(0)
}
