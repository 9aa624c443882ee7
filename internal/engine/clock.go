package engine

import "sync/atomic"

// Clock is the logical clock that stamps fetchedAt on committed records and
// list results. Staleness is measured in ticks, never in wall time, so a
// replayed scenario produces the same state.
type Clock struct {
	tick atomic.Int64
}

// NewClock returns a clock at tick 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose next tick is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.tick.Store(start)
	return c
}

// Next advances the clock and returns the new tick.
func (c *Clock) Next() int64 {
	return c.tick.Add(1)
}

// Current returns the last tick handed out.
func (c *Clock) Current() int64 {
	return c.tick.Load()
}
