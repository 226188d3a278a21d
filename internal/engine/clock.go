package engine

import "sync/atomic"

// Clock is a monotonic logical clock for ordering status transitions.
//
// Every PassEvent gets a strictly increasing seq from the same clock, so the
// history log orders transitions without relying on wall time. Clock is safe
// for concurrent use, although a pass only ever calls it from one goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start, for resuming after the
// last recorded seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
