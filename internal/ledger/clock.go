package ledger

import "sync/atomic"

// Clock stamps emitted events with a strictly increasing sequence number.
// Calls are linearizable; each Next returns a unique, increasing value.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0: the first event gets seq 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a known position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock's position without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
