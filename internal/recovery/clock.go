package recovery

import "sync/atomic"

// Clock is a monotonic logical clock for task ordering.
//
// Every enqueued task is stamped with a strictly increasing seq from this
// clock. Wall-clock time is recorded separately and never used for ordering.
//
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
// Used when loading a journal to continue past the highest persisted seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// advanceTo moves the clock forward to at least v.
func (c *Clock) advanceTo(v int64) {
	for {
		cur := c.seq.Load()
		if cur >= v || c.seq.CompareAndSwap(cur, v) {
			return
		}
	}
}
