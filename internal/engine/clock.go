package engine

import "sync/atomic"

// LogicalClock is the monotonic logical clock for merge ordering.
//
// Local structural edits are stamped from this clock so last-writer-wins
// merges can compare local writes against remote deltas. Observing a
// remote clock ratchets the local clock forward, which keeps subsequent
// local edits causally after everything already merged.
//
// Thread-safety: safe for concurrent use (atomic operations). The
// peer-sync worker calls Observe from its own goroutine; Next is called
// only from the consumer loop.
type LogicalClock struct {
	now atomic.Uint64
}

// NewClock creates a clock starting at 0.
func NewClock() *LogicalClock {
	return &LogicalClock{}
}

// NewClockAt creates a clock starting at a specific value.
// Used on restore to resume past every clock recorded in the log.
func NewClockAt(start uint64) *LogicalClock {
	c := &LogicalClock{}
	c.now.Store(start)
	return c
}

// Next advances the clock and returns the new value.
// Each call returns a unique, strictly increasing value.
func (c *LogicalClock) Next() uint64 {
	return c.now.Add(1)
}

// Current returns the clock without advancing it.
func (c *LogicalClock) Current() uint64 {
	return c.now.Load()
}

// Observe merges a remote clock: the local clock becomes at least the
// observed value. Lower observations are no-ops.
func (c *LogicalClock) Observe(remote uint64) {
	for {
		cur := c.now.Load()
		if remote <= cur {
			return
		}
		if c.now.CompareAndSwap(cur, remote) {
			return
		}
	}
}
