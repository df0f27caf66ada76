// Package clock provides the simulation's global logical tick — the
// monotonic counter that stands in for wall-clock time everywhere a node
// or the harness needs "now" (spec.md §2 item 1, §6 "current_time()").
package clock

import "sync/atomic"

// SimClock is a monotonically increasing tick counter shared by the
// simulation harness and read by every node. It is safe for concurrent
// use, though the cooperative tick-driven model (spec.md §5) only ever
// has the harness advancing it between rounds.
type SimClock struct {
	ticks int64
}

// New creates a SimClock starting at tick 0.
func New() *SimClock {
	return &SimClock{}
}

// Now returns the current simulation tick.
func (c *SimClock) Now() int64 {
	return atomic.LoadInt64(&c.ticks)
}

// Advance moves the clock forward by one tick and returns the new value.
func (c *SimClock) Advance() int64 {
	return atomic.AddInt64(&c.ticks, 1)
}
