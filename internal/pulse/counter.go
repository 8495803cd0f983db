// Package pulse counts flow sensor edges.
//
// The edge handler is the only writer. The sampler reads through
// SampleAndReset, which takes one atomic snapshot of the counter, so an edge
// arriving during the read is either included in this window or the next one,
// never lost.
package pulse

import "sync/atomic"

// Counter is a wrapping 32-bit pulse counter.
type Counter struct {
	n atomic.Uint32
}

// Increment records one qualifying edge. Safe to call from the edge handler
// goroutine concurrently with SampleAndReset.
func (c *Counter) Increment() {
	c.n.Add(1)
}

// Load returns the current cumulative count.
func (c *Counter) Load() uint32 {
	return c.n.Load()
}

// SampleAndReset snapshots the counter and returns the pulses seen since
// previous. The counter itself is never reset; "reset" refers to the caller's
// baseline, which should be replaced with the returned current value.
// The delta is correct across at most one wrap of the counter.
func (c *Counter) SampleAndReset(previous uint32) (current, delta uint32) {
	current = c.n.Load()
	return current, current - previous
}
