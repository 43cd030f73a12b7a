package statekit

import "sync/atomic"

// versionClock is a monotonic logical clock for change ordering.
//
// Every state or cache write is stamped with a strictly increasing version
// from this clock. This ensures:
//   - Deterministic ordering of change events (no wall-clock races)
//   - Subscribers can detect and discard out-of-order deliveries
//   - Concurrent fetch completions resolve to a total write order
//
// Thread-safety: safe for concurrent use (atomic operations). The store's
// write lock means only one goroutine typically calls next() at a time.
type versionClock struct {
	v atomic.Int64
}

// next returns the next version and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *versionClock) next() int64 {
	return c.v.Add(1)
}

// current returns the current version without incrementing.
func (c *versionClock) current() int64 {
	return c.v.Load()
}
