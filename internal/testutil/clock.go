// Package testutil provides deterministic test doubles shared across the
// engine's test suites.
package testutil

import (
	"sync"
	"time"
)

// frozenBase is an arbitrary fixed instant; tests that care about specific
// times should construct their own FrozenClock with At.
var frozenBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// FrozenClock is a clock.Clock whose time only moves when a test advances
// it. This makes creation timestamps and the notification freshness window
// fully deterministic.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FrozenClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFrozenClock creates a clock frozen at a fixed reference instant.
func NewFrozenClock() *FrozenClock {
	return &FrozenClock{now: frozenBase}
}

// At creates a clock frozen at t.
func At(t time.Time) *FrozenClock {
	return &FrozenClock{now: t}
}

// Now returns the frozen instant.
func (c *FrozenClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FrozenClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps the clock to t.
func (c *FrozenClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
