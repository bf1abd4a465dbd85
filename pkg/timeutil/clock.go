// Package timeutil provides the clock abstraction used across the academy core.
// Services never call time.Now directly; they receive a Clock so that cache
// expiry, join windows and completion timestamps are testable.
package timeutil

import (
	"sync"
	"time"
)

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// SYSTEM CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns the process-wide wall clock.
func System() Clock {
	return SystemClock{}
}

// OrSystem returns c, or the system clock when c is nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock creates a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the frozen instant.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Minutes converts a whole number of minutes to a Duration.
func Minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// Within reports whether t lies in the closed interval [from, to].
func Within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
