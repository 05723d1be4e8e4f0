// Package timeutil provides the device time base: a testable wall clock and
// the wrapping millisecond uptime counter used for packet timestamps and
// sample cadence.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// Sleep pauses for the specified duration.
	Sleep(d time.Duration)
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }
func (RealClock) Sleep(d time.Duration)           { time.Sleep(d) }

// Uptime is a millisecond counter that starts at zero when created and
// wraps modulo 2^32, like a microcontroller millis() counter. Consumers
// must compare readings with unsigned subtraction only.
type Uptime struct {
	clock  Clock
	start  time.Time
	offset uint32
}

// NewUptime starts an uptime counter on clock.
func NewUptime(clock Clock) *Uptime {
	return &Uptime{clock: clock, start: clock.Now()}
}

// NewUptimeAt starts an uptime counter that reads offset immediately.
// Tests use it to place the counter just before a wrap.
func NewUptimeAt(clock Clock, offset uint32) *Uptime {
	return &Uptime{clock: clock, start: clock.Now(), offset: offset}
}

// Millis returns milliseconds since start, modulo 2^32.
func (u *Uptime) Millis() uint32 {
	return u.offset + uint32(u.clock.Since(u.start).Milliseconds())
}

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by the given duration.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Sleep records the sleep duration and advances the clock by it, so loops
// that yield still make progress under test.
func (c *MockClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleeps returns all recorded sleep durations.
func (c *MockClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]time.Duration, len(c.sleeps))
	copy(result, c.sleeps)
	return result
}
