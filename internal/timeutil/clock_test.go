package timeutil

import (
	"math"
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	now := c.Now()
	if now.Before(before) {
		t.Errorf("Now() returned time before test start")
	}
	if c.Since(before) < 0 {
		t.Errorf("Since() returned negative duration")
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(time.Hour)
	if got := c.Since(start); got != time.Hour {
		t.Errorf("Since() = %v, want 1h", got)
	}

	c.Sleep(5 * time.Millisecond)
	c.Sleep(time.Millisecond)
	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 5*time.Millisecond || sleeps[1] != time.Millisecond {
		t.Errorf("Sleeps() = %v", sleeps)
	}
	if got := c.Since(start); got != time.Hour+6*time.Millisecond {
		t.Errorf("Sleep did not advance the clock: Since() = %v", got)
	}

	later := start.Add(48 * time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Set() did not take effect")
	}
}

func TestUptimeMillis(t *testing.T) {
	c := NewMockClock(time.Unix(1000, 0))
	u := NewUptime(c)

	if got := u.Millis(); got != 0 {
		t.Fatalf("Millis() at start = %d, want 0", got)
	}
	c.Advance(1500 * time.Millisecond)
	if got := u.Millis(); got != 1500 {
		t.Errorf("Millis() = %d, want 1500", got)
	}
}

func TestUptimeWraps(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	u := NewUptimeAt(c, math.MaxUint32-1)

	before := u.Millis()
	c.Advance(5 * time.Millisecond)
	after := u.Millis()

	if after != 3 {
		t.Errorf("Millis() after wrap = %d, want 3", after)
	}
	if elapsed := after - before; elapsed != 5 {
		t.Errorf("unsigned elapsed = %d, want 5", elapsed)
	}
}
