// Package scheduler paces sample acquisition from a polling loop.
//
// The loop calls Tick as often as it likes; Tick reports true at most once
// per call, when a full sample interval has elapsed. All arithmetic is on a
// wrapping uint32 millisecond counter and uses unsigned subtraction, so
// the rollover of the counter never produces a negative or huge interval.
package scheduler

import (
	"fmt"
	"time"
)

// Policy chooses how the reference time moves when a sample fires.
type Policy int

const (
	// PolicyFixedStep advances the reference by exactly one interval, so
	// the long-run rate matches the interval regardless of polling jitter.
	PolicyFixedStep Policy = iota
	// PolicyResetToNow sets the reference to the fire time. Polling
	// latency accumulates as drift.
	PolicyResetToNow
)

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fixed_step":
		return PolicyFixedStep, nil
	case "reset_to_now":
		return PolicyResetToNow, nil
	default:
		return 0, fmt.Errorf("unknown scheduler policy %q: expected fixed_step or reset_to_now", s)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyFixedStep:
		return "fixed_step"
	case PolicyResetToNow:
		return "reset_to_now"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// MaxLag is how many intervals a fixed-step scheduler may fall behind
// before it gives up catching up and resynchronises to now.
const MaxLag = 8

// Scheduler decides when the next sample is due.
type Scheduler struct {
	interval uint32
	policy   Policy
	last     uint32

	// Resyncs counts how often the fixed-step policy dropped its backlog.
	Resyncs int
}

// New creates a scheduler firing every interval. The counter has
// millisecond resolution: interval is truncated to whole milliseconds with
// a floor of 1 ms, so callers should validate it first.
func New(interval time.Duration, policy Policy) *Scheduler {
	ms := uint32(interval / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	return &Scheduler{interval: ms, policy: policy}
}

// Interval returns the configured interval.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval) * time.Millisecond
}

// Reset makes nowMs the reference point; the first sample fires one
// interval later.
func (s *Scheduler) Reset(nowMs uint32) {
	s.last = nowMs
}

// Tick reports whether a sample is due at nowMs and, if so, moves the
// reference according to the policy.
func (s *Scheduler) Tick(nowMs uint32) bool {
	elapsed := nowMs - s.last
	if elapsed < s.interval {
		return false
	}

	switch s.policy {
	case PolicyResetToNow:
		s.last = nowMs
	default:
		if elapsed >= s.interval*MaxLag {
			s.last = nowMs
			s.Resyncs++
		} else {
			s.last += s.interval
		}
	}
	return true
}
