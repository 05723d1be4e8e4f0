// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"sync"
	"testing"

	"github.com/banshee-data/heartstream/internal/monitoring"
	"github.com/banshee-data/heartstream/internal/telemetry"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// MuteLogs silences the device logger for the duration of the test.
func MuteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// RecordingSender captures everything the device sends. Set Err to make
// Send fail.
type RecordingSender struct {
	mu     sync.Mutex
	frames [][]byte

	Err error
}

// Send records a copy of b unless Err is set.
func (r *RecordingSender) Send(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.frames = append(r.frames, append([]byte(nil), b...))
	return nil
}

// Frames returns every recorded send.
func (r *RecordingSender) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

// Lines returns recorded sends that are not binary packets, as strings.
func (r *RecordingSender) Lines() []string {
	var out []string
	for _, f := range r.Frames() {
		if _, err := telemetry.Decode(f); err != nil {
			out = append(out, string(f))
		}
	}
	return out
}

// Packets decodes recorded sends that are binary packets.
func (r *RecordingSender) Packets() []telemetry.Packet {
	var out []telemetry.Packet
	for _, f := range r.Frames() {
		if p, err := telemetry.Decode(f); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Reset forgets recorded sends.
func (r *RecordingSender) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}
