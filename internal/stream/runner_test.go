package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heartstream/internal/source"
	"github.com/banshee-data/heartstream/internal/telemetry"
	"github.com/banshee-data/heartstream/internal/testutil"
	"github.com/banshee-data/heartstream/internal/timeutil"
	"github.com/banshee-data/heartstream/internal/transport"
)

func newLoopbackRunner(t *testing.T, idlePoll time.Duration) (*Runner, *Controller, *transport.Loopback, *timeutil.MockClock) {
	t.Helper()
	testutil.MuteLogs(t)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	lb := transport.NewLoopback()
	ctrl := NewController(Config{}, &source.CounterSource{}, lb)
	r := NewRunner(ctrl, lb.Events(), timeutil.NewUptime(clock), clock, idlePoll)
	return r, ctrl, lb, clock
}

func TestRunnerStepHandlesOneEventPerIteration(t *testing.T) {
	r, ctrl, lb, _ := newLoopbackRunner(t, 0)

	lb.Connect()
	lb.Command("START_STREAM")

	r.Step()
	assert.Equal(t, StateIdle, ctrl.State())
	r.Step()
	assert.Equal(t, StateStreamingBinary, ctrl.State())
}

func TestRunnerStreamsOverLoopback(t *testing.T) {
	r, ctrl, lb, clock := newLoopbackRunner(t, 0)

	lb.Connect()
	lb.Command("START_STREAM")
	r.Step()
	r.Step()
	require.Equal(t, StateStreamingBinary, ctrl.State())

	for i := 0; i < 200; i++ {
		clock.Advance(time.Millisecond)
		r.Step()
	}

	var parser telemetry.Parser
	for _, f := range lb.Sent() {
		parser.Write(f)
	}
	pkts := parser.Packets()
	require.Len(t, pkts, 5)
	for i, p := range pkts {
		assert.Equal(t, uint8(i+1), p.Seq)
	}

	lb.Command("STOP_STREAM")
	r.Step()
	assert.Equal(t, StateIdle, ctrl.State())

	lb.Disconnect()
	r.Step()
	assert.Equal(t, StateDisconnected, ctrl.State())
}

func TestRunnerClosedTransportDisconnects(t *testing.T) {
	r, ctrl, lb, _ := newLoopbackRunner(t, 0)
	lb.Connect()
	r.Step()
	require.Equal(t, StateIdle, ctrl.State())

	require.NoError(t, lb.Close())
	r.Step()
	assert.Equal(t, StateDisconnected, ctrl.State())
	r.Step() // nil channel, no panic
}

func TestRunnerYieldsOnlyWhenNotStreaming(t *testing.T) {
	r, ctrl, lb, clock := newLoopbackRunner(t, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lb.Connect()
	lb.Command("START_STREAM")
	lb.OnSend = func([]byte) { cancel() }

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// idle iterations advance the mock clock through Sleep; once streaming,
	// the loop spins without sleeping, so advance the clock from here
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			assert.True(t, errors.Is(err, context.Canceled))
			assert.Equal(t, StateStreamingBinary, ctrl.State())
			assert.NotEmpty(t, clock.Sleeps())
			return
		case <-deadline:
			t.Fatal("runner did not deliver a packet")
		default:
			clock.Advance(time.Millisecond)
			time.Sleep(100 * time.Microsecond)
		}
	}
}
