package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heartstream/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestLoopback(t *testing.T) {
	lb := NewLoopback()

	assert.ErrorIs(t, lb.Send([]byte("x")), ErrNoSubscriber)

	lb.Connect()
	assert.Equal(t, Event{Kind: EventConnect}, nextEvent(t, lb.Events()))

	var hooked [][]byte
	lb.OnSend = func(b []byte) { hooked = append(hooked, b) }
	require.NoError(t, lb.Send([]byte("abc")))
	assert.Equal(t, [][]byte{[]byte("abc")}, lb.Sent())
	assert.Len(t, hooked, 1)

	boom := errors.New("boom")
	lb.FailSends(boom)
	assert.ErrorIs(t, lb.Send([]byte("x")), boom)
	lb.FailSends(nil)

	lb.Command("START_STREAM")
	assert.Equal(t, Event{Kind: EventCommand, Command: "START_STREAM"}, nextEvent(t, lb.Events()))

	lb.Disconnect()
	assert.Equal(t, EventDisconnect, nextEvent(t, lb.Events()).Kind)
	assert.ErrorIs(t, lb.Send([]byte("x")), ErrNoSubscriber)

	require.NoError(t, lb.Close())
	require.NoError(t, lb.Close())
	assert.ErrorIs(t, lb.Send([]byte("x")), ErrClosed)
	_, ok := <-lb.Events()
	assert.False(t, ok)

	// host actions after close are ignored
	lb.Command("STOP")
}

func TestSerialTransport_CommandsAndHangup(t *testing.T) {
	port := NewTestableSerialPort()
	st := NewSerialTransport(port)

	assert.ErrorIs(t, st.Send([]byte("early")), ErrNoSubscriber)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- st.Monitor(ctx) }()

	assert.Equal(t, EventConnect, nextEvent(t, st.Events()).Kind)

	port.AddReadData([]byte("START_STREAM\r\nSTOP_STREAM\n"))
	assert.Equal(t, Event{Kind: EventCommand, Command: "START_STREAM"}, nextEvent(t, st.Events()))
	assert.Equal(t, Event{Kind: EventCommand, Command: "STOP_STREAM"}, nextEvent(t, st.Events()))

	require.NoError(t, st.Send([]byte{0xAA, 0x55}))
	assert.Equal(t, []byte{0xAA, 0x55}, port.WrittenData())

	port.Hangup()
	assert.Equal(t, EventDisconnect, nextEvent(t, st.Events()).Kind)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after hangup")
	}
	_, ok := <-st.Events()
	assert.False(t, ok, "events should be closed after Monitor returns")
	assert.ErrorIs(t, st.Send([]byte("late")), ErrNoSubscriber)
}

func TestSerialTransport_SendErrors(t *testing.T) {
	port := NewTestableSerialPort()
	st := NewSerialTransport(port)
	st.setConnected(true)

	port.WriteError = errors.New("io")
	assert.EqualError(t, st.Send([]byte("a")), "io")

	port.ShortWrite = true
	assert.ErrorIs(t, st.Send([]byte("abc")), ErrWriteFailed)

	require.NoError(t, st.Close())
	assert.True(t, port.Closed)
	assert.ErrorIs(t, st.Send([]byte("a")), ErrClosed)
}

func TestSerialTransport_ContextCancel(t *testing.T) {
	port := NewTestableSerialPort()
	st := NewSerialTransport(port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Monitor(ctx) }()
	nextEvent(t, st.Events())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, st.Close())
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "connect", EventConnect.String())
	assert.Equal(t, "disconnect", EventDisconnect.String())
	assert.Equal(t, "command", EventCommand.String())
	assert.Equal(t, "unknown", EventKind(42).String())
}

func TestLoopbackRetain(t *testing.T) {
	lb := NewLoopback()
	lb.SetRetain(2)
	lb.Connect()

	for _, b := range []string{"a", "b", "c"} {
		require.NoError(t, lb.Send([]byte(b)))
	}
	assert.Equal(t, [][]byte{[]byte("b"), []byte("c")}, lb.Sent())

	lb.Reset()
	assert.Empty(t, lb.Sent())
}
