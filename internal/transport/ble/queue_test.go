package ble

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/heartstream/internal/transport"
)

var (
	connect    = transport.Event{Kind: transport.EventConnect}
	disconnect = transport.Event{Kind: transport.EventDisconnect}
)

func command(s string) transport.Event {
	return transport.Event{Kind: transport.EventCommand, Command: s}
}

func receive(t *testing.T, q *eventQueue, n int) []transport.Event {
	t.Helper()
	var got []transport.Event
	for len(got) < n {
		select {
		case ev, ok := <-q.out:
			if !ok {
				t.Fatalf("queue closed after %d of %d events", len(got), n)
			}
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(got), n)
		}
	}
	return got
}

func TestEventQueueKeepsConnectionEventsWhenFull(t *testing.T) {
	q := newEventQueue(2, t.Logf)

	q.push(connect)
	q.push(command("START_STREAM"))
	q.push(command("STOP_STREAM"))
	q.push(command("START_SIMPLE")) // over the limit
	q.push(disconnect)
	q.push(connect)

	want := []transport.Event{connect, command("START_STREAM"), command("STOP_STREAM"), disconnect, connect}
	if diff := cmp.Diff(want, q.pending); diff != "" {
		t.Fatalf("pending mismatch (-want +got):\n%s", diff)
	}

	go q.run()
	if diff := cmp.Diff(want, receive(t, q, len(want))); diff != "" {
		t.Errorf("delivered mismatch (-want +got):\n%s", diff)
	}

	// delivered commands free their slots
	q.push(command("STOP_SIMPLE"))
	if diff := cmp.Diff([]transport.Event{command("STOP_SIMPLE")}, receive(t, q, 1)); diff != "" {
		t.Errorf("delivered mismatch (-want +got):\n%s", diff)
	}
	q.close()
}

func TestEventQueueCoalescesConnectionEvents(t *testing.T) {
	tests := []struct {
		name string
		in   []transport.Event
		want []transport.Event
	}{
		{"connect then disconnect", []transport.Event{connect, disconnect}, nil},
		{"disconnect then connect", []transport.Event{disconnect, connect}, []transport.Event{disconnect, connect}},
		{"flapping", []transport.Event{connect, disconnect, connect, disconnect, connect}, []transport.Event{connect}},
		{"repeated", []transport.Event{connect, connect}, []transport.Event{connect}},
		{"command between", []transport.Event{connect, command("START"), disconnect}, []transport.Event{connect, command("START"), disconnect}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newEventQueue(transport.EventBuffer, t.Logf)
			for _, ev := range tt.in {
				q.push(ev)
			}
			if diff := cmp.Diff(tt.want, q.pending, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("pending mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEventQueueCloseEndsStream(t *testing.T) {
	q := newEventQueue(transport.EventBuffer, t.Logf)
	go q.run()

	q.push(connect)
	receive(t, q, 1)
	q.close()
	q.close()
	q.push(command("START_STREAM"))

	select {
	case ev, ok := <-q.out:
		if ok {
			t.Errorf("received %v after close", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}
