package ble

import (
	"sync"

	"github.com/banshee-data/heartstream/internal/transport"
)

// eventQueue carries events from the Bluetooth stack's callbacks to the
// polling loop without blocking the callbacks. Commands beyond limit are
// dropped. Connection events are always kept, and a connect followed by a
// disconnect that were never delivered cancel each other out.
type eventQueue struct {
	mu      sync.Mutex
	pending []transport.Event
	limit   int
	closed  bool

	notify chan struct{}
	out    chan transport.Event
	done   chan struct{}
	logf   func(string, ...interface{})
}

func newEventQueue(limit int, logf func(string, ...interface{})) *eventQueue {
	return &eventQueue{
		limit:  limit,
		notify: make(chan struct{}, 1),
		out:    make(chan transport.Event),
		done:   make(chan struct{}),
		logf:   logf,
	}
}

func (q *eventQueue) push(ev transport.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	if ev.Kind == transport.EventCommand {
		if q.commands() >= q.limit {
			q.logf("event queue full, dropped command %q", ev.Command)
			return
		}
	} else if n := len(q.pending); n > 0 {
		last := q.pending[n-1].Kind
		switch {
		case last == ev.Kind:
			return
		case last == transport.EventConnect && ev.Kind == transport.EventDisconnect:
			q.pending = q.pending[:n-1]
			return
		}
	}

	q.pending = append(q.pending, ev)
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) commands() int {
	n := 0
	for _, ev := range q.pending {
		if ev.Kind == transport.EventCommand {
			n++
		}
	}
	return n
}

// run delivers pending events in order on out until close is called.
func (q *eventQueue) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-q.notify:
			case <-q.done:
				return
			}
			continue
		}
		ev := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		select {
		case q.out <- ev:
		case <-q.done:
			return
		}
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.pending = nil
	close(q.done)
}
