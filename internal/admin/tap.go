package admin

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/banshee-data/heartstream/internal/stream"
)

// TailBuffer is the per-subscriber queue depth. A subscriber that falls
// further behind misses frames.
const TailBuffer = 64

// Tap forwards every frame to the wrapped sender and copies frames that
// were delivered to any tail subscribers.
type Tap struct {
	next stream.Sender

	subscriberMu sync.Mutex
	subscribers  map[string]chan []byte
	closed       bool
	missed       uint64
}

// NewTap wraps next.
func NewTap(next stream.Sender) *Tap {
	return &Tap{
		next:        next,
		subscribers: make(map[string]chan []byte),
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Send forwards b. Subscribers only see frames the transport accepted.
func (t *Tap) Send(b []byte) error {
	if err := t.next.Send(b); err != nil {
		return err
	}

	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if len(t.subscribers) == 0 {
		return nil
	}
	frame := append([]byte(nil), b...)
	for _, ch := range t.subscribers {
		select {
		case ch <- frame:
		default:
			t.missed++
		}
	}
	return nil
}

// Subscribe registers a tail subscriber. The channel is closed by
// Unsubscribe or Close.
func (t *Tap) Subscribe() (string, <-chan []byte) {
	id := randomID()
	ch := make(chan []byte, TailBuffer)
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if t.closed {
		close(ch)
		return id, ch
	}
	t.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber.
func (t *Tap) Unsubscribe(id string) {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if ch, ok := t.subscribers[id]; ok {
		close(ch)
		delete(t.subscribers, id)
	}
}

// Subscribers returns the number of active subscribers.
func (t *Tap) Subscribers() int {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	return len(t.subscribers)
}

// Missed returns how many frames were not queued to a slow subscriber.
func (t *Tap) Missed() uint64 {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	return t.missed
}

// Close ends every subscription. Frames keep flowing to the wrapped sender.
func (t *Tap) Close() {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	t.closed = true
	for id, ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, id)
	}
}
