package transport

import (
	"sync"
)

// Loopback is an in-memory Transport. The host side is driven directly
// through Connect, Disconnect and Command, and everything the device sends
// is kept for inspection. It backs tests and the dev-mode CLI.
type Loopback struct {
	mu        sync.Mutex
	closeMu   sync.RWMutex
	events    chan Event
	connected bool
	closed    bool
	sent      [][]byte
	retain    int
	sendErr   error

	// OnSend, if set, is called with every successfully sent frame.
	OnSend func([]byte)
}

func NewLoopback() *Loopback {
	return &Loopback{events: make(chan Event, EventBuffer)}
}

func (l *Loopback) Events() <-chan Event { return l.events }

// Send records b if a host is connected.
func (l *Loopback) Send(b []byte) error {
	l.mu.Lock()
	switch {
	case l.closed:
		l.mu.Unlock()
		return ErrClosed
	case l.sendErr != nil:
		err := l.sendErr
		l.mu.Unlock()
		return err
	case !l.connected:
		l.mu.Unlock()
		return ErrNoSubscriber
	}
	frame := append([]byte(nil), b...)
	l.sent = append(l.sent, frame)
	if l.retain > 0 && len(l.sent) > l.retain {
		l.sent = append(l.sent[:0], l.sent[len(l.sent)-l.retain:]...)
	}
	hook := l.OnSend
	l.mu.Unlock()

	if hook != nil {
		hook(frame)
	}
	return nil
}

// Connect simulates a host connecting.
func (l *Loopback) Connect() {
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	l.push(Event{Kind: EventConnect})
}

// Disconnect simulates the host going away.
func (l *Loopback) Disconnect() {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
	l.push(Event{Kind: EventDisconnect})
}

// Command simulates the host writing a command string.
func (l *Loopback) Command(text string) {
	l.push(Event{Kind: EventCommand, Command: text})
}

// FailSends makes every Send return err until called with nil.
func (l *Loopback) FailSends(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

// SetRetain keeps only the most recent n frames. Zero keeps everything.
func (l *Loopback) SetRetain(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retain = n
}

// Sent returns a copy of every frame delivered so far.
func (l *Loopback) Sent() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.sent))
	copy(out, l.sent)
	return out
}

// Reset forgets delivered frames.
func (l *Loopback) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = nil
}

func (l *Loopback) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.connected = false
	close(l.events)
	return nil
}

// push queues ev. It blocks if the loop has fallen EventBuffer events
// behind; events are never dropped.
func (l *Loopback) push(ev Event) {
	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	l.events <- ev
}
