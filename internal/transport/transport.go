// Package transport connects the streaming controller to a host. A
// transport delivers encoded bytes to the subscribed host and reports
// connection changes and received command strings as Events.
package transport

import "errors"

var (
	// ErrNoSubscriber is returned by Send when no host is listening.
	ErrNoSubscriber = errors.New("no subscriber")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport closed")
	// ErrWriteFailed is returned when the link accepted fewer bytes than sent.
	ErrWriteFailed = errors.New("short write")
)

// EventKind classifies transport events.
type EventKind int

const (
	EventConnect EventKind = iota
	EventDisconnect
	EventCommand
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Event is one notification from the transport. Command is set for
// EventCommand only.
type Event struct {
	Kind    EventKind
	Command string
}

// EventBuffer is the capacity of a transport's event channel. The channel
// is the single-producer/single-consumer hand-off between the transport's
// goroutines and the polling loop.
const EventBuffer = 16

// Transport is the device side of a host link.
type Transport interface {
	// Send delivers one complete frame or text line to the host.
	Send([]byte) error
	// Events returns the channel of connection and command events.
	Events() <-chan Event
	// Close releases the link. Events is closed once no more events can be
	// produced.
	Close() error
}
