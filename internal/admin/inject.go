package admin

import (
	"context"
	"errors"

	"github.com/banshee-data/heartstream/internal/transport"
)

// ErrInjectorStopped is returned by Inject once the merged stream has ended.
var ErrInjectorStopped = errors.New("command injector stopped")

// Injector merges commands typed on the debug page into a transport's
// event stream, so they reach the controller through the same loop as
// host commands.
type Injector struct {
	upstream <-chan transport.Event
	events   chan transport.Event
	commands chan string
	done     chan struct{}
}

// NewInjector starts forwarding upstream until it closes or ctx ends.
// The merged stream is closed when forwarding stops.
func NewInjector(ctx context.Context, upstream <-chan transport.Event) *Injector {
	in := &Injector{
		upstream: upstream,
		events:   make(chan transport.Event, transport.EventBuffer),
		commands: make(chan string),
		done:     make(chan struct{}),
	}
	go in.run(ctx)
	return in
}

// Events returns the merged stream.
func (in *Injector) Events() <-chan transport.Event { return in.events }

// Inject queues a command event. It blocks until the event is accepted,
// ctx ends or the injector stops.
func (in *Injector) Inject(ctx context.Context, text string) error {
	select {
	case in.commands <- text:
		return nil
	case <-in.done:
		return ErrInjectorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *Injector) run(ctx context.Context) {
	defer close(in.events)
	defer close(in.done)

	forward := func(ev transport.Event) bool {
		select {
		case in.events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case ev, ok := <-in.upstream:
			if !ok {
				return
			}
			if !forward(ev) {
				return
			}
		case text := <-in.commands:
			if !forward(transport.Event{Kind: transport.EventCommand, Command: text}) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
