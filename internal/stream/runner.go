package stream

import (
	"context"
	"time"

	"github.com/banshee-data/heartstream/internal/timeutil"
	"github.com/banshee-data/heartstream/internal/transport"
)

// DefaultIdlePoll is how long the loop yields per iteration while nothing
// is streaming.
const DefaultIdlePoll = time.Millisecond

// Millis is the device uptime counter.
type Millis interface {
	Millis() uint32
}

// Runner is the cooperative polling loop: each iteration handles at most
// one transport event and then polls the controller once.
type Runner struct {
	ctrl     *Controller
	events   <-chan transport.Event
	uptime   Millis
	clock    timeutil.Clock
	idlePoll time.Duration
}

// NewRunner wires a controller to a transport's event stream.
func NewRunner(ctrl *Controller, events <-chan transport.Event, uptime Millis, clock timeutil.Clock, idlePoll time.Duration) *Runner {
	return &Runner{
		ctrl:     ctrl,
		events:   events,
		uptime:   uptime,
		clock:    clock,
		idlePoll: idlePoll,
	}
}

// Run loops until ctx is done. While streaming it never sleeps.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.Step()
		if r.idlePoll > 0 && !r.ctrl.State().Streaming() {
			r.clock.Sleep(r.idlePoll)
		}
	}
}

// Step runs one loop iteration.
func (r *Runner) Step() {
	select {
	case ev, ok := <-r.events:
		if !ok {
			// transport went away for good
			r.events = nil
			r.ctrl.OnDisconnect()
			break
		}
		r.dispatch(ev)
	default:
	}
	r.ctrl.Poll(r.uptime.Millis())
}

func (r *Runner) dispatch(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnect:
		r.ctrl.OnConnect()
	case transport.EventDisconnect:
		r.ctrl.OnDisconnect()
	case transport.EventCommand:
		r.ctrl.HandleCommand(ev.Command, r.uptime.Millis())
	}
}
