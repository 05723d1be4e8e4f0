// Package stream is the device's command-driven streaming state machine.
//
// A Controller owns the streaming session: the packet encoder with its
// sequence counter, the sample and simple-message schedulers, and the
// current State. It is driven from a single polling loop (see Runner);
// only Snapshot may be called from another goroutine.
package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/heartstream/internal/monitoring"
	"github.com/banshee-data/heartstream/internal/scheduler"
	"github.com/banshee-data/heartstream/internal/source"
	"github.com/banshee-data/heartstream/internal/telemetry"
)

const (
	DefaultSampleInterval = 4 * time.Millisecond
	DefaultSimpleInterval = 2000 * time.Millisecond
)

// Sender delivers bytes to the connected host.
type Sender interface {
	Send([]byte) error
}

// Config parameterises a Controller.
type Config struct {
	Variant        Variant
	SampleInterval time.Duration
	SimpleInterval time.Duration
	Policy         scheduler.Policy
}

func (c Config) withDefaults() Config {
	if c.SampleInterval <= 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.SimpleInterval <= 0 {
		c.SimpleInterval = DefaultSimpleInterval
	}
	return c
}

// Session is the transient state of one START/STOP bracket.
type Session struct {
	ID        string
	Mode      State
	StartedMs uint32
	// Message is the index of the next simple-mode line.
	Message uint32
}

// Stats are cumulative counters since the controller was created.
type Stats struct {
	PacketsSent     uint64 `json:"packets_sent"`
	PacketsDropped  uint64 `json:"packets_dropped"`
	MessagesSent    uint64 `json:"messages_sent"`
	MessagesDropped uint64 `json:"messages_dropped"`
	CommandsIgnored uint64 `json:"commands_ignored"`
	Sessions        uint64 `json:"sessions"`
}

// Status is a point-in-time copy of the controller for observers.
type Status struct {
	State   State
	Variant Variant
	Session Session
	NextSeq uint8
	Pending int
	Stats   Stats
}

// Controller is the streaming state machine.
type Controller struct {
	cfg  Config
	src  source.Source
	out  Sender
	logf func(string, ...interface{})

	mu      sync.Mutex
	state   State
	enc     *telemetry.Encoder
	samples *scheduler.Scheduler
	simple  *scheduler.Scheduler
	session Session
	stats   Stats
	failing bool
}

// NewController creates a controller in StateDisconnected.
func NewController(cfg Config, src source.Source, out Sender) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:     cfg,
		src:     src,
		out:     out,
		logf:    monitoring.Tagged("stream"),
		state:   StateDisconnected,
		enc:     telemetry.NewEncoder(),
		samples: scheduler.New(cfg.SampleInterval, cfg.Policy),
		simple:  scheduler.New(cfg.SimpleInterval, cfg.Policy),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the controller's observable state.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:   c.state,
		Variant: c.cfg.Variant,
		Session: c.session,
		NextSeq: c.enc.Seq(),
		Pending: c.enc.Pending(),
		Stats:   c.stats,
	}
}

// OnConnect handles the transport reporting a host connection.
func (c *Controller) OnConnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return
	}
	c.setState(StateIdle)
}

// OnDisconnect handles loss of the host. Any session is torn down and its
// partial packet discarded.
func (c *Controller) OnDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return
	}
	if c.state.Streaming() {
		c.logf("session %s ended by disconnect, %d buffered samples discarded", c.session.ID, c.enc.Pending())
	}
	c.resetSession()
	c.setState(StateDisconnected)
}

// HandleCommand applies one command string received at nowMs.
// Unrecognised, empty or out-of-state commands change nothing.
func (c *Controller) HandleCommand(text string, nowMs uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		c.ignore("command %q while disconnected", text)
		return
	}
	if text == "" {
		c.ignore("empty command")
		return
	}
	cmd, ok := ParseCommand(c.cfg.Variant, text)
	if !ok {
		c.ignore("unrecognised command %q", text)
		return
	}

	if target, ok := startTarget(cmd); ok {
		c.start(target, nowMs)
		return
	}
	if target, ok := stopTarget(cmd); ok {
		if c.state != target {
			c.ignore("%s while %s", cmd, c.state)
			return
		}
		c.logf("session %s stopped by %s", c.session.ID, cmd)
		c.resetSession()
		c.setState(StateIdle)
	}
}

// Poll performs at most one unit of streaming work at nowMs: one sample in
// binary mode, or one text line in simple mode.
func (c *Controller) Poll(nowMs uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state.Binary():
		if !c.samples.Tick(nowMs) {
			return
		}
		pkt, ok := c.enc.Accumulate(c.src.Next(), nowMs)
		if !ok {
			return
		}
		if c.send(pkt.Bytes()) {
			c.stats.PacketsSent++
		} else {
			c.stats.PacketsDropped++
		}

	case c.state == StateStreamingSimple:
		if !c.simple.Tick(nowMs) {
			return
		}
		line := fmt.Sprintf("Message %d: Received\n", c.session.Message)
		c.session.Message++
		if c.send([]byte(line)) {
			c.stats.MessagesSent++
		} else {
			c.stats.MessagesDropped++
		}
	}
}

// start begins (or re-arms) a session in target. Switching from the other
// streaming mode stops it first, within the same call.
func (c *Controller) start(target State, nowMs uint32) {
	if c.state.Streaming() && c.state != target {
		c.logf("session %s stopped by switch to %s", c.session.ID, target)
	}
	c.resetSession()

	c.samples.Reset(nowMs)
	c.simple.Reset(nowMs)
	c.session = Session{
		ID:        uuid.NewString(),
		Mode:      target,
		StartedMs: nowMs,
		Message:   1,
	}
	c.stats.Sessions++
	c.logf("session %s started at %dms", c.session.ID, nowMs)
	c.setState(target)
}

func (c *Controller) resetSession() {
	c.enc.Reset()
	c.session = Session{}
	c.failing = false
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	c.logf("state %s -> %s", c.state, s)
	c.state = s
}

// send hands b to the transport. A failure drops b; the host sees the gap.
// Only the first failure of a run is logged.
func (c *Controller) send(b []byte) bool {
	if err := c.out.Send(b); err != nil {
		if !c.failing {
			c.logf("send failed, dropping until transport recovers: %v", err)
			c.failing = true
		}
		return false
	}
	if c.failing {
		c.logf("send recovered")
		c.failing = false
	}
	return true
}

func (c *Controller) ignore(format string, v ...interface{}) {
	c.stats.CommandsIgnored++
	c.logf("ignored: "+format, v...)
}
