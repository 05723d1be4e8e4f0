package transport

import (
	"bufio"
	"context"
	"strings"
	"sync"

	"github.com/banshee-data/heartstream/internal/monitoring"
)

// SerialTransport carries the host link over a serial port. Commands
// arrive as newline-terminated lines; frames and text lines are written
// as-is. The port counts as connected from the start of Monitor until the
// port reports EOF or a read error.
type SerialTransport[T SerialPorter] struct {
	port   T
	events chan Event

	writeMu   sync.Mutex
	closingMu sync.Mutex
	closing   bool
	connected bool
}

// NewSerialTransport wraps an open port.
func NewSerialTransport[T SerialPorter](port T) *SerialTransport[T] {
	return &SerialTransport[T]{
		port:   port,
		events: make(chan Event, EventBuffer),
	}
}

func (s *SerialTransport[T]) Events() <-chan Event { return s.events }

// Send writes b to the port.
func (s *SerialTransport[T]) Send(b []byte) error {
	s.closingMu.Lock()
	closing, connected := s.closing, s.connected
	s.closingMu.Unlock()
	if closing {
		return ErrClosed
	}
	if !connected {
		return ErrNoSubscriber
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := s.port.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads command lines from the port until ctx is done or the port
// fails, translating them into events. It closes the event channel on
// return.
func (s *SerialTransport[T]) Monitor(ctx context.Context) error {
	defer close(s.events)

	scan := bufio.NewScanner(s.port)
	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs in its own goroutine so the outer loop
	// can still observe context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	s.setConnected(true)
	if !s.emit(ctx, Event{Kind: EventConnect}) {
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			monitoring.Logf("serial: read failed: %v", err)
			s.lost(ctx)
			return err

		case line, ok := <-lineChan:
			if !ok {
				s.lost(ctx)
				return nil
			}
			if s.isClosing() {
				return nil
			}
			line = strings.TrimRight(line, "\r")
			if !s.emit(ctx, Event{Kind: EventCommand, Command: line}) {
				return ctx.Err()
			}
		}
	}
}

// Close stops sending and closes the port, which also ends Monitor.
func (s *SerialTransport[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.connected = false
	s.closingMu.Unlock()
	return s.port.Close()
}

func (s *SerialTransport[T]) lost(ctx context.Context) {
	s.setConnected(false)
	s.emit(ctx, Event{Kind: EventDisconnect})
}

func (s *SerialTransport[T]) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *SerialTransport[T]) setConnected(v bool) {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	s.connected = v
}

func (s *SerialTransport[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}
