// Package eventdispatch delivers connection events and inbound messages
// to the application without letting a slow consumer stall a read loop.
package eventdispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/Alfaashh/P2PChat/pkg/connection"
)

// ConnectionEvent represents a connection state change event.
// This is the same as the public p2pchat.ConnectionEvent type.
type ConnectionEvent struct {
	Identity     string
	ConnectionID string
	Direction    connection.Direction
	State        connection.ConnectionState
	Error        error
	Timestamp    time.Time
}

// IsError returns true if this event represents an error condition.
func (e ConnectionEvent) IsError() bool {
	return e.Error != nil
}

// IsDuplicate reports whether the connection was closed because its
// public key was already bound to another connection.
func (e ConnectionEvent) IsDuplicate() bool {
	return errors.Is(e.Error, connection.ErrDuplicateConnection)
}

// Dispatcher manages event emission to a buffered channel.
// It implements non-blocking sends to prevent slow consumers from
// blocking connection operations.
type Dispatcher struct {
	events chan ConnectionEvent
	onDrop func(ConnectionEvent)
	onEmit func(ConnectionEvent)
	mu     sync.Mutex
	closed bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDropHandler is called for every event discarded because the
// buffer was full.
func WithDropHandler(fn func(ConnectionEvent)) Option {
	return func(d *Dispatcher) { d.onDrop = fn }
}

// WithEmitHandler is called for every event that was queued.
func WithEmitHandler(fn func(ConnectionEvent)) Option {
	return func(d *Dispatcher) { d.onEmit = fn }
}

// NewDispatcher creates a new event dispatcher with the given buffer size.
func NewDispatcher(bufferSize int, opts ...Option) *Dispatcher {
	if bufferSize < 0 {
		bufferSize = 0
	}
	d := &Dispatcher{
		events: make(chan ConnectionEvent, bufferSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EmitEvent emits a connection event.
// This is a non-blocking operation - if the channel is full, the event is dropped.
func (d *Dispatcher) EmitEvent(event connection.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	evt := ConnectionEvent{
		Identity:     event.Identity,
		ConnectionID: event.ConnectionID,
		Direction:    event.Direction,
		State:        event.State,
		Error:        event.Error,
		Timestamp:    event.Timestamp,
	}

	select {
	case d.events <- evt:
		if d.onEmit != nil {
			d.onEmit(evt)
		}
	default:
		if d.onDrop != nil {
			d.onDrop(evt)
		}
	}
}

// Events returns the events channel for the application to consume.
// The channel is closed when the dispatcher is closed.
func (d *Dispatcher) Events() <-chan ConnectionEvent {
	return d.events
}

// Close closes the events channel.
// It is safe to call Close multiple times.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		d.closed = true
		close(d.events)
	}
}

// IsClosed returns true if the dispatcher has been closed.
func (d *Dispatcher) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
