package eventdispatch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alfaashh/P2PChat/pkg/connection"
)

const testIdentity = "127.0.0.1:9000"

func lifecycle(identity string, dir connection.Direction) []connection.Event {
	states := []connection.ConnectionState{
		connection.StateConnecting,
		connection.StateUnauthenticated,
		connection.StateSecured,
		connection.StateClosed,
	}
	if dir == connection.Inbound {
		states = states[1:]
	}
	events := make([]connection.Event, len(states))
	for i, s := range states {
		events[i] = connection.Event{
			Identity:     identity,
			ConnectionID: "conn-" + identity,
			Direction:    dir,
			State:        s,
			Timestamp:    time.Now(),
		}
	}
	return events
}

func receive(t *testing.T, d *Dispatcher) ConnectionEvent {
	t.Helper()
	select {
	case evt, ok := <-d.Events():
		require.True(t, ok, "events channel closed")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return ConnectionEvent{}
	}
}

func TestDispatcher_PreservesLifecycleOrder(t *testing.T) {
	d := NewDispatcher(10)
	defer d.Close()

	for _, e := range lifecycle(testIdentity, connection.Outbound) {
		d.EmitEvent(e)
	}

	want := []connection.ConnectionState{
		connection.StateConnecting,
		connection.StateUnauthenticated,
		connection.StateSecured,
		connection.StateClosed,
	}
	for _, state := range want {
		evt := receive(t, d)
		assert.Equal(t, state, evt.State)
		assert.Equal(t, testIdentity, evt.Identity)
		assert.Equal(t, "conn-"+testIdentity, evt.ConnectionID)
		assert.Equal(t, connection.Outbound, evt.Direction)
		assert.False(t, evt.IsError())
	}
}

func TestDispatcher_FullBufferDropsWithoutBlocking(t *testing.T) {
	var dropped, emitted atomic.Int32
	var droppedStates []connection.ConnectionState
	d := NewDispatcher(2,
		WithDropHandler(func(e ConnectionEvent) {
			dropped.Add(1)
			droppedStates = append(droppedStates, e.State)
		}),
		WithEmitHandler(func(ConnectionEvent) { emitted.Add(1) }),
	)
	defer d.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, e := range lifecycle(testIdentity, connection.Inbound) {
			d.EmitEvent(e)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitEvent blocked on a full buffer")
	}

	assert.EqualValues(t, 2, emitted.Load())
	assert.EqualValues(t, 1, dropped.Load())
	assert.Equal(t, []connection.ConnectionState{connection.StateClosed}, droppedStates)

	assert.Equal(t, connection.StateUnauthenticated, receive(t, d).State)
	assert.Equal(t, connection.StateSecured, receive(t, d).State)
	select {
	case evt := <-d.Events():
		t.Fatalf("dropped event delivered: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcher_ZeroBufferDropsEverythingUnread(t *testing.T) {
	var dropped atomic.Int32
	d := NewDispatcher(-1, WithDropHandler(func(ConnectionEvent) { dropped.Add(1) }))
	defer d.Close()

	d.EmitEvent(connection.Event{Identity: testIdentity, State: connection.StateSecured})
	assert.EqualValues(t, 1, dropped.Load())
}

func TestDispatcher_DuplicateCloseEvent(t *testing.T) {
	d := NewDispatcher(10)
	defer d.Close()

	dupErr := fmt.Errorf("closing new connection: %w", connection.ErrDuplicateConnection)
	ts := time.Now()
	d.EmitEvent(connection.Event{
		Identity:  testIdentity,
		Direction: connection.Inbound,
		State:     connection.StateClosed,
		Error:     dupErr,
		Timestamp: ts,
	})
	d.EmitEvent(connection.Event{
		Identity: testIdentity,
		State:    connection.StateClosed,
		Error:    connection.ErrTransport,
	})

	evt := receive(t, d)
	assert.True(t, evt.IsError())
	assert.True(t, evt.IsDuplicate())
	assert.Same(t, dupErr, evt.Error)
	assert.True(t, evt.Timestamp.Equal(ts))

	evt = receive(t, d)
	assert.True(t, evt.IsError())
	assert.False(t, evt.IsDuplicate())
	assert.True(t, errors.Is(evt.Error, connection.ErrTransport))
}

func TestDispatcher_Close(t *testing.T) {
	d := NewDispatcher(10)
	d.EmitEvent(connection.Event{Identity: testIdentity, State: connection.StateSecured})

	d.Close()
	d.Close()
	assert.True(t, d.IsClosed())

	// Queued events are still readable, then the channel reports closed.
	assert.Equal(t, connection.StateSecured, receive(t, d).State)
	_, ok := <-d.Events()
	assert.False(t, ok)

	// Emitting after Close must not panic.
	d.EmitEvent(connection.Event{Identity: testIdentity, State: connection.StateClosed})
}

func TestDispatcher_ConcurrentConnections(t *testing.T) {
	const peers = 20
	d := NewDispatcher(peers * 4)
	defer d.Close()

	var wg sync.WaitGroup
	for p := 0; p < peers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for _, e := range lifecycle(fmt.Sprintf("10.0.0.%d:8888", p), connection.Outbound) {
				d.EmitEvent(e)
			}
		}(p)
	}
	wg.Wait()

	require.Len(t, d.Events(), peers*4)

	// Per-identity order survives interleaving across connections.
	last := make(map[string]connection.ConnectionState)
	for i := 0; i < peers*4; i++ {
		evt := receive(t, d)
		if prev, ok := last[evt.Identity]; ok {
			assert.Greater(t, int(evt.State), int(prev), "events for %s out of order", evt.Identity)
		}
		last[evt.Identity] = evt.State
	}
	for _, state := range last {
		assert.Equal(t, connection.StateClosed, state)
	}
}
