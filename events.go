package p2pchat

import (
	"github.com/Alfaashh/P2PChat/internal/eventdispatch"
	"github.com/Alfaashh/P2PChat/pkg/connection"
)

// ConnectionState represents the state of a peer connection.
// This is re-exported from the connection package for public API.
type ConnectionState = connection.ConnectionState

const (
	// StateConnecting indicates an outbound dial is in progress.
	StateConnecting = connection.StateConnecting

	// StateUnauthenticated indicates the socket is open and registered but
	// no valid handshake has arrived yet.
	StateUnauthenticated = connection.StateUnauthenticated

	// StateSecured indicates a session key has been derived and data
	// frames can flow.
	StateSecured = connection.StateSecured

	// StateClosed indicates the socket was closed and removed from the
	// registry.
	StateClosed = connection.StateClosed
)

// Direction records which side opened a connection.
type Direction = connection.Direction

const (
	// Inbound connections were accepted by our listener.
	Inbound = connection.Inbound

	// Outbound connections were dialed by us.
	Outbound = connection.Outbound
)

// ConnectionEvent represents a connection state change event.
// These events are emitted by the node to notify the application
// of connection lifecycle changes. A Closed event whose Error matches
// ErrDuplicateConnection reports a duplicate that was torn down.
type ConnectionEvent = eventdispatch.ConnectionEvent

// PeerInfo describes one registered connection.
type PeerInfo = connection.PeerInfo

// BroadcastResult reports per-peer outcomes of Broadcast.
type BroadcastResult = connection.BroadcastResult
