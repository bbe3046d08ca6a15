// Package connection owns the TCP side of a node: accepting and dialing
// sockets, running the handshake, reading frames, and tearing connections
// down while keeping the peer registry consistent.
package connection

import "fmt"

// ConnectionState represents the state of a peer connection.
type ConnectionState int

const (
	// StateConnecting indicates an outbound dial is in progress.
	StateConnecting ConnectionState = iota

	// StateUnauthenticated indicates the socket is open and our handshake
	// has been sent, but no valid handshake has been received yet.
	StateUnauthenticated

	// StateSecured indicates a session key exists for the connection.
	StateSecured

	// StateClosed indicates the socket is closed and the connection has
	// left the registry.
	StateClosed
)

// String returns a human-readable representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateUnauthenticated:
		return "ConnectedUnauthenticated"
	case StateSecured:
		return "ConnectedSecured"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// IsTerminal returns true for StateClosed.
func (s ConnectionState) IsTerminal() bool {
	return s == StateClosed
}

// IsActive returns true if the socket is open.
func (s ConnectionState) IsActive() bool {
	return s == StateUnauthenticated || s == StateSecured
}

// CanTransitionTo checks if a transition from the current state to
// the target state is valid.
func (s ConnectionState) CanTransitionTo(target ConnectionState) bool {
	switch s {
	case StateConnecting:
		return target == StateUnauthenticated || target == StateClosed
	case StateUnauthenticated:
		return target == StateSecured || target == StateClosed
	case StateSecured:
		return target == StateClosed
	default:
		return false
	}
}

// ValidateTransition returns an error if the transition is invalid.
func (s ConnectionState) ValidateTransition(target ConnectionState) error {
	if !s.CanTransitionTo(target) {
		return fmt.Errorf("invalid state transition: %s -> %s", s, target)
	}
	return nil
}

// Direction records which side opened the socket.
type Direction int

const (
	// Inbound connections were accepted by our listener.
	Inbound Direction = iota
	// Outbound connections were dialed by us.
	Outbound
)

// String returns "inbound" or "outbound".
func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}
