package connection

import "errors"

var (
	// ErrUnknownPeer indicates no connection is registered for the identity.
	ErrUnknownPeer = errors.New("unknown peer")

	// ErrNoSession indicates the peer has not completed its handshake.
	ErrNoSession = errors.New("no session key established")

	// ErrConnection indicates an outbound dial failed.
	ErrConnection = errors.New("connection failed")

	// ErrTransport indicates a socket read or write failed.
	ErrTransport = errors.New("transport error")

	// ErrProtocol indicates a frame could not be parsed or a handshake was invalid.
	ErrProtocol = errors.New("protocol error")

	// ErrDuplicateConnection indicates a handshake presented a public key
	// already bound to another live connection.
	ErrDuplicateConnection = errors.New("duplicate connection")

	// ErrSelfConnection indicates the remote presented our own public key.
	ErrSelfConnection = errors.New("connected to self")

	// ErrHandshakeTimeout indicates no valid handshake arrived in time.
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrClosed indicates the manager has been shut down.
	ErrClosed = errors.New("connection manager closed")
)
