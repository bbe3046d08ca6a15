package p2pchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/Alfaashh/P2PChat/pkg/connection"
	"github.com/Alfaashh/P2PChat/pkg/crypto"
	"github.com/Alfaashh/P2PChat/pkg/protocol"
)

// ErrorCode identifies the type of error for programmatic handling.
type ErrorCode int

const (
	// ErrCodeUnknown indicates an unknown or unclassified error.
	ErrCodeUnknown ErrorCode = iota

	// ErrCodeTransport indicates a socket read or write failed.
	ErrCodeTransport

	// ErrCodeProtocol indicates a malformed frame or invalid handshake.
	ErrCodeProtocol

	// ErrCodeAuthentication indicates a ciphertext failed verification.
	ErrCodeAuthentication

	// ErrCodeDecode indicates a decrypted plaintext was not a JSON object.
	ErrCodeDecode

	// ErrCodeUnknownPeer indicates no connection exists for an identity.
	ErrCodeUnknownPeer

	// ErrCodeNoSession indicates the peer has not completed its handshake.
	ErrCodeNoSession

	// ErrCodeConnectionFailed indicates an outbound dial failed.
	ErrCodeConnectionFailed

	// ErrCodeHandshakeTimeout indicates the handshake did not complete in time.
	ErrCodeHandshakeTimeout

	// ErrCodeDuplicateConnection indicates the peer's key was already connected.
	ErrCodeDuplicateConnection

	// ErrCodeContextCanceled indicates the operation was cancelled via context.
	ErrCodeContextCanceled

	// ErrCodeInvalidConfig indicates the configuration is invalid.
	ErrCodeInvalidConfig

	// ErrCodeNodeNotStarted indicates the node has not been started.
	ErrCodeNodeNotStarted

	// ErrCodeNodeAlreadyStarted indicates the node is already running.
	ErrCodeNodeAlreadyStarted

	// ErrCodeVersionMismatch indicates incompatible protocol versions.
	ErrCodeVersionMismatch
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeUnknown:
		return "Unknown"
	case ErrCodeTransport:
		return "Transport"
	case ErrCodeProtocol:
		return "Protocol"
	case ErrCodeAuthentication:
		return "Authentication"
	case ErrCodeDecode:
		return "Decode"
	case ErrCodeUnknownPeer:
		return "UnknownPeer"
	case ErrCodeNoSession:
		return "NoSession"
	case ErrCodeConnectionFailed:
		return "ConnectionFailed"
	case ErrCodeHandshakeTimeout:
		return "HandshakeTimeout"
	case ErrCodeDuplicateConnection:
		return "DuplicateConnection"
	case ErrCodeContextCanceled:
		return "ContextCanceled"
	case ErrCodeInvalidConfig:
		return "InvalidConfig"
	case ErrCodeNodeNotStarted:
		return "NodeNotStarted"
	case ErrCodeNodeAlreadyStarted:
		return "NodeAlreadyStarted"
	case ErrCodeVersionMismatch:
		return "VersionMismatch"
	default:
		return fmt.Sprintf("ErrorCode(%d)", c)
	}
}

// Error represents a p2pchat error with rich context.
// It provides structured information for programmatic error handling.
type Error struct {
	// Code identifies the type of error.
	Code ErrorCode

	// Message is a human-readable description of the error.
	Message string

	// Peer is the identity associated with the error, if any.
	Peer string

	// Cause is the underlying error, if any.
	Cause error

	// Retriable indicates whether the operation can be retried.
	Retriable bool
}

// Error returns a human-readable error message.
func (e *Error) Error() string {
	msg := e.Message
	if e.Peer != "" {
		msg = fmt.Sprintf("%s (peer %s)", msg, e.Peer)
	}
	if e.Cause != nil {
		return fmt.Sprintf("p2pchat: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("p2pchat: %s", msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Two p2pchat errors are considered equal if they have the same error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsRetriable returns true if the error indicates a retriable operation.
func IsRetriable(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Retriable
	}
	return false
}

// IsPermanent returns true if the error indicates a permanent failure.
// Permanent failures should not be retried.
func IsPermanent(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		switch pErr.Code {
		case ErrCodeInvalidConfig, ErrCodeVersionMismatch, ErrCodeDuplicateConnection:
			return true
		}
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error with the given code, message, and cause.
func NewErrorWithCause(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retriable: code == ErrCodeConnectionFailed || code == ErrCodeTransport,
	}
}

// NewPeerError creates a new Error associated with a specific peer identity.
func NewPeerError(code ErrorCode, message string, peer string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Peer:    peer,
	}
}

// CodeOf maps an error to its ErrorCode.
func CodeOf(err error) ErrorCode {
	var pErr *Error
	switch {
	case err == nil:
		return ErrCodeUnknown
	case errors.As(err, &pErr):
		return pErr.Code
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeContextCanceled
	case errors.Is(err, ErrUnknownPeer):
		return ErrCodeUnknownPeer
	case errors.Is(err, ErrNoSession):
		return ErrCodeNoSession
	case errors.Is(err, ErrConnection):
		return ErrCodeConnectionFailed
	case errors.Is(err, ErrHandshakeTimeout):
		return ErrCodeHandshakeTimeout
	case errors.Is(err, ErrDuplicateConnection):
		return ErrCodeDuplicateConnection
	case errors.Is(err, ErrVersionMismatch):
		return ErrCodeVersionMismatch
	case errors.Is(err, ErrAuthentication):
		return ErrCodeAuthentication
	case errors.Is(err, ErrDecode):
		return ErrCodeDecode
	case errors.Is(err, ErrProtocol), errors.Is(err, protocol.ErrMalformedFrame):
		return ErrCodeProtocol
	case errors.Is(err, ErrTransport):
		return ErrCodeTransport
	case errors.Is(err, ErrInvalidConfig):
		return ErrCodeInvalidConfig
	case errors.Is(err, ErrNodeNotStarted):
		return ErrCodeNodeNotStarted
	case errors.Is(err, ErrNodeAlreadyStarted):
		return ErrCodeNodeAlreadyStarted
	default:
		return ErrCodeUnknown
	}
}

// Sentinel errors for peer and connection operations.
var (
	// ErrTransport indicates a socket read or write failed.
	ErrTransport = connection.ErrTransport

	// ErrProtocol indicates a malformed frame or an invalid handshake.
	ErrProtocol = connection.ErrProtocol

	// ErrUnknownPeer indicates no connection exists for the identity.
	ErrUnknownPeer = connection.ErrUnknownPeer

	// ErrNoSession indicates a connection exists but has no session key yet.
	ErrNoSession = connection.ErrNoSession

	// ErrConnection indicates an outbound dial failed.
	ErrConnection = connection.ErrConnection

	// ErrDuplicateConnection indicates a handshake presented a public key
	// already bound to another live connection.
	ErrDuplicateConnection = connection.ErrDuplicateConnection

	// ErrSelfConnection indicates the remote presented our own public key.
	ErrSelfConnection = connection.ErrSelfConnection

	// ErrHandshakeTimeout indicates the handshake did not complete in time.
	ErrHandshakeTimeout = connection.ErrHandshakeTimeout
)

// Sentinel errors for cryptographic operations.
var (
	// ErrAuthentication indicates a ciphertext failed AEAD verification,
	// was encrypted under another key, or was not valid base64.
	ErrAuthentication = crypto.ErrAuthentication

	// ErrDecode indicates a decrypted plaintext was not a JSON object.
	ErrDecode = crypto.ErrDecode

	// ErrInvalidPublicKey indicates the provided public key is invalid.
	ErrInvalidPublicKey = crypto.ErrInvalidPublicKey

	// ErrInvalidPayload indicates an outbound payload does not encode as a
	// JSON object.
	ErrInvalidPayload = crypto.ErrInvalidPayload
)

// Sentinel errors for configuration.
var (
	// ErrInvalidConfig indicates the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidPort indicates a port outside 0-65535.
	ErrInvalidPort = errors.New("port must be between 0 and 65535")

	// ErrInvalidAddress indicates a peer address that is not host:port.
	ErrInvalidAddress = errors.New("invalid peer address")
)

// Sentinel errors for protocol versioning.
var (
	// ErrVersionMismatch indicates incompatible protocol versions.
	ErrVersionMismatch = protocol.ErrVersionMismatch
)

// Sentinel errors for node operations.
var (
	// ErrNodeNotStarted indicates the node has not been started.
	ErrNodeNotStarted = errors.New("node not started")

	// ErrNodeAlreadyStarted indicates the node is already running.
	ErrNodeAlreadyStarted = errors.New("node already started")

	// ErrNodeStopped indicates the node has been stopped.
	ErrNodeStopped = errors.New("node stopped")
)
