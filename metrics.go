package p2pchat

// Metrics defines the metrics collection interface for the node.
// It is designed to be compatible with Prometheus and other metrics systems;
// the prometheus package provides an implementation.
//
// Implementations must be safe for concurrent use.
//
// Metric naming convention:
//   - Counters: <name>_total (e.g., connections_opened_total)
//   - Histograms: <name>_seconds or <name>_bytes (e.g., handshake_duration_seconds)
//   - Gauges: current_<name> (e.g., current_connections)
type Metrics interface {
	// Connection metrics

	// ConnectionOpened increments when a socket is registered.
	// Labels: direction (inbound, outbound)
	ConnectionOpened(direction string)

	// ConnectionClosed increments when a registered socket is closed.
	// Labels: direction (inbound, outbound)
	ConnectionClosed(direction string)

	// ConnectionAttempt records an outbound dial result.
	// Labels: result (success, failure)
	ConnectionAttempt(result string)

	// HandshakeDuration records the time from registration to a secured session.
	HandshakeDuration(seconds float64)

	// HandshakeResult records the result of processing a handshake frame.
	// Labels: result (success, duplicate, invalid_key, version_mismatch,
	// self, timeout, ignored, stale)
	HandshakeResult(result string)

	// DuplicateConnection increments when a duplicate connection is closed.
	DuplicateConnection()

	// Message metrics

	// MessageSent records a data frame written, in bytes on the wire.
	MessageSent(bytes int)

	// MessageReceived records a data frame decrypted, in bytes on the wire.
	MessageReceived(bytes int)

	// FrameDropped records an inbound frame discarded without delivery.
	// Labels: reason (malformed, rate_limited, no_session, replay, decrypt)
	FrameDropped(reason string)

	// Crypto metrics

	// EncryptionError records an encryption failure.
	EncryptionError()

	// DecryptionError records a decryption failure.
	DecryptionError()

	// KeyDerivation records a session key derivation.
	// Labels: result (success, failure)
	KeyDerivation(result string)

	// Event metrics

	// EventEmitted records an event being emitted.
	// Labels: state (the connection state)
	EventEmitted(state string)

	// EventDropped records an event being dropped due to buffer full.
	EventDropped()

	// MessageDropped records an inbound message dropped because the
	// delivery queue was full.
	MessageDropped()
}

// NopMetrics is a no-op metrics implementation that discards all metrics.
// It is the default when no metrics collector is configured.
type NopMetrics struct{}

// Ensure NopMetrics implements Metrics.
var _ Metrics = NopMetrics{}

// ConnectionOpened implements Metrics.ConnectionOpened (no-op).
func (NopMetrics) ConnectionOpened(direction string) {}

// ConnectionClosed implements Metrics.ConnectionClosed (no-op).
func (NopMetrics) ConnectionClosed(direction string) {}

// ConnectionAttempt implements Metrics.ConnectionAttempt (no-op).
func (NopMetrics) ConnectionAttempt(result string) {}

// HandshakeDuration implements Metrics.HandshakeDuration (no-op).
func (NopMetrics) HandshakeDuration(seconds float64) {}

// HandshakeResult implements Metrics.HandshakeResult (no-op).
func (NopMetrics) HandshakeResult(result string) {}

// DuplicateConnection implements Metrics.DuplicateConnection (no-op).
func (NopMetrics) DuplicateConnection() {}

// MessageSent implements Metrics.MessageSent (no-op).
func (NopMetrics) MessageSent(bytes int) {}

// MessageReceived implements Metrics.MessageReceived (no-op).
func (NopMetrics) MessageReceived(bytes int) {}

// FrameDropped implements Metrics.FrameDropped (no-op).
func (NopMetrics) FrameDropped(reason string) {}

// EncryptionError implements Metrics.EncryptionError (no-op).
func (NopMetrics) EncryptionError() {}

// DecryptionError implements Metrics.DecryptionError (no-op).
func (NopMetrics) DecryptionError() {}

// KeyDerivation implements Metrics.KeyDerivation (no-op).
func (NopMetrics) KeyDerivation(result string) {}

// EventEmitted implements Metrics.EventEmitted (no-op).
func (NopMetrics) EventEmitted(state string) {}

// EventDropped implements Metrics.EventDropped (no-op).
func (NopMetrics) EventDropped() {}

// MessageDropped implements Metrics.MessageDropped (no-op).
func (NopMetrics) MessageDropped() {}
