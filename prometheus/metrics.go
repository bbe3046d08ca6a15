// Package prometheus provides a Prometheus implementation of the p2pchat.Metrics interface.
//
// All metrics use the configured namespace prefix (default: "p2pchat").
//
// # Counters
//
//	p2pchat_connections_opened_total{direction="inbound|outbound"}
//	p2pchat_connections_closed_total{direction="inbound|outbound"}
//	p2pchat_connection_attempts_total{result="success|failure"}
//	p2pchat_handshake_results_total{result="success|version_mismatch|invalid_key|self|duplicate|ignored|stale|timeout|failure"}
//	p2pchat_duplicate_connections_total
//	p2pchat_messages_sent_total
//	p2pchat_messages_received_total
//	p2pchat_bytes_sent_total
//	p2pchat_bytes_received_total
//	p2pchat_frames_dropped_total{reason="malformed|rate_limited|no_session|replay|decrypt"}
//	p2pchat_encryption_errors_total
//	p2pchat_decryption_errors_total
//	p2pchat_key_derivations_total{result="success|failure"}
//	p2pchat_events_emitted_total{state="<state>"}
//	p2pchat_events_dropped_total
//	p2pchat_messages_dropped_total
//
// # Histograms
//
//	p2pchat_handshake_duration_seconds
//
// # Example Usage
//
//	metrics := prommetrics.NewMetrics("")
//	node, err := p2pchat.New(p2pchat.NewConfig("0.0.0.0", 8888,
//	    p2pchat.WithMetrics(metrics),
//	))
//	// ...
//	http.Handle("/metrics", promhttp.Handler())
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Alfaashh/P2PChat"
)

// DefaultNamespace is the default namespace for all metrics.
const DefaultNamespace = "p2pchat"

// Metrics implements the p2pchat.Metrics interface using Prometheus metrics.
//
// Metrics is safe for concurrent use.
type Metrics struct {
	// Connection metrics
	connectionsOpened    *prometheus.CounterVec
	connectionsClosed    *prometheus.CounterVec
	connectionAttempts   *prometheus.CounterVec
	handshakeDuration    prometheus.Histogram
	handshakeResults     *prometheus.CounterVec
	duplicateConnections prometheus.Counter

	// Message metrics
	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	framesDropped    *prometheus.CounterVec

	// Crypto metrics
	encryptionErrors prometheus.Counter
	decryptionErrors prometheus.Counter
	keyDerivations   *prometheus.CounterVec

	// Event metrics
	eventsEmitted   *prometheus.CounterVec
	eventsDropped   prometheus.Counter
	messagesDropped prometheus.Counter
}

var _ p2pchat.Metrics = (*Metrics)(nil)

// NewMetrics creates a collector registered with the default Prometheus
// registry. It panics if the metrics are already registered; use
// NewMetricsWithRegisterer with a private registry to avoid that.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a collector registered with registerer.
// If namespace is empty, DefaultNamespace is used. If registerer is nil,
// metrics are not registered.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}
	counterVec := func(name, help, label string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{label})
	}

	m := &Metrics{
		connectionsOpened:  counterVec("connections_opened_total", "Total number of connections opened", "direction"),
		connectionsClosed:  counterVec("connections_closed_total", "Total number of connections closed", "direction"),
		connectionAttempts: counterVec("connection_attempts_total", "Total number of outbound dials by result", "result"),
		handshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time from socket open to secured session",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		handshakeResults:     counterVec("handshake_results_total", "Total number of handshake frames by outcome", "result"),
		duplicateConnections: counter("duplicate_connections_total", "Total number of connections closed as duplicates"),

		messagesSent:     counter("messages_sent_total", "Total number of data frames sent"),
		messagesReceived: counter("messages_received_total", "Total number of data frames delivered"),
		bytesSent:        counter("bytes_sent_total", "Total bytes of data frames sent"),
		bytesReceived:    counter("bytes_received_total", "Total bytes of data frames delivered"),
		framesDropped:    counterVec("frames_dropped_total", "Total number of inbound frames dropped by reason", "reason"),

		encryptionErrors: counter("encryption_errors_total", "Total number of encryption errors"),
		decryptionErrors: counter("decryption_errors_total", "Total number of decryption errors"),
		keyDerivations:   counterVec("key_derivations_total", "Total number of session key derivations by result", "result"),

		eventsEmitted:   counterVec("events_emitted_total", "Total number of events emitted by state", "state"),
		eventsDropped:   counter("events_dropped_total", "Total number of events dropped due to buffer full"),
		messagesDropped: counter("messages_dropped_total", "Total number of messages dropped due to a full inbox"),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.connectionsOpened,
			m.connectionsClosed,
			m.connectionAttempts,
			m.handshakeDuration,
			m.handshakeResults,
			m.duplicateConnections,
			m.messagesSent,
			m.messagesReceived,
			m.bytesSent,
			m.bytesReceived,
			m.framesDropped,
			m.encryptionErrors,
			m.decryptionErrors,
			m.keyDerivations,
			m.eventsEmitted,
			m.eventsDropped,
			m.messagesDropped,
		)
	}

	return m
}

// ConnectionOpened implements p2pchat.Metrics.
func (m *Metrics) ConnectionOpened(direction string) {
	m.connectionsOpened.WithLabelValues(direction).Inc()
}

// ConnectionClosed implements p2pchat.Metrics.
func (m *Metrics) ConnectionClosed(direction string) {
	m.connectionsClosed.WithLabelValues(direction).Inc()
}

// ConnectionAttempt implements p2pchat.Metrics.
func (m *Metrics) ConnectionAttempt(result string) {
	m.connectionAttempts.WithLabelValues(result).Inc()
}

// HandshakeDuration implements p2pchat.Metrics.
func (m *Metrics) HandshakeDuration(seconds float64) {
	m.handshakeDuration.Observe(seconds)
}

// HandshakeResult implements p2pchat.Metrics.
func (m *Metrics) HandshakeResult(result string) {
	m.handshakeResults.WithLabelValues(result).Inc()
}

// DuplicateConnection implements p2pchat.Metrics.
func (m *Metrics) DuplicateConnection() {
	m.duplicateConnections.Inc()
}

// MessageSent implements p2pchat.Metrics.
func (m *Metrics) MessageSent(bytes int) {
	m.messagesSent.Inc()
	m.bytesSent.Add(float64(bytes))
}

// MessageReceived implements p2pchat.Metrics.
func (m *Metrics) MessageReceived(bytes int) {
	m.messagesReceived.Inc()
	m.bytesReceived.Add(float64(bytes))
}

// FrameDropped implements p2pchat.Metrics.
func (m *Metrics) FrameDropped(reason string) {
	m.framesDropped.WithLabelValues(reason).Inc()
}

// EncryptionError implements p2pchat.Metrics.
func (m *Metrics) EncryptionError() {
	m.encryptionErrors.Inc()
}

// DecryptionError implements p2pchat.Metrics.
func (m *Metrics) DecryptionError() {
	m.decryptionErrors.Inc()
}

// KeyDerivation implements p2pchat.Metrics.
func (m *Metrics) KeyDerivation(result string) {
	m.keyDerivations.WithLabelValues(result).Inc()
}

// EventEmitted implements p2pchat.Metrics.
func (m *Metrics) EventEmitted(state string) {
	m.eventsEmitted.WithLabelValues(state).Inc()
}

// EventDropped implements p2pchat.Metrics.
func (m *Metrics) EventDropped() {
	m.eventsDropped.Inc()
}

// MessageDropped implements p2pchat.Metrics.
func (m *Metrics) MessageDropped() {
	m.messagesDropped.Inc()
}
