package connection

import (
	"fmt"
	"time"

	"github.com/Alfaashh/P2PChat/otel"
	"github.com/Alfaashh/P2PChat/pkg/crypto"
	"github.com/Alfaashh/P2PChat/pkg/protocol"
)

// DefaultDialTimeout bounds a dial whose context carries no deadline.
const DefaultDialTimeout = 30 * time.Second

// Logger is the logging contract the manager needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Metrics receives connection-level measurements.
type Metrics interface {
	ConnectionOpened(direction string)
	ConnectionClosed(direction string)
	ConnectionAttempt(result string)
	HandshakeResult(result string)
	HandshakeDuration(seconds float64)
	KeyDerivation(result string)
	DuplicateConnection()
	MessageSent(bytes int)
	MessageReceived(bytes int)
	EncryptionError()
	DecryptionError()
	FrameDropped(reason string)
}

// EventEmitter receives connection state changes.
type EventEmitter interface {
	EmitEvent(event Event)
}

// Event represents a connection state change.
type Event struct {
	Identity     string
	ConnectionID string
	Direction    Direction
	State        ConnectionState
	Error        error
	Timestamp    time.Time
}

// StatsRecorder receives per-identity traffic counts in bytes on the wire.
type StatsRecorder interface {
	RecordMessageSent(identity string, bytes int)
	RecordMessageReceived(identity string, bytes int)
}

// MessageHandler receives every decrypted inbound payload. It is called
// from the connection's read goroutine and must not block for long.
type MessageHandler func(identity string, payload crypto.Payload)

// Config contains configuration for the connection Manager.
type Config struct {
	// KeyPair is the node identity. Required.
	KeyPair *crypto.KeyPair

	// Suite selects the AEAD for data frames.
	Suite crypto.Suite

	// Version is announced in handshakes unless OmitVersion is set.
	Version     protocol.Version
	OmitVersion bool

	// MaxFrameSize bounds one inbound line.
	MaxFrameSize int

	// DialTimeout applies when the dial context has no deadline.
	DialTimeout time.Duration

	// HandshakeTimeout closes connections that stay unauthenticated this
	// long. Zero disables it.
	HandshakeTimeout time.Duration

	// FrameRateLimit is the sustained inbound frames per second allowed per
	// connection, FrameBurst the bucket size. Zero disables limiting.
	FrameRateLimit float64
	FrameBurst     int

	// ReplayWindow is how many data-frame nonces each connection remembers.
	// Zero disables replay filtering.
	ReplayWindow int

	// BroadcastConcurrency caps parallel writes during Broadcast. Zero
	// means one goroutine per peer.
	BroadcastConcurrency int

	OnMessage MessageHandler
	Events    EventEmitter
	Stats     StatsRecorder
	Logger    Logger
	Metrics   Metrics
	Tracer    *otel.Tracer
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.KeyPair == nil {
		return fmt.Errorf("key pair is required")
	}
	if c.MaxFrameSize < 0 {
		return fmt.Errorf("max frame size must be non-negative")
	}
	if c.HandshakeTimeout < 0 || c.DialTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if c.FrameRateLimit < 0 || c.FrameBurst < 0 {
		return fmt.Errorf("frame rate limit must be non-negative")
	}
	if c.ReplayWindow < 0 || c.BroadcastConcurrency < 0 {
		return fmt.Errorf("replay window and broadcast concurrency must be non-negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Version == (protocol.Version{}) {
		c.Version = protocol.CurrentVersion()
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = nopMetrics{}
	}
	if c.Tracer == nil {
		c.Tracer = otel.NewTracer(nil)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened(string)   {}
func (nopMetrics) ConnectionClosed(string)   {}
func (nopMetrics) ConnectionAttempt(string)  {}
func (nopMetrics) HandshakeResult(string)    {}
func (nopMetrics) HandshakeDuration(float64) {}
func (nopMetrics) KeyDerivation(string)      {}
func (nopMetrics) DuplicateConnection()      {}
func (nopMetrics) MessageSent(int)           {}
func (nopMetrics) MessageReceived(int)       {}
func (nopMetrics) EncryptionError()          {}
func (nopMetrics) DecryptionError()          {}
func (nopMetrics) FrameDropped(string)       {}
