package p2pchat

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Alfaashh/P2PChat/pkg/crypto"
	"github.com/Alfaashh/P2PChat/pkg/protocol"
)

// Default configuration values.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8888
	DefaultMaxFrameSize    = protocol.DefaultMaxFrameSize
	DefaultDialTimeout     = 30 * time.Second
	DefaultReplayWindow    = 1024
	DefaultEventBufferSize = 100
	DefaultInboxSize       = 1000
	DefaultStatsRetention  = 1024
)

// Config holds the configuration for a node.
type Config struct {
	// Host is the interface the listener binds to.
	Host string

	// Port is the TCP port the listener binds to. Zero picks a free port.
	Port int

	// IdentityKey optionally fixes the node identity across restarts. The
	// X25519 key pair is derived from it. A fresh key pair is generated
	// per process when it is nil.
	IdentityKey ed25519.PrivateKey

	// CipherSuite is the AEAD used for data frames. Every peer must use
	// the same suite; the default interoperates with the reference nodes.
	CipherSuite crypto.Suite

	// MaxFrameSize bounds one inbound line in bytes.
	MaxFrameSize int

	// DialTimeout bounds Connect when its context has no deadline.
	DialTimeout time.Duration

	// HandshakeTimeout closes connections that do not present a valid
	// handshake in time. Zero disables the timeout.
	HandshakeTimeout time.Duration

	// FrameRateLimit caps inbound frames per second per connection with a
	// bucket of FrameBurst. Excess frames are dropped. Zero disables it.
	FrameRateLimit float64
	FrameBurst     int

	// ReplayWindow is how many data-frame nonces each connection remembers
	// to reject replays. Negative disables replay filtering.
	ReplayWindow int

	// BroadcastConcurrency caps parallel writes during Broadcast. Zero
	// means one goroutine per peer.
	BroadcastConcurrency int

	// OmitVersion leaves the version field out of handshakes, for peers
	// that predate it.
	OmitVersion bool

	// EventBufferSize is the buffer size for the connection events channel.
	EventBufferSize int

	// InboxSize is the number of inbound messages queued for the message
	// handler before new ones are dropped.
	InboxSize int

	// StatsRetention is how many identities keep statistics. The least
	// recently active are forgotten first.
	StatsRetention int

	// Logger is the logger for the node. If nil, a NopLogger is used.
	// The logger must be safe for concurrent use.
	Logger Logger

	// Metrics is the metrics collector for the node. If nil, a NopMetrics is used.
	// The metrics collector must be safe for concurrent use.
	Metrics Metrics

	// TracerProvider creates the node's spans. If nil, tracing is a no-op.
	TracerProvider trace.TracerProvider
}

// Validate checks that the configuration is valid and returns an error
// describing any problems found.
func (c *Config) Validate() error {
	if err := ValidatePort(c.Port); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.IdentityKey != nil && len(c.IdentityKey) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: identity key must be %d bytes, got %d",
			ErrInvalidConfig, ed25519.PrivateKeySize, len(c.IdentityKey))
	}
	if c.CipherSuite != crypto.SuiteAES256GCM && c.CipherSuite != crypto.SuiteChaCha20Poly1305 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, crypto.ErrUnsupportedSuite)
	}
	if c.MaxFrameSize < 0 {
		return fmt.Errorf("%w: max frame size cannot be negative", ErrInvalidConfig)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("%w: dial timeout cannot be negative", ErrInvalidConfig)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: handshake timeout cannot be negative", ErrInvalidConfig)
	}
	if c.FrameRateLimit < 0 || c.FrameBurst < 0 {
		return fmt.Errorf("%w: frame rate limit cannot be negative", ErrInvalidConfig)
	}
	if c.BroadcastConcurrency < 0 {
		return fmt.Errorf("%w: broadcast concurrency cannot be negative", ErrInvalidConfig)
	}
	if c.EventBufferSize < 0 {
		return fmt.Errorf("%w: event buffer size cannot be negative", ErrInvalidConfig)
	}
	if c.InboxSize < 0 {
		return fmt.Errorf("%w: inbox size cannot be negative", ErrInvalidConfig)
	}
	if c.StatsRetention < 0 {
		return fmt.Errorf("%w: stats retention cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults sets default values for any unset optional fields.
func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReplayWindow == 0 {
		c.ReplayWindow = DefaultReplayWindow
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = DefaultEventBufferSize
	}
	if c.InboxSize == 0 {
		c.InboxSize = DefaultInboxSize
	}
	if c.StatsRetention == 0 {
		c.StatsRetention = DefaultStatsRetention
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
}

// replayWindow is the window handed to the connection layer, where zero
// means disabled.
func (c *Config) replayWindow() int {
	if c.ReplayWindow < 0 {
		return 0
	}
	return c.ReplayWindow
}

// ConfigOption is a functional option for configuring a Node.
type ConfigOption func(*Config)

// WithIdentityKey derives the node key pair from an Ed25519 private key.
func WithIdentityKey(key ed25519.PrivateKey) ConfigOption {
	return func(c *Config) {
		c.IdentityKey = key
	}
}

// WithCipherSuite selects the AEAD for data frames.
func WithCipherSuite(suite crypto.Suite) ConfigOption {
	return func(c *Config) {
		c.CipherSuite = suite
	}
}

// WithMaxFrameSize sets the maximum inbound line length in bytes.
func WithMaxFrameSize(size int) ConfigOption {
	return func(c *Config) {
		c.MaxFrameSize = size
	}
}

// WithDialTimeout sets the dial timeout used when Connect's context has
// no deadline.
func WithDialTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.DialTimeout = d
	}
}

// WithHandshakeTimeout closes connections that stay unauthenticated for d.
func WithHandshakeTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.HandshakeTimeout = d
	}
}

// WithFrameRateLimit limits inbound frames per connection to perSecond
// with the given burst.
func WithFrameRateLimit(perSecond float64, burst int) ConfigOption {
	return func(c *Config) {
		c.FrameRateLimit = perSecond
		c.FrameBurst = burst
	}
}

// WithReplayWindow sets how many nonces each connection remembers.
// A negative value disables replay filtering.
func WithReplayWindow(n int) ConfigOption {
	return func(c *Config) {
		c.ReplayWindow = n
	}
}

// WithBroadcastConcurrency caps parallel writes during Broadcast.
func WithBroadcastConcurrency(n int) ConfigOption {
	return func(c *Config) {
		c.BroadcastConcurrency = n
	}
}

// WithEventBufferSize sets the buffer size for the events channel.
func WithEventBufferSize(size int) ConfigOption {
	return func(c *Config) {
		c.EventBufferSize = size
	}
}

// WithInboxSize sets the inbound message queue size.
func WithInboxSize(size int) ConfigOption {
	return func(c *Config) {
		c.InboxSize = size
	}
}

// WithLogger sets the logger for the node.
// The logger must be safe for concurrent use.
func WithLogger(l Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics sets the metrics collector for the node.
// The metrics collector must be safe for concurrent use.
func WithMetrics(m Metrics) ConfigOption {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithTracer sets the OpenTelemetry tracer provider for the node.
func WithTracer(tp trace.TracerProvider) ConfigOption {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

// NewConfig creates a new Config listening on host:port and applies any
// provided options. It applies defaults for unset optional fields but
// does not validate the configuration.
func NewConfig(host string, port int, opts ...ConfigOption) *Config {
	c := &Config{
		Host: host,
		Port: port,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.applyDefaults()
	return c
}
