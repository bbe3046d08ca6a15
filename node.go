package p2pchat

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Alfaashh/P2PChat/internal/eventdispatch"
	"github.com/Alfaashh/P2PChat/otel"
	"github.com/Alfaashh/P2PChat/pkg/connection"
	"github.com/Alfaashh/P2PChat/pkg/crypto"
)

// Payload is a decrypted message body: the JSON object a peer encrypted,
// typically {"message": ..., "display_name": ...}.
type Payload = crypto.Payload

// MessageHandler receives inbound messages. Calls are made one at a time
// from the node's delivery goroutine, in arrival order per connection.
// A handler may call back into the node, except for Stop, which deadlocks.
type MessageHandler func(identity string, payload Payload)

// Node is the main entry point for p2pchat. It listens for peers, dials
// peers, and sends and receives end-to-end encrypted messages.
//
// All public methods are thread-safe.
type Node struct {
	config  *Config
	keyPair *crypto.KeyPair

	// Core components
	connections   *connection.Manager
	eventDispatch *eventdispatch.Dispatcher
	inbox         *eventdispatch.Inbox
	stats         *statsBook

	handlerMu sync.RWMutex
	handler   MessageHandler

	// Lifecycle
	startMu   sync.Mutex
	started   bool
	stopped   bool
	startedAt time.Time
}

// New creates a new node with the given configuration.
// The node is not listening until Start() is called.
func New(cfg *Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.applyDefaults()

	var (
		kp  *crypto.KeyPair
		err error
	)
	if cfg.IdentityKey != nil {
		kp, err = crypto.KeyPairFromEd25519(cfg.IdentityKey)
	} else {
		kp, err = crypto.GenerateKeyPair()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create key pair: %w", err)
	}

	stats, err := newStatsBook(cfg.StatsRetention)
	if err != nil {
		kp.Close()
		return nil, fmt.Errorf("failed to create stats book: %w", err)
	}

	n := &Node{
		config:  cfg,
		keyPair: kp,
		stats:   stats,
	}

	n.eventDispatch = eventdispatch.NewDispatcher(cfg.EventBufferSize,
		eventdispatch.WithEmitHandler(func(e eventdispatch.ConnectionEvent) {
			cfg.Metrics.EventEmitted(e.State.String())
		}),
		eventdispatch.WithDropHandler(func(eventdispatch.ConnectionEvent) {
			cfg.Metrics.EventDropped()
		}),
	)
	n.inbox = eventdispatch.NewInbox(cfg.InboxSize, n.deliver, func(m eventdispatch.Message) {
		cfg.Metrics.MessageDropped()
		cfg.Logger.Warn("inbox full, dropping message", "peer", m.Identity)
	})

	connections, err := connection.NewManager(context.Background(), connection.Config{
		KeyPair:              kp,
		Suite:                cfg.CipherSuite,
		OmitVersion:          cfg.OmitVersion,
		MaxFrameSize:         cfg.MaxFrameSize,
		DialTimeout:          cfg.DialTimeout,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		FrameRateLimit:       cfg.FrameRateLimit,
		FrameBurst:           cfg.FrameBurst,
		ReplayWindow:         cfg.replayWindow(),
		BroadcastConcurrency: cfg.BroadcastConcurrency,
		OnMessage:            n.enqueue,
		Events:               n,
		Stats:                stats,
		Logger:               cfg.Logger,
		Metrics:              cfg.Metrics,
		Tracer:               otel.NewTracer(cfg.TracerProvider),
	})
	if err != nil {
		n.inbox.Close()
		n.eventDispatch.Close()
		kp.Close()
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	n.connections = connections

	return n, nil
}

// Start binds the listener on the configured host and port and begins
// accepting peers. A bind failure is returned and leaves the node unstarted.
func (n *Node) Start(ctx context.Context) error {
	n.startMu.Lock()
	defer n.startMu.Unlock()

	if n.stopped {
		return ErrNodeStopped
	}
	if n.started {
		return ErrNodeAlreadyStarted
	}

	addr := net.JoinHostPort(n.config.Host, strconv.Itoa(n.config.Port))
	bound, err := n.connections.Listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}

	n.started = true
	n.startedAt = time.Now()
	n.config.Logger.Info("node started",
		"addr", bound.String(),
		"public_key", n.PublicKey(),
		"cipher", n.config.CipherSuite.String(),
		"version", CurrentVersion().String())
	return nil
}

// Stop closes the listener and every connection, waits for all connection
// goroutines to exit and delivers messages already queued. It is safe to
// call Stop more than once; the node cannot be restarted.
//
// Stop waits for the message handler to return, so a handler must not call
// Stop directly. A handler that wants to stop the node runs go n.Stop().
func (n *Node) Stop() error {
	n.startMu.Lock()
	if n.stopped {
		n.startMu.Unlock()
		return nil
	}
	n.stopped = true
	n.started = false
	n.startMu.Unlock()

	// The message handler may still call back into the node while the
	// inbox drains, so startMu must not be held here.
	err := n.connections.Shutdown()
	n.inbox.Close()
	n.eventDispatch.Close()
	n.keyPair.Close()

	n.config.Logger.Info("node stopped")
	if err != nil {
		return fmt.Errorf("failed to stop node: %w", err)
	}
	return nil
}

func (n *Node) checkStarted() error {
	n.startMu.Lock()
	defer n.startMu.Unlock()
	switch {
	case n.stopped:
		return ErrNodeStopped
	case !n.started:
		return ErrNodeNotStarted
	}
	return nil
}

// PublicKey returns the node's X25519 public key, base64-encoded as it
// appears in handshakes.
func (n *Node) PublicKey() string {
	return crypto.EncodePublicKey(n.keyPair.PublicKey())
}

// LocalPublicKey returns the node's raw X25519 public key.
func (n *Node) LocalPublicKey() crypto.PublicKey {
	return n.keyPair.PublicKey()
}

// Addr returns the listener address, or nil before Start.
func (n *Node) Addr() net.Addr {
	return n.connections.Addr()
}

// Port returns the port the listener is bound to, or 0 before Start.
func (n *Node) Port() int {
	if tcp, ok := n.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Connect dials host:port and sends our handshake. It returns the peer
// identity as soon as the handshake is written; the session is secured
// when the peer's handshake arrives, which is reported on Events().
//
// Connecting to a peer that is already connected inbound can replace the
// working session: of two connections between the same pair of keys, both
// sides keep the one dialed by the node with the lower public key.
func (n *Node) Connect(ctx context.Context, host string, port int) (string, error) {
	if err := n.checkStarted(); err != nil {
		return "", err
	}
	if err := ValidateHost(host); err != nil {
		return "", err
	}
	if port == 0 {
		return "", fmt.Errorf("%w: 0", ErrInvalidPort)
	}
	if err := ValidatePort(port); err != nil {
		return "", err
	}
	return n.connections.Dial(ctx, host, port)
}

// Disconnect closes the connection registered under identity.
func (n *Node) Disconnect(identity string) error {
	return n.connections.Disconnect(identity)
}

// Send encrypts payload for one peer and writes it. payload must encode
// as a JSON object. It fails with ErrUnknownPeer when nothing is
// registered under identity and ErrNoSession when its handshake has not
// completed. A write failure closes the connection and is returned.
func (n *Node) Send(ctx context.Context, identity string, payload any) error {
	if err := n.checkStarted(); err != nil {
		return err
	}
	return n.connections.Send(ctx, identity, payload)
}

// Broadcast sends payload to every connected peer. Delivery to each peer
// is independent: peers without a session key and peers whose write fails
// are logged, disconnected and listed in the result's Failed map. The
// error is non-nil only if payload is not a JSON object or the node is
// not running.
func (n *Node) Broadcast(ctx context.Context, payload any) (*BroadcastResult, error) {
	if err := n.checkStarted(); err != nil {
		return nil, err
	}
	return n.connections.Broadcast(ctx, payload)
}

// SendMessage broadcasts a chat message in the {message, display_name}
// shape. An empty displayName is omitted.
func (n *Node) SendMessage(ctx context.Context, message, displayName string) (*BroadcastResult, error) {
	payload := map[string]any{"message": message}
	if displayName != "" {
		payload["display_name"] = displayName
	}
	return n.Broadcast(ctx, payload)
}

// OnMessage sets the handler for inbound messages, replacing any previous
// one. Messages arriving while no handler is set are discarded. The handler
// must not call Stop synchronously; see Stop.
func (n *Node) OnMessage(handler MessageHandler) {
	n.handlerMu.Lock()
	defer n.handlerMu.Unlock()
	n.handler = handler
}

// Events returns the channel for receiving connection events.
// Events are dropped when the channel is full. The channel is closed by Stop.
func (n *Node) Events() <-chan ConnectionEvent {
	return n.eventDispatch.Events()
}

// Peers returns a snapshot of registered connections sorted by identity.
func (n *Node) Peers() []PeerInfo {
	return n.connections.Peers()
}

// Peer returns the registered connection for identity.
func (n *Node) Peer(identity string) (PeerInfo, bool) {
	return n.connections.Peer(identity)
}

// IdentityForPublicKey returns the identity whose session is bound to the
// given encoded public key.
func (n *Node) IdentityForPublicKey(encoded string) (string, bool) {
	pub, err := crypto.DecodePublicKey(encoded)
	if err != nil {
		return "", false
	}
	return n.connections.IdentityForPublicKey(pub)
}

// enqueue is called from connection read loops.
func (n *Node) enqueue(identity string, payload crypto.Payload) {
	n.inbox.Push(eventdispatch.Message{
		Identity:   identity,
		Payload:    payload,
		ReceivedAt: time.Now(),
	})
}

// deliver runs on the inbox goroutine.
func (n *Node) deliver(m eventdispatch.Message) {
	n.handlerMu.RLock()
	handler := n.handler
	n.handlerMu.RUnlock()

	if handler == nil {
		n.config.Logger.Debug("no message handler, discarding message", "peer", m.Identity)
		return
	}
	handler(m.Identity, m.Payload)
}

// EmitEvent implements connection.EventEmitter. It updates per-identity
// statistics and forwards the event to Events().
func (n *Node) EmitEvent(e connection.Event) {
	switch e.State {
	case connection.StateSecured:
		n.stats.tracker(e.Identity).RecordConnectionStart(e.Direction == connection.Outbound)
	case connection.StateClosed:
		t := n.stats.tracker(e.Identity)
		if !t.RecordConnectionEnd() && e.Error != nil {
			t.RecordFailure()
		}
	}
	n.eventDispatch.EmitEvent(e)
}
