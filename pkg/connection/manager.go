package connection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Alfaashh/P2PChat/pkg/crypto"
	"github.com/Alfaashh/P2PChat/pkg/protocol"
	"github.com/Alfaashh/P2PChat/pkg/registry"
)

// PeerInfo describes a registered connection.
type PeerInfo struct {
	Identity     string
	ConnectionID string
	Direction    Direction
	State        ConnectionState
	Secured      bool
	PublicKey    crypto.PublicKey
	RemoteAddr   string
	ConnectedAt  time.Time
}

// BroadcastResult reports the outcome of a Broadcast per peer.
type BroadcastResult struct {
	// Delivered lists identities whose frame was written, sorted.
	Delivered []string

	// Failed maps identities that were torn down to the reason.
	Failed map[string]error
}

// Err combines every per-peer failure into one error, nil if all succeeded.
func (r *BroadcastResult) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var err error
	for _, id := range ids {
		err = multierr.Append(err, fmt.Errorf("%s: %w", id, r.Failed[id]))
	}
	return err
}

// Manager accepts and dials TCP connections, runs the handshake on each,
// and owns the registry that maps identities to connections and session
// keys. Every connection goroutine is tracked so Shutdown can wait for
// all of them.
//
// All public methods are thread-safe.
type Manager struct {
	cfg      Config
	registry *registry.Registry[*PeerConnection]
	localKey crypto.PublicKey

	mu       sync.Mutex
	listener net.Listener
	closed   bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a connection manager. Cancelling ctx has the same
// effect on in-flight dials as Shutdown, but Shutdown must still be
// called to release connections.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	managerCtx, cancel := context.WithCancel(ctx)
	return &Manager{
		cfg:      cfg,
		registry: registry.New[*PeerConnection](),
		localKey: cfg.KeyPair.PublicKey(),
		ctx:      managerCtx,
		cancel:   cancel,
	}, nil
}

// Listen binds a TCP listener on addr and starts accepting. Bind failures
// are returned to the caller.
func (m *Manager) Listen(ctx context.Context, addr string) (net.Addr, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := m.Serve(ln); err != nil {
		_ = ln.Close()
		return nil, err
	}
	return ln.Addr(), nil
}

// Serve starts accepting connections on ln. The manager closes ln on Shutdown.
func (m *Manager) Serve(ln net.Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.listener != nil {
		return fmt.Errorf("already listening on %s", m.listener.Addr())
	}
	m.listener = ln
	m.wg.Add(1)
	go m.acceptLoop(ln)

	m.cfg.Logger.Info("listener started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the listener address, or nil before Listen/Serve.
func (m *Manager) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// LocalPublicKey returns the public key announced in our handshakes.
func (m *Manager) LocalPublicKey() crypto.PublicKey {
	return m.localKey
}

// track adds one supervised goroutine, or reports false after Shutdown.
func (m *Manager) track() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.wg.Add(1)
	return true
}

func (m *Manager) acceptLoop(ln net.Listener) {
	defer m.wg.Done()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if m.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			m.cfg.Logger.Warn("accept failed", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
				continue
			case <-m.ctx.Done():
				return
			}
		}
		backoff = 0

		if !m.track() {
			_ = conn.Close()
			return
		}
		go func() {
			defer m.wg.Done()
			pc, err := m.attach(conn, conn.RemoteAddr().String(), Inbound)
			if err != nil {
				return
			}
			m.readLoop(pc)
		}()
	}
}

// Dial opens a connection to host:port, sends our handshake and starts the
// read loop. It returns the peer identity without waiting for the peer's
// handshake.
func (m *Manager) Dial(ctx context.Context, host string, port int) (identity string, err error) {
	identity = net.JoinHostPort(host, strconv.Itoa(port))

	ctx, span := m.cfg.Tracer.StartConnect(ctx, identity, Outbound.String())
	defer func() { m.cfg.Tracer.EndSpan(span, err) }()

	if !m.track() {
		return "", ErrClosed
	}
	started := false
	defer func() {
		if !started {
			m.wg.Done()
		}
	}()

	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, m.cfg.DialTimeout)
	}
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	m.emitState(identity, "", Outbound, StateConnecting, nil)

	dialCtx, dialSpan := m.cfg.Tracer.StartDial(ctx, identity)
	var d net.Dialer
	conn, dialErr := d.DialContext(dialCtx, "tcp", identity)
	m.cfg.Tracer.EndSpan(dialSpan, dialErr)
	if dialErr != nil {
		m.cfg.Metrics.ConnectionAttempt("failure")
		m.cfg.Logger.Warn("dial failed", "peer", identity, "error", dialErr)
		m.emitState(identity, "", Outbound, StateClosed, dialErr)
		return "", fmt.Errorf("%w: %s: %v", ErrConnection, identity, dialErr)
	}
	m.cfg.Metrics.ConnectionAttempt("success")

	pc, attachErr := m.attach(conn, identity, Outbound)
	if attachErr != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConnection, identity, attachErr)
	}

	started = true
	go func() {
		defer m.wg.Done()
		m.readLoop(pc)
	}()
	return identity, nil
}

// attach registers a freshly opened socket and sends our handshake.
func (m *Manager) attach(conn net.Conn, identity string, dir Direction) (*PeerConnection, error) {
	pc, err := newPeerConnection(conn, identity, dir, m.cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if evicted, replaced := m.registry.RegisterConnection(identity, pc); replaced {
		m.cfg.Logger.Info("replacing connection with same identity", "peer", identity, "old_conn", evicted.ID())
		m.closeConn(evicted, fmt.Errorf("replaced by connection %s", pc.ID()))
	}

	m.cfg.Metrics.ConnectionOpened(dir.String())
	m.emit(pc, StateUnauthenticated, nil)
	if dir == Inbound {
		m.cfg.Logger.Info("accepted connection", "peer", identity, "conn_id", pc.ID())
	} else {
		m.cfg.Logger.Info("connected to peer", "peer", identity, "conn_id", pc.ID())
	}

	// Shutdown may have drained the registry before we registered.
	if m.ctx.Err() != nil {
		m.teardown(pc, ErrClosed)
		return nil, ErrClosed
	}

	if m.cfg.HandshakeTimeout > 0 {
		pc.startHandshakeTimer(m.cfg.HandshakeTimeout, func() {
			m.cfg.Logger.Warn("handshake timed out", "peer", identity, "timeout", m.cfg.HandshakeTimeout)
			m.cfg.Metrics.HandshakeResult("timeout")
			m.teardown(pc, ErrHandshakeTimeout)
		})
	}

	if err := m.sendHandshake(pc); err != nil {
		m.cfg.Logger.Warn("failed to send handshake", "peer", identity, "error", err)
		m.teardown(pc, err)
		return nil, err
	}
	return pc, nil
}

func (m *Manager) sendHandshake(pc *PeerConnection) error {
	version := m.cfg.Version.String()
	if m.cfg.OmitVersion {
		version = ""
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.DialTimeout)
	defer cancel()
	if _, err := pc.WriteFrame(ctx, protocol.NewHandshake(m.localKey, version)); err != nil {
		return fmt.Errorf("%w: send handshake: %v", ErrTransport, err)
	}
	return nil
}

// readLoop runs until the stream ends, a fatal framing error occurs, or a
// handshake is rejected. The connection is torn down on exit.
func (m *Manager) readLoop(pc *PeerConnection) {
	var cause error
	defer func() { m.teardown(pc, cause) }()

	for {
		f, n, err := pc.readFrame()
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrMalformedFrame):
				m.cfg.Logger.Warn("discarding malformed frame", "peer", pc.identity, "error", err)
				m.cfg.Metrics.FrameDropped("malformed")
				continue
			case errors.Is(err, protocol.ErrFrameTooLarge):
				cause = fmt.Errorf("%w: %w", ErrProtocol, err)
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			default:
				cause = fmt.Errorf("%w: %v", ErrTransport, err)
			}
			return
		}

		if !pc.allowFrame() {
			m.cfg.Logger.Debug("frame rate exceeded, dropping frame", "peer", pc.identity)
			m.cfg.Metrics.FrameDropped("rate_limited")
			continue
		}

		switch f.Type {
		case protocol.TypeHandshake:
			if err := m.handleHandshake(pc, f); err != nil {
				cause = err
				return
			}
		case protocol.TypeData:
			m.handleData(pc, f, n)
		default:
			m.cfg.Logger.Debug("ignoring frame", "peer", pc.identity, "type", f.Type)
		}
	}
}

// handleHandshake returns a non-nil error when the connection must close.
func (m *Manager) handleHandshake(pc *PeerConnection, f protocol.Frame) error {
	if !f.HasPublicKey() {
		m.cfg.Logger.Debug("ignoring handshake without public key", "peer", pc.identity)
		return nil
	}
	if pc.State() == StateSecured {
		m.cfg.Logger.Debug("ignoring repeated handshake", "peer", pc.identity)
		return nil
	}

	ctx, span := m.cfg.Tracer.StartHandshake(m.ctx, pc.identity, pc.id)
	result, err := m.completeHandshake(ctx, pc, f)
	m.cfg.Tracer.RecordHandshakeResult(span, result, err)
	span.End()
	m.cfg.Metrics.HandshakeResult(result)
	return err
}

func (m *Manager) completeHandshake(ctx context.Context, pc *PeerConnection, f protocol.Frame) (string, error) {
	if err := protocol.CheckHandshakeVersion(m.cfg.Version, f.Version); err != nil {
		m.cfg.Logger.Warn("rejecting peer", "peer", pc.identity, "error", err)
		return "version_mismatch", fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if announced, err := protocol.ParseVersion(f.Version); err == nil && announced.IsNewer(m.cfg.Version) {
		m.cfg.Logger.Info("peer announced newer protocol version",
			"peer", pc.identity, "local", m.cfg.Version.String(), "remote", announced.String())
	}

	remote, err := f.RemoteKey()
	if err != nil {
		m.cfg.Logger.Warn("invalid handshake public key", "peer", pc.identity, "error", err)
		return "invalid_key", fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if remote == m.localKey {
		m.cfg.Logger.Warn("peer presented our own public key", "peer", pc.identity)
		return "self", ErrSelfConnection
	}

	_, keySpan := m.cfg.Tracer.StartKeyDerivation(ctx, pc.identity)
	key, err := m.cfg.KeyPair.DeriveSessionKey(remote)
	m.cfg.Tracer.EndSpan(keySpan, err)
	if err != nil {
		m.cfg.Metrics.KeyDerivation("failure")
		m.cfg.Logger.Warn("session key derivation failed", "peer", pc.identity, "error", err)
		return "invalid_key", fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	m.cfg.Metrics.KeyDerivation("success")
	defer key.Zero()

	resolve := func(existing, incoming *PeerConnection) bool {
		return m.preferIncoming(existing, incoming, remote)
	}
	owner, evicted, err := m.registry.BindSession(pc.identity, pc.id, remote, key, resolve)
	switch {
	case errors.Is(err, registry.ErrDuplicate):
		m.cfg.Logger.Info("duplicate connection detected, closing new connection",
			"peer", owner, "duplicate", pc.identity)
		m.cfg.Metrics.DuplicateConnection()
		return "duplicate", ErrDuplicateConnection
	case errors.Is(err, registry.ErrAlreadySecured):
		return "ignored", nil
	case errors.Is(err, registry.ErrNotRegistered):
		return "stale", ErrClosed
	case err != nil:
		return "failure", err
	}

	if evicted != nil {
		m.cfg.Logger.Info("duplicate connection detected, closing existing connection",
			"peer", evicted.identity, "kept", pc.identity)
		m.cfg.Metrics.DuplicateConnection()
		m.closeConn(evicted, ErrDuplicateConnection)
	}

	if err := pc.TransitionTo(StateSecured); err != nil {
		// Closed concurrently; the read loop exits on the next read.
		return "stale", ErrClosed
	}
	m.cfg.Metrics.HandshakeDuration(time.Since(pc.connectedAt).Seconds())
	m.emit(pc, StateSecured, nil)
	m.cfg.Logger.Info("session key established", "peer", pc.identity, "public_key", remote.String())
	return "success", nil
}

// preferIncoming breaks simultaneous-open ties. When both nodes dial each
// other, each sees one inbound and one outbound socket for the same key;
// first-bound-wins can make the two nodes keep different sockets and close
// both. Both sides instead keep the socket dialed by the lower public key.
// Duplicates in the same direction keep the existing connection.
func (m *Manager) preferIncoming(existing, incoming *PeerConnection, remote crypto.PublicKey) bool {
	if existing == nil || existing.direction == incoming.direction {
		return false
	}
	dialer := func(pc *PeerConnection) []byte {
		if pc.direction == Outbound {
			return m.localKey[:]
		}
		return remote[:]
	}
	return bytes.Compare(dialer(incoming), dialer(existing)) < 0
}

func (m *Manager) handleData(pc *PeerConnection, f protocol.Frame, size int) {
	c, key, ok := m.registry.Lookup(pc.identity)
	if !ok || c != pc || key == nil {
		m.cfg.Logger.Debug("no session key, discarding data frame", "peer", pc.identity)
		m.cfg.Metrics.FrameDropped("no_session")
		return
	}
	defer key.Zero()

	env := f.Envelope()
	nonce, err := env.DecodeNonce()
	if err != nil {
		m.cfg.Logger.Warn("failed to decrypt frame", "peer", pc.identity, "error", err)
		m.cfg.Metrics.DecryptionError()
		m.cfg.Metrics.FrameDropped("decrypt")
		return
	}
	if pc.replay.Seen(nonce) {
		m.cfg.Logger.Warn("discarding replayed frame", "peer", pc.identity)
		m.cfg.Metrics.FrameDropped("replay")
		return
	}

	ctx, span := m.cfg.Tracer.StartReceive(m.ctx, pc.identity, size)
	_, decSpan := m.cfg.Tracer.StartDecrypt(ctx)
	payload, err := crypto.Decrypt(m.cfg.Suite, key, env)
	m.cfg.Tracer.EndSpan(decSpan, err)
	m.cfg.Tracer.EndSpan(span, err)
	if err != nil {
		m.cfg.Logger.Warn("failed to decrypt frame", "peer", pc.identity, "error", err)
		m.cfg.Metrics.DecryptionError()
		m.cfg.Metrics.FrameDropped("decrypt")
		return
	}
	pc.replay.Check(nonce)
	m.cfg.Metrics.MessageReceived(size)
	if m.cfg.Stats != nil {
		m.cfg.Stats.RecordMessageReceived(pc.identity, size)
	}

	if m.cfg.OnMessage != nil {
		m.cfg.OnMessage(pc.identity, payload)
	}
}

// Send encrypts payload for identity and writes it. It fails with
// ErrUnknownPeer or ErrNoSession before touching the socket; a write
// failure tears the connection down and is returned wrapped in ErrTransport.
func (m *Manager) Send(ctx context.Context, identity string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pc, key, ok := m.registry.Lookup(identity)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, identity)
	}
	if key == nil {
		return fmt.Errorf("%w: %s", ErrNoSession, identity)
	}
	defer key.Zero()

	plaintext, err := crypto.MarshalPayload(payload)
	if err != nil {
		return err
	}
	defer crypto.SecureZero(plaintext)

	if err := m.write(ctx, pc, key, plaintext); err != nil {
		if errors.Is(err, ErrTransport) {
			m.cfg.Logger.Warn("send failed", "peer", identity, "error", err)
			m.teardown(pc, err)
		}
		return err
	}
	return nil
}

// Broadcast sends payload to every registered connection independently.
// Peers without a session key and peers whose write fails are torn down
// and reported in the result; they never stop delivery to the others.
// The error is non-nil only when payload cannot be encoded.
func (m *Manager) Broadcast(ctx context.Context, payload any) (*BroadcastResult, error) {
	plaintext, err := crypto.MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureZero(plaintext)

	entries := m.registry.ListConnections()

	ctx, span := m.cfg.Tracer.StartBroadcast(ctx, len(entries))
	defer span.End()

	result := &BroadcastResult{Failed: make(map[string]error)}
	var mu sync.Mutex

	var g errgroup.Group
	if m.cfg.BroadcastConcurrency > 0 {
		g.SetLimit(m.cfg.BroadcastConcurrency)
	}
	for _, e := range entries {
		e := e
		g.Go(func() error {
			err := m.broadcastOne(ctx, e, plaintext)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[e.Identity] = err
			} else {
				result.Delivered = append(result.Delivered, e.Identity)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(result.Delivered)
	return result, nil
}

func (m *Manager) broadcastOne(ctx context.Context, e registry.Entry[*PeerConnection], plaintext []byte) error {
	if !e.Secured() {
		err := fmt.Errorf("%w: %s", ErrNoSession, e.Identity)
		m.cfg.Logger.Warn("broadcast skipped peer without session", "peer", e.Identity)
		m.teardown(e.Conn, err)
		return err
	}
	defer e.SessionKey.Zero()

	if err := m.write(ctx, e.Conn, e.SessionKey, plaintext); err != nil {
		m.cfg.Logger.Warn("broadcast send failed", "peer", e.Identity, "error", err)
		if errors.Is(err, ErrTransport) {
			m.teardown(e.Conn, err)
		}
		return err
	}
	return nil
}

func (m *Manager) write(ctx context.Context, pc *PeerConnection, key crypto.SessionKey, plaintext []byte) (err error) {
	ctx, span := m.cfg.Tracer.StartSend(ctx, pc.identity)
	defer func() { m.cfg.Tracer.EndSpan(span, err) }()

	_, encSpan := m.cfg.Tracer.StartEncrypt(ctx)
	env, err := crypto.EncryptPlaintext(m.cfg.Suite, key, plaintext)
	m.cfg.Tracer.EndSpan(encSpan, err)
	if err != nil {
		m.cfg.Metrics.EncryptionError()
		return err
	}

	frame := protocol.NewData(env)
	_, writeSpan := m.cfg.Tracer.StartWrite(ctx, len(env.Ciphertext))
	n, err := pc.WriteFrame(ctx, frame)
	m.cfg.Tracer.EndSpan(writeSpan, err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		return fmt.Errorf("%w: write to %s: %v", ErrTransport, pc.identity, err)
	}
	m.cfg.Metrics.MessageSent(n)
	if m.cfg.Stats != nil {
		m.cfg.Stats.RecordMessageSent(pc.identity, n)
	}
	return nil
}

// Disconnect removes identity from the registry and closes its socket.
func (m *Manager) Disconnect(identity string) error {
	pc, ok := m.registry.RemoveConnection(identity, "")
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, identity)
	}
	_, span := m.cfg.Tracer.StartDisconnect(m.ctx, identity)
	m.closeConn(pc, nil)
	span.End()
	return nil
}

// teardown removes pc from the registry, if it is still the registered
// connection for its identity, and closes it.
func (m *Manager) teardown(pc *PeerConnection, cause error) {
	m.registry.RemoveConnection(pc.identity, pc.id)
	m.closeConn(pc, cause)
}

func (m *Manager) closeConn(pc *PeerConnection, cause error) {
	closed, err := pc.Close()
	if !closed {
		return
	}
	if err != nil {
		m.cfg.Logger.Debug("error closing socket", "peer", pc.identity, "error", err)
	}
	m.cfg.Metrics.ConnectionClosed(pc.direction.String())
	m.emit(pc, StateClosed, cause)
	if cause != nil {
		m.cfg.Logger.Info("peer disconnected", "peer", pc.identity, "conn_id", pc.id, "reason", cause)
	} else {
		m.cfg.Logger.Info("peer disconnected", "peer", pc.identity, "conn_id", pc.id)
	}
}

// Peers returns a snapshot of registered connections, sorted by identity.
func (m *Manager) Peers() []PeerInfo {
	entries := m.registry.ListConnections()
	out := make([]PeerInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, peerInfo(e))
		e.SessionKey.Zero()
	}
	return out
}

// Peer returns the info for one identity.
func (m *Manager) Peer(identity string) (PeerInfo, bool) {
	pc, key, ok := m.registry.Lookup(identity)
	if !ok {
		return PeerInfo{}, false
	}
	e := registry.Entry[*PeerConnection]{Identity: identity, Conn: pc, SessionKey: key}
	if key != nil {
		e.PublicKey, _ = m.registry.PublicKeyOf(identity)
		key.Zero()
	}
	return peerInfo(e), true
}

func peerInfo(e registry.Entry[*PeerConnection]) PeerInfo {
	info := PeerInfo{
		Identity:     e.Identity,
		ConnectionID: e.Conn.id,
		Direction:    e.Conn.direction,
		State:        e.Conn.State(),
		Secured:      e.Secured(),
		PublicKey:    e.PublicKey,
		ConnectedAt:  e.Conn.connectedAt,
	}
	if addr := e.Conn.RemoteAddr(); addr != nil {
		info.RemoteAddr = addr.String()
	}
	return info
}

// IdentityForPublicKey returns the identity currently bound to pub.
func (m *Manager) IdentityForPublicKey(pub crypto.PublicKey) (string, bool) {
	return m.registry.LookupIdentityByPublicKey(pub)
}

// Len returns the number of registered connections.
func (m *Manager) Len() int {
	return m.registry.Len()
}

// SecuredCount returns the number of connections with a session key.
func (m *Manager) SecuredCount() int {
	return m.registry.Secured()
}

// Shutdown closes the listener, then removes and closes every registered
// connection, then waits for all connection goroutines to exit. It is
// safe to call more than once.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ln := m.listener
	m.mu.Unlock()

	m.cancel()

	var err error
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("close listener: %w", cerr))
		}
	}

	for _, pc := range m.registry.RemoveAll() {
		m.closeConn(pc, ErrClosed)
	}

	m.wg.Wait()
	m.cfg.Logger.Info("connection manager stopped")
	return err
}

func (m *Manager) emit(pc *PeerConnection, state ConnectionState, err error) {
	m.emitState(pc.identity, pc.id, pc.direction, state, err)
}

func (m *Manager) emitState(identity, connID string, dir Direction, state ConnectionState, err error) {
	if m.cfg.Events == nil {
		return
	}
	m.cfg.Events.EmitEvent(Event{
		Identity:     identity,
		ConnectionID: connID,
		Direction:    dir,
		State:        state,
		Error:        err,
		Timestamp:    time.Now(),
	})
}
