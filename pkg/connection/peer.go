package connection

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Alfaashh/P2PChat/internal/replay"
	"github.com/Alfaashh/P2PChat/pkg/protocol"
)

// PeerConnection is one TCP socket to a remote endpoint. Reads happen on a
// single goroutine owned by the Manager; writes are serialized here.
type PeerConnection struct {
	id        string
	identity  string
	direction Direction
	conn      net.Conn

	reader  *protocol.Reader
	writer  *protocol.Writer
	writeMu sync.Mutex

	limiter *rate.Limiter
	replay  *replay.Filter

	mu              sync.RWMutex
	state           ConnectionState
	connectedAt     time.Time
	lastStateChange time.Time
	handshakeTimer  *time.Timer

	closeOnce sync.Once
	done      chan struct{}
}

func newPeerConnection(conn net.Conn, identity string, direction Direction, cfg Config) (*PeerConnection, error) {
	filter, err := replay.NewFilter(cfg.ReplayWindow)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pc := &PeerConnection{
		id:              uuid.New().String(),
		identity:        identity,
		direction:       direction,
		conn:            conn,
		reader:          protocol.NewReader(conn, cfg.MaxFrameSize),
		writer:          protocol.NewWriter(conn),
		replay:          filter,
		state:           StateUnauthenticated,
		connectedAt:     now,
		lastStateChange: now,
		done:            make(chan struct{}),
	}
	if cfg.FrameRateLimit > 0 {
		burst := cfg.FrameBurst
		if burst <= 0 {
			burst = int(cfg.FrameRateLimit) + 1
		}
		pc.limiter = rate.NewLimiter(rate.Limit(cfg.FrameRateLimit), burst)
	}
	return pc, nil
}

// ID returns the unique ID of this socket. It distinguishes a connection
// from a later one that reuses the same identity.
func (pc *PeerConnection) ID() string { return pc.id }

// Identity returns the host:port the connection is keyed by.
func (pc *PeerConnection) Identity() string { return pc.identity }

// Direction returns whether the socket was accepted or dialed.
func (pc *PeerConnection) Direction() Direction { return pc.direction }

// RemoteAddr returns the socket's remote address.
func (pc *PeerConnection) RemoteAddr() net.Addr { return pc.conn.RemoteAddr() }

// ConnectedAt returns when the socket was established.
func (pc *PeerConnection) ConnectedAt() time.Time { return pc.connectedAt }

// Done is closed once the connection has been closed.
func (pc *PeerConnection) Done() <-chan struct{} { return pc.done }

// State returns the current state.
func (pc *PeerConnection) State() ConnectionState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.state
}

// TransitionTo moves the connection to newState if the transition is valid.
func (pc *PeerConnection) TransitionTo(newState ConnectionState) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if err := pc.state.ValidateTransition(newState); err != nil {
		return err
	}
	pc.state = newState
	pc.lastStateChange = time.Now()
	if newState != StateUnauthenticated && pc.handshakeTimer != nil {
		pc.handshakeTimer.Stop()
		pc.handshakeTimer = nil
	}
	return nil
}

// startHandshakeTimer calls onTimeout if the connection is still
// unauthenticated after d.
func (pc *PeerConnection) startHandshakeTimer(d time.Duration, onTimeout func()) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.state != StateUnauthenticated {
		return
	}
	pc.handshakeTimer = time.AfterFunc(d, func() {
		if pc.State() == StateUnauthenticated {
			onTimeout()
		}
	})
}

// WriteFrame writes one frame. Concurrent callers are serialized so frames
// never interleave. A deadline on ctx becomes the socket write deadline.
func (pc *PeerConnection) WriteFrame(ctx context.Context, f protocol.Frame) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-pc.done:
		return 0, net.ErrClosed
	default:
	}

	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	// We may have waited for the lock.
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := pc.conn.SetWriteDeadline(deadline); err != nil {
			return 0, err
		}
		defer func() { _ = pc.conn.SetWriteDeadline(time.Time{}) }()
	}
	return pc.writer.WriteFrame(f)
}

// readFrame is only called from the connection's read loop.
func (pc *PeerConnection) readFrame() (protocol.Frame, int, error) {
	return pc.reader.ReadFrame()
}

// allowFrame applies the optional inbound frame rate limit.
func (pc *PeerConnection) allowFrame() bool {
	return pc.limiter == nil || pc.limiter.Allow()
}

// Close closes the socket and marks the connection Closed. It reports
// whether this call performed the close.
func (pc *PeerConnection) Close() (closed bool, err error) {
	pc.closeOnce.Do(func() {
		closed = true

		pc.mu.Lock()
		pc.state = StateClosed
		pc.lastStateChange = time.Now()
		if pc.handshakeTimer != nil {
			pc.handshakeTimer.Stop()
			pc.handshakeTimer = nil
		}
		pc.mu.Unlock()

		err = pc.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		close(pc.done)
	})
	return closed, err
}
