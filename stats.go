package p2pchat

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PeerStats contains statistics for one peer identity.
// All fields are safe to read without synchronization once returned
// from the API, as they are snapshot copies.
type PeerStats struct {
	// Identity is the host:port the statistics belong to.
	Identity string

	// Connected indicates whether the identity currently has a secured session.
	Connected bool

	// IsOutbound indicates whether we dialed the current or last connection.
	IsOutbound bool

	// ConnectedAt is when the current session was secured.
	// Zero value if not connected.
	ConnectedAt time.Time

	// TotalConnectTime is the cumulative duration of all secured sessions.
	TotalConnectTime time.Duration

	// MessagesSent is the total number of data frames sent to this peer.
	MessagesSent int64

	// MessagesReceived is the total number of data frames received from this peer.
	MessagesReceived int64

	// BytesSent is the total bytes sent to this peer.
	BytesSent int64

	// BytesReceived is the total bytes received from this peer.
	BytesReceived int64

	// LastMessageAt is when a message was last sent or received.
	LastMessageAt time.Time

	// ConnectionCount is the number of sessions secured for this identity.
	ConnectionCount int

	// FailureCount is the number of failed dials and rejected connections.
	FailureCount int
}

// PeerStatsTracker is the internal mutable stats tracker for one identity.
type PeerStatsTracker struct {
	mu sync.RWMutex

	connectedAt      time.Time
	totalConnectTime time.Duration
	outbound         bool

	messagesSent     int64
	messagesReceived int64
	bytesSent        int64
	bytesReceived    int64

	lastMessageAt   time.Time
	connectionCount int
	failureCount    int
}

// NewPeerStatsTracker creates a new stats tracker for a peer.
func NewPeerStatsTracker() *PeerStatsTracker {
	return &PeerStatsTracker{}
}

// RecordConnectionStart records that a session was secured.
func (s *PeerStatsTracker) RecordConnectionStart(outbound bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connectedAt = time.Now()
	s.outbound = outbound
	s.connectionCount++
}

// RecordConnectionEnd records that a session ended. It reports whether a
// session was in progress.
func (s *PeerStatsTracker) RecordConnectionEnd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connectedAt.IsZero() {
		return false
	}
	s.totalConnectTime += time.Since(s.connectedAt)
	s.connectedAt = time.Time{}
	return true
}

// RecordFailure records a failed dial or a connection rejected before
// its session was secured.
func (s *PeerStatsTracker) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
}

// RecordMessageSent records a data frame being sent.
func (s *PeerStatsTracker) RecordMessageSent(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messagesSent++
	s.bytesSent += int64(size)
	s.lastMessageAt = time.Now()
}

// RecordMessageReceived records a data frame being received.
func (s *PeerStatsTracker) RecordMessageReceived(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messagesReceived++
	s.bytesReceived += int64(size)
	s.lastMessageAt = time.Now()
}

// Snapshot returns a copy of the stats for external consumption.
func (s *PeerStatsTracker) Snapshot(identity string) *PeerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connected := !s.connectedAt.IsZero()
	stats := &PeerStats{
		Identity:         identity,
		Connected:        connected,
		IsOutbound:       s.outbound,
		ConnectedAt:      s.connectedAt,
		TotalConnectTime: s.totalConnectTime,
		MessagesSent:     s.messagesSent,
		MessagesReceived: s.messagesReceived,
		BytesSent:        s.bytesSent,
		BytesReceived:    s.bytesReceived,
		LastMessageAt:    s.lastMessageAt,
		ConnectionCount:  s.connectionCount,
		FailureCount:     s.failureCount,
	}

	// If currently connected, add the current session duration
	if connected {
		stats.TotalConnectTime += time.Since(s.connectedAt)
	}

	return stats
}

// statsBook keeps trackers for the most recently active identities.
// Inbound identities carry ephemeral ports, so the set is bounded.
type statsBook struct {
	mu       sync.Mutex
	trackers *lru.Cache[string, *PeerStatsTracker]
}

func newStatsBook(size int) (*statsBook, error) {
	c, err := lru.New[string, *PeerStatsTracker](size)
	if err != nil {
		return nil, err
	}
	return &statsBook{trackers: c}, nil
}

// tracker returns the tracker for identity, creating it if needed.
func (b *statsBook) tracker(identity string) *PeerStatsTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.trackers.Get(identity); ok {
		return t
	}
	t := NewPeerStatsTracker()
	b.trackers.Add(identity, t)
	return t
}

func (b *statsBook) get(identity string) (*PeerStatsTracker, bool) {
	return b.trackers.Peek(identity)
}

func (b *statsBook) RecordMessageSent(identity string, bytes int) {
	b.tracker(identity).RecordMessageSent(bytes)
}

func (b *statsBook) RecordMessageReceived(identity string, bytes int) {
	b.tracker(identity).RecordMessageReceived(bytes)
}

func (b *statsBook) snapshot() map[string]*PeerStats {
	keys := b.trackers.Keys()
	out := make(map[string]*PeerStats, len(keys))
	for _, id := range keys {
		if t, ok := b.trackers.Peek(id); ok {
			out[id] = t.Snapshot(id)
		}
	}
	return out
}

// PeerStatistics returns statistics for identity, or nil if none are kept.
func (n *Node) PeerStatistics(identity string) *PeerStats {
	t, ok := n.stats.get(identity)
	if !ok {
		return nil
	}
	return t.Snapshot(identity)
}

// AllPeerStatistics returns statistics for every retained identity.
func (n *Node) AllPeerStatistics() map[string]*PeerStats {
	return n.stats.snapshot()
}
