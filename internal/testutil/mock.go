// Package testutil provides test doubles for code that drives a p2pchat node.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Alfaashh/P2PChat"
	"github.com/Alfaashh/P2PChat/pkg/crypto"
)

// ErrNotConnected is returned by SendMessage when no peer was connected
// and RequirePeers is set.
var ErrNotConnected = errors.New("no connected peers")

// SentMessage records a chat message broadcast through MockNode.
type SentMessage struct {
	Message     string
	DisplayName string
	Timestamp   time.Time
}

// MockNode is an in-memory stand-in for *p2pchat.Node. It records
// Connect and SendMessage calls and lets tests inject inbound messages
// and errors.
type MockNode struct {
	mu sync.RWMutex

	publicKey string
	port      int

	handler   p2pchat.MessageHandler
	connected map[string]bool
	sent      []SentMessage

	// Error injection
	connectErr   error
	sendErr      error
	requirePeers bool
}

// NewMockNode creates a mock node with a fresh public key listening on port.
func NewMockNode(port int) *MockNode {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		panic(err)
	}
	defer kp.Close()

	return &MockNode{
		publicKey: crypto.EncodePublicKey(kp.PublicKey()),
		port:      port,
		connected: make(map[string]bool),
	}
}

// PublicKey returns the encoded public key.
func (m *MockNode) PublicKey() string {
	return m.publicKey
}

// Port returns the configured port.
func (m *MockNode) Port() int {
	return m.port
}

// OnMessage records the handler used by SimulateMessage.
func (m *MockNode) OnMessage(handler p2pchat.MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Connect records host:port as connected. Arguments are validated the
// way the real node validates them.
func (m *MockNode) Connect(ctx context.Context, host string, port int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := p2pchat.ValidateHost(host); err != nil {
		return "", err
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("%w: %d", p2pchat.ErrInvalidPort, port)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return "", m.connectErr
	}
	identity := net.JoinHostPort(host, strconv.Itoa(port))
	m.connected[identity] = true
	return identity, nil
}

// SendMessage records the message and reports it delivered to every
// connected identity.
func (m *MockNode) SendMessage(ctx context.Context, message, displayName string) (*p2pchat.BroadcastResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if m.requirePeers && len(m.connected) == 0 {
		return nil, ErrNotConnected
	}

	m.sent = append(m.sent, SentMessage{
		Message:     message,
		DisplayName: displayName,
		Timestamp:   time.Now(),
	})
	res := &p2pchat.BroadcastResult{Failed: map[string]error{}}
	for id := range m.connected {
		res.Delivered = append(res.Delivered, id)
	}
	sort.Strings(res.Delivered)
	return res, nil
}

// --- Test Helpers ---

// SimulateMessage delivers payload from identity to the installed handler.
// It reports false if no handler is installed.
func (m *MockNode) SimulateMessage(identity string, payload p2pchat.Payload) bool {
	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()

	if handler == nil {
		return false
	}
	handler(identity, payload)
	return true
}

// SetConnectError sets an error to be returned by Connect.
func (m *MockNode) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetSendError sets an error to be returned by SendMessage.
func (m *MockNode) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// RequirePeers makes SendMessage fail with ErrNotConnected while nothing
// is connected.
func (m *MockNode) RequirePeers(require bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requirePeers = require
}

// Connected returns the identities passed through Connect, sorted.
func (m *MockNode) Connected() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.connected))
	for id := range m.connected {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// SentMessages returns all messages that were sent.
func (m *MockNode) SentMessages() []SentMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]SentMessage, len(m.sent))
	copy(result, m.sent)
	return result
}

// Reset clears recorded calls and injected errors.
func (m *MockNode) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = make(map[string]bool)
	m.sent = nil
	m.connectErr = nil
	m.sendErr = nil
	m.requirePeers = false
}
