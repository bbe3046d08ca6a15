package p2pchat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Alfaashh/P2PChat/pkg/crypto"
)

// DebugState represents the complete state of a Node for debugging purposes.
// It never contains private or session key material.
type DebugState struct {
	// Node identity
	PublicKey string `json:"public_key"`

	// Listen address, empty before Start
	ListenAddr string `json:"listen_addr"`

	// Protocol version
	Version string `json:"version"`

	// Running state
	Started bool   `json:"started"`
	Uptime  string `json:"uptime,omitempty"`

	// Registered connections
	Connections []DebugConnection `json:"connections"`

	// Configuration
	Config DebugConfig `json:"config"`

	// Statistics summary
	PeersWithStats int `json:"peers_with_stats"`

	// Messages waiting for the handler
	InboxQueued int `json:"inbox_queued"`

	// Timestamp when state was captured
	CapturedAt time.Time `json:"captured_at"`
}

// DebugConnection represents one registered connection for debugging.
type DebugConnection struct {
	Identity     string    `json:"identity"`
	ConnectionID string    `json:"connection_id"`
	Direction    string    `json:"direction"`
	State        string    `json:"state"`
	Secured      bool      `json:"secured"`
	PublicKey    string    `json:"public_key,omitempty"`
	RemoteAddr   string    `json:"remote_addr"`
	ConnectedAt  time.Time `json:"connected_at"`
}

// DebugConfig represents configuration summary for debugging.
type DebugConfig struct {
	Host             string  `json:"host"`
	Port             int     `json:"port"`
	CipherSuite      string  `json:"cipher_suite"`
	MaxFrameSize     int     `json:"max_frame_size"`
	DialTimeout      string  `json:"dial_timeout"`
	HandshakeTimeout string  `json:"handshake_timeout"`
	FrameRateLimit   float64 `json:"frame_rate_limit"`
	ReplayWindow     int     `json:"replay_window"`
	InboxSize        int     `json:"inbox_size"`
	EventBufferSize  int     `json:"event_buffer_size"`
}

// DumpState captures the current state of the node for debugging.
// This is useful for troubleshooting connection issues.
func (n *Node) DumpState() *DebugState {
	state := &DebugState{
		PublicKey:   n.PublicKey(),
		Version:     n.Version().String(),
		Connections: []DebugConnection{},
		Config:      n.dumpConfig(),
		InboxQueued: n.inbox.Len(),
		CapturedAt:  time.Now(),
	}

	if addr := n.Addr(); addr != nil {
		state.ListenAddr = addr.String()
	}

	n.startMu.Lock()
	state.Started = n.started
	if n.started {
		state.Uptime = time.Since(n.startedAt).Round(time.Second).String()
	}
	n.startMu.Unlock()

	for _, p := range n.Peers() {
		dc := DebugConnection{
			Identity:     p.Identity,
			ConnectionID: p.ConnectionID,
			Direction:    p.Direction.String(),
			State:        p.State.String(),
			Secured:      p.Secured,
			RemoteAddr:   p.RemoteAddr,
			ConnectedAt:  p.ConnectedAt,
		}
		if p.Secured {
			dc.PublicKey = crypto.EncodePublicKey(p.PublicKey)
		}
		state.Connections = append(state.Connections, dc)
	}

	state.PeersWithStats = n.stats.trackers.Len()
	return state
}

// dumpConfig returns configuration debug info.
func (n *Node) dumpConfig() DebugConfig {
	handshake := "disabled"
	if n.config.HandshakeTimeout > 0 {
		handshake = n.config.HandshakeTimeout.String()
	}
	return DebugConfig{
		Host:             n.config.Host,
		Port:             n.config.Port,
		CipherSuite:      n.config.CipherSuite.String(),
		MaxFrameSize:     n.config.MaxFrameSize,
		DialTimeout:      n.config.DialTimeout.String(),
		HandshakeTimeout: handshake,
		FrameRateLimit:   n.config.FrameRateLimit,
		ReplayWindow:     n.config.replayWindow(),
		InboxSize:        n.config.InboxSize,
		EventBufferSize:  n.config.EventBufferSize,
	}
}

// DumpStateJSON returns the node state as formatted JSON.
func (n *Node) DumpStateJSON() (string, error) {
	state := n.DumpState()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	return string(data), nil
}

// DumpStateString returns a human-readable string representation of the node state.
func (n *Node) DumpStateString() string {
	state := n.DumpState()
	var sb strings.Builder

	sb.WriteString("=== p2pchat Node Debug State ===\n\n")

	sb.WriteString("IDENTITY:\n")
	sb.WriteString(fmt.Sprintf("  Public Key: %s\n", state.PublicKey))
	sb.WriteString(fmt.Sprintf("  Version:    %s\n", state.Version))
	listen := state.ListenAddr
	if listen == "" {
		listen = "(not listening)"
	}
	sb.WriteString(fmt.Sprintf("  Listening:  %s\n", listen))
	if state.Uptime != "" {
		sb.WriteString(fmt.Sprintf("  Uptime:     %s\n", state.Uptime))
	}
	sb.WriteString("\n")

	sb.WriteString("CONNECTIONS:\n")
	if len(state.Connections) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, c := range state.Connections {
		sb.WriteString(fmt.Sprintf("  - %s %s %s\n", c.Identity, c.Direction, c.State))
	}
	sb.WriteString("\n")

	sb.WriteString("CONFIGURATION:\n")
	sb.WriteString(fmt.Sprintf("  Cipher:            %s\n", state.Config.CipherSuite))
	sb.WriteString(fmt.Sprintf("  Max Frame Size:    %d bytes\n", state.Config.MaxFrameSize))
	sb.WriteString(fmt.Sprintf("  Handshake Timeout: %s\n", state.Config.HandshakeTimeout))
	sb.WriteString(fmt.Sprintf("  Replay Window:     %d\n", state.Config.ReplayWindow))
	sb.WriteString("\n")

	sb.WriteString("STATISTICS:\n")
	sb.WriteString(fmt.Sprintf("  Peers tracked: %d\n", state.PeersWithStats))
	sb.WriteString(fmt.Sprintf("  Inbox queued:  %d\n", state.InboxQueued))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Captured at: %s\n", state.CapturedAt.Format(time.RFC3339)))
	sb.WriteString("================================\n")

	return sb.String()
}

// ConnectionSummary returns the number of connections in each state.
func (n *Node) ConnectionSummary() map[string]int {
	summary := make(map[string]int)
	for _, p := range n.Peers() {
		summary[p.State.String()]++
	}
	return summary
}
