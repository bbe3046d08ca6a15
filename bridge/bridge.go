// Package bridge exposes a node to a local operator over a WebSocket.
//
// A client connected to the bridge receives the node's port and public
// key, can ask the node to dial a peer or broadcast a chat message, and
// is sent every message the node receives:
//
//	-> {"action":"connect_peer","ip":"10.0.0.2","port":8888}
//	<- {"type":"status","status":"Connected to 10.0.0.2:8888"}
//	-> {"action":"send_message","message":"hi","display_name":"ann"}
//	<- {"type":"peer_message","from":"10.0.0.2:8888","from_name":"bob","message":"hello"}
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Alfaashh/P2PChat"
)

// DefaultWriteTimeout bounds one write to a WebSocket client.
const DefaultWriteTimeout = 5 * time.Second

// ErrClosed is the reason given to upgrade requests made after Close.
var ErrClosed = errors.New("bridge closed")

// Node is the part of a p2pchat node the bridge drives.
type Node interface {
	Connect(ctx context.Context, host string, port int) (string, error)
	SendMessage(ctx context.Context, message, displayName string) (*p2pchat.BroadcastResult, error)
	OnMessage(handler p2pchat.MessageHandler)
	PublicKey() string
	Port() int
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l p2pchat.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithWriteTimeout bounds each write to a client.
func WithWriteTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.writeTimeout = d
	}
}

// WithCheckOrigin replaces the Origin check run on upgrade. By default
// only same-origin browsers and non-browser clients are accepted.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(b *Bridge) {
		b.upgrader.CheckOrigin = check
	}
}

// Bridge is an http.Handler that upgrades requests to WebSockets and
// relays between its clients and a node.
//
// All methods are thread-safe.
type Bridge struct {
	node         Node
	logger       p2pchat.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	// ctx bounds node calls made on behalf of clients; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// New creates a bridge for node and installs it as the node's message
// handler.
func New(node Node, opts ...Option) *Bridge {
	b := &Bridge{
		node:         node,
		logger:       p2pchat.NopLogger{},
		writeTimeout: DefaultWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients: make(map[*client]struct{}),
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(b)
	}
	node.OnMessage(b.Deliver)
	return b
}

// client serializes writes to one WebSocket; gorilla connections allow a
// single concurrent writer.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v any, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

type infoMessage struct {
	Type      string `json:"type"`
	Port      int    `json:"port"`
	PublicKey string `json:"public_key"`
}

type statusMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type peerMessage struct {
	Type     string  `json:"type"`
	From     string  `json:"from"`
	FromName *string `json:"from_name"`
	Message  string  `json:"message"`
}

// request is an operator command. Port is left raw because browsers send
// it as either a number or a string.
type request struct {
	Action      string          `json:"action"`
	IP          string          `json:"ip"`
	Port        json.RawMessage `json:"port"`
	Message     string          `json:"message"`
	DisplayName string          `json:"display_name"`
}

func status(s string) statusMessage {
	return statusMessage{Type: "status", Status: s}
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()
	defer b.wg.Done()

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		b.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{conn: conn}
	if !b.add(c) {
		conn.Close()
		return
	}
	defer b.remove(c)

	b.logger.Info("bridge client connected", "remote", r.RemoteAddr)

	if err := c.writeJSON(infoMessage{Type: "info", Port: b.node.Port(), PublicKey: b.node.PublicKey()}, b.writeTimeout); err != nil {
		return
	}
	if err := c.writeJSON(status("Connected to local peer"), b.writeTimeout); err != nil {
		return
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug("bridge client read failed", "remote", r.RemoteAddr, "error", err)
			}
			b.logger.Info("bridge client disconnected", "remote", r.RemoteAddr)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		reply, ok := b.handle(b.ctx, data)
		if !ok {
			continue
		}
		if err := c.writeJSON(reply, b.writeTimeout); err != nil {
			return
		}
	}
}

// handle runs one command and returns the status to send back, if any.
func (b *Bridge) handle(ctx context.Context, data []byte) (statusMessage, bool) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return status("Invalid JSON"), true
	}

	switch req.Action {
	case "connect_peer":
		port, err := parsePort(req.Port)
		if err != nil {
			return status("Failed: " + err.Error()), true
		}
		if _, err := b.node.Connect(ctx, req.IP, port); err != nil {
			b.logger.Warn("bridge connect failed", "ip", req.IP, "port", port, "error", err)
			return status("Failed: " + err.Error()), true
		}
		return status(fmt.Sprintf("Connected to %s:%d", req.IP, port)), true

	case "send_message":
		res, err := b.node.SendMessage(ctx, req.Message, req.DisplayName)
		if err != nil {
			return status("Failed: " + err.Error()), true
		}
		if err := res.Err(); err != nil {
			b.logger.Warn("broadcast partially failed", "failed", len(res.Failed), "error", err)
		}
		return statusMessage{}, false

	default:
		return status("Unknown action"), true
	}
}

func parsePort(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing port")
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	port, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("invalid port %s", raw)
	}
	return port, nil
}

// Deliver sends a received message to every client. A client whose
// write fails is dropped. It has the p2pchat.MessageHandler signature.
func (b *Bridge) Deliver(identity string, payload p2pchat.Payload) {
	msg := peerMessage{
		Type:    "peer_message",
		From:    identity,
		Message: payload.Message(),
	}
	if name := payload.DisplayName(); name != "" {
		msg.FromName = &name
	}

	for _, c := range b.snapshot() {
		if err := c.writeJSON(msg, b.writeTimeout); err != nil {
			b.logger.Debug("dropping bridge client", "error", err)
			b.remove(c)
		}
	}
}

// Clients returns the number of connected clients.
func (b *Bridge) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client and waits for their handlers to return.
// Later upgrade requests are refused.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
	b.wg.Wait()
	return nil
}

func (b *Bridge) add(c *client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.clients[c] = struct{}{}
	return true
}

func (b *Bridge) remove(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	delete(b.clients, c)
	b.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

func (b *Bridge) snapshot() []*client {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		out = append(out, c)
	}
	return out
}
