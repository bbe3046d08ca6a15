package p2pchat

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = NopLogger{}
	_ Logger = (*slog.Logger)(nil)
	_ Logger = (*TestLogger)(nil)
)

// TestLogger records every call so tests can assert on what a node logged.
type TestLogger struct {
	mu     sync.Mutex
	Calls  []LogCall
	Levels []string
}

type LogCall struct {
	Level         string
	Message       string
	KeysAndValues []any
}

// Value returns the value logged under key, if any.
func (c LogCall) Value(key string) (any, bool) {
	for i := 0; i+1 < len(c.KeysAndValues); i += 2 {
		if k, ok := c.KeysAndValues[i].(string); ok && k == key {
			return c.KeysAndValues[i+1], true
		}
	}
	return nil, false
}

func (l *TestLogger) Debug(msg string, keysAndValues ...any) { l.record("debug", msg, keysAndValues) }
func (l *TestLogger) Info(msg string, keysAndValues ...any)  { l.record("info", msg, keysAndValues) }
func (l *TestLogger) Warn(msg string, keysAndValues ...any)  { l.record("warn", msg, keysAndValues) }
func (l *TestLogger) Error(msg string, keysAndValues ...any) { l.record("error", msg, keysAndValues) }

func (l *TestLogger) record(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, LogCall{
		Level:         level,
		Message:       msg,
		KeysAndValues: keysAndValues,
	})
	l.Levels = append(l.Levels, level)
}

// find returns the first call with the given level and message.
func (l *TestLogger) find(level, msg string) (LogCall, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.Calls {
		if c.Level == level && c.Message == msg {
			return c, true
		}
	}
	return LogCall{}, false
}

func (l *TestLogger) has(level, msg string) bool {
	_, ok := l.find(level, msg)
	return ok
}

// text renders every call as one string for substring checks.
func (l *TestLogger) text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b strings.Builder
	for _, c := range l.Calls {
		fmt.Fprintf(&b, "%s %s %v\n", c.Level, c.Message, c.KeysAndValues)
	}
	return b.String()
}

func TestNopLogger_DiscardsEverything(t *testing.T) {
	logger := NopLogger{}
	logger.Debug("frame", "peer", "127.0.0.1:1", "type", "data")
	logger.Info("node started", "addr", "127.0.0.1:8888")
	logger.Warn("odd keys", "dangling")
	logger.Error("failure", "error", nil)
}

func TestLogCall_Value(t *testing.T) {
	c := LogCall{KeysAndValues: []any{"peer", "10.0.0.1:8888", 42, "ignored", "dangling"}}

	v, ok := c.Value("peer")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1:8888", v)

	_, ok = c.Value("dangling")
	assert.False(t, ok, "a key without a value is not a pair")
	_, ok = c.Value("missing")
	assert.False(t, ok)
}

func TestConfig_Logger(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	assert.IsType(t, NopLogger{}, cfg.Logger)

	logger := &TestLogger{}
	cfg = &Config{}
	WithLogger(logger)(cfg)
	cfg.applyDefaults()
	assert.Same(t, logger, cfg.Logger)
}

func TestNode_LogsLifecycle(t *testing.T) {
	logger := &TestLogger{}
	node, err := New(NewConfig("127.0.0.1", 0, WithLogger(logger)))
	require.NoError(t, err)
	require.NoError(t, node.Start(context.Background()))

	started, ok := logger.find("info", "node started")
	require.True(t, ok)
	addr, _ := started.Value("addr")
	assert.Equal(t, node.Addr().String(), addr)
	pub, _ := started.Value("public_key")
	assert.Equal(t, node.PublicKey(), pub)
	cipher, _ := started.Value("cipher")
	assert.Equal(t, "aes-256-gcm", cipher)

	require.NoError(t, node.Stop())
	assert.True(t, logger.has("info", "node stopped"))
}

func TestNode_LogsMalformedFrame(t *testing.T) {
	logger := &TestLogger{}
	node := startNode(t, WithLogger(logger))

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(node.Port())))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return logger.has("warn", "discarding malformed frame")
	}, nodeWait, 10*time.Millisecond)
	assert.Len(t, node.Peers(), 1, "a malformed line does not close the connection")
}

func TestNode_NeverLogsMessageContent(t *testing.T) {
	logger := &TestLogger{}
	alice := startNode(t, WithLogger(logger))
	bob := startNode(t, WithLogger(logger))

	alice.connect(t, bob)
	_, err := alice.SendMessage(context.Background(), "the eagle lands at noon", "Agent")
	require.NoError(t, err)
	got := bob.expectMessage(t)
	assert.Equal(t, "the eagle lands at noon", got.payload.Message())

	logs := logger.text()
	assert.Contains(t, logs, "session key established")
	assert.NotContains(t, logs, "the eagle lands at noon")
	assert.NotContains(t, logs, "Agent")
}
