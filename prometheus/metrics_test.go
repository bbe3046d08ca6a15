package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Alfaashh/P2PChat"
)

func TestMetricsImplementsInterface(t *testing.T) {
	var _ p2pchat.Metrics = (*Metrics)(nil)
}

func gatheredNames(t *testing.T, registry *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("", registry)
	m.ConnectionOpened("inbound")

	if !gatheredNames(t, registry)["p2pchat_connections_opened_total"] {
		t.Error("expected metric with default namespace 'p2pchat'")
	}
}

func TestNewMetrics_CustomNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("chat", registry)
	m.MessageSent(10)

	names := gatheredNames(t, registry)
	if !names["chat_messages_sent_total"] || !names["chat_bytes_sent_total"] {
		t.Errorf("expected metrics with custom namespace, got %v", names)
	}
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	m := NewMetricsWithRegisterer("unregistered", nil)
	m.ConnectionOpened("inbound")

	if count := testutil.ToFloat64(m.connectionsOpened.WithLabelValues("inbound")); count != 1 {
		t.Errorf("inbound connections = %v, want 1", count)
	}
}

func TestConnectionMetrics(t *testing.T) {
	m := NewMetricsWithRegisterer("test", prometheus.NewRegistry())

	m.ConnectionOpened("inbound")
	m.ConnectionOpened("inbound")
	m.ConnectionOpened("outbound")
	m.ConnectionClosed("inbound")
	m.ConnectionAttempt("success")
	m.ConnectionAttempt("failure")
	m.ConnectionAttempt("failure")
	m.HandshakeResult("success")
	m.HandshakeResult("version_mismatch")
	m.HandshakeDuration(0.02)
	m.DuplicateConnection()

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"inbound opened", m.connectionsOpened.WithLabelValues("inbound"), 2},
		{"outbound opened", m.connectionsOpened.WithLabelValues("outbound"), 1},
		{"inbound closed", m.connectionsClosed.WithLabelValues("inbound"), 1},
		{"dial success", m.connectionAttempts.WithLabelValues("success"), 1},
		{"dial failure", m.connectionAttempts.WithLabelValues("failure"), 2},
		{"handshake success", m.handshakeResults.WithLabelValues("success"), 1},
		{"handshake version", m.handshakeResults.WithLabelValues("version_mismatch"), 1},
		{"duplicates", m.duplicateConnections, 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}

	if n := testutil.CollectAndCount(m.handshakeDuration); n != 1 {
		t.Errorf("handshake duration series = %d, want 1", n)
	}
}

func TestMessageMetrics(t *testing.T) {
	m := NewMetricsWithRegisterer("test", prometheus.NewRegistry())

	m.MessageSent(100)
	m.MessageSent(50)
	m.MessageReceived(70)
	m.FrameDropped("replay")
	m.FrameDropped("replay")
	m.FrameDropped("malformed")
	m.MessageDropped()

	if got := testutil.ToFloat64(m.messagesSent); got != 2 {
		t.Errorf("messages sent = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.bytesSent); got != 150 {
		t.Errorf("bytes sent = %v, want 150", got)
	}
	if got := testutil.ToFloat64(m.messagesReceived); got != 1 {
		t.Errorf("messages received = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.bytesReceived); got != 70 {
		t.Errorf("bytes received = %v, want 70", got)
	}
	if got := testutil.ToFloat64(m.framesDropped.WithLabelValues("replay")); got != 2 {
		t.Errorf("replay drops = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.framesDropped.WithLabelValues("malformed")); got != 1 {
		t.Errorf("malformed drops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.messagesDropped); got != 1 {
		t.Errorf("messages dropped = %v, want 1", got)
	}
}

func TestCryptoAndEventMetrics(t *testing.T) {
	m := NewMetricsWithRegisterer("test", prometheus.NewRegistry())

	m.EncryptionError()
	m.DecryptionError()
	m.DecryptionError()
	m.KeyDerivation("success")
	m.KeyDerivation("failure")
	m.EventEmitted("ConnectedSecured")
	m.EventDropped()

	if got := testutil.ToFloat64(m.encryptionErrors); got != 1 {
		t.Errorf("encryption errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.decryptionErrors); got != 2 {
		t.Errorf("decryption errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.keyDerivations.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed derivations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.eventsEmitted.WithLabelValues("ConnectedSecured")); got != 1 {
		t.Errorf("secured events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.eventsDropped); got != 1 {
		t.Errorf("events dropped = %v, want 1", got)
	}
}

func TestMetrics_WithNode(t *testing.T) {
	m := NewMetricsWithRegisterer("node", prometheus.NewRegistry())

	start := func(opts ...p2pchat.ConfigOption) *p2pchat.Node {
		node, err := p2pchat.New(p2pchat.NewConfig("127.0.0.1", 0, opts...))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if err := node.Start(context.Background()); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		t.Cleanup(func() { _ = node.Stop() })
		return node
	}
	alice := start(p2pchat.WithMetrics(m))
	bob := start()

	if _, err := alice.Connect(context.Background(), "127.0.0.1", bob.Port()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for testutil.ToFloat64(m.handshakeResults.WithLabelValues("success")) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handshake was not recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := testutil.ToFloat64(m.connectionsOpened.WithLabelValues("outbound")); got != 1 {
		t.Errorf("outbound connections = %v, want 1", got)
	}
}
