// Package otel provides OpenTelemetry tracing for p2pchat nodes.
//
// # Span Hierarchy
//
//	p2pchat.connect
//	└── p2pchat.dial                   (outbound connections)
//
//	p2pchat.handshake
//	└── p2pchat.key_derivation
//
//	p2pchat.send
//	├── p2pchat.encrypt
//	└── p2pchat.write
//
//	p2pchat.receive
//	└── p2pchat.decrypt
//
//	p2pchat.broadcast
//	└── p2pchat.send                   (one per peer)
//
//	p2pchat.disconnect
//
// # Example Usage
//
//	tracer := p2potel.NewTracer(otel.GetTracerProvider())
//	cfg := p2pchat.NewConfig("0.0.0.0", 5000, p2pchat.WithTracer(tracer))
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName is the instrumentation scope name.
	TracerName = "github.com/Alfaashh/P2PChat"

	// Span names
	SpanConnect    = "p2pchat.connect"
	SpanDial       = "p2pchat.dial"
	SpanHandshake  = "p2pchat.handshake"
	SpanKeyDerive  = "p2pchat.key_derivation"
	SpanSend       = "p2pchat.send"
	SpanEncrypt    = "p2pchat.encrypt"
	SpanWrite      = "p2pchat.write"
	SpanReceive    = "p2pchat.receive"
	SpanDecrypt    = "p2pchat.decrypt"
	SpanBroadcast  = "p2pchat.broadcast"
	SpanDisconnect = "p2pchat.disconnect"

	// Attribute keys
	AttrPeer                = "peer.identity"
	AttrConnectionID        = "connection.id"
	AttrMessageSize         = "message.size"
	AttrConnectionDirection = "connection.direction"
	AttrHandshakeResult     = "handshake.result"
	AttrPeerCount           = "broadcast.peers"
	AttrErrorMessage        = "error.message"
)

// Tracer creates spans for connection lifecycle, handshakes and message
// operations. A nil *Tracer is valid and records nothing.
//
// Tracer is safe for concurrent use.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer using the given TracerProvider.
// If provider is nil, a no-op tracer is used.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = noop.NewTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(TracerName)}
}

func (t *Tracer) start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, name, opts...)
}

// StartConnect starts a span for a connection attempt.
func (t *Tracer) StartConnect(ctx context.Context, identity, direction string) (context.Context, trace.Span) {
	return t.start(ctx, SpanConnect,
		trace.WithAttributes(
			attribute.String(AttrPeer, identity),
			attribute.String(AttrConnectionDirection, direction),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartDial starts a span for the TCP dial.
func (t *Tracer) StartDial(ctx context.Context, identity string) (context.Context, trace.Span) {
	return t.start(ctx, SpanDial,
		trace.WithAttributes(attribute.String(AttrPeer, identity)),
	)
}

// StartHandshake starts a span for processing a peer's handshake frame.
func (t *Tracer) StartHandshake(ctx context.Context, identity, connID string) (context.Context, trace.Span) {
	return t.start(ctx, SpanHandshake,
		trace.WithAttributes(
			attribute.String(AttrPeer, identity),
			attribute.String(AttrConnectionID, connID),
		),
	)
}

// StartKeyDerivation starts a span for session-key derivation.
func (t *Tracer) StartKeyDerivation(ctx context.Context, identity string) (context.Context, trace.Span) {
	return t.start(ctx, SpanKeyDerive,
		trace.WithAttributes(attribute.String(AttrPeer, identity)),
	)
}

// StartSend starts a span for sending one message to one peer.
func (t *Tracer) StartSend(ctx context.Context, identity string) (context.Context, trace.Span) {
	return t.start(ctx, SpanSend,
		trace.WithAttributes(attribute.String(AttrPeer, identity)),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
}

// StartEncrypt starts a span for encryption.
func (t *Tracer) StartEncrypt(ctx context.Context) (context.Context, trace.Span) {
	return t.start(ctx, SpanEncrypt)
}

// StartWrite starts a span for writing a frame of size bytes.
func (t *Tracer) StartWrite(ctx context.Context, size int) (context.Context, trace.Span) {
	return t.start(ctx, SpanWrite,
		trace.WithAttributes(attribute.Int(AttrMessageSize, size)),
	)
}

// StartReceive starts a span for an inbound data frame.
func (t *Tracer) StartReceive(ctx context.Context, identity string, size int) (context.Context, trace.Span) {
	return t.start(ctx, SpanReceive,
		trace.WithAttributes(
			attribute.String(AttrPeer, identity),
			attribute.Int(AttrMessageSize, size),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// StartDecrypt starts a span for decryption.
func (t *Tracer) StartDecrypt(ctx context.Context) (context.Context, trace.Span) {
	return t.start(ctx, SpanDecrypt)
}

// StartBroadcast starts a span covering a broadcast to peers connections.
func (t *Tracer) StartBroadcast(ctx context.Context, peers int) (context.Context, trace.Span) {
	return t.start(ctx, SpanBroadcast,
		trace.WithAttributes(attribute.Int(AttrPeerCount, peers)),
	)
}

// StartDisconnect starts a span for tearing down a connection.
func (t *Tracer) StartDisconnect(ctx context.Context, identity string) (context.Context, trace.Span) {
	return t.start(ctx, SpanDisconnect,
		trace.WithAttributes(attribute.String(AttrPeer, identity)),
	)
}

// RecordHandshakeResult records the result of a handshake on the given span.
func (t *Tracer) RecordHandshakeResult(span trace.Span, result string, err error) {
	span.SetAttributes(attribute.String(AttrHandshakeResult, result))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// RecordError records an error on the given span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// EndSpan ends a span, optionally recording an error.
func (t *Tracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
