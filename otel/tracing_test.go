package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracer(tp), exporter
}

func findAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewTracer(t *testing.T) {
	tracer := NewTracer(nil)
	if tracer == nil || tracer.tracer == nil {
		t.Fatal("NewTracer(nil) should fall back to a noop tracer")
	}

	_, span := tracer.StartSend(context.Background(), "127.0.0.1:5000")
	if span.IsRecording() {
		t.Error("noop span should not record")
	}
	span.End()
}

func TestTracer_NilReceiver(t *testing.T) {
	var tracer *Tracer
	ctx, span := tracer.StartConnect(context.Background(), "peer", "outbound")
	if ctx == nil || span == nil {
		t.Fatal("nil tracer must still return a usable context and span")
	}
	tracer.EndSpan(span, errors.New("ignored"))
}

func TestTracer_StartConnect(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, span := tracer.StartConnect(context.Background(), "10.0.0.2:5000", "outbound")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != SpanConnect {
		t.Errorf("span name = %q, want %q", spans[0].Name, SpanConnect)
	}
	if spans[0].SpanKind != trace.SpanKindClient {
		t.Errorf("span kind = %v, want client", spans[0].SpanKind)
	}
	if v, ok := findAttr(spans[0].Attributes, AttrPeer); !ok || v.AsString() != "10.0.0.2:5000" {
		t.Errorf("peer attribute = %v", v)
	}
	if v, ok := findAttr(spans[0].Attributes, AttrConnectionDirection); !ok || v.AsString() != "outbound" {
		t.Errorf("direction attribute = %v", v)
	}
}

func TestTracer_SpanHierarchy(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	ctx, send := tracer.StartSend(context.Background(), "peer")
	_, enc := tracer.StartEncrypt(ctx)
	enc.End()
	_, write := tracer.StartWrite(ctx, 128)
	write.End()
	send.End()

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	parent := spans[2]
	if parent.Name != SpanSend {
		t.Fatalf("last ended span = %q, want %q", parent.Name, SpanSend)
	}
	for _, child := range spans[:2] {
		if child.Parent.SpanID() != parent.SpanContext.SpanID() {
			t.Errorf("%s is not a child of %s", child.Name, parent.Name)
		}
	}
	if v, ok := findAttr(spans[1].Attributes, AttrMessageSize); !ok || v.AsInt64() != 128 {
		t.Errorf("write size attribute = %v", v)
	}
}

func TestTracer_RecordHandshakeResult(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, ok := tracer.StartHandshake(context.Background(), "peer", "conn-1")
	tracer.RecordHandshakeResult(ok, "success", nil)
	ok.End()

	_, bad := tracer.StartHandshake(context.Background(), "peer", "conn-2")
	tracer.RecordHandshakeResult(bad, "duplicate", errors.New("duplicate connection"))
	bad.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("success status = %v", spans[0].Status.Code)
	}
	if spans[1].Status.Code != codes.Error {
		t.Errorf("failure status = %v", spans[1].Status.Code)
	}
	if v, _ := findAttr(spans[1].Attributes, AttrHandshakeResult); v.AsString() != "duplicate" {
		t.Errorf("handshake.result = %q", v.AsString())
	}
}

func TestTracer_EndSpan_RecordsError(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, span := tracer.StartDecrypt(context.Background())
	tracer.EndSpan(span, errors.New("authentication failed"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected an exception event")
	}
}
