package spanz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// newTestProvider builds a provider backed by a SliceExporter and tears
// it down with the test.
func newTestProvider(t *testing.T, opts ...Option) (*TracerProvider, *SliceExporter) {
	t.Helper()

	exporter := NewSliceExporter()
	provider, err := NewTracerProvider(exporter, opts...)
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	t.Cleanup(func() {
		_ = provider.Shutdown(time.Second)
	})
	return provider, exporter
}

func TestStartSpanNoParent(t *testing.T) {
	provider, _ := newTestProvider(t)
	tracer := provider.Tracer("test")

	ctx, span := tracer.StartSpan(context.Background(), "root-op")

	if span.span.Name != "root-op" {
		t.Errorf("expected span name 'root-op', got %s", span.span.Name)
	}
	if !span.TraceID().IsValid() {
		t.Error("expected valid trace id")
	}
	if !span.SpanID().IsValid() {
		t.Error("expected valid span id")
	}
	if !span.SpanContext().IsRoot() {
		t.Error("expected root span to have no parent")
	}
	if span.span.StartTime.IsZero() {
		t.Error("expected non-zero start time")
	}
	if span.span.Status != StatusUnset {
		t.Error("expected UNSET status at start")
	}

	sc, ok := SpanContextFromContext(ctx)
	if !ok || sc.SpanID != span.SpanID() {
		t.Error("expected span context propagated in returned context")
	}
}

func TestStartSpanWithParent(t *testing.T) {
	provider, _ := newTestProvider(t)
	tracer := provider.Tracer("test")

	parentCtx, parent := tracer.StartSpan(context.Background(), "parent-op")
	_, child := tracer.StartSpan(parentCtx, "child-op")

	if child.TraceID() != parent.TraceID() {
		t.Errorf("expected child trace id %s, got %s", parent.TraceID(), child.TraceID())
	}
	if child.SpanContext().ParentSpanID != parent.SpanID() {
		t.Errorf("expected child parent id %s, got %s", parent.SpanID(), child.SpanContext().ParentSpanID)
	}
	if child.SpanID() == parent.SpanID() {
		t.Error("expected child to have a fresh span id")
	}
}

func TestStartSpanNilContext(t *testing.T) {
	provider, _ := newTestProvider(t)
	tracer := provider.Tracer("test")

	//nolint:staticcheck // Nil tolerance is part of the contract
	ctx, span := tracer.StartSpan(nil, "op")
	if ctx == nil {
		t.Fatal("expected a usable context back")
	}
	span.End()
}

func TestStartSpanInitialAttributes(t *testing.T) {
	provider, _ := newTestProvider(t)
	tracer := provider.Tracer("test")

	_, span := tracer.StartSpan(context.Background(), "op",
		String("http.method", "GET"),
		Int("http.status", 200),
	)
	span.End()

	if len(span.span.Attributes) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(span.span.Attributes))
	}
	if span.span.Attributes[0].Key != "http.method" {
		t.Error("initial attribute order lost")
	}
}

func TestTraceSuccess(t *testing.T) {
	provider, exporter := newTestProvider(t)
	tracer := provider.Tracer("test")

	var sawAmbient bool
	err := tracer.Trace(context.Background(), "work", []Attribute{String("k", "v")}, func(ctx context.Context) error {
		_, sawAmbient = SpanContextFromContext(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawAmbient {
		t.Error("body must run with the span as ambient context")
	}

	provider.ForceFlush(context.Background())
	spans := exporter.Spans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 exported span, got %d", len(spans))
	}
	if spans[0].Name != "work" || spans[0].Status != StatusUnset {
		t.Errorf("unexpected exported span %+v", spans[0])
	}
	if spans[0].EndTime.IsZero() {
		t.Error("Trace must end the span")
	}
}

func TestTraceErrorTransparency(t *testing.T) {
	provider, exporter := newTestProvider(t)
	tracer := provider.Tracer("test")

	sentinel := errors.New("payment declined")
	err := tracer.Trace(context.Background(), "charge", nil, func(context.Context) error {
		return sentinel
	})

	// The exact error comes back, wrapped by nothing.
	if !errors.Is(err, sentinel) || err.Error() != "payment declined" {
		t.Fatalf("expected the sentinel error unchanged, got %v", err)
	}

	provider.ForceFlush(context.Background())
	spans := exporter.Spans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 exported span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status != StatusError {
		t.Errorf("expected ERROR status, got %v", span.Status)
	}
	if len(span.Events) != 1 || span.Events[0].Name != "exception" {
		t.Fatalf("expected one exception event, got %v", span.Events)
	}
	if span.Events[0].Attributes[1].Value.AsString() != "payment declined" {
		t.Error("exception event must carry the error message")
	}
}

func TestTraceEndsSpanOnPanic(t *testing.T) {
	provider, exporter := newTestProvider(t)
	tracer := provider.Tracer("test")

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected the panic to propagate")
			}
		}()
		_ = tracer.Trace(context.Background(), "explode", nil, func(context.Context) error {
			panic("boom")
		})
	}()

	provider.ForceFlush(context.Background())
	if got := exporter.Len(); got != 1 {
		t.Errorf("expected the span to be ended and exported despite the panic, got %d", got)
	}
}

func TestTraceNesting(t *testing.T) {
	provider, exporter := newTestProvider(t)
	tracer := provider.Tracer("test")

	err := tracer.Trace(context.Background(), "outer", nil, func(ctx context.Context) error {
		return tracer.Trace(ctx, "inner", nil, func(context.Context) error {
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	provider.ForceFlush(context.Background())
	spans := exporter.Spans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	// Inner ends first, so it arrives first.
	inner, outer := spans[0], spans[1]
	if inner.Name != "inner" || outer.Name != "outer" {
		t.Fatalf("unexpected span order: %s, %s", inner.Name, outer.Name)
	}
	if inner.Context.TraceID != outer.Context.TraceID {
		t.Error("nested spans must share a trace id")
	}
	if inner.Context.ParentSpanID != outer.Context.SpanID {
		t.Error("inner span must be a child of the outer span")
	}
}

func TestAddSpanZeroDuration(t *testing.T) {
	provider, exporter := newTestProvider(t)
	tracer := provider.Tracer("test")

	ctx, parent := tracer.StartSpan(context.Background(), "parent")
	tracer.AddSpan(ctx, "checkpoint", String("stage", "validated"))
	parent.End()

	provider.ForceFlush(context.Background())
	spans := exporter.Spans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	point := spans[0]
	if point.Name != "checkpoint" {
		t.Fatalf("expected the point span first, got %s", point.Name)
	}
	if !point.EndTime.Equal(point.StartTime) {
		t.Errorf("expected zero duration, start %v end %v", point.StartTime, point.EndTime)
	}
	if point.Duration != 0 {
		t.Errorf("expected zero duration, got %v", point.Duration)
	}
	if point.Context.ParentSpanID != parent.SpanID() {
		t.Error("point span must be a child of the ambient span")
	}
}

func TestConcurrentChildSpans(t *testing.T) {
	provider, exporter := newTestProvider(t)
	tracer := provider.Tracer("test")

	ctx, root := tracer.StartSpan(context.Background(), "fan-out")

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(ctx context.Context) {
			defer wg.Done()
			_, span := tracer.StartSpan(ctx, "worker")
			span.SetAttribute(Bool("ok", true))
			span.End()
		}(ctx)
	}
	wg.Wait()
	root.End()

	provider.ForceFlush(context.Background())
	spans := exporter.Spans()
	if len(spans) != workers+1 {
		t.Fatalf("expected %d spans, got %d", workers+1, len(spans))
	}
	for _, s := range spans {
		if s.Context.TraceID != root.TraceID() {
			t.Error("worker span escaped the trace")
		}
		if s.Name == "worker" && s.Context.ParentSpanID != root.SpanID() {
			t.Error("worker span lost its parent")
		}
	}
}

func TestTracerUnsampledSpansNotExported(t *testing.T) {
	provider, exporter := newTestProvider(t, WithSampler(AlwaysOff()))
	tracer := provider.Tracer("test")

	err := tracer.Trace(context.Background(), "invisible", nil, func(ctx context.Context) error {
		tracer.AddSpan(ctx, "also-invisible")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	provider.ForceFlush(context.Background())
	if got := exporter.Len(); got != 0 {
		t.Errorf("expected nothing exported when unsampled, got %d", got)
	}
}
