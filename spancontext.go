package spanz

import "context"

// ctxKeyType is a private type for context keys to avoid collisions.
type ctxKeyType string

const (
	spanCtxKey ctxKeyType = "spanz"
)

// SpanContext is the immutable identity and propagation state of one span:
// trace id, span id, parent id, the trace's sampling decision, and baggage.
// It is copied by value; derivation methods return new values and never
// mutate the receiver.
type SpanContext struct {
	TraceID      TraceID `json:"trace_id"`
	SpanID       SpanID  `json:"span_id"`
	ParentSpanID SpanID  `json:"parent_span_id,omitempty"`
	Sampled      bool    `json:"sampled"`
	baggage      map[string]string
}

// IsValid reports whether the context carries real span identity.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// IsRoot reports whether this context has no parent span.
func (sc SpanContext) IsRoot() bool {
	return !sc.ParentSpanID.IsValid()
}

// BaggageValue returns the baggage entry for key, if present.
func (sc SpanContext) BaggageValue(key string) (string, bool) {
	v, ok := sc.baggage[key]
	return v, ok
}

// BaggageLen returns the number of baggage entries.
func (sc SpanContext) BaggageLen() int {
	return len(sc.baggage)
}

// WithBaggage derives a new SpanContext with the entry added.
// The receiver's baggage is never modified; concurrent holders of the
// original context observe nothing.
func (sc SpanContext) WithBaggage(key, value string) SpanContext {
	derived := sc
	derived.baggage = make(map[string]string, len(sc.baggage)+1)
	for k, v := range sc.baggage {
		derived.baggage[k] = v
	}
	derived.baggage[key] = value
	return derived
}

// newRoot builds the context for a new trace: fresh trace and span ids,
// no parent. The sampler sees the fresh trace id and its decision is
// fixed for the whole trace.
func newRoot(gen *idGenerator, sampler Sampler) SpanContext {
	traceID := gen.newTraceID()
	return SpanContext{
		TraceID: traceID,
		SpanID:  gen.newSpanID(),
		Sampled: sampler.ShouldSample(traceID),
	}
}

// newChild builds a child context: same trace id and sampling decision,
// new span id, parent recorded. Baggage is inherited by reference; it is
// never mutated after creation so sharing is safe.
func newChild(gen *idGenerator, parent SpanContext) SpanContext {
	return SpanContext{
		TraceID:      parent.TraceID,
		SpanID:       gen.newSpanID(),
		ParentSpanID: parent.SpanID,
		Sampled:      parent.Sampled,
		baggage:      parent.baggage,
	}
}

// ContextWithSpanContext returns a context carrying sc as the ambient
// current span context. Goroutines launched with the returned context see
// sc as their parent; the caller's own context is unchanged.
func ContextWithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanCtxKey, sc)
}

// SpanContextFromContext extracts the ambient current span context.
// The second return is false if none is present.
func SpanContextFromContext(ctx context.Context) (SpanContext, bool) {
	if ctx == nil {
		return SpanContext{}, false
	}
	sc, ok := ctx.Value(spanCtxKey).(SpanContext)
	return sc, ok
}
