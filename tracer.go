package spanz

import (
	"context"

	"github.com/zoobzio/clockz"
)

// Tracer creates spans. Obtain one from a TracerProvider; tracers are
// memoized by name and version and safe for concurrent use.
type Tracer struct {
	provider *TracerProvider
	name     string
	version  string
}

// Name returns the tracer's registered name.
func (t *Tracer) Name() string {
	return t.name
}

// Version returns the tracer's registered version, if any.
func (t *Tracer) Version() string {
	return t.version
}

// StartSpan creates a new span and returns it with a context carrying it
// as the ambient current span. If ctx already carries a span context,
// the new span is its child and inherits trace id, sampling decision,
// and baggage; otherwise a new trace is rooted and the provider's
// sampler decides whether it is recorded.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, *ActiveSpan) {
	// Handle nil context by creating a new one.
	if ctx == nil {
		ctx = context.Background()
	}

	var sc SpanContext
	if parent, ok := SpanContextFromContext(ctx); ok && parent.IsValid() {
		sc = newChild(t.provider.gen, parent)
	} else {
		sc = newRoot(t.provider.gen, t.rootSampler())
	}

	span := &Span{
		Context:   sc,
		Name:      name,
		StartTime: t.clock().Now(),
	}
	if len(attrs) > 0 {
		span.Attributes = append(span.Attributes, attrs...)
	}

	active := &ActiveSpan{span: span, tracer: t}
	return ContextWithSpanContext(ctx, sc), active
}

// Trace runs fn inside a new span: the span is installed as the ambient
// current context for the duration of fn, an error from fn is recorded
// as an exception event with status ERROR and returned unchanged, and
// the span is ended exactly once on every exit path, panics included.
// The tracing layer is transparent to the caller's own error handling.
func (t *Tracer) Trace(ctx context.Context, name string, attrs []Attribute, fn func(ctx context.Context) error) error {
	ctx, span := t.StartSpan(ctx, name, attrs...)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// AddSpan emits a zero-duration span marking a point in time, as a child
// of the ambient span context if one is present. Fire-and-forget: the
// span is ended before AddSpan returns and start time equals end time.
func (t *Tracer) AddSpan(ctx context.Context, name string, attrs ...Attribute) {
	_, span := t.StartSpan(ctx, name, attrs...)
	span.endAt(span.span.StartTime)
}

// rootSampler returns the policy for new traces. A disabled provider
// samples nothing, which keeps the whole surface callable at near-zero
// cost.
func (t *Tracer) rootSampler() Sampler {
	if !t.provider.cfg.Enabled {
		return alwaysOffSampler{}
	}
	return t.provider.cfg.Sampler
}

func (t *Tracer) clock() clockz.Clock {
	return t.provider.clockImpl
}

func (t *Tracer) onEnd(span Span) {
	t.provider.onEnd(span)
}
