// Package spanz is a minimal, embeddable tracing span engine.
//
// spanz implements the part of a tracing SDK that has to exist before
// any wire format does: span lifecycle, context propagation across
// goroutines, attribute and event recording, and batched export with
// backpressure. Serialization and transport stay behind the Exporter
// interface.
//
// Core Components:
//   - TracerProvider: process-wide owner of configuration and pipeline.
//   - Tracer: creates spans, decides sampling at the trace root.
//   - ActiveSpan: thread-safe handle for an in-progress span.
//   - Span: frozen record handed to the processor when a span ends.
//   - BatchProcessor: bounded buffer, batching, retry, drop accounting.
//   - Exporter: external sink consuming finished batches.
//
// Basic Usage:
//
//	provider, err := spanz.NewTracerProvider(exporter,
//		spanz.WithServiceName("checkout"),
//	)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(5 * time.Second)
//
//	tracer := provider.Tracer("checkout/payments")
//
//	// Wrap a unit of work in a span.
//	err = tracer.Trace(ctx, "charge-card", nil, func(ctx context.Context) error {
//		// Nested spans pick up the parent from ctx.
//		tracer.AddSpan(ctx, "card-validated")
//		return chargeCard(ctx)
//	})
//
// Thread Safety:
//
// TracerProvider, Tracer, BatchProcessor, and ActiveSpan are safe for
// concurrent use. A frozen Span handed to an exporter must be treated
// as read-only.
//
// Context Propagation:
//
// The ambient current span travels on context.Context, never in shared
// mutable state, so unrelated requests in one process cannot observe
// each other. Goroutines receive the SpanContext value active at launch
// time through the context they are given.
//
// Failure Policy:
//
// Tracing never breaks the traced application. Export failures, full
// buffers, and post-shutdown spans are counted (see DroppedSpans), not
// raised; errors returned by a Trace body pass through unchanged.
package spanz
