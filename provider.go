package spanz

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// TracerProvider owns the engine: configuration, the id generator, the
// processor pipeline, and a memoized registry of named Tracers.
// Construct one per process and call Shutdown at process exit so
// buffered spans drain. Safe for concurrent use by multiple goroutines.
type TracerProvider struct {
	cfg       Config
	clockImpl clockz.Clock
	logger    *zap.Logger
	gen       *idGenerator
	processor *BatchProcessor

	mu      sync.Mutex
	tracers map[tracerKey]*Tracer

	shutdown atomic.Bool
}

type tracerKey struct {
	name    string
	version string
}

// NewTracerProvider validates the configuration, starts the export
// pipeline, and returns the provider. Invalid configuration (sampler
// ratio outside [0, 1], non-positive buffer capacity, and so on) is a
// *ConfigError and fatal to startup.
func NewTracerProvider(exporter Exporter, opts ...Option) (*TracerProvider, error) {
	o := newProviderOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.validate(); err != nil {
		return nil, err
	}

	tp := &TracerProvider{
		cfg:       o.cfg,
		clockImpl: o.clock,
		logger:    o.logger,
		gen:       newIDGenerator(o.clock),
		tracers:   make(map[tracerKey]*Tracer),
	}
	if o.cfg.Enabled {
		tp.processor = NewBatchProcessor(exporter, o.cfg, o.clock, o.logger)
	}
	return tp, nil
}

// Tracer returns the tracer registered under name (and optional
// version), creating and memoizing it on first use.
func (tp *TracerProvider) Tracer(name string, opts ...TracerOption) *Tracer {
	key := tracerKey{name: name}
	for _, opt := range opts {
		opt(&key)
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()

	if t, ok := tp.tracers[key]; ok {
		return t
	}
	t := &Tracer{provider: tp, name: key.name, version: key.version}
	tp.tracers[key] = t
	return t
}

// TracerOption configures tracer registration.
type TracerOption func(*tracerKey)

// WithTracerVersion distinguishes tracers of the same name by the
// instrumentation version.
func WithTracerVersion(version string) TracerOption {
	return func(k *tracerKey) {
		k.version = version
	}
}

// Enabled reports whether the pipeline is live.
func (tp *TracerProvider) Enabled() bool {
	return tp.cfg.Enabled
}

// Resource returns the resource attributes stamped on every batch.
func (tp *TracerProvider) Resource() []Attribute {
	return batchResource(tp.cfg)
}

// DroppedSpans returns the pipeline's dropped-span counter.
func (tp *TracerProvider) DroppedSpans() int64 {
	if tp.processor == nil {
		return 0
	}
	return tp.processor.DroppedSpans()
}

// ExportedSpans returns the pipeline's exported-span counter.
func (tp *TracerProvider) ExportedSpans() int64 {
	if tp.processor == nil {
		return 0
	}
	return tp.processor.ExportedSpans()
}

// ForceFlush synchronously exports whatever is currently buffered.
func (tp *TracerProvider) ForceFlush(ctx context.Context) {
	if tp.processor != nil {
		tp.processor.ForceFlush(ctx)
	}
}

// Shutdown drains the pipeline, bounded by timeout, and shuts the
// exporter down. Spans ended after Shutdown begins are counted as
// dropped; in-flight callers never observe an error from tracing.
// Idempotent: only the first call does work.
func (tp *TracerProvider) Shutdown(timeout time.Duration) error {
	if !tp.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	defer tp.gen.close()
	if tp.processor == nil {
		return nil
	}
	if err := tp.processor.Shutdown(timeout); err != nil {
		tp.logger.Error("exporter shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

// onEnd routes an ended span into the pipeline, if there is one.
func (tp *TracerProvider) onEnd(span Span) {
	if tp.processor != nil {
		tp.processor.OnEnd(span)
	}
}
