package spanz

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// BatchProcessor decouples span completion from export I/O: OnEnd
// callers only ever touch a bounded in-memory buffer, while a background
// loop drains it in batches to the Exporter. Safe for concurrent use by
// multiple goroutines.
//
// The buffer is the only shared mutable structure. Producers hold its
// lock just long enough to append; the export loop swaps the whole
// buffer out under the same lock and performs all I/O outside it.
//
//nolint:govet // Field alignment follows readability over memory
type BatchProcessor struct {
	exporter Exporter
	clock    clockz.Clock
	logger   *zap.Logger

	batchSize     int
	maxDelay      time.Duration
	capacity      int
	exportTimeout time.Duration
	maxRetries    int
	dropPolicy    DropPolicy
	resource      []Attribute

	mu  sync.Mutex
	buf []Span

	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}

	stopped  atomic.Bool
	dropped  atomic.Int64
	exported atomic.Int64
}

// NewBatchProcessor creates a processor and starts its export loop.
// The caller owns shutdown; cfg must already be validated.
func NewBatchProcessor(exporter Exporter, cfg Config, clock clockz.Clock, logger *zap.Logger) *BatchProcessor {
	p := &BatchProcessor{
		exporter:      exporter,
		clock:         clock,
		logger:        logger,
		batchSize:     cfg.BatchSize,
		maxDelay:      cfg.MaxDelay,
		capacity:      cfg.BufferCapacity,
		exportTimeout: cfg.ExportTimeout,
		maxRetries:    cfg.MaxRetryAttempts,
		dropPolicy:    cfg.DropPolicy,
		resource:      batchResource(cfg),
		buf:           make([]Span, 0, cfg.BufferCapacity),
		wake:          make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
	go p.run()
	return p
}

// batchResource assembles the resource attributes stamped on every batch.
func batchResource(cfg Config) []Attribute {
	var attrs []Attribute
	if cfg.ServiceName != "" {
		attrs = append(attrs, String("service.name", cfg.ServiceName))
	}
	return append(attrs, cfg.Resource...)
}

// OnEnd accepts an ended span. It never blocks and never fails: when the
// buffer is full the configured drop policy sheds one span and the drop
// counter is incremented, and after shutdown has begun spans are counted
// as dropped rather than rejected.
func (p *BatchProcessor) OnEnd(span Span) {
	if p.stopped.Load() {
		p.dropped.Add(1)
		return
	}

	p.mu.Lock()
	if len(p.buf) >= p.capacity {
		if p.dropPolicy == DropNewest {
			p.mu.Unlock()
			p.dropped.Add(1)
			return
		}
		// DropOldest: evict the front, keep end-order intact.
		copy(p.buf, p.buf[1:])
		p.buf = p.buf[:len(p.buf)-1]
		p.dropped.Add(1)
	}
	p.buf = append(p.buf, span)
	n := len(p.buf)
	p.mu.Unlock()

	if n >= p.batchSize {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// run is the background export loop. It wakes when the buffer reaches
// the batch size or when the max-delay timer elapses, whichever first.
func (p *BatchProcessor) run() {
	defer close(p.done)

	for {
		select {
		case <-p.stopCh:
			return
		case <-p.wake:
			p.export(context.Background(), p.swap())
		case <-p.clock.After(p.maxDelay):
			p.export(context.Background(), p.swap())
		}
	}
}

// swap exchanges the buffer for a fresh one under a brief critical
// section, so producers never wait on export I/O.
func (p *BatchProcessor) swap() []Span {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buf) == 0 {
		return nil
	}
	spans := p.buf
	p.buf = make([]Span, 0, p.capacity)
	return spans
}

// export submits one batch, retrying retryable failures with bounded
// exponential backoff. Exhausted or non-retryable batches are counted as
// dropped; nothing is ever re-queued.
func (p *BatchProcessor) export(ctx context.Context, spans []Span) {
	if len(spans) == 0 {
		return
	}
	batch := Batch{Resource: p.resource, Spans: spans}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // Bounded by attempt count, not elapsed time.

	retries := 0
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, p.exportTimeout)
		outcome := p.exporter.Export(attemptCtx, batch)
		cancel()

		switch outcome.kind {
		case outcomeSuccess:
			p.exported.Add(int64(len(spans)))
			return

		case outcomePartial:
			accepted := outcome.accepted
			if accepted < 0 {
				accepted = 0
			}
			if accepted > len(spans) {
				accepted = len(spans)
			}
			p.exported.Add(int64(accepted))
			p.dropped.Add(int64(len(spans) - accepted))
			if accepted < len(spans) {
				p.logger.Warn("span batch partially accepted",
					zap.Int("batch_size", len(spans)),
					zap.Int("accepted", accepted))
			}
			return

		case outcomeFailure:
			if !outcome.retryable || retries >= p.maxRetries {
				p.dropped.Add(int64(len(spans)))
				p.logger.Error("span batch dropped",
					zap.Int("batch_size", len(spans)),
					zap.Int("retries", retries),
					zap.Bool("retryable", outcome.retryable),
					zap.Error(outcome.err))
				return
			}
			retries++
			p.logger.Warn("span batch export failed, retrying",
				zap.Int("batch_size", len(spans)),
				zap.Int("retry", retries),
				zap.Error(outcome.err))
			if !p.waitRetry(ctx, bo.NextBackOff()) {
				p.dropped.Add(int64(len(spans)))
				return
			}
		}
	}
}

// waitRetry sleeps for the backoff interval. It reports false when the
// wait was cut short by shutdown or context expiry, in which case the
// batch is abandoned (accepted loss, never indefinite retry).
func (p *BatchProcessor) waitRetry(ctx context.Context, d time.Duration) bool {
	if d == backoff.Stop {
		return false
	}
	select {
	case <-p.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	case <-p.stopCh:
		return false
	}
}

// ForceFlush synchronously drains and exports whatever is buffered.
func (p *BatchProcessor) ForceFlush(ctx context.Context) {
	p.export(ctx, p.swap())
}

// Shutdown stops intake, stops the export loop, and flushes the
// remaining buffer with one final export pass bounded by timeout.
// A zero timeout still makes the best-effort attempt under an
// already-expired deadline. Hitting the timeout is accepted loss, not an
// error; Shutdown only reports the exporter's own shutdown failure.
// Idempotent: later calls return nil immediately.
func (p *BatchProcessor) Shutdown(timeout time.Duration) error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Cooperative: wait for the loop (and any in-flight export attempt)
	// to finish rather than preempting it mid-write.
	close(p.stopCh)
	select {
	case <-p.done:
	case <-ctx.Done():
		p.logger.Warn("span processor shutdown timed out waiting for export loop",
			zap.Duration("timeout", timeout))
	}

	p.export(ctx, p.swap())
	return p.exporter.Shutdown(ctx)
}

// DroppedSpans returns the number of spans shed by backpressure,
// post-shutdown submission, or failed export.
func (p *BatchProcessor) DroppedSpans() int64 {
	return p.dropped.Load()
}

// ExportedSpans returns the number of spans the exporter accepted.
func (p *BatchProcessor) ExportedSpans() int64 {
	return p.exported.Load()
}

// buffered returns the current buffer length.
func (p *BatchProcessor) buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}
