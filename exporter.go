package spanz

import (
	"context"
	"sync"
)

// Batch is one unit of export work: the spans drained in a single buffer
// swap plus the provider's resource attributes (service name and
// friends). Relative end-order of spans within a batch is preserved.
type Batch struct {
	Resource []Attribute `json:"resource,omitempty"`
	Spans    []Span      `json:"spans"`
}

// Exporter is the external sink for finished spans. The engine never
// surfaces exporter failures to business logic; outcomes only drive the
// processor's retry and drop accounting.
//
// Export must honor ctx: the processor bounds every attempt with its
// configured export timeout, and shutdown flushes run under a deadline.
type Exporter interface {
	Export(ctx context.Context, batch Batch) Outcome
	Shutdown(ctx context.Context) error
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeFailure
	outcomePartial
)

// Outcome is the result of one export attempt.
type Outcome struct {
	err       error
	accepted  int
	kind      outcomeKind
	retryable bool
}

// Success reports that the whole batch was accepted.
func Success() Outcome {
	return Outcome{kind: outcomeSuccess}
}

// Failure reports that the batch was rejected. Retryable failures are
// retried with bounded backoff; non-retryable failures drop the batch
// immediately.
func Failure(err error, retryable bool) Outcome {
	return Outcome{kind: outcomeFailure, err: err, retryable: retryable}
}

// PartialSuccess reports that only the first accepted spans of the batch
// were taken. The remainder is dropped, never re-sent.
func PartialSuccess(accepted int) Outcome {
	return Outcome{kind: outcomePartial, accepted: accepted}
}

// Err returns the failure cause, nil unless the outcome is a failure.
func (o Outcome) Err() error {
	return o.err
}

func (o Outcome) String() string {
	switch o.kind {
	case outcomeFailure:
		if o.retryable {
			return "failure(retryable)"
		}
		return "failure"
	case outcomePartial:
		return "partial"
	default:
		return "success"
	}
}

// SliceExporter is an in-memory Exporter that accepts every batch.
// Useful in tests and as a local sink. Safe for concurrent use.
type SliceExporter struct {
	mu      sync.Mutex
	batches []Batch
}

// NewSliceExporter creates an empty in-memory exporter.
func NewSliceExporter() *SliceExporter {
	return &SliceExporter{}
}

// Export stores the batch and reports success.
func (e *SliceExporter) Export(_ context.Context, batch Batch) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, batch)
	return Success()
}

// Shutdown implements Exporter. It never fails.
func (e *SliceExporter) Shutdown(context.Context) error {
	return nil
}

// Batches returns a copy of every batch received so far.
func (e *SliceExporter) Batches() []Batch {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Batch, len(e.batches))
	copy(out, e.batches)
	return out
}

// Spans returns every exported span in arrival order, across batches.
func (e *SliceExporter) Spans() []Span {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Span
	for _, b := range e.batches {
		out = append(out, b.Spans...)
	}
	return out
}

// Len returns the total number of exported spans.
func (e *SliceExporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, b := range e.batches {
		n += len(b.Spans)
	}
	return n
}

// Reset discards everything received so far.
func (e *SliceExporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = nil
}
