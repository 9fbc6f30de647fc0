package spanz

import (
	"fmt"
	"sync"
	"time"
)

// Status is a span's final disposition.
type Status int

const (
	// StatusUnset means no status was recorded.
	StatusUnset Status = iota
	// StatusOK marks the operation as explicitly successful.
	StatusOK
	// StatusError marks the operation as failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// Event is a timestamped point annotation on a span. Events are
// append-only and frozen with the span when it ends.
type Event struct {
	Name       string      `json:"name"`
	Time       time.Time   `json:"time"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Span is the record of one unit of work. It is mutable only through an
// ActiveSpan; once ended it is frozen and handed to the processor, and a
// processor or exporter must treat it as read-only.
//
//nolint:govet // Field alignment follows JSON serialization order
type Span struct {
	Context           SpanContext   `json:"context"`
	Name              string        `json:"name"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time,omitempty"`
	Duration          time.Duration `json:"duration"`
	Attributes        []Attribute   `json:"attributes,omitempty"`
	Events            []Event       `json:"events,omitempty"`
	Status            Status        `json:"status"`
	StatusDescription string        `json:"status_description,omitempty"`
}

// clone deep-copies the span so the frozen record handed to the
// processor cannot alias the caller's slices.
func (s *Span) clone() Span {
	out := *s
	if s.Attributes != nil {
		out.Attributes = make([]Attribute, len(s.Attributes))
		copy(out.Attributes, s.Attributes)
	}
	if s.Events != nil {
		out.Events = make([]Event, len(s.Events))
		copy(out.Events, s.Events)
	}
	return out
}

// ActiveSpan wraps a Span with thread-safe mutation and lifecycle
// management. Safe for concurrent use by multiple goroutines.
type ActiveSpan struct {
	span   *Span
	tracer *Tracer
	mu     sync.Mutex // Protects span fields until ended.
	ended  bool
}

// SetName renames the span. No-op after the span has ended.
func (a *ActiveSpan) SetName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return
	}
	a.span.Name = name
}

// SetAttribute appends or overwrites an attribute. The last write for a
// key wins; relative order of first writes is preserved.
// No-op after the span has ended.
func (a *ActiveSpan) SetAttribute(attr Attribute) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return
	}
	a.setAttributeLocked(attr)
}

// SetAttributes appends or overwrites several attributes at once.
func (a *ActiveSpan) SetAttributes(attrs ...Attribute) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return
	}
	for _, attr := range attrs {
		a.setAttributeLocked(attr)
	}
}

func (a *ActiveSpan) setAttributeLocked(attr Attribute) {
	for i := range a.span.Attributes {
		if a.span.Attributes[i].Key == attr.Key {
			a.span.Attributes[i].Value = attr.Value
			return
		}
	}
	a.span.Attributes = append(a.span.Attributes, attr)
}

// GetAttribute retrieves an attribute value by key.
func (a *ActiveSpan) GetAttribute(key string) (Value, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, attr := range a.span.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return Value{}, false
}

// AddEvent appends a timestamped event to the span.
// No-op after the span has ended.
func (a *ActiveSpan) AddEvent(name string, attrs ...Attribute) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return
	}
	a.span.Events = append(a.span.Events, Event{
		Name:       name,
		Time:       a.tracer.clock().Now(),
		Attributes: attrs,
	})
}

// SetStatus records the span's status. Last write before end wins.
func (a *ActiveSpan) SetStatus(status Status, description string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return
	}
	a.span.Status = status
	a.span.StatusDescription = description
}

// RecordError adds an exception event carrying the error's type and
// message and sets the span status to ERROR. The error itself is not
// retained. No-op for nil errors or ended spans.
func (a *ActiveSpan) RecordError(err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return
	}
	a.span.Events = append(a.span.Events, Event{
		Name: "exception",
		Time: a.tracer.clock().Now(),
		Attributes: []Attribute{
			String("exception.type", fmt.Sprintf("%T", err)),
			String("exception.message", err.Error()),
		},
	})
	a.span.Status = StatusError
	a.span.StatusDescription = err.Error()
}

// End freezes the span and hands it to the processor pipeline.
// Safe to call multiple times; only the first call takes effect, so the
// end time recorded by the first call is final.
func (a *ActiveSpan) End() {
	a.endAt(a.tracer.clock().Now())
}

func (a *ActiveSpan) endAt(now time.Time) {
	a.mu.Lock()
	if a.ended {
		a.mu.Unlock()
		return
	}
	a.ended = true
	a.span.EndTime = now
	a.span.Duration = now.Sub(a.span.StartTime)
	frozen := a.span.clone()
	a.mu.Unlock()

	if frozen.Context.Sampled {
		a.tracer.onEnd(frozen)
	}
}

// TraceID returns the span's trace id.
func (a *ActiveSpan) TraceID() TraceID {
	return a.span.Context.TraceID
}

// SpanID returns the span's id.
func (a *ActiveSpan) SpanID() SpanID {
	return a.span.Context.SpanID
}

// SpanContext returns the span's immutable identity.
func (a *ActiveSpan) SpanContext() SpanContext {
	return a.span.Context
}

// IsEnded reports whether End has been called.
func (a *ActiveSpan) IsEnded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ended
}

// EndTime returns the recorded end time, zero until the span ends.
func (a *ActiveSpan) EndTime() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.EndTime
}
