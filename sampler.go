package spanz

import "fmt"

// Sampler decides whether a new trace is recorded. The decision is made
// once, when the root span is created, and inherited unchanged by every
// descendant span. Children are never re-sampled.
type Sampler interface {
	// ShouldSample reports whether the trace identified by traceID
	// should be recorded. Implementations must be pure functions of
	// the trace id so repeated evaluation is idempotent.
	ShouldSample(traceID TraceID) bool

	// Description identifies the sampler in logs.
	Description() string
}

type alwaysOnSampler struct{}

func (alwaysOnSampler) ShouldSample(TraceID) bool { return true }
func (alwaysOnSampler) Description() string       { return "AlwaysOn" }

type alwaysOffSampler struct{}

func (alwaysOffSampler) ShouldSample(TraceID) bool { return false }
func (alwaysOffSampler) Description() string       { return "AlwaysOff" }

// AlwaysOn returns a sampler that records every trace. This is the
// default.
func AlwaysOn() Sampler {
	return alwaysOnSampler{}
}

// AlwaysOff returns a sampler that records no traces.
func AlwaysOff() Sampler {
	return alwaysOffSampler{}
}

type ratioSampler struct {
	ratio     float64
	threshold uint64
}

// RatioBased returns a sampler that records the given fraction of traces,
// ratio in [0, 1]. The decision thresholds the trace id's low bits, so
// every span sharing a trace id gets the same answer no matter where or
// how often it is evaluated. Ratios outside [0, 1] are rejected at
// TracerProvider construction.
func RatioBased(ratio float64) Sampler {
	s := ratioSampler{ratio: ratio}
	if ratio >= 1 {
		s.threshold = 1 << 63
	} else if ratio > 0 {
		s.threshold = uint64(ratio * (1 << 63))
	}
	return s
}

func (s ratioSampler) ShouldSample(traceID TraceID) bool {
	// Compare against 63 bits so a ratio of 1.0 cannot overflow.
	return traceID.lowBits()>>1 < s.threshold
}

func (s ratioSampler) Description() string {
	return fmt.Sprintf("RatioBased(%g)", s.ratio)
}

func (s ratioSampler) validate() error {
	if s.ratio < 0 || s.ratio > 1 {
		return &ConfigError{Field: "Sampler", Reason: fmt.Sprintf("ratio %g outside [0, 1]", s.ratio)}
	}
	return nil
}
