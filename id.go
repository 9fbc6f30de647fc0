package spanz

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"runtime"
	"sync"

	"github.com/zoobzio/clockz"
)

// TraceID is a 128-bit identifier shared by every span in one trace.
type TraceID [16]byte

// SpanID is a 64-bit identifier unique to one span within the process.
type SpanID [8]byte

// IsValid reports whether the id is non-zero.
func (t TraceID) IsValid() bool {
	return t != TraceID{}
}

// String returns the id as lowercase hex.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// MarshalText implements encoding.TextMarshaler as lowercase hex.
func (t TraceID) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(t)))
	hex.Encode(out, t[:])
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler from hex.
func (t *TraceID) UnmarshalText(text []byte) error {
	_, err := hex.Decode(t[:], text)
	return err
}

// lowBits returns the low 64 bits of the trace id.
// Ratio-based sampling derives its decision from these so the
// decision is a pure function of the trace id.
func (t TraceID) lowBits() uint64 {
	return binary.BigEndian.Uint64(t[8:])
}

// IsValid reports whether the id is non-zero.
func (s SpanID) IsValid() bool {
	return s != SpanID{}
}

// String returns the id as lowercase hex.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// MarshalText implements encoding.TextMarshaler as lowercase hex.
func (s SpanID) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(s)))
	hex.Encode(out, s[:])
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler from hex.
func (s *SpanID) UnmarshalText(text []byte) error {
	_, err := hex.Decode(s[:], text)
	return err
}

// idPool manages pre-generated IDs to amortize crypto/rand overhead.
type idPool[T any] struct {
	factory func() T
	ids     chan T
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

// newIDPool creates a pool with the specified capacity and starts its
// background refill goroutine.
func newIDPool[T any](capacity int, factory func() T) *idPool[T] {
	pool := &idPool[T]{
		ids:     make(chan T, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	go pool.refill()
	return pool
}

// get retrieves an ID from the pool or generates one if the pool is empty.
func (p *idPool[T]) get() T {
	select {
	case id := <-p.ids:
		return id
	default:
		// Pool empty, generate directly (fallback for burst load).
		return p.factory()
	}
}

// refill maintains the pool by generating IDs in the background.
func (p *idPool[T]) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		case p.ids <- p.factory():
		}
	}
}

// close shuts down the pool's refill goroutine.
func (p *idPool[T]) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}

// idGenerator produces trace and span ids from pooled crypto/rand reads.
type idGenerator struct {
	tracePool *idPool[TraceID]
	spanPool  *idPool[SpanID]
}

func newIDGenerator(clock clockz.Clock) *idGenerator {
	// Pool size based on number of CPUs for contention balance.
	poolSize := runtime.NumCPU() * 100

	return &idGenerator{
		tracePool: newIDPool(poolSize, func() TraceID {
			var id TraceID
			if _, err := rand.Read(id[:]); err != nil {
				// Fallback to time-based bits if crypto/rand fails.
				binary.BigEndian.PutUint64(id[8:], uint64(clock.Now().UnixNano()))
			}
			return id
		}),
		spanPool: newIDPool(poolSize, func() SpanID {
			var id SpanID
			if _, err := rand.Read(id[:]); err != nil {
				binary.BigEndian.PutUint64(id[:], uint64(clock.Now().UnixNano()))
			}
			return id
		}),
	}
}

func (g *idGenerator) newTraceID() TraceID {
	return g.tracePool.get()
}

func (g *idGenerator) newSpanID() SpanID {
	return g.spanPool.get()
}

func (g *idGenerator) close() {
	g.tracePool.close()
	g.spanPool.close()
}
