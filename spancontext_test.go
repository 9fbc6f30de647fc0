package spanz

import (
	"context"
	"testing"

	"github.com/zoobzio/clockz"
)

func TestNewRootContext(t *testing.T) {
	gen := newIDGenerator(clockz.RealClock)
	defer gen.close()

	sc := newRoot(gen, AlwaysOn())

	if !sc.IsValid() {
		t.Fatal("expected valid root context")
	}
	if !sc.IsRoot() {
		t.Error("expected root context to have no parent")
	}
	if !sc.Sampled {
		t.Error("AlwaysOn root should be sampled")
	}

	off := newRoot(gen, AlwaysOff())
	if off.Sampled {
		t.Error("AlwaysOff root should not be sampled")
	}
}

func TestNewChildContext(t *testing.T) {
	gen := newIDGenerator(clockz.RealClock)
	defer gen.close()

	parent := newRoot(gen, AlwaysOn())
	child := newChild(gen, parent)

	if child.TraceID != parent.TraceID {
		t.Errorf("child trace id %s != parent %s", child.TraceID, parent.TraceID)
	}
	if child.ParentSpanID != parent.SpanID {
		t.Errorf("child parent id %s != parent span id %s", child.ParentSpanID, parent.SpanID)
	}
	if child.SpanID == parent.SpanID {
		t.Error("child must get a fresh span id")
	}
	if child.Sampled != parent.Sampled {
		t.Error("child must inherit the sampling decision")
	}
	if child.IsRoot() {
		t.Error("child must not report as root")
	}
}

func TestBaggageDerivation(t *testing.T) {
	gen := newIDGenerator(clockz.RealClock)
	defer gen.close()

	base := newRoot(gen, AlwaysOn())
	derived := base.WithBaggage("tenant", "acme")

	if _, ok := base.BaggageValue("tenant"); ok {
		t.Error("deriving baggage must not mutate the original context")
	}
	if v, ok := derived.BaggageValue("tenant"); !ok || v != "acme" {
		t.Errorf("expected derived baggage tenant=acme, got %q, %v", v, ok)
	}

	// Identity is unchanged by baggage derivation.
	if derived.TraceID != base.TraceID || derived.SpanID != base.SpanID {
		t.Error("baggage derivation must not change span identity")
	}

	// Children inherit baggage.
	child := newChild(gen, derived)
	if v, _ := child.BaggageValue("tenant"); v != "acme" {
		t.Errorf("expected child to inherit baggage, got %q", v)
	}

	// Second derivation stacks without touching the first.
	more := derived.WithBaggage("region", "eu")
	if more.BaggageLen() != 2 {
		t.Errorf("expected 2 baggage entries, got %d", more.BaggageLen())
	}
	if derived.BaggageLen() != 1 {
		t.Errorf("expected original to keep 1 entry, got %d", derived.BaggageLen())
	}
}

func TestContextCarrier(t *testing.T) {
	gen := newIDGenerator(clockz.RealClock)
	defer gen.close()

	if _, ok := SpanContextFromContext(context.Background()); ok {
		t.Error("background context should carry no span context")
	}
	if _, ok := SpanContextFromContext(nil); ok { //nolint:staticcheck // Nil tolerance is part of the contract
		t.Error("nil context should carry no span context")
	}

	sc := newRoot(gen, AlwaysOn())
	ctx := ContextWithSpanContext(context.Background(), sc)

	got, ok := SpanContextFromContext(ctx)
	if !ok {
		t.Fatal("expected span context in carrier")
	}
	if got.TraceID != sc.TraceID || got.SpanID != sc.SpanID {
		t.Error("carrier returned a different span context")
	}
}

func TestContextIsolationAcrossGoroutines(t *testing.T) {
	gen := newIDGenerator(clockz.RealClock)
	defer gen.close()

	parent := newRoot(gen, AlwaysOn())
	ctx := ContextWithSpanContext(context.Background(), parent)

	// A goroutine captures the context active at launch time. The
	// launcher then moves on to a different span; the goroutine must
	// not observe that.
	observed := make(chan SpanContext)
	go func(ctx context.Context) {
		sc, _ := SpanContextFromContext(ctx)
		observed <- sc
	}(ctx)

	other := newRoot(gen, AlwaysOn())
	_ = ContextWithSpanContext(context.Background(), other)

	if got := <-observed; got.TraceID != parent.TraceID {
		t.Error("goroutine observed a span context from an unrelated chain")
	}
}
