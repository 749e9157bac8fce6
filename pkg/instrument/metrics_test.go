package instrument

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/reactive/pkg/reactive"
)

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithNamespace("test"), WithRegistry(reg))
	reactive.AddObserver(m)
	defer reactive.RemoveObserver(m)

	a := reactive.NewAtom(1)
	d := reactive.NewDerivation(func() int { return a.Get() * 2 })
	sub := reactive.Subscribe[int](d, func(int, error) {})
	defer sub.Dispose()

	a.Set(2)
	a.Set(3)
	a.Set(3) // no-op, not a write

	if got := testutil.ToFloat64(m.atomWrites); got != 2 {
		t.Errorf("expected 2 atom writes, got %v", got)
	}
	if got := testutil.ToFloat64(m.subscriptionFires); got != 2 {
		t.Errorf("expected 2 subscription fires, got %v", got)
	}
	if got := testutil.ToFloat64(m.propagations); got != 2 {
		t.Errorf("expected 2 propagation passes, got %v", got)
	}
	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("changed")); got != 2 {
		t.Errorf("expected 2 changed evaluations, got %v", got)
	}

	if got := testutil.ToFloat64(m.nodes.WithLabelValues("atom")); got != 1 {
		t.Errorf("expected 1 live atom, got %v", got)
	}
	if got := testutil.ToFloat64(m.nodes.WithLabelValues("subscription")); got != 1 {
		t.Errorf("expected 1 live subscription, got %v", got)
	}
}

func TestMetricsErrorOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithNamespace("test_err"), WithRegistry(reg))
	reactive.AddObserver(m)
	defer reactive.RemoveObserver(m)

	n := reactive.NewAtom(1)
	bad := reactive.NewDerivation(func() int {
		if n.Get() < 0 {
			panic("negative")
		}
		return n.Get()
	})
	sub := reactive.Subscribe[int](bad, func(int, error) {})
	defer sub.Dispose()

	n.Set(-1)

	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 error evaluation, got %v", got)
	}
}

func TestMetricsDisposeDecrementsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithNamespace("test_gauge"), WithRegistry(reg))
	reactive.AddObserver(m)
	defer reactive.RemoveObserver(m)

	a := reactive.NewAtom(0)
	sub := reactive.Subscribe[int](a, func(int, error) {})
	sub.Dispose()

	if got := testutil.ToFloat64(m.nodes.WithLabelValues("subscription")); got != 0 {
		t.Errorf("expected 0 live subscriptions after dispose, got %v", got)
	}
}
