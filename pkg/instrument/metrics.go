// Package instrument attaches Prometheus metrics and OpenTelemetry traces
// to a reactive graph through the engine's observer seam. The engine itself
// stays instrumentation-free; everything here is optional and removable at
// runtime.
package instrument

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// MetricsConfig configures the Prometheus metrics observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reactive").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for propagation duration, in
	// seconds. Default: propagation-scale buckets from 10us to 100ms.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the propagation duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "reactive",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     []float64{.00001, .0001, .0005, .001, .005, .01, .05, .1},
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics is a reactive.Observer that exports engine activity as
// Prometheus metrics.
//
// Metrics collected:
//   - reactive_nodes: Gauge of live nodes by kind
//   - reactive_atom_writes_total: Counter of effective atom writes
//   - reactive_evaluations_total: Counter of derivation evaluations by outcome
//   - reactive_subscription_fires_total: Counter of callback invocations
//   - reactive_propagations_total: Counter of propagation passes
//   - reactive_propagation_duration_seconds: Histogram of pass duration
//   - reactive_propagation_reachable: Histogram of reachable-set size per pass
//   - reactive_propagation_errors_total: Counter of errors surfaced per pass
//
// Example:
//
//	m := instrument.NewMetrics(instrument.WithNamespace("myapp"))
//	reactive.AddObserver(m)
//	defer reactive.RemoveObserver(m)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
type Metrics struct {
	reactive.NopObserver

	nodes             *prometheus.GaugeVec
	atomWrites        prometheus.Counter
	evaluations       *prometheus.CounterVec
	subscriptionFires prometheus.Counter
	propagations      prometheus.Counter
	propagationTime   prometheus.Histogram
	reachableSize     prometheus.Histogram
	propagationErrors prometheus.Counter
}

// NewMetrics creates the metrics observer and registers its collectors.
// Registering two observers against the same registry with the same
// namespace panics, as promauto always does for duplicate collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		nodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "nodes",
			Help:        "Number of live graph nodes by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		atomWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "atom_writes_total",
			Help:        "Total atom writes that changed the stored value",
			ConstLabels: config.ConstLabels,
		}),

		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluations_total",
			Help:        "Total derivation evaluations by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		subscriptionFires: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscription_fires_total",
			Help:        "Total subscription callback invocations",
			ConstLabels: config.ConstLabels,
		}),

		propagations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "propagations_total",
			Help:        "Total propagation passes",
			ConstLabels: config.ConstLabels,
		}),

		propagationTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "propagation_duration_seconds",
			Help:        "Propagation pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		reachableSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "propagation_reachable",
			Help:        "Number of nodes reachable from the changed atoms per pass",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),

		propagationErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "propagation_errors_total",
			Help:        "Total errors surfaced during propagation passes",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// NodeCreated implements reactive.Observer.
func (m *Metrics) NodeCreated(id uint64, kind reactive.NodeKind) {
	m.nodes.WithLabelValues(kind.String()).Inc()
}

// NodeDisposed implements reactive.Observer. Only subscriptions emit
// disposal events; atoms and derivations are reclaimed by the collector.
func (m *Metrics) NodeDisposed(id uint64) {
	m.nodes.WithLabelValues(reactive.KindSubscription.String()).Dec()
}

// AtomChanged implements reactive.Observer.
func (m *Metrics) AtomChanged(id uint64, version uint64) {
	m.atomWrites.Inc()
}

// NodeEvaluated implements reactive.Observer.
func (m *Metrics) NodeEvaluated(ev reactive.EvalEvent) {
	outcome := "unchanged"
	switch {
	case ev.Err != nil:
		outcome = "error"
	case ev.Changed:
		outcome = "changed"
	}
	m.evaluations.WithLabelValues(outcome).Inc()
}

// SubscriptionFired implements reactive.Observer.
func (m *Metrics) SubscriptionFired(id uint64, targetID uint64) {
	m.subscriptionFires.Inc()
}

// TransactionEnd implements reactive.Observer.
func (m *Metrics) TransactionEnd(stats reactive.TxStats) {
	m.propagations.Inc()
	m.propagationTime.Observe(stats.Duration.Seconds())
	m.reachableSize.Observe(float64(stats.Reachable))
	if stats.Errors > 0 {
		m.propagationErrors.Add(float64(stats.Errors))
	}
}

var _ reactive.Observer = (*Metrics)(nil)
