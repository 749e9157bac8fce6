package instrument

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// Default tracer name for reactive graphs.
const defaultTracerName = "reactive"

// OTelConfig configures the OpenTelemetry observer.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "reactive").
	TracerName string

	// MinReachable skips spans for passes that touched fewer nodes.
	// Tiny passes dominate most workloads and drown the trace view;
	// default 0 traces everything.
	MinReachable int

	// AttributeExtractor adds custom attributes to each propagation span.
	AttributeExtractor func(stats reactive.TxStats) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry observer.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithMinReachable sets the smallest reachable-set size worth a span.
func WithMinReachable(n int) OTelOption {
	return func(c *OTelConfig) {
		c.MinReachable = n
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(stats reactive.TxStats) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultOTelConfig returns the default OpenTelemetry configuration.
func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:   defaultTracerName,
		MinReachable: 0,
	}
}

// Tracing is a reactive.Observer that records one span per propagation
// pass. Propagation is synchronous, so the observer sees each pass only
// after it completes; spans are created retroactively with the pass's
// measured duration and summary attributes.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before attaching the observer:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithResource(resource.NewWithAttributes(
//	        semconv.SchemaURL,
//	        semconv.ServiceName("my-app"),
//	    )),
//	)
//	otel.SetTracerProvider(tp)
//
//	tr := instrument.NewTracing(instrument.WithTracerName("my-app"))
//	reactive.AddObserver(tr)
//	defer reactive.RemoveObserver(tr)
type Tracing struct {
	reactive.NopObserver

	config OTelConfig
	ctx    context.Context
}

// NewTracing creates the tracing observer.
func NewTracing(opts ...OTelOption) *Tracing {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Resolve tracer from global provider
	config.tracer = otel.Tracer(config.TracerName)

	return &Tracing{
		config: config,
		ctx:    context.Background(),
	}
}

// WithContext sets the parent context for emitted spans, so propagation
// spans nest under an application span when one is active.
func (t *Tracing) WithContext(ctx context.Context) *Tracing {
	t.ctx = ctx
	return t
}

// TransactionEnd implements reactive.Observer.
func (t *Tracing) TransactionEnd(stats reactive.TxStats) {
	if stats.Reachable < t.config.MinReachable {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("reactive.changed_atoms", stats.ChangedAtoms),
		attribute.Int("reactive.reachable", stats.Reachable),
		attribute.Int("reactive.evaluated", stats.Evaluated),
		attribute.Int("reactive.fired", stats.Fired),
		attribute.Int("reactive.errors", stats.Errors),
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(stats)...)
	}

	_, span := t.config.tracer.Start(
		t.ctx,
		"reactive.propagation",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	if stats.Errors > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d errors during propagation", stats.Errors))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

var _ reactive.Observer = (*Tracing)(nil)
