package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/derive/pkg/reactive"
)

// Default tracer name.
const defaultTracerName = "derive"

// TracingConfig configures the OpenTelemetry observer.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "derive").
	TracerName string

	// Provider supplies the tracer.
	// Default: the global provider from otel.GetTracerProvider.
	Provider trace.TracerProvider

	// Context is the parent of top-level evaluation spans.
	// Default: context.Background()
	Context context.Context

	// Attributes are added to every span.
	Attributes []attribute.KeyValue
}

// TracingOption configures the OpenTelemetry observer.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = tp
	}
}

// WithParentContext sets the context top-level spans are started from.
func WithParentContext(ctx context.Context) TracingOption {
	return func(c *TracingConfig) {
		c.Context = ctx
	}
}

// WithAttributes adds attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// Tracing is an observer that records one span per evaluation.
//
// Evaluations triggered from inside another evaluation (a derived reading a
// stale derived) become child spans, so a trace shows the pull chain.
// Nodes destroyed during an evaluation are recorded as span events.
//
// A Tracing observer belongs to a single runtime.
type Tracing struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue

	// stack holds the contexts of the evaluations in flight.
	stack []context.Context
}

// NewTracing creates a tracing observer.
//
// The tracer uses the global OpenTelemetry tracer provider unless one is
// given. Configure it before creating the runtime:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func NewTracing(opts ...TracingOption) *Tracing {
	config := TracingConfig{
		TracerName: defaultTracerName,
		Context:    context.Background(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		config.Provider = otel.GetTracerProvider()
	}

	return &Tracing{
		tracer: config.Provider.Tracer(config.TracerName),
		attrs:  config.Attributes,
		stack:  []context.Context{config.Context},
	}
}

func (t *Tracing) current() context.Context {
	return t.stack[len(t.stack)-1]
}

func (t *Tracing) OnCreate(info reactive.NodeInfo) {
	trace.SpanFromContext(t.current()).AddEvent("derive.create",
		trace.WithAttributes(nodeAttributes(info)...))
}

func (t *Tracing) OnUpdate(info reactive.NodeInfo) func(reactive.UpdateResult) {
	attrs := append(nodeAttributes(info), t.attrs...)
	ctx, span := t.tracer.Start(t.current(), "derive.update "+info.Kind.String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	t.stack = append(t.stack, ctx)
	depth := len(t.stack)

	return func(res reactive.UpdateResult) {
		// Unwind to this span's parent, also when a nested span was never
		// finished.
		if len(t.stack) >= depth {
			t.stack = t.stack[:depth-1]
		}

		span.SetAttributes(
			attribute.Bool("derive.changed", res.Changed),
			attribute.String("derive.status", res.Status.String()),
		)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (t *Tracing) OnDestroy(info reactive.NodeInfo) {
	trace.SpanFromContext(t.current()).AddEvent("derive.destroy",
		trace.WithAttributes(nodeAttributes(info)...))
}

func (t *Tracing) OnSelfReference(info reactive.NodeInfo) {
	trace.SpanFromContext(t.current()).AddEvent("derive.self_reference",
		trace.WithAttributes(nodeAttributes(info)...))
}

func nodeAttributes(info reactive.NodeInfo) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("derive.node.id", int64(info.ID)),
		attribute.String("derive.node.label", info.Label),
		attribute.String("derive.node.kind", info.Kind.String()),
		attribute.Bool("derive.node.unowned", info.Unowned),
	}
}
