package head

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// defaultTracerName is the tracer WithTracing resolves when no name is
// given.
const defaultTracerName = "helmet"

// WithTracing enables span emission for mount and unmount passes. The
// tracer is resolved from the global OpenTelemetry tracer provider, so
// call otel.SetTracerProvider before constructing the binder. An empty
// name selects "helmet".
//
// Each pass produces one internal span carrying declaration counts, with
// dropped declarations recorded as span events.
func WithTracing(tracerName string) BinderOption {
	return func(b *Binder) {
		if tracerName == "" {
			tracerName = defaultTracerName
		}
		b.tracer = otel.Tracer(tracerName)
	}
}

// startSpan begins an internal span when tracing is enabled. Without a
// tracer it returns a span that records nothing.
func (b *Binder) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if b.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return b.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
}
