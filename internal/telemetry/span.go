package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Span is a wrapper around a [trace.Span].
type Span struct {
	span trace.Span
}

// StartSpan starts a new span as a child of any span in ctx.
func (r *Recorder) StartSpan(
	ctx context.Context,
	name string,
	attrs ...Attr,
) (context.Context, *Span) {
	ctx, span := r.tracer.Start(
		ctx,
		name,
		trace.WithAttributes(keyValues(attrs)...),
	)

	return ctx, &Span{span}
}

// SetAttributes adds attributes to the span.
func (s *Span) SetAttributes(attrs ...Attr) {
	s.span.SetAttributes(keyValues(attrs)...)
}

// End completes the span.
func (s *Span) End() {
	s.span.End()
}
