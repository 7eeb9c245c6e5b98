package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
)

// Debug records a lifecycle detail as a log record and a span event.
func (r *Recorder) Debug(ctx context.Context, event, message string, attrs ...Attr) {
	r.emit(ctx, log.SeverityDebug, event, message, nil, attrs)
}

// Info records a notable lifecycle event, such as a database being created or
// dropped, as a log record and a span event.
func (r *Recorder) Info(ctx context.Context, event, message string, attrs ...Attr) {
	r.emit(ctx, log.SeverityInfo, event, message, nil, attrs)
}

// Warn records a failure that does not fail the current operation.
func (r *Recorder) Warn(ctx context.Context, event string, err error, attrs ...Attr) {
	r.emit(ctx, log.SeverityWarn, event, err.Error(), err, attrs)
}

// Error records a failure of the current operation. The span in ctx is marked
// as failed and the "errors" counter is incremented.
func (r *Recorder) Error(ctx context.Context, event string, err error, attrs ...Attr) {
	r.emit(ctx, log.SeverityError, event, err.Error(), err, attrs)
	r.errors(ctx, 1)

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (r *Recorder) emit(
	ctx context.Context,
	severity log.Severity,
	event, message string,
	err error,
	attrs []Attr,
) {
	trace.SpanFromContext(ctx).AddEvent(
		event,
		trace.WithAttributes(attribute.String("message", message)),
		trace.WithAttributes(keyValues(attrs)...),
	)

	if !r.logger.Enabled(ctx, log.EnabledParameters{Severity: severity}) {
		return
	}

	var rec log.Record
	rec.SetEventName(event)
	rec.SetSeverity(severity)
	rec.SetBody(log.StringValue(message))

	if err != nil {
		rec.AddAttributes(log.String("exception.message", err.Error()))
	}

	rec.AddAttributes(logKeyValues(attrs)...)

	r.logger.Emit(ctx, rec)
}
