package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Instrument records a single measurement.
type Instrument[T int64 | float64] func(ctx context.Context, v T, attrs ...Attr)

// Counter returns an instrument that counts events, such as databases created.
func (r *Recorder) Counter(name, unit, desc string) Instrument[int64] {
	c, err := r.meter.Int64Counter(name, metric.WithUnit(unit), metric.WithDescription(desc))
	return instrument(c.Add, err)
}

// UpDownCounter returns an instrument that tracks a quantity that may decrease,
// such as the number of databases that currently exist.
func (r *Recorder) UpDownCounter(name, unit, desc string) Instrument[int64] {
	c, err := r.meter.Int64UpDownCounter(name, metric.WithUnit(unit), metric.WithDescription(desc))
	return instrument(c.Add, err)
}

// Histogram returns an instrument that records a distribution, such as the
// duration of each invocation.
func (r *Recorder) Histogram(name, unit, desc string) Instrument[float64] {
	h, err := r.meter.Float64Histogram(name, metric.WithUnit(unit), metric.WithDescription(desc))
	return instrument(h.Record, err)
}

// instrument adapts the measurement method of an OpenTelemetry instrument.
//
// The meter API only fails on invalid names or units, which are constants, so
// a failure is a programming error.
func instrument[T int64 | float64, O any](
	record func(context.Context, T, ...O),
	err error,
) Instrument[T] {
	if err != nil {
		panic(err)
	}

	return func(ctx context.Context, v T, attrs ...Attr) {
		var opts []O
		if kvs := keyValues(attrs); len(kvs) != 0 {
			opts = append(opts, any(metric.WithAttributes(kvs...)).(O))
		}
		record(ctx, v, opts...)
	}
}
