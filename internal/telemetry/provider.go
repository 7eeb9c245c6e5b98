// Package telemetry records the traces, metrics and logs produced while
// provisioning ephemeral databases.
package telemetry

import (
	"runtime/debug"
	"sync"

	"go.opentelemetry.io/otel/log"
	nooplog "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Provider is the set of OpenTelemetry providers that a [Recorder] reports to.
//
// Nil providers are replaced with no-op implementations.
type Provider struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	LoggerProvider log.LoggerProvider
}

// Recorder reports telemetry on behalf of a single package.
type Recorder struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger log.Logger

	errors Instrument[int64]
}

// Recorder returns a [Recorder] for the package with the given import path.
//
// attrs are attached to everything the recorder reports, as instrumentation
// scope attributes.
func (p *Provider) Recorder(pkg string, attrs ...Attr) *Recorder {
	scope := keyValues(attrs)
	version := moduleVersion()

	r := &Recorder{
		tracer: orDefault[trace.TracerProvider](p.TracerProvider, nooptrace.NewTracerProvider()).Tracer(
			pkg,
			trace.WithInstrumentationVersion(version),
			trace.WithInstrumentationAttributes(scope...),
		),
		meter: orDefault[metric.MeterProvider](p.MeterProvider, noopmetric.NewMeterProvider()).Meter(
			pkg,
			metric.WithInstrumentationVersion(version),
			metric.WithInstrumentationAttributes(scope...),
		),
		logger: orDefault[log.LoggerProvider](p.LoggerProvider, nooplog.NewLoggerProvider()).Logger(
			pkg,
			log.WithInstrumentationVersion(version),
			log.WithInstrumentationAttributes(scope...),
		),
	}

	r.errors = r.Counter("errors", "{error}", "The number of errors that have occurred.")

	return r
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// moduleVersion is the version of this module as recorded in the build info of
// the binary that imports it.
var moduleVersion = sync.OnceValue(func() string {
	const path = "github.com/wickwirew/glowplug"

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Path == path && info.Main.Version != "" {
			return info.Main.Version
		}

		for _, dep := range info.Deps {
			if dep.Path == path {
				return dep.Version
			}
		}
	}

	return "unknown"
})
