package harness

import (
	"context"

	"github.com/wickwirew/glowplug/internal/telemetry"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithTelemetry returns a [Driver] that adds telemetry to d.
func WithTelemetry[C any](
	d Driver[C],
	p trace.TracerProvider,
	m metric.MeterProvider,
	l log.LoggerProvider,
) Driver[C] {
	provider := telemetry.Provider{
		TracerProvider: p,
		MeterProvider:  m,
		LoggerProvider: l,
	}

	telem := provider.Recorder(
		"github.com/wickwirew/glowplug/harness",
		telemetry.Type("harness.driver", d),
	)

	return &instrumentedDriver[C]{
		Next:            d,
		Telemetry:       telem,
		OpenConnections: telem.UpDownCounter("connections.open", "{connection}", "The number of connections that are currently open."),
		Statements:      telem.Counter("statements", "{statement}", "The number of CREATE DATABASE and DROP DATABASE statements that have been executed."),
	}
}

type instrumentedDriver[C any] struct {
	Next      Driver[C]
	Telemetry *telemetry.Recorder

	OpenConnections telemetry.Instrument[int64]
	Statements      telemetry.Instrument[int64]
}

func (d *instrumentedDriver[C]) Connect(ctx context.Context, dsn string) (C, error) {
	ctx, span := d.Telemetry.StartSpan(
		ctx,
		"driver.connect",
		telemetry.String("dsn", RedactDSN(dsn)),
	)
	defer span.End()

	conn, err := d.Next.Connect(ctx, dsn)
	if err != nil {
		d.Telemetry.Error(ctx, "driver.connect.error", err)
		return conn, err
	}

	d.OpenConnections(ctx, 1)
	d.Telemetry.Info(ctx, "driver.connect.ok", "opened connection")

	return conn, nil
}

func (d *instrumentedDriver[C]) DSN(base, name string) (string, error) {
	return d.Next.DSN(base, name)
}

func (d *instrumentedDriver[C]) CreateDatabase(ctx context.Context, control C, name string) error {
	ctx, span := d.Telemetry.StartSpan(
		ctx,
		"driver.create_database",
		telemetry.String("database.name", name),
	)
	defer span.End()

	d.Statements(ctx, 1, telemetry.String("statement", "create"))

	if err := d.Next.CreateDatabase(ctx, control, name); err != nil {
		d.Telemetry.Error(ctx, "driver.create_database.error", err)
		return err
	}

	d.Telemetry.Info(ctx, "driver.create_database.ok", "created database")

	return nil
}

func (d *instrumentedDriver[C]) DropDatabase(ctx context.Context, control C, name string) error {
	ctx, span := d.Telemetry.StartSpan(
		ctx,
		"driver.drop_database",
		telemetry.String("database.name", name),
	)
	defer span.End()

	d.Statements(ctx, 1, telemetry.String("statement", "drop"))

	if err := d.Next.DropDatabase(ctx, control, name); err != nil {
		d.Telemetry.Error(ctx, "driver.drop_database.error", err)
		return err
	}

	d.Telemetry.Info(ctx, "driver.drop_database.ok", "dropped database")

	return nil
}

func (d *instrumentedDriver[C]) Close(conn C) error {
	ctx := context.Background()

	if err := d.Next.Close(conn); err != nil {
		d.Telemetry.Error(ctx, "driver.close.error", err)
		return err
	}

	d.OpenConnections(ctx, -1)

	return nil
}
