package harness_test

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/wickwirew/glowplug/driver/memory/memorydb"
	. "github.com/wickwirew/glowplug/harness"
	nooplog "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestWithTelemetry(t *testing.T) {
	t.Parallel()

	server := &memorydb.Server{}

	RunTests(
		t,
		Fixture[*memorydb.Conn]{
			BaseDSN: memorydb.BaseDSN,
			Driver: WithTelemetry[*memorydb.Conn](
				&memorydb.Driver{Server: server},
				nooptrace.NewTracerProvider(),
				noopmetric.NewMeterProvider(),
				nooplog.NewLoggerProvider(),
			),
			Migrator: &memorydb.Migrator{
				LoggerProvider: nooplog.NewLoggerProvider(),
			},
			Users: users,
			Exists: func(_ context.Context, _ *memorydb.Conn, name string) (bool, error) {
				return slices.Contains(server.Databases(), name), nil
			},
			InsertUser: func(ctx context.Context, conn *memorydb.Conn, name string) error {
				row, err := structpb.NewStruct(map[string]any{"name": name})
				if err != nil {
					return err
				}
				return conn.Insert(ctx, "users", row)
			},
			CountUsers: func(ctx context.Context, conn *memorydb.Conn) (int, error) {
				return conn.Count(ctx, "users")
			},
		},
	)
}

func TestHarness_telemetry(t *testing.T) {
	t.Parallel()

	h, _, _ := newHarness()
	h.TracerProvider = nooptrace.NewTracerProvider()
	h.MeterProvider = noopmetric.NewMeterProvider()
	h.LoggerProvider = nooplog.NewLoggerProvider()

	if err := h.Run(t.Context(), "<test>", func(context.Context, *memorydb.Conn) error {
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

// gaugeMeterProvider is a [metric.MeterProvider] that sums every UpDownCounter
// measurement into a single value.
type gaugeMeterProvider struct {
	noopmetric.MeterProvider
	value atomic.Int64
}

func (p *gaugeMeterProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return gaugeMeter{value: &p.value}
}

type gaugeMeter struct {
	noopmetric.Meter
	value *atomic.Int64
}

func (m gaugeMeter) Int64UpDownCounter(string, ...metric.Int64UpDownCounterOption) (metric.Int64UpDownCounter, error) {
	return gaugeCounter{value: m.value}, nil
}

type gaugeCounter struct {
	noopmetric.Int64UpDownCounter
	value *atomic.Int64
}

func (c gaugeCounter) Add(_ context.Context, v int64, _ ...metric.AddOption) {
	c.value.Add(v)
}

func TestWithTelemetry_openConnections(t *testing.T) {
	t.Parallel()

	mp := &gaugeMeterProvider{}
	d := WithTelemetry[*memorydb.Conn](
		&memorydb.Driver{Server: &memorydb.Server{}},
		nooptrace.NewTracerProvider(),
		mp,
		nooplog.NewLoggerProvider(),
	)

	conn, err := d.Connect(t.Context(), memorydb.BaseDSN)
	if err != nil {
		t.Fatal(err)
	}

	if n := mp.value.Load(); n != 1 {
		t.Fatalf("unexpected number of open connections: got %d, want 1", n)
	}

	if err := d.Close(conn); err != nil {
		t.Fatal(err)
	}

	if n := mp.value.Load(); n != 0 {
		t.Fatalf("unexpected number of open connections: got %d, want 0", n)
	}

	if err := d.Close(conn); !errors.Is(err, memorydb.ErrClosed) {
		t.Fatalf("unexpected error: got %v, want %v", err, memorydb.ErrClosed)
	}

	if n := mp.value.Load(); n != 0 {
		t.Fatalf("unexpected number of open connections after a failed close: got %d, want 0", n)
	}
}
