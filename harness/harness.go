package harness

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wickwirew/glowplug/config"
	"github.com/wickwirew/glowplug/internal/telemetry"
	"github.com/wickwirew/glowplug/internal/x/xtelemetry"
	"github.com/wickwirew/glowplug/migration"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Harness provisions an ephemeral database for each test invocation.
//
// A Harness is safe for concurrent use. Each invocation has its own database,
// control connection and scoped connection; the only state shared between
// invocations is the read-only migration set.
type Harness[C any] struct {
	// BaseDSN is the server-level connection string used to open the control
	// connection. The connection string for each ephemeral database is
	// derived from it by [Driver.DSN].
	//
	// If it is empty, it is read from the DATABASE_URL environment variable,
	// or from a .env file, as described by [config.Load].
	BaseDSN string

	// Driver connects to the server and creates and drops databases.
	Driver Driver[C]

	// Migrator applies Migrations to each new database. It is required if
	// Migrations is non-nil.
	Migrator Migrator[C]

	// Migrations is the migration set applied to each new database. If it is
	// nil, no migrations are applied.
	Migrations *migration.Set

	// Scheduler determines how the test body is invoked. If it is nil, [Sync]
	// is used.
	Scheduler Scheduler

	// ReleaseTimeout bounds how long [Setup] waits for the database to be
	// released once the test has ended. If it is zero, a default of 10
	// seconds is used.
	ReleaseTimeout time.Duration

	// TracerProvider, MeterProvider and LoggerProvider receive telemetry
	// about each invocation. Nil providers are replaced with no-op
	// implementations.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	LoggerProvider log.LoggerProvider

	once  sync.Once
	instr *instrumentation
}

// Run provisions a database for the test identified by testID, and calls body
// with a connection to it.
//
// The database is dropped before Run returns, regardless of how body
// terminates. If body returns an error, Run returns that same error after the
// database is dropped. If body panics, Run panics with the same value after the
// database is dropped, and if body calls runtime.Goexit, so does Run.
//
// If dropping the database fails, Run returns a [*DatabaseTeardownError] that
// wraps both the teardown failure and the body's error, if any.
func (h *Harness[C]) Run(
	ctx context.Context,
	testID string,
	body func(ctx context.Context, conn C) error,
) error {
	_, err := Do(
		ctx,
		h,
		testID,
		func(ctx context.Context, conn C) (struct{}, error) {
			return struct{}{}, body(ctx, conn)
		},
	)
	return err
}

// Do is like [Harness.Run], but the body produces a value of type R which is
// returned to the caller if the invocation succeeds.
func Do[C, R any](
	ctx context.Context,
	h *Harness[C],
	testID string,
	body func(ctx context.Context, conn C) (R, error),
) (R, error) {
	start := time.Now()

	hd, err := h.Acquire(ctx, testID)
	if err != nil {
		var zero R
		return zero, err
	}

	var (
		o        Outcome[R]
		captured bool
	)

	defer func() {
		if captured {
			return
		}

		// The body called runtime.Goexit on this goroutine. The outcome is
		// recorded, but the goroutine is already unwinding, so all that is
		// left to do is tear down.
		hd.transition(ctx, BodyExecuted)
		if err := hd.release(ctx); err != nil {
			h.reportTeardown(ctx, hd, &DatabaseTeardownError{
				Database: hd.Name,
				Cause:    err,
				Pending:  o.Err(),
			})
		}
		hd.transition(ctx, Reraised)
		h.instrumentation().duration(ctx, time.Since(start).Seconds())
	}()

	h.scheduler().Invoke(func() {
		capture(&o, func() (R, error) {
			return body(ctx, hd.Conn)
		})
	})

	captured = true
	hd.transition(ctx, BodyExecuted)

	defer func() {
		h.instrumentation().duration(ctx, time.Since(start).Seconds())
	}()

	if err := hd.release(ctx); err != nil {
		terr := &DatabaseTeardownError{
			Database: hd.Name,
			Cause:    err,
			Pending:  o.Err(),
		}

		hd.transition(ctx, Reraised)

		if o.returnOnly() {
			var zero R
			return zero, terr
		}

		// The body panicked or exited. Its original failure is re-raised
		// below, so the teardown failure can only be reported.
		h.reportTeardown(ctx, hd, terr)
		return o.Resume()
	}

	if o.Succeeded() {
		hd.transition(ctx, Returned)
	} else {
		hd.transition(ctx, Reraised)
		h.instrumentation().telem.Warn(
			ctx,
			"invocation.failed",
			o.Err(),
			telemetry.String("database.name", hd.Name),
		)
	}

	return o.Resume()
}

// Acquire provisions a database for the test identified by testID and returns
// a handle to it. The caller must call [Handle.Release] when the test ends.
//
// If any step after the database is created fails, the database is dropped
// before Acquire returns the error.
func (h *Harness[C]) Acquire(ctx context.Context, testID string) (*Handle[C], error) {
	if h.Driver == nil {
		return nil, errors.New("harness has no driver")
	}

	if h.Migrations != nil && h.Migrator == nil {
		return nil, errors.New("harness has a migration set but no migrator")
	}

	in := h.instrumentation()

	hd := &Handle[C]{
		Name:    UniqueName(testID),
		harness: h,
		id:      xtelemetry.InvocationID(testID),
	}

	ctx, span := in.telem.StartSpan(
		ctx,
		"database.acquire",
		telemetry.String("test.id", testID),
		telemetry.String("invocation.id", hd.id),
		telemetry.String("database.name", hd.Name),
	)
	defer span.End()

	base, err := h.baseDSN()
	if err != nil {
		err = &ConnectError{Cause: err}
		in.telem.Error(ctx, "control.connect.error", err)
		return nil, err
	}
	hd.baseDSN = base

	control, err := h.Driver.Connect(ctx, base)
	if err != nil {
		err = &ConnectError{
			DSN:   RedactDSN(base),
			Cause: err,
		}
		in.telem.Error(ctx, "control.connect.error", err)
		return nil, err
	}

	hd.control = control
	hd.hasControl = true
	hd.transition(ctx, ControlConnected)

	if err := h.Driver.CreateDatabase(ctx, control, hd.Name); err != nil {
		err = &DatabaseCreationError{
			Database: hd.Name,
			Cause:    err,
		}
		in.telem.Error(ctx, "database.create.error", err)

		// Nothing was created, so only the control connection needs to be
		// closed.
		if cerr := hd.release(ctx); cerr != nil {
			in.telem.Warn(ctx, "control.close.error", cerr)
		}

		return nil, err
	}

	hd.transition(ctx, DatabaseCreated)
	in.created(ctx, 1)
	in.active(ctx, 1)

	if err := hd.open(ctx); err != nil {
		in.telem.Error(ctx, "database.open.error", err)

		if terr := hd.release(ctx); terr != nil {
			err = &DatabaseTeardownError{
				Database: hd.Name,
				Cause:    terr,
				Pending:  err,
			}
		}

		return nil, err
	}

	span.SetAttributes(
		telemetry.Stringer("database.state", hd.state),
	)

	return hd, nil
}

// baseDSN returns the server-level connection string, falling back to the
// environment when BaseDSN is empty.
func (h *Harness[C]) baseDSN() (string, error) {
	if h.BaseDSN != "" {
		return h.BaseDSN, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", err
	}

	return cfg.DatabaseURL, nil
}

func (h *Harness[C]) scheduler() Scheduler {
	if h.Scheduler == nil {
		return Sync
	}
	return h.Scheduler
}

// reportTeardown reports a teardown failure that cannot be returned to the
// caller because the body's panic or Goexit is being re-raised instead.
func (h *Harness[C]) reportTeardown(ctx context.Context, hd *Handle[C], err error) {
	h.instrumentation().telem.Error(
		ctx,
		"database.teardown.error",
		err,
		telemetry.String("database.name", hd.Name),
	)

	if fn, ok := ctx.Value(teardownReporterKey{}).(func(error)); ok {
		fn(err)
	}
}

// teardownReporterKey is the context key for a function that receives teardown
// failures that cannot be returned.
type teardownReporterKey struct{}

// withTeardownReporter returns a context that carries fn, which is called with
// any teardown failure that cannot be returned to the caller.
func withTeardownReporter(ctx context.Context, fn func(error)) context.Context {
	return context.WithValue(ctx, teardownReporterKey{}, fn)
}

type instrumentation struct {
	telem    *telemetry.Recorder
	created  telemetry.Instrument[int64]
	dropped  telemetry.Instrument[int64]
	active   telemetry.Instrument[int64]
	failures telemetry.Instrument[int64]
	duration telemetry.Instrument[float64]
}

func (h *Harness[C]) instrumentation() *instrumentation {
	h.once.Do(func() {
		p := telemetry.Provider{
			TracerProvider: h.TracerProvider,
			MeterProvider:  h.MeterProvider,
			LoggerProvider: h.LoggerProvider,
		}

		var (
			set   string
			units int
		)
		if h.Migrations != nil {
			set = h.Migrations.Name()
			units = h.Migrations.Len()
		}

		telem := p.Recorder(
			"github.com/wickwirew/glowplug/harness",
			telemetry.Type("harness.driver", h.Driver),
			telemetry.If(set != "", telemetry.String("migration.set", set)),
			telemetry.If(set != "", telemetry.Int("migration.units", units)),
		)

		h.instr = &instrumentation{
			telem:    telem,
			created:  telem.Counter("databases.created", "{database}", "The number of ephemeral databases that have been created."),
			dropped:  telem.Counter("databases.dropped", "{database}", "The number of ephemeral databases that have been dropped."),
			active:   telem.UpDownCounter("databases.active", "{database}", "The number of ephemeral databases that currently exist."),
			failures: telem.Counter("teardown.failures", "{error}", "The number of times an ephemeral database could not be torn down."),
			duration: telem.Histogram("invocation.duration", "s", "The time taken by each invocation, including setup and teardown."),
		}
	})

	return h.instr
}
