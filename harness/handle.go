package harness

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/wickwirew/glowplug/internal/telemetry"
)

// Handle is an ephemeral database provisioned by [Harness.Acquire].
//
// A handle belongs to a single invocation and is not safe for concurrent use.
type Handle[C any] struct {
	// Name is the unique name of the database.
	Name string

	// DSN is the connection string for the database.
	DSN string

	// Conn is the connection scoped to the database.
	Conn C

	harness *Harness[C]
	id      string
	baseDSN string
	control C
	state   State

	hasControl, hasScoped, released bool
}

// State returns the lifecycle state of the database.
func (hd *Handle[C]) State() State {
	return hd.state
}

// Release closes the scoped connection, drops the database and closes the
// control connection, in that order.
//
// Each step is attempted even if an earlier one fails, and all failures are
// reported in a single [*DatabaseTeardownError]. Cancellation of ctx does not
// prevent teardown. Subsequent calls are no-ops.
func (hd *Handle[C]) Release(ctx context.Context) error {
	if err := hd.release(ctx); err != nil {
		return &DatabaseTeardownError{
			Database: hd.Name,
			Cause:    err,
		}
	}
	return nil
}

// open connects to the newly created database and migrates it.
func (hd *Handle[C]) open(ctx context.Context) error {
	h := hd.harness

	dsn, err := h.Driver.DSN(hd.baseDSN, hd.Name)
	if err != nil {
		return &ConnectError{
			Database: hd.Name,
			DSN:      RedactDSN(hd.baseDSN),
			Cause:    err,
		}
	}
	hd.DSN = dsn

	conn, err := h.Driver.Connect(ctx, dsn)
	if err != nil {
		return &ConnectError{
			Database: hd.Name,
			DSN:      RedactDSN(dsn),
			Cause:    err,
		}
	}

	hd.Conn = conn
	hd.hasScoped = true
	hd.transition(ctx, ScopedConnected)

	if set := h.Migrations; set != nil {
		if err := h.Migrator.Migrate(ctx, conn, set); err != nil {
			return &MigrationError{
				Database: hd.Name,
				Set:      set.Name(),
				Cause:    err,
			}
		}
	}

	hd.transition(ctx, Migrated)

	return nil
}

func (hd *Handle[C]) release(ctx context.Context) error {
	if hd.released {
		return nil
	}
	hd.released = true

	ctx = context.WithoutCancel(ctx)
	h := hd.harness
	in := h.instrumentation()

	var result *multierror.Error

	if hd.hasScoped {
		if err := h.Driver.Close(hd.Conn); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to close the connection to the %q database: %w", hd.Name, err))
		}
	}

	if hd.state.owesTeardown() {
		if err := h.Driver.DropDatabase(ctx, hd.control, hd.Name); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to drop the %q database: %w", hd.Name, err))
		} else {
			hd.transition(ctx, DatabaseDropped)
			in.dropped(ctx, 1)
			in.active(ctx, -1)
		}
	}

	if hd.hasControl {
		if err := h.Driver.Close(hd.control); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to close the control connection: %w", err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		in.failures(ctx, 1)
		return err
	}

	return nil
}

func (hd *Handle[C]) transition(ctx context.Context, to State) {
	hd.state = to

	telem := hd.harness.instrumentation().telem
	attrs := []telemetry.Attr{
		telemetry.String("invocation.id", hd.id),
		telemetry.String("database.name", hd.Name),
		telemetry.Stringer("database.state", to),
	}

	switch to {
	case DatabaseCreated:
		telem.Info(ctx, "database.created", "ephemeral database created", attrs...)
	case DatabaseDropped:
		telem.Info(ctx, "database.dropped", "ephemeral database dropped", attrs...)
	default:
		telem.Debug(ctx, "database.transition", "lifecycle state changed", attrs...)
	}
}
