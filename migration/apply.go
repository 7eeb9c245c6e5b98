package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/hashicorp/go-multierror"
)

// Apply applies the units of s that have not yet been applied to the database
// managed by drv.
//
// databaseName is used only for golang-migrate's diagnostics. drv is closed
// before Apply returns; drivers built with WithConnection close only their
// dedicated connection, leaving the caller's pool open.
//
// Applying a set that is already fully applied, or that has no units, is a
// no-op.
func Apply(
	ctx context.Context,
	s *Set,
	drv database.Driver,
	databaseName string,
	logger migrate.Logger,
) (err error) {
	if err := ctx.Err(); err != nil {
		return closeDriver(drv, err)
	}

	// golang-migrate has no notion of an empty source, it reports the missing
	// first version as an error.
	if s.Len() == 0 {
		return closeDriver(drv, nil)
	}

	m, err := migrate.NewWithInstance(s.Name(), s.Source(), databaseName, drv)
	if err != nil {
		err = fmt.Errorf("unable to prepare %q migrations: %w", s.Name(), err)
		return closeDriver(drv, err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			err = multierror.Append(err, srcErr, dbErr).ErrorOrNil()
		}
	}()

	if logger != nil {
		m.Log = logger
	}

	// Ask golang-migrate to stop after the current unit if ctx is canceled.
	stop := context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	err = m.Up()

	if errors.Is(err, migrate.ErrNoChange) {
		err = nil
	}

	if err != nil {
		return fmt.Errorf("unable to apply %q migrations: %w", s.Name(), err)
	}

	return context.Cause(ctx)
}

// closeDriver closes a driver that was never handed to golang-migrate, and
// returns err combined with any failure to close it.
func closeDriver(drv database.Driver, err error) error {
	if cerr := drv.Close(); cerr != nil {
		return multierror.Append(err, cerr).ErrorOrNil()
	}
	return err
}
