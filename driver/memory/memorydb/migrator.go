package memorydb

import (
	"context"
	"errors"
	"io"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/wickwirew/glowplug/harness"
	"github.com/wickwirew/glowplug/migration"
	"go.opentelemetry.io/otel/log"
)

// Migrator is a [harness.Migrator] for an in-memory [Server].
//
// Each unit's "up" script is executed by [Conn.Exec].
type Migrator struct {
	// LoggerProvider receives golang-migrate's log messages. If it is nil,
	// they are discarded.
	LoggerProvider log.LoggerProvider
}

var _ harness.Migrator[*Conn] = (*Migrator)(nil)

// Migrate applies the units of set that have not yet been applied to the
// database conn is scoped to.
func (m *Migrator) Migrate(ctx context.Context, conn *Conn, set *migration.Set) error {
	db, err := conn.scoped(ctx)
	if err != nil {
		return err
	}

	return migration.Apply(
		ctx,
		set,
		&migrateDriver{db},
		conn.Database(),
		migration.NewLogger(ctx, m.LoggerProvider, false),
	)
}

// Version returns the version of the most recently applied migration unit.
func (c *Conn) Version(ctx context.Context) (version uint, ok bool, err error) {
	db, err := c.scoped(ctx)
	if err != nil {
		return 0, false, err
	}

	db.m.RLock()
	defer db.m.RUnlock()

	if db.version == migratedb.NilVersion {
		return 0, false, nil
	}

	return uint(db.version), true, nil
}

// migrateDriver adapts a database to golang-migrate's [migratedb.Driver]
// interface.
type migrateDriver struct {
	db *database
}

func (d *migrateDriver) Open(string) (migratedb.Driver, error) {
	return nil, errors.New("memorydb: opening by URL is not supported")
}

// Close is a no-op, the connection is owned by the harness.
func (d *migrateDriver) Close() error {
	return nil
}

func (d *migrateDriver) Lock() error {
	d.db.m.Lock()
	defer d.db.m.Unlock()

	if d.db.locked {
		return migratedb.ErrLocked
	}
	d.db.locked = true

	return nil
}

func (d *migrateDriver) Unlock() error {
	d.db.m.Lock()
	defer d.db.m.Unlock()

	if !d.db.locked {
		return migratedb.ErrNotLocked
	}
	d.db.locked = false

	return nil
}

func (d *migrateDriver) Run(r io.Reader) error {
	script, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	if err := d.db.exec(string(script)); err != nil {
		return &migratedb.Error{
			OrigErr: err,
			Err:     "migration failed",
			Query:   script,
		}
	}

	return nil
}

func (d *migrateDriver) SetVersion(version int, dirty bool) error {
	d.db.m.Lock()
	defer d.db.m.Unlock()

	d.db.version = version
	d.db.dirty = dirty

	return nil
}

func (d *migrateDriver) Version() (int, bool, error) {
	d.db.m.RLock()
	defer d.db.m.RUnlock()

	return d.db.version, d.db.dirty, nil
}

func (d *migrateDriver) Drop() error {
	d.db.m.Lock()
	defer d.db.m.Unlock()

	clear(d.db.tables)

	return nil
}
