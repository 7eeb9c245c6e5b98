package pgharness

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/wickwirew/glowplug/driver/sql/postgres/internal/pgerror"
	"github.com/wickwirew/glowplug/harness"
	"github.com/wickwirew/glowplug/internal/errorx"
)

// Driver is a [harness.Driver] for PostgreSQL.
//
// Connections are [*sql.DB] pools opened with the pgx driver.
type Driver struct {
	// DriverName is the name of the database/sql driver. If it is empty,
	// "pgx" is used.
	DriverName string

	// DisableForcedDrop disables the use of DROP DATABASE ... WITH (FORCE),
	// which terminates any other sessions connected to the database before
	// dropping it. It must be set for servers older than PostgreSQL 13.
	DisableForcedDrop bool
}

var _ harness.Driver[*sql.DB] = (*Driver)(nil)

// Connect opens a connection pool and verifies that the server is reachable.
func (d *Driver) Connect(ctx context.Context, dsn string) (_ *sql.DB, err error) {
	defer errorx.Wrap(&err, "unable to connect to PostgreSQL")

	name := d.DriverName
	if name == "" {
		name = "pgx"
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	defer errorx.CloseOnError(&err, db)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// DSN returns the connection string for the named database.
//
// Both URL and keyword/value connection strings are supported.
func (d *Driver) DSN(base, name string) (string, error) {
	if strings.Contains(base, "://") {
		return harness.JoinDSN(base, name)
	}

	// In keyword/value strings the last occurrence of a keyword wins.
	return strings.TrimSpace(base) + " dbname=" + quoteValue(name), nil
}

// CreateDatabase creates a database with the given name.
func (d *Driver) CreateDatabase(ctx context.Context, control *sql.DB, name string) error {
	_, err := control.ExecContext(
		ctx,
		`CREATE DATABASE `+quoteIdentifier(name),
	)

	if pgerror.IsDuplicateDatabase(err) {
		return fmt.Errorf("a database named %q already exists: %w", name, err)
	}

	return err
}

// DropDatabase drops the database with the given name.
func (d *Driver) DropDatabase(ctx context.Context, control *sql.DB, name string) error {
	q := `DROP DATABASE ` + quoteIdentifier(name)
	if !d.DisableForcedDrop {
		q += ` WITH (FORCE)`
	}

	_, err := control.ExecContext(ctx, q)

	switch {
	case pgerror.IsUnknownDatabase(err):
		return fmt.Errorf("the %q database does not exist: %w", name, err)
	case pgerror.IsInUse(err):
		return fmt.Errorf("the %q database is still in use: %w", name, err)
	default:
		return err
	}
}

// Close closes the connection pool.
func (d *Driver) Close(db *sql.DB) error {
	return db.Close()
}

// DatabaseExists returns true if a database with the given name exists on the
// server that db is connected to.
func DatabaseExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var ok bool
	err := db.QueryRowContext(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`,
		name,
	).Scan(&ok)
	return ok, err
}

// IsDuplicateDatabase returns true if err indicates that a database could not
// be created because one with the same name already exists.
func IsDuplicateDatabase(err error) bool {
	return pgerror.IsDuplicateDatabase(err)
}

// IsUnknownDatabase returns true if err indicates that a database does not
// exist.
func IsUnknownDatabase(err error) bool {
	return pgerror.IsUnknownDatabase(err)
}

func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// quoteValue quotes a value in a keyword/value connection string.
func quoteValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
