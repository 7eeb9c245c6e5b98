package harness

import (
	"context"

	"github.com/wickwirew/glowplug/migration"
)

// Driver connects to a database server and manages the databases on it.
//
// C is the type of a connection, such as *sql.DB.
type Driver[C any] interface {
	// Connect opens a connection using the given connection string.
	//
	// It is called once with the server-level connection string to obtain
	// the control connection, and once with the string returned by
	// [Driver.DSN] to obtain the connection scoped to the test database.
	Connect(ctx context.Context, dsn string) (C, error)

	// DSN returns the connection string for the database with the given
	// name on the server identified by base.
	DSN(base, name string) (string, error)

	// CreateDatabase creates a new database with the given name using the
	// control connection.
	CreateDatabase(ctx context.Context, control C, name string) error

	// DropDatabase drops the database with the given name using the control
	// connection.
	DropDatabase(ctx context.Context, control C, name string) error

	// Close closes a connection returned by [Driver.Connect].
	Close(conn C) error
}

// Migrator applies a [migration.Set] to a database.
type Migrator[C any] interface {
	// Migrate applies every unit in set that has not already been applied
	// to the database reachable via conn, in order.
	Migrate(ctx context.Context, conn C, set *migration.Set) error
}

// MigratorFunc is an adaptor that allows an ordinary function to be used as a
// [Migrator].
type MigratorFunc[C any] func(ctx context.Context, conn C, set *migration.Set) error

// Migrate calls fn(ctx, conn, set).
func (fn MigratorFunc[C]) Migrate(ctx context.Context, conn C, set *migration.Set) error {
	return fn(ctx, conn, set)
}
