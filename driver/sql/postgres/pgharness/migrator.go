package pgharness

import (
	"context"
	"database/sql"

	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/wickwirew/glowplug/config"
	"github.com/wickwirew/glowplug/harness"
	"github.com/wickwirew/glowplug/internal/errorx"
	"github.com/wickwirew/glowplug/migration"
	"go.opentelemetry.io/otel/log"
)

// Migrator is a [harness.Migrator] for PostgreSQL.
//
// It applies migrations using golang-migrate over a dedicated connection
// taken from the pool, which is returned to the pool afterwards.
type Migrator struct {
	// MigrationsTable is the name of the table used to record applied
	// migrations. If it is empty, the GLOWPLUG_MIGRATIONS_TABLE environment
	// variable is used, or "schema_migrations" if that is not set either.
	MigrationsTable string

	// LoggerProvider receives golang-migrate's log messages. If it is nil,
	// they are discarded.
	LoggerProvider log.LoggerProvider

	// Verbose enables golang-migrate's verbose logging.
	Verbose bool
}

var _ harness.Migrator[*sql.DB] = (*Migrator)(nil)

// Migrate applies the units of set that have not yet been applied to the
// database db is connected to.
func (m *Migrator) Migrate(ctx context.Context, db *sql.DB, set *migration.Set) (err error) {
	defer errorx.Wrap(&err, "unable to migrate PostgreSQL database")

	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}

	// Closing drv closes conn, but leaves db open.
	drv, err := postgres.WithConnection(
		ctx,
		conn,
		&postgres.Config{
			MigrationsTable: m.migrationsTable(),
		},
	)
	if err != nil {
		conn.Close()
		return err
	}

	return migration.Apply(
		ctx,
		set,
		drv,
		"postgres",
		migration.NewLogger(ctx, m.LoggerProvider, m.Verbose),
	)
}

func (m *Migrator) migrationsTable() string {
	if m.MigrationsTable != "" {
		return m.MigrationsTable
	}
	return config.MigrationsTable()
}
