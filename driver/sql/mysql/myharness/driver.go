package myharness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/wickwirew/glowplug/harness"
	"github.com/wickwirew/glowplug/internal/errorx"
)

// MySQL error numbers.
//
// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDatabaseExists  = 1007 // ER_DB_CREATE_EXISTS
	errUnknownDatabase = 1008 // ER_DB_DROP_EXISTS
	errBadDatabase     = 1049 // ER_BAD_DB_ERROR
)

// Driver is a [harness.Driver] for MySQL.
//
// Connection strings use the go-sql-driver/mysql format, for example
// "root:secret@tcp(localhost:3306)/".
type Driver struct{}

var _ harness.Driver[*sql.DB] = (*Driver)(nil)

// Connect opens a connection pool and verifies that the server is reachable.
func (d *Driver) Connect(ctx context.Context, dsn string) (_ *sql.DB, err error) {
	defer errorx.Wrap(&err, "unable to connect to MySQL")

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	defer errorx.CloseOnError(&err, db)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// DSN returns the connection string for the named database.
//
// Multi-statement support is enabled so that migration units may contain
// several statements.
func (d *Driver) DSN(base, name string) (string, error) {
	cfg, err := mysql.ParseDSN(base)
	if err != nil {
		return "", err
	}

	cfg.DBName = name
	cfg.MultiStatements = true

	return cfg.FormatDSN(), nil
}

// CreateDatabase creates a database with the given name.
func (d *Driver) CreateDatabase(ctx context.Context, control *sql.DB, name string) error {
	_, err := control.ExecContext(ctx, `CREATE DATABASE `+quoteIdentifier(name))

	if IsDuplicateDatabase(err) {
		return fmt.Errorf("a database named %q already exists: %w", name, err)
	}

	return err
}

// DropDatabase drops the database with the given name.
func (d *Driver) DropDatabase(ctx context.Context, control *sql.DB, name string) error {
	_, err := control.ExecContext(ctx, `DROP DATABASE `+quoteIdentifier(name))

	if IsUnknownDatabase(err) {
		return fmt.Errorf("the %q database does not exist: %w", name, err)
	}

	return err
}

// Close closes the connection pool.
func (d *Driver) Close(db *sql.DB) error {
	return db.Close()
}

// DatabaseExists returns true if a database with the given name exists on the
// server that db is connected to.
func DatabaseExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?`,
		name,
	).Scan(&n)
	return n != 0, err
}

// IsDuplicateDatabase returns true if err indicates that a database could not
// be created because one with the same name already exists.
func IsDuplicateDatabase(err error) bool {
	return is(err, errDatabaseExists)
}

// IsUnknownDatabase returns true if err indicates that a database does not
// exist.
func IsUnknownDatabase(err error) bool {
	return is(err, errUnknownDatabase, errBadDatabase)
}

func is(err error, numbers ...uint16) bool {
	var e *mysql.MySQLError
	if !errors.As(err, &e) {
		return false
	}

	for _, n := range numbers {
		if e.Number == n {
			return true
		}
	}

	return false
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
