package myharness_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/wickwirew/glowplug/driver/sql/mysql/internal/mytest"
	. "github.com/wickwirew/glowplug/driver/sql/mysql/myharness"
	"github.com/wickwirew/glowplug/harness"
	"github.com/wickwirew/glowplug/migration"
)

var users = migration.MustNewSet(
	"users",
	migration.Unit{
		Version:    1,
		Identifier: "create_users",
		Up:         "CREATE TABLE users (id BIGINT AUTO_INCREMENT PRIMARY KEY, name TEXT NOT NULL);",
		Down:       "DROP TABLE users;",
	},
)

func TestDriver(t *testing.T) {
	cfg := mytest.Setup(t)

	f := harness.Fixture[*sql.DB]{
		BaseDSN: cfg.DatabaseURL,
		Driver:  &Driver{},
		Migrator: &Migrator{
			MigrationsTable: cfg.MigrationsTable,
		},
		Users:    users,
		Exists:   DatabaseExists,
		InsertUser: func(ctx context.Context, db *sql.DB, name string) error {
			_, err := db.ExecContext(ctx, `INSERT INTO users (name) VALUES (?)`, name)
			return err
		},
		CountUsers: func(ctx context.Context, db *sql.DB) (int, error) {
			var n int
			err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
			return n, err
		},
	}

	harness.RunTests(t, f)

	t.Run("it classifies duplicate and unknown databases", func(t *testing.T) {
		ctx := t.Context()

		control, err := f.Driver.Connect(ctx, f.BaseDSN)
		if err != nil {
			t.Fatal(err)
		}
		defer control.Close()

		name := harness.UniqueName("classify")

		if err := f.Driver.CreateDatabase(ctx, control, name); err != nil {
			t.Fatal(err)
		}

		if err := f.Driver.CreateDatabase(ctx, control, name); !IsDuplicateDatabase(err) {
			t.Fatalf("unexpected error: got %v, want duplicate database", err)
		}

		if err := f.Driver.DropDatabase(ctx, control, name); err != nil {
			t.Fatal(err)
		}

		if err := f.Driver.DropDatabase(ctx, control, name); !IsUnknownDatabase(err) {
			t.Fatalf("unexpected error: got %v, want unknown database", err)
		}
	})
}

func TestDriver_DSN(t *testing.T) {
	t.Parallel()

	d := &Driver{}

	got, err := d.DSN("root:secret@tcp(localhost:3306)/test?parseTime=true", "users_crud_1")
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := mysql.ParseDSN(got)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBName != "users_crud_1" {
		t.Fatalf("unexpected database name: got %q, want %q", cfg.DBName, "users_crud_1")
	}

	if cfg.Addr != "localhost:3306" || cfg.User != "root" || cfg.Passwd != "secret" {
		t.Fatalf("unexpected server details in %q", got)
	}

	if !cfg.MultiStatements || !cfg.ParseTime {
		t.Fatalf("unexpected parameters in %q", got)
	}

	if _, err := d.DSN("not a dsn", "db"); err == nil {
		t.Fatal("expected an error")
	}
}
