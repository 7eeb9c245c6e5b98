package memorydb_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	. "github.com/wickwirew/glowplug/driver/memory/memorydb"
	"github.com/wickwirew/glowplug/harness"
	"github.com/wickwirew/glowplug/migration"
	"google.golang.org/protobuf/types/known/structpb"
)

var users = migration.MustNewSet(
	"users",
	migration.Unit{
		Version:    1,
		Identifier: "create_users",
		Up:         "CREATE TABLE users",
		Down:       "DROP TABLE users",
	},
)

func TestDriver(t *testing.T) {
	t.Parallel()

	server := &Server{}

	harness.RunTests(
		t,
		harness.Fixture[*Conn]{
			BaseDSN:    BaseDSN,
			Driver:     &Driver{Server: server},
			Migrator:   &Migrator{},
			Users:      users,
			Exists:     exists(server),
			InsertUser: insertUser,
			CountUsers: countUsers,
		},
	)
}

func TestDriver_DropDatabase(t *testing.T) {
	t.Parallel()

	t.Run("it fails if the database has open connections", func(t *testing.T) {
		t.Parallel()

		server := &Server{}
		driver := &Driver{Server: server}

		control, err := driver.Connect(t.Context(), BaseDSN)
		if err != nil {
			t.Fatal(err)
		}
		defer control.Close()

		if err := driver.CreateDatabase(t.Context(), control, "<db>"); err != nil {
			t.Fatal(err)
		}

		conn, err := driver.Connect(t.Context(), "memory:///<db>")
		if err != nil {
			t.Fatal(err)
		}

		err = driver.DropDatabase(t.Context(), control, "<db>")
		if !errors.Is(err, ErrDatabaseInUse) {
			t.Fatalf("unexpected error: got %v, want %v", err, ErrDatabaseInUse)
		}

		if err := conn.Close(); err != nil {
			t.Fatal(err)
		}

		if err := driver.DropDatabase(t.Context(), control, "<db>"); err != nil {
			t.Fatal(err)
		}

		if dbs := server.Databases(); len(dbs) != 0 {
			t.Fatalf("unexpected databases: %v", dbs)
		}
	})

	t.Run("it fails if the database does not exist", func(t *testing.T) {
		t.Parallel()

		driver := &Driver{Server: &Server{}}

		control, err := driver.Connect(t.Context(), BaseDSN)
		if err != nil {
			t.Fatal(err)
		}
		defer control.Close()

		err = driver.DropDatabase(t.Context(), control, "<db>")
		if !errors.Is(err, ErrUnknownDatabase) {
			t.Fatalf("unexpected error: got %v, want %v", err, ErrUnknownDatabase)
		}
	})
}

func TestDriver_CreateDatabase(t *testing.T) {
	t.Parallel()

	t.Run("it fails if the name is already in use", func(t *testing.T) {
		t.Parallel()

		driver := &Driver{Server: &Server{}}

		control, err := driver.Connect(t.Context(), BaseDSN)
		if err != nil {
			t.Fatal(err)
		}
		defer control.Close()

		if err := driver.CreateDatabase(t.Context(), control, "<db>"); err != nil {
			t.Fatal(err)
		}

		err = driver.CreateDatabase(t.Context(), control, "<db>")
		if !errors.Is(err, ErrDatabaseExists) {
			t.Fatalf("unexpected error: got %v, want %v", err, ErrDatabaseExists)
		}
	})

	t.Run("it requires a control connection", func(t *testing.T) {
		t.Parallel()

		driver := &Driver{Server: &Server{}}

		control, err := driver.Connect(t.Context(), BaseDSN)
		if err != nil {
			t.Fatal(err)
		}
		defer control.Close()

		if err := driver.CreateDatabase(t.Context(), control, "<db>"); err != nil {
			t.Fatal(err)
		}

		conn, err := driver.Connect(t.Context(), "memory:///<db>")
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()

		if err := driver.CreateDatabase(t.Context(), conn, "<other>"); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestDriver_Connect(t *testing.T) {
	t.Parallel()

	driver := &Driver{Server: &Server{}}

	t.Run("it fails if the database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := driver.Connect(t.Context(), "memory:///<db>")
		if !errors.Is(err, ErrUnknownDatabase) {
			t.Fatalf("unexpected error: got %v, want %v", err, ErrUnknownDatabase)
		}
	})

	t.Run("it rejects other schemes", func(t *testing.T) {
		t.Parallel()

		if _, err := driver.Connect(t.Context(), "postgres://localhost"); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestMigrator(t *testing.T) {
	t.Parallel()

	set := migration.MustNewSet(
		"<set>",
		migration.Unit{Version: 1, Identifier: "a", Up: "CREATE TABLE a"},
		migration.Unit{Version: 3, Identifier: "b", Up: "CREATE TABLE b; DROP TABLE a"},
	)

	setup := func(t *testing.T) *Conn {
		server := &Server{}
		h := &harness.Harness[*Conn]{
			BaseDSN: BaseDSN,
			Driver:  &Driver{Server: server},
		}
		return harness.Setup(t, h)
	}

	t.Run("it applies the units in order", func(t *testing.T) {
		t.Parallel()

		conn := setup(t)

		if err := (&Migrator{}).Migrate(t.Context(), conn, set); err != nil {
			t.Fatal(err)
		}

		tables, err := conn.Tables(t.Context())
		if err != nil {
			t.Fatal(err)
		}

		if !slices.Equal(tables, []string{"b"}) {
			t.Fatalf("unexpected tables: %v", tables)
		}

		v, ok, err := conn.Version(t.Context())
		if err != nil {
			t.Fatal(err)
		}

		if !ok || v != 3 {
			t.Fatalf("unexpected version: got %d (%t), want 3", v, ok)
		}
	})

	t.Run("it returns an error if a unit fails", func(t *testing.T) {
		t.Parallel()

		conn := setup(t)

		bad := migration.MustNewSet(
			"<bad>",
			migration.Unit{Version: 1, Identifier: "bad", Up: "SELECT 1"},
		)

		if err := (&Migrator{}).Migrate(t.Context(), conn, bad); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestConn(t *testing.T) {
	t.Parallel()

	h := &harness.Harness[*Conn]{
		BaseDSN:    BaseDSN,
		Driver:     &Driver{Server: &Server{}},
		Migrator:   &Migrator{},
		Migrations: users,
	}

	t.Run("it returns copies of the stored rows", func(t *testing.T) {
		t.Parallel()

		conn := harness.Setup(t, h)

		row, err := structpb.NewStruct(map[string]any{"name": "<name>"})
		if err != nil {
			t.Fatal(err)
		}

		if err := conn.Insert(t.Context(), "users", row); err != nil {
			t.Fatal(err)
		}

		row.Fields["name"] = structpb.NewStringValue("<changed>")

		rows, err := conn.Rows(t.Context(), "users")
		if err != nil {
			t.Fatal(err)
		}

		if len(rows) != 1 {
			t.Fatalf("unexpected number of rows: got %d, want 1", len(rows))
		}

		if got := rows[0].Fields["name"].GetStringValue(); got != "<name>" {
			t.Fatalf("unexpected name: got %q, want %q", got, "<name>")
		}
	})

	t.Run("it fails after the connection is closed", func(t *testing.T) {
		t.Parallel()

		hd := harness.SetupHandle(t, h)

		conn, err := h.Driver.Connect(t.Context(), hd.DSN)
		if err != nil {
			t.Fatal(err)
		}

		if err := conn.Close(); err != nil {
			t.Fatal(err)
		}

		if _, err := conn.Count(t.Context(), "users"); !errors.Is(err, ErrClosed) {
			t.Fatalf("unexpected error: got %v, want %v", err, ErrClosed)
		}

		if err := conn.Close(); !errors.Is(err, ErrClosed) {
			t.Fatalf("unexpected error: got %v, want %v", err, ErrClosed)
		}
	})
}

func exists(server *Server) func(context.Context, *Conn, string) (bool, error) {
	return func(_ context.Context, _ *Conn, name string) (bool, error) {
		return slices.Contains(server.Databases(), name), nil
	}
}

func insertUser(ctx context.Context, conn *Conn, name string) error {
	row, err := structpb.NewStruct(map[string]any{"name": name})
	if err != nil {
		return err
	}
	return conn.Insert(ctx, "users", row)
}

func countUsers(ctx context.Context, conn *Conn) (int, error) {
	return conn.Count(ctx, "users")
}

func BenchmarkDriver(b *testing.B) {
	server := &Server{}

	harness.RunBenchmarks(
		b,
		harness.Fixture[*Conn]{
			BaseDSN:  BaseDSN,
			Driver:   &Driver{Server: server},
			Migrator: &Migrator{},
			Users:    users,
		},
	)
}
