package harness

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wickwirew/glowplug/internal/x/xtesting"
	"github.com/wickwirew/glowplug/migration"
)

// Fixture describes a [Driver] implementation to be tested by [RunTests].
type Fixture[C any] struct {
	// BaseDSN is the server-level connection string.
	BaseDSN string

	// Driver is the driver under test.
	Driver Driver[C]

	// Migrator applies migrations using conn.
	Migrator Migrator[C]

	// Users is a migration set that creates a "users" table.
	Users *migration.Set

	// Exists returns true if a database with the given name exists on the
	// server. control is a connection to the server opened with BaseDSN.
	Exists func(ctx context.Context, control C, name string) (bool, error)

	// InsertUser inserts a row into the "users" table.
	InsertUser func(ctx context.Context, conn C, name string) error

	// CountUsers returns the number of rows in the "users" table.
	CountUsers func(ctx context.Context, conn C) (int, error)
}

// RunTests runs tests that confirm a [Driver] implementation behaves correctly
// when used by a [Harness].
func RunTests[C any](
	t *testing.T,
	f Fixture[C],
) {
	schedulers := []struct {
		Name      string
		Scheduler Scheduler
	}{
		{"sync", Sync},
		{"async", Async},
	}

	for _, s := range schedulers {
		t.Run(s.Name, func(t *testing.T) {
			t.Parallel()
			runLifecycleTests(t, f, s.Scheduler)
		})
	}
}

// observer records the databases created and dropped by a driver.
type observer[C any] struct {
	m       sync.Mutex
	created []string
	dropped []string
}

func (o *observer[C]) install(in *Interceptor[C]) {
	in.AfterCreate(func(name string) error {
		o.m.Lock()
		defer o.m.Unlock()
		o.created = append(o.created, name)
		return nil
	})

	in.AfterDrop(func(name string) error {
		o.m.Lock()
		defer o.m.Unlock()
		o.dropped = append(o.dropped, name)
		return nil
	})
}

func (o *observer[C]) Created() []string {
	o.m.Lock()
	defer o.m.Unlock()
	return slices.Clone(o.created)
}

func (o *observer[C]) Dropped() []string {
	o.m.Lock()
	defer o.m.Unlock()
	return slices.Clone(o.dropped)
}

func runLifecycleTests[C any](
	t *testing.T,
	f Fixture[C],
	s Scheduler,
) {
	setup := func(t *testing.T) (*Harness[C], *Interceptor[C], *observer[C]) {
		in := &Interceptor[C]{}
		obs := &observer[C]{}
		obs.install(in)

		return &Harness[C]{
			BaseDSN:    f.BaseDSN,
			Driver:     WithInterceptor(f.Driver, in),
			Migrator:   f.Migrator,
			Migrations: f.Users,
			Scheduler:  s,
		}, in, obs
	}

	exists := func(t *testing.T, name string) bool {
		t.Helper()

		ctx := context.WithoutCancel(t.Context())

		control, err := f.Driver.Connect(ctx, f.BaseDSN)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Driver.Close(control)

		ok, err := f.Exists(ctx, control, name)
		if err != nil {
			t.Fatal(err)
		}

		return ok
	}

	// forceDrop drops a database that the harness was deliberately prevented
	// from dropping.
	forceDrop := func(t *testing.T, name string) {
		t.Helper()

		ctx := context.WithoutCancel(t.Context())

		control, err := f.Driver.Connect(ctx, f.BaseDSN)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Driver.Close(control)

		if err := f.Driver.DropDatabase(ctx, control, name); err != nil {
			t.Fatal(err)
		}
	}

	expectCreatedAndDropped := func(t *testing.T, obs *observer[C]) string {
		t.Helper()

		created := obs.Created()
		if len(created) != 1 {
			t.Fatalf("unexpected number of databases created: got %d, want 1", len(created))
		}

		if diff := cmp.Diff(created, obs.Dropped()); diff != "" {
			t.Fatalf("unexpected dropped databases (-want +got):\n%s", diff)
		}

		name := created[0]
		if exists(t, name) {
			t.Fatalf("expected the %q database to have been dropped", name)
		}

		return name
	}

	t.Run("cleanup", func(t *testing.T) {
		t.Parallel()

		t.Run("it drops the database when the body succeeds", func(t *testing.T) {
			t.Parallel()

			h, _, obs := setup(t)

			var inside bool
			err := h.Run(t.Context(), xtesting.SequentialName("success"), func(ctx context.Context, conn C) error {
				created := obs.Created()
				inside = len(created) == 1 && exists(t, created[0])
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}

			if !inside {
				t.Fatal("expected the database to exist while the body was running")
			}

			expectCreatedAndDropped(t, obs)
		})

		t.Run("it drops the database and returns the same error when the body fails", func(t *testing.T) {
			t.Parallel()

			h, _, obs := setup(t)

			want := errors.New("<error>")
			got := h.Run(t.Context(), xtesting.SequentialName("failure"), func(ctx context.Context, conn C) error {
				return want
			})
			if got != want {
				t.Fatalf("unexpected error: got %v, want %v", got, want)
			}

			expectCreatedAndDropped(t, obs)
		})

		t.Run("it drops the database and re-panics with the same value when the body panics", func(t *testing.T) {
			t.Parallel()

			h, _, obs := setup(t)

			type payload struct{ Message string }
			want := &payload{"<panic>"}

			got := func() (v any) {
				defer func() {
					v = recover()
				}()

				h.Run(t.Context(), xtesting.SequentialName("panic"), func(ctx context.Context, conn C) error {
					panic(want)
				})

				return nil
			}()

			if got != want {
				t.Fatalf("unexpected panic value: got %#v, want %#v", got, want)
			}

			expectCreatedAndDropped(t, obs)
		})

		t.Run("it drops the database and exits the goroutine when the body calls runtime.Goexit", func(t *testing.T) {
			t.Parallel()

			h, _, obs := setup(t)

			var returned bool
			done := make(chan struct{})

			go func() {
				defer close(done)

				h.Run(t.Context(), xtesting.SequentialName("goexit"), func(ctx context.Context, conn C) error {
					runtime.Goexit()
					return nil
				})

				returned = true
			}()

			<-done

			if returned {
				t.Fatal("expected Run to call runtime.Goexit")
			}

			expectCreatedAndDropped(t, obs)
		})

		t.Run("it drops the database when the migrations fail", func(t *testing.T) {
			t.Parallel()

			h, _, obs := setup(t)

			want := errors.New("<error>")
			h.Migrator = MigratorFunc[C](func(context.Context, C, *migration.Set) error {
				return want
			})

			err := h.Run(t.Context(), xtesting.SequentialName("migration"), func(ctx context.Context, conn C) error {
				t.Error("did not expect the body to be called")
				return nil
			})

			var merr *MigrationError
			if !errors.As(err, &merr) {
				t.Fatalf("unexpected error: got %v, want *MigrationError", err)
			}

			if !errors.Is(err, want) {
				t.Fatalf("expected error to wrap %v", want)
			}

			if merr.Set != f.Users.Name() {
				t.Fatalf("unexpected migration set name: got %q, want %q", merr.Set, f.Users.Name())
			}

			expectCreatedAndDropped(t, obs)
		})

		t.Run("it does not leave a database behind when creation fails after the database exists", func(t *testing.T) {
			t.Parallel()

			h, in, _ := setup(t)

			var name string
			want := errors.New("<error>")
			in.AfterCreate(func(n string) error {
				name = n
				return want
			})

			err := h.Run(t.Context(), xtesting.SequentialName("after_create"), func(ctx context.Context, conn C) error {
				t.Error("did not expect the body to be called")
				return nil
			})

			var cerr *DatabaseCreationError
			if !errors.As(err, &cerr) {
				t.Fatalf("unexpected error: got %v, want *DatabaseCreationError", err)
			}

			if !errors.Is(err, want) {
				t.Fatalf("expected error to wrap %v", want)
			}

			if name == "" {
				t.Fatal("expected the database to have been created")
			}

			if exists(t, name) {
				t.Fatalf("expected the %q database to have been dropped", name)
			}
		})

		t.Run("it succeeds when the migration set has no units", func(t *testing.T) {
			t.Parallel()

			h, _, obs := setup(t)
			h.Migrations = migration.MustNewSet("empty")

			var state State
			hd, err := h.Acquire(t.Context(), xtesting.SequentialName("empty_migrations"))
			if err != nil {
				t.Fatal(err)
			}
			state = hd.State()

			if err := hd.Release(t.Context()); err != nil {
				t.Fatal(err)
			}

			if state != Migrated {
				t.Fatalf("unexpected state: got %s, want %s", state, Migrated)
			}

			expectCreatedAndDropped(t, obs)
		})

		t.Run("it does not create or drop anything when the server is unreachable", func(t *testing.T) {
			t.Parallel()

			h, in, obs := setup(t)

			var attempts int
			in.BeforeCreate(func(string) error {
				attempts++
				return nil
			})
			in.BeforeDrop(func(string) error {
				attempts++
				return nil
			})

			want := errors.New("<error>")
			in.BeforeConnect(func(string) error {
				return want
			})

			err := h.Run(t.Context(), xtesting.SequentialName("unreachable"), func(ctx context.Context, conn C) error {
				t.Error("did not expect the body to be called")
				return nil
			})

			if !IsConnectError(err) {
				t.Fatalf("unexpected error: got %v, want *ConnectError", err)
			}

			if !errors.Is(err, want) {
				t.Fatalf("expected error to wrap %v", want)
			}

			if attempts != 0 {
				t.Fatalf("unexpected number of CREATE or DROP attempts: got %d, want 0", attempts)
			}

			if len(obs.Created()) != 0 {
				t.Fatal("did not expect any databases to be created")
			}
		})
	})

	t.Run("teardown failure", func(t *testing.T) {
		t.Parallel()

		t.Run("it reports both the teardown failure and the body's error", func(t *testing.T) {
			t.Parallel()

			h, in, obs := setup(t)

			dropErr := errors.New("<drop error>")
			in.BeforeDrop(func(string) error {
				return dropErr
			})

			bodyErr := errors.New("<body error>")
			err := h.Run(t.Context(), xtesting.SequentialName("teardown"), func(ctx context.Context, conn C) error {
				return bodyErr
			})

			var terr *DatabaseTeardownError
			if !errors.As(err, &terr) {
				t.Fatalf("unexpected error: got %v, want *DatabaseTeardownError", err)
			}

			if !errors.Is(err, dropErr) {
				t.Fatalf("expected error to wrap %v", dropErr)
			}

			if terr.Pending != bodyErr {
				t.Fatalf("unexpected pending error: got %v, want %v", terr.Pending, bodyErr)
			}

			created := obs.Created()
			if len(created) != 1 {
				t.Fatalf("unexpected number of databases created: got %d, want 1", len(created))
			}

			forceDrop(t, created[0])
		})

		t.Run("it still re-panics with the original value", func(t *testing.T) {
			t.Parallel()

			h, in, obs := setup(t)

			in.BeforeDrop(func(string) error {
				return errors.New("<drop error>")
			})

			var reported error
			ctx := withTeardownReporter(t.Context(), func(err error) {
				reported = err
			})

			want := "<panic>"
			got := func() (v any) {
				defer func() {
					v = recover()
				}()

				h.Run(ctx, xtesting.SequentialName("teardown"), func(ctx context.Context, conn C) error {
					panic(want)
				})

				return nil
			}()

			if got != want {
				t.Fatalf("unexpected panic value: got %#v, want %#v", got, want)
			}

			if !IsTeardownError(reported) {
				t.Fatalf("unexpected reported error: got %v, want *DatabaseTeardownError", reported)
			}

			created := obs.Created()
			if len(created) != 1 {
				t.Fatalf("unexpected number of databases created: got %d, want 1", len(created))
			}

			forceDrop(t, created[0])
		})
	})

	t.Run("migrations", func(t *testing.T) {
		t.Parallel()

		t.Run("applying the migrations a second time is a no-op", func(t *testing.T) {
			t.Parallel()

			h, _, _ := setup(t)

			hd, err := h.Acquire(t.Context(), xtesting.SequentialName("idempotence"))
			if err != nil {
				t.Fatal(err)
			}
			defer func() {
				if err := hd.Release(t.Context()); err != nil {
					t.Error(err)
				}
			}()

			if hd.State() != Migrated {
				t.Fatalf("unexpected state: got %s, want %s", hd.State(), Migrated)
			}

			if err := f.InsertUser(t.Context(), hd.Conn, "<user>"); err != nil {
				t.Fatal(err)
			}

			if err := f.Migrator.Migrate(t.Context(), hd.Conn, f.Users); err != nil {
				t.Fatal(err)
			}

			n, err := f.CountUsers(t.Context(), hd.Conn)
			if err != nil {
				t.Fatal(err)
			}

			if n != 1 {
				t.Fatalf("unexpected number of users: got %d, want 1", n)
			}
		})
	})

	t.Run("concurrency", func(t *testing.T) {
		t.Parallel()

		t.Run("concurrent invocations with the same identifier use distinct databases", func(t *testing.T) {
			t.Parallel()

			const n = 100

			h, _, obs := setup(t)
			id := xtesting.SequentialName("concurrent")

			var g sync.WaitGroup
			errs := make(chan error, n)

			for range n {
				g.Add(1)
				go func() {
					defer g.Done()
					errs <- h.Run(t.Context(), id, func(ctx context.Context, conn C) error {
						return nil
					})
				}()
			}

			g.Wait()
			close(errs)

			for err := range errs {
				if err != nil {
					t.Error(err)
				}
			}

			created := obs.Created()
			dropped := obs.Dropped()

			if len(created) != n {
				t.Fatalf("unexpected number of databases created: got %d, want %d", len(created), n)
			}

			slices.Sort(created)
			if len(slices.Compact(slices.Clone(created))) != n {
				t.Fatal("expected every database name to be distinct")
			}

			slices.Sort(dropped)
			if diff := cmp.Diff(created, dropped); diff != "" {
				t.Fatalf("unexpected dropped databases (-want +got):\n%s", diff)
			}
		})
	})

	t.Run("users_crud", func(t *testing.T) {
		t.Parallel()

		body := func(want int) func(ctx context.Context, conn C) error {
			return func(ctx context.Context, conn C) error {
				if err := f.InsertUser(ctx, conn, "<user>"); err != nil {
					return err
				}

				n, err := f.CountUsers(ctx, conn)
				if err != nil {
					return err
				}

				if n != want {
					return fmt.Errorf("unexpected number of users: got %d, want %d", n, want)
				}

				return nil
			}
		}

		t.Run("it succeeds when the assertion holds", func(t *testing.T) {
			t.Parallel()

			h, _, obs := setup(t)

			if err := h.Run(t.Context(), "users_crud", body(1)); err != nil {
				t.Fatal(err)
			}

			name := expectCreatedAndDropped(t, obs)
			if !strings.HasPrefix(name, "users_crud_") {
				t.Fatalf("unexpected database name: %q", name)
			}
		})

		t.Run("it drops the database and re-raises the failed assertion", func(t *testing.T) {
			t.Parallel()

			h, _, obs := setup(t)

			err := h.Run(t.Context(), "users_crud", body(2))
			if err == nil {
				t.Fatal("expected an error")
			}

			want := "unexpected number of users: got 1, want 2"
			if err.Error() != want {
				t.Fatalf("unexpected error: got %q, want %q", err, want)
			}

			name := expectCreatedAndDropped(t, obs)
			if !strings.HasPrefix(name, "users_crud_") {
				t.Fatalf("unexpected database name: %q", name)
			}
		})
	})
}
