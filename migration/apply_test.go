package migration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/stub"
	"github.com/google/go-cmp/cmp"
	. "github.com/wickwirew/glowplug/migration"
	nooplog "go.opentelemetry.io/otel/log/noop"
)

// closeTracker records whether the driver it wraps has been closed.
type closeTracker struct {
	database.Driver
	closed bool
}

func (d *closeTracker) Close() error {
	d.closed = true
	return d.Driver.Close()
}

func newStub(t *testing.T) *closeTracker {
	t.Helper()

	drv, err := stub.WithInstance(nil, &stub.Config{})
	if err != nil {
		t.Fatal(err)
	}

	return &closeTracker{Driver: drv}
}

func TestApply(t *testing.T) {
	set := MustNewSet(
		"<set>",
		Unit{Version: 1, Identifier: "create_users", Up: "<up-1>"},
		Unit{Version: 2, Identifier: "create_posts", Up: "<up-2>"},
	)

	t.Run("it applies every unit in order", func(t *testing.T) {
		drv, err := stub.WithInstance(nil, &stub.Config{})
		if err != nil {
			t.Fatal(err)
		}

		logger := NewLogger(t.Context(), nooplog.NewLoggerProvider(), true)
		if err := Apply(t.Context(), set, drv, "<database>", logger); err != nil {
			t.Fatal(err)
		}

		s := drv.(*stub.Stub)
		if diff := cmp.Diff([]string{"<up-1>", "<up-2>"}, s.MigrationSequence); diff != "" {
			t.Fatal(diff)
		}

		if s.CurrentVersion != 2 {
			t.Fatalf("unexpected version: got %d, want 2", s.CurrentVersion)
		}
	})

	t.Run("it is a no-op when every unit is already applied", func(t *testing.T) {
		drv, err := stub.WithInstance(nil, &stub.Config{})
		if err != nil {
			t.Fatal(err)
		}

		if err := drv.SetVersion(2, false); err != nil {
			t.Fatal(err)
		}

		if err := Apply(t.Context(), set, drv, "<database>", nil); err != nil {
			t.Fatal(err)
		}

		if n := len(drv.(*stub.Stub).MigrationSequence); n != 0 {
			t.Fatalf("expected no migrations to run, %d ran", n)
		}
	})

	t.Run("it applies only the pending units", func(t *testing.T) {
		drv, err := stub.WithInstance(nil, &stub.Config{})
		if err != nil {
			t.Fatal(err)
		}

		if err := drv.SetVersion(1, false); err != nil {
			t.Fatal(err)
		}

		if err := Apply(t.Context(), set, drv, "<database>", nil); err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff([]string{"<up-2>"}, drv.(*stub.Stub).MigrationSequence); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("it returns an error if the context is already canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		drv, err := stub.WithInstance(nil, &stub.Config{})
		if err != nil {
			t.Fatal(err)
		}

		if err := Apply(ctx, set, drv, "<database>", nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected error: got %v, want context.Canceled", err)
		}
	})

	t.Run("it closes the driver if the context is already canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		drv := newStub(t)
		Apply(ctx, set, drv, "<database>", nil)

		if !drv.closed {
			t.Fatal("expected the driver to be closed")
		}
	})

	t.Run("it is a no-op when the set has no units", func(t *testing.T) {
		empty := MustNewSet("<empty>")
		drv := newStub(t)

		if err := Apply(t.Context(), empty, drv, "<database>", nil); err != nil {
			t.Fatal(err)
		}

		if n := len(drv.Driver.(*stub.Stub).MigrationSequence); n != 0 {
			t.Fatalf("expected no migrations to run, %d ran", n)
		}

		if !drv.closed {
			t.Fatal("expected the driver to be closed")
		}
	})

	t.Run("it closes the driver after applying the units", func(t *testing.T) {
		drv := newStub(t)

		if err := Apply(t.Context(), set, drv, "<database>", nil); err != nil {
			t.Fatal(err)
		}

		if !drv.closed {
			t.Fatal("expected the driver to be closed")
		}
	})
}
