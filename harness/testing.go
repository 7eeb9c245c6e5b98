package harness

import (
	"context"
	"testing"

	"github.com/wickwirew/glowplug/internal/testx"
)

// Test runs body against an ephemeral database provisioned by h, using the
// name of t as the test identifier.
//
// If the database cannot be provisioned or torn down the test fails
// immediately. Failures within body, such as calls to t.Fatal, are re-raised
// after the database is dropped. This holds for both schedulers; with [Async]
// a call to t.FailNow on the body's goroutine still ends the test.
func Test[C any](
	t testing.TB,
	h *Harness[C],
	body func(t testing.TB, conn C),
) {
	t.Helper()

	ctx := withTeardownReporter(
		t.Context(),
		func(err error) {
			t.Error(err)
		},
	)

	err := h.Run(
		ctx,
		t.Name(),
		func(_ context.Context, conn C) error {
			body(t, conn)
			return nil
		},
	)
	if err != nil {
		t.Fatal(err)
	}
}

// Setup provisions an ephemeral database for the duration of t and returns a
// connection to it.
//
// The database is dropped when the test ends.
func Setup[C any](t testing.TB, h *Harness[C]) C {
	return SetupHandle(t, h).Conn
}

// SetupHandle is like [Setup], but returns the [Handle] so that the test can
// access the name and connection string of the database.
func SetupHandle[C any](t testing.TB, h *Harness[C]) *Handle[C] {
	t.Helper()

	hd, err := h.Acquire(t.Context(), t.Name())
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := hd.Release(testx.ContextForRelease(t, h.ReleaseTimeout)); err != nil {
			t.Error(err)
		}
	})

	return hd
}
