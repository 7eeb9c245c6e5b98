package errorx_test

import (
	"errors"
	"testing"

	. "github.com/wickwirew/glowplug/internal/errorx"
)

type closer struct {
	closed bool
	err    error
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestWrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("<cause>")
	err := cause
	Wrap(&err, "unable to %s", "<op>")

	if got, want := err.Error(), "unable to <op>: <cause>"; got != want {
		t.Fatalf("unexpected message: got %q, want %q", got, want)
	}

	if !errors.Is(err, cause) {
		t.Fatal("expected the cause to be wrapped")
	}

	var none error
	Wrap(&none, "<context>")

	if none != nil {
		t.Fatalf("expected nil error, got %v", none)
	}
}

func TestCloseOnError(t *testing.T) {
	t.Parallel()

	t.Run("it does not close on success", func(t *testing.T) {
		t.Parallel()

		c := &closer{}
		var err error
		CloseOnError(&err, c)

		if c.closed {
			t.Fatal("did not expect the closer to be closed")
		}
	})

	t.Run("it joins the close error", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("<cause>")
		closeErr := errors.New("<close>")

		c := &closer{err: closeErr}
		err := cause
		CloseOnError(&err, c)

		if !c.closed {
			t.Fatal("expected the closer to be closed")
		}

		if !errors.Is(err, cause) || !errors.Is(err, closeErr) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
