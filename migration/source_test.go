package migration_test

import (
	"errors"
	"io"
	"io/fs"
	"testing"

	. "github.com/wickwirew/glowplug/migration"
)

func TestSet_Source(t *testing.T) {
	s := MustNewSet(
		"<set>",
		Unit{Version: 1, Identifier: "create_users", Up: "<up-1>", Down: "<down-1>"},
		Unit{Version: 5, Identifier: "create_posts", Up: "<up-5>"},
	)

	src := s.Source()

	t.Run("First", func(t *testing.T) {
		v, err := src.First()
		if err != nil {
			t.Fatal(err)
		}
		if v != 1 {
			t.Fatalf("unexpected version: got %d, want 1", v)
		}

		_, err = MustNewSet("<empty>").Source().First()
		if !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("unexpected error: got %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("Next", func(t *testing.T) {
		v, err := src.Next(1)
		if err != nil {
			t.Fatal(err)
		}
		if v != 5 {
			t.Fatalf("unexpected version: got %d, want 5", v)
		}

		if _, err := src.Next(5); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("unexpected error: got %v, want fs.ErrNotExist", err)
		}

		if _, err := src.Next(3); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("unexpected error: got %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("Prev", func(t *testing.T) {
		v, err := src.Prev(5)
		if err != nil {
			t.Fatal(err)
		}
		if v != 1 {
			t.Fatalf("unexpected version: got %d, want 1", v)
		}

		if _, err := src.Prev(1); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("unexpected error: got %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("ReadUp", func(t *testing.T) {
		r, id, err := src.ReadUp(5)
		if err != nil {
			t.Fatal(err)
		}
		defer r.Close()

		body, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}

		if id != "create_posts" || string(body) != "<up-5>" {
			t.Fatalf("unexpected migration: got %q (%q)", id, body)
		}
	})

	t.Run("ReadDown", func(t *testing.T) {
		r, _, err := src.ReadDown(1)
		if err != nil {
			t.Fatal(err)
		}
		r.Close()

		if _, _, err := src.ReadDown(5); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("unexpected error: got %v, want fs.ErrNotExist", err)
		}
	})
}
