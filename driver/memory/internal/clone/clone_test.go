package clone_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/wickwirew/glowplug/driver/memory/internal/clone"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestClone(t *testing.T) {
	t.Parallel()

	t.Run("it copies protocol buffers messages", func(t *testing.T) {
		t.Parallel()

		src, err := structpb.NewStruct(map[string]any{"name": "<name>"})
		if err != nil {
			t.Fatal(err)
		}

		dst := Clone(src)
		if dst == src {
			t.Fatal("expected a distinct message")
		}

		if diff := cmp.Diff(src, dst, protocmp.Transform()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("it copies other values", func(t *testing.T) {
		t.Parallel()

		src := map[string][]string{"users": {"<a>", "<b>"}}
		dst := Clone(src)

		dst["users"][0] = "<changed>"

		if src["users"][0] != "<a>" {
			t.Fatal("expected the copy to be independent of the original")
		}
	})
}

func TestSlice(t *testing.T) {
	t.Parallel()

	if Slice[[]*structpb.Struct](nil) != nil {
		t.Fatal("expected nil")
	}

	src := []*structpb.Struct{{}, {}}
	dst := Slice(src)

	if len(dst) != 2 || dst[0] == src[0] || dst[1] == src[1] {
		t.Fatal("expected each element to be copied")
	}
}
