package testx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/wickwirew/glowplug/internal/testx"
)

func TestContextForRelease(t *testing.T) {
	t.Parallel()

	t.Run("it is not canceled while the test is running", func(t *testing.T) {
		t.Parallel()

		ctx := ContextForRelease(t, time.Millisecond)
		time.Sleep(10 * time.Millisecond)

		if err := ctx.Err(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("it times out after the test ends", func(t *testing.T) {
		t.Parallel()

		var ctx context.Context

		t.Run("inner", func(t *testing.T) {
			ctx = ContextForRelease(t, 10*time.Millisecond)
		})

		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for the context to be canceled")
		}

		if cause := context.Cause(ctx); !errors.Is(cause, context.DeadlineExceeded) {
			t.Fatalf("unexpected cause: %v", cause)
		}
	})

	t.Run("it can be called from a cleanup function", func(t *testing.T) {
		t.Parallel()

		done := make(chan context.Context, 1)

		t.Run("inner", func(t *testing.T) {
			t.Cleanup(func() {
				ctx := ContextForRelease(t, time.Hour)
				if err := ctx.Err(); err != nil {
					t.Error(err)
				}
				done <- ctx
			})
		})

		<-done
	})
}
