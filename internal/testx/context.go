package testx

import (
	"context"
	"testing"
	"time"
)

// DefaultReleaseTimeout is the time allowed for a database to be released
// after the test that acquired it has ended.
const DefaultReleaseTimeout = 10 * time.Second

// ContextForRelease returns a context for tearing down resources that were
// acquired by t.
//
// The context is not derived from t.Context(), which is already canceled by
// the time cleanup functions run. Instead the deadline starts when the test
// ends, or immediately if it has already ended.
func ContextForRelease(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()

	if timeout <= 0 {
		timeout = DefaultReleaseTimeout
	}

	ctx, cancel := context.WithCancelCause(context.Background())

	start := func() {
		timer := time.AfterFunc(timeout, func() {
			cancel(context.DeadlineExceeded)
		})

		// Stop the timer once the context is finished with, whichever comes
		// first.
		context.AfterFunc(ctx, func() { timer.Stop() })
	}

	if t.Context().Err() == nil {
		t.Cleanup(start)
	} else {
		start()
	}

	return ctx
}
