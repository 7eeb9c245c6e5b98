package harness

// Scheduler determines how the test body is invoked.
//
// Both schedulers provide identical lifecycle guarantees. Invoke must not
// return until fn has finished, including when fn terminates by panicking or
// by calling runtime.Goexit, so that teardown never begins before the outcome
// of the body is captured.
type Scheduler interface {
	Invoke(fn func())
}

// Sync is a [Scheduler] that runs the test body on the calling goroutine.
//
// It is the default. Because the body shares the goroutine of the test, it may
// call [testing.T.FailNow] and related methods.
var Sync Scheduler = syncScheduler{}

// Async is a [Scheduler] that runs the test body on its own goroutine while
// the caller waits for it.
//
// The body receives the invocation's context and should return promptly once
// it is canceled. A canceled context does not allow teardown to start before
// the body returns.
var Async Scheduler = asyncScheduler{}

type syncScheduler struct{}

func (syncScheduler) Invoke(fn func()) {
	fn()
}

type asyncScheduler struct{}

func (asyncScheduler) Invoke(fn func()) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		fn()
	}()

	<-done
}
