package harness

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
)

// Outcome is the captured result of calling a test body.
//
// It is either a success, carrying the value the body returned, or a failure.
// A failure is an error returned by the body, a panic, or a call to
// [runtime.Goexit] (which is how [testing.T.FailNow] terminates a test).
type Outcome[T any] struct {
	kind  outcomeKind
	value T
	err   error
	panic any
	stack []byte
}

type outcomeKind uint8

const (
	succeeded outcomeKind = iota
	returnedError
	panicked
	exited
)

// ErrExited is the error reported by [Outcome.Err] when the body terminated its
// goroutine by calling [runtime.Goexit].
var ErrExited = errors.New("test body called runtime.Goexit")

// PanicError is the error reported by [Outcome.Err] when the body panicked.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace of the panicking goroutine.
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("test body panicked: %v\n\n%s", e.Value, e.Stack)
}

// Capture calls fn and returns its outcome.
//
// A panic within fn is recovered and recorded. If fn calls [runtime.Goexit],
// Capture does not return, as Goexit cannot be stopped; see [Scheduler] for
// how the outcome is still recorded in that case.
func Capture[T any](fn func() (T, error)) Outcome[T] {
	var o Outcome[T]
	capture(&o, fn)
	return o
}

// capture calls fn and stores its outcome in *o. *o is written even if fn
// calls runtime.Goexit.
func capture[T any](o *Outcome[T], fn func() (T, error)) {
	returned := false

	defer func() {
		if returned {
			return
		}

		// recover() returns nil while unwinding due to runtime.Goexit.
		// panic(nil) is reported as *runtime.PanicNilError, so a nil
		// value is never ambiguous.
		if p := recover(); p != nil {
			*o = Outcome[T]{
				kind:  panicked,
				panic: p,
				stack: debug.Stack(),
			}
		} else {
			*o = Outcome[T]{kind: exited}
		}
	}()

	v, err := fn()
	returned = true

	if err != nil {
		*o = Outcome[T]{kind: returnedError, err: err}
	} else {
		*o = Outcome[T]{value: v}
	}
}

// Succeeded returns true if the body returned without error.
func (o Outcome[T]) Succeeded() bool {
	return o.kind == succeeded
}

// Value returns the value returned by the body.
func (o Outcome[T]) Value() T {
	return o.value
}

// Err returns an error describing the failure, or nil on success.
//
// For an error returned by the body it is that same error. Panics are reported
// as a [*PanicError], and calls to runtime.Goexit as [ErrExited].
func (o Outcome[T]) Err() error {
	switch o.kind {
	case returnedError:
		return o.err
	case panicked:
		return &PanicError{o.panic, o.stack}
	case exited:
		return ErrExited
	default:
		return nil
	}
}

// Resume re-raises the outcome in the calling goroutine.
//
// On success it returns the body's value. If the body returned an error it
// returns that error unchanged. If the body panicked it panics with the
// original value, and if the body called runtime.Goexit it calls
// runtime.Goexit.
func (o Outcome[T]) Resume() (T, error) {
	switch o.kind {
	case returnedError:
		var zero T
		return zero, o.err
	case panicked:
		panic(o.panic)
	case exited:
		runtime.Goexit()
	}

	return o.value, nil
}

// returnOnly reports whether the failure, if any, can be delivered as a return
// value.
func (o Outcome[T]) returnOnly() bool {
	return o.kind == succeeded || o.kind == returnedError
}
