package syncx

import (
	"sync"
	"sync/atomic"
)

// SucceedOnce is a [sync.OnceValues] variant that only memoizes success.
//
// If fn fails, the error is returned to the caller and the next call to Do
// tries again.
type SucceedOnce[T any] struct {
	done  atomic.Bool
	m     sync.Mutex
	value T
}

// Do returns the value produced by the first successful call to fn, calling fn
// if no call has succeeded yet.
func (o *SucceedOnce[T]) Do(fn func() (T, error)) (T, error) {
	if o.done.Load() {
		return o.value, nil
	}

	o.m.Lock()
	defer o.m.Unlock()

	if o.done.Load() {
		return o.value, nil
	}

	v, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}

	o.value = v
	o.done.Store(true)

	return v, nil
}
