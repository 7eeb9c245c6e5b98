package xtesting

import (
	"context"
	"testing"
	"time"
)

// Benchmark benchmarks fn.
//
// post is called after each iteration, outside of the measured time, with the
// same deadline as fn. It is typically used to release whatever fn acquired.
func Benchmark(
	b *testing.B,
	fn func(context.Context) error,
	post func(context.Context) error,
) {
	const timeout = 30 * time.Second
	skipIfTooFast(b)

	for b.Loop() {
		ctx, cancel := context.WithTimeout(b.Context(), timeout)

		err := fn(ctx)

		if post != nil {
			b.StopTimer()
			if perr := post(ctx); perr != nil && err == nil {
				err = perr
			}
			b.StartTimer()
		}

		cancel()

		if err != nil {
			b.Fatal(err)
		}
	}
}

// skipIfTooFast skips the benchmark if the framework has settled on an
// iteration count that suggests it cannot measure fn meaningfully.
func skipIfTooFast(b *testing.B) {
	const threshold = 1_000_000
	if b.N >= threshold {
		b.Skipf("benchmark skipped, too many iterations (%d)", b.N)
	}
}
