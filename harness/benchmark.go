package harness

import (
	"context"
	"testing"

	"github.com/wickwirew/glowplug/internal/x/xtesting"
)

// RunBenchmarks runs benchmarks against a [Driver] implementation.
func RunBenchmarks[C any](
	b *testing.B,
	f Fixture[C],
) {
	noop := func(context.Context, C) error {
		return nil
	}

	b.Run("Run", func(b *testing.B) {
		b.Run("without migrations", func(b *testing.B) {
			h := &Harness[C]{
				BaseDSN: f.BaseDSN,
				Driver:  f.Driver,
			}

			xtesting.Benchmark(
				b,
				func(ctx context.Context) error {
					return h.Run(ctx, "benchmark", noop)
				},
				nil,
			)
		})

		b.Run("with migrations", func(b *testing.B) {
			h := &Harness[C]{
				BaseDSN:    f.BaseDSN,
				Driver:     f.Driver,
				Migrator:   f.Migrator,
				Migrations: f.Users,
			}

			xtesting.Benchmark(
				b,
				func(ctx context.Context) error {
					return h.Run(ctx, "benchmark", noop)
				},
				nil,
			)
		})
	})

	b.Run("Acquire", func(b *testing.B) {
		h := &Harness[C]{
			BaseDSN:    f.BaseDSN,
			Driver:     f.Driver,
			Migrator:   f.Migrator,
			Migrations: f.Users,
		}

		var hd *Handle[C]

		xtesting.Benchmark(
			b,
			func(ctx context.Context) (err error) {
				hd, err = h.Acquire(ctx, "benchmark")
				return err
			},
			func(ctx context.Context) error {
				if hd == nil {
					return nil
				}
				defer func() { hd = nil }()
				return hd.Release(ctx)
			},
		)
	})
}
