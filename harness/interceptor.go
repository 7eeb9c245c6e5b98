package harness

import (
	"context"
	"errors"
	"sync/atomic"
)

// Interceptor defines functions that are invoked around driver operations.
//
// It is typically used to inject faults or to observe the names of the
// databases a [Harness] creates.
type Interceptor[C any] struct {
	beforeConnect atomic.Pointer[func(string) error]
	beforeCreate  atomic.Pointer[func(string) error]
	afterCreate   atomic.Pointer[func(string) error]
	beforeDrop    atomic.Pointer[func(string) error]
	afterDrop     atomic.Pointer[func(string) error]
	beforeClose   atomic.Pointer[func(C) error]
}

// BeforeConnect sets the function that is invoked before a connection is
// opened.
func (i *Interceptor[C]) BeforeConnect(fn func(dsn string) error) {
	i.beforeConnect.Store(&fn)
}

// BeforeCreate sets the function that is invoked before a database is created.
func (i *Interceptor[C]) BeforeCreate(fn func(name string) error) {
	i.beforeCreate.Store(&fn)
}

// AfterCreate sets the function that is invoked after a database is created.
//
// If fn returns an error, the database is dropped before the error is returned
// to the caller, which treats a failed creation as having created nothing.
func (i *Interceptor[C]) AfterCreate(fn func(name string) error) {
	i.afterCreate.Store(&fn)
}

// BeforeDrop sets the function that is invoked before a database is dropped.
func (i *Interceptor[C]) BeforeDrop(fn func(name string) error) {
	i.beforeDrop.Store(&fn)
}

// AfterDrop sets the function that is invoked after a database is dropped.
func (i *Interceptor[C]) AfterDrop(fn func(name string) error) {
	i.afterDrop.Store(&fn)
}

// BeforeClose sets the function that is invoked before a connection is closed.
// If it returns an error the connection is still closed.
func (i *Interceptor[C]) BeforeClose(fn func(conn C) error) {
	i.beforeClose.Store(&fn)
}

// WithInterceptor returns a [Driver] that invokes the functions defined by the
// given [Interceptor] when performing operations on d.
func WithInterceptor[C any](d Driver[C], in *Interceptor[C]) Driver[C] {
	if in == nil {
		return d
	}

	return &interceptedDriver[C]{
		Next:        d,
		Interceptor: in,
	}
}

// loadFn returns the function stored in src, or nil if there is none.
func loadFn[F any](src *atomic.Pointer[F]) F {
	if fn := src.Load(); fn != nil {
		return *fn
	}

	var zero F
	return zero
}

type interceptedDriver[C any] struct {
	Next        Driver[C]
	Interceptor *Interceptor[C]
}

func (d *interceptedDriver[C]) Connect(ctx context.Context, dsn string) (C, error) {
	if fn := loadFn(&d.Interceptor.beforeConnect); fn != nil {
		if err := fn(dsn); err != nil {
			var zero C
			return zero, err
		}
	}

	return d.Next.Connect(ctx, dsn)
}

func (d *interceptedDriver[C]) DSN(base, name string) (string, error) {
	return d.Next.DSN(base, name)
}

func (d *interceptedDriver[C]) CreateDatabase(ctx context.Context, control C, name string) error {
	if fn := loadFn(&d.Interceptor.beforeCreate); fn != nil {
		if err := fn(name); err != nil {
			return err
		}
	}

	if err := d.Next.CreateDatabase(ctx, control, name); err != nil {
		return err
	}

	if fn := loadFn(&d.Interceptor.afterCreate); fn != nil {
		if err := fn(name); err != nil {
			if derr := d.Next.DropDatabase(ctx, control, name); derr != nil {
				return errors.Join(err, derr)
			}
			return err
		}
	}

	return nil
}

func (d *interceptedDriver[C]) DropDatabase(ctx context.Context, control C, name string) error {
	if fn := loadFn(&d.Interceptor.beforeDrop); fn != nil {
		if err := fn(name); err != nil {
			return err
		}
	}

	if err := d.Next.DropDatabase(ctx, control, name); err != nil {
		return err
	}

	if fn := loadFn(&d.Interceptor.afterDrop); fn != nil {
		if err := fn(name); err != nil {
			return err
		}
	}

	return nil
}

func (d *interceptedDriver[C]) Close(conn C) error {
	var err error
	if fn := loadFn(&d.Interceptor.beforeClose); fn != nil {
		err = fn(conn)
	}

	if cerr := d.Next.Close(conn); cerr != nil {
		return cerr
	}

	return err
}
