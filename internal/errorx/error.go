package errorx

import (
	"errors"
	"fmt"
	"io"
)

// Wrap adds additional context to an error.
func Wrap(err *error, format string, args ...any) {
	if err == nil {
		panic("err must not be nil")
	}

	if *err == nil {
		return
	}

	*err = fmt.Errorf(format+": %w", append(args, *err)...)
}

// CloseOnError closes c if *err is non-nil.
//
// It is intended to be deferred by functions that open a resource and then
// perform further setup that may fail. A failure to close is joined to *err.
func CloseOnError(err *error, c io.Closer) {
	if err == nil {
		panic("err must not be nil")
	}

	if *err == nil {
		return
	}

	if cerr := c.Close(); cerr != nil {
		*err = errors.Join(*err, cerr)
	}
}
