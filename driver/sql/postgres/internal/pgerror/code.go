package pgerror

import (
	"errors"
	"slices"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Is returns true if err is a PostgreSQL error with one of the given codes.
func Is(err error, codes ...string) bool {
	var e *pgconn.PgError
	return errors.As(err, &e) && slices.Contains(codes, e.Code)
}

// IsDuplicateDatabase returns true if err indicates that a database could not
// be created because one with the same name already exists.
func IsDuplicateDatabase(err error) bool {
	return Is(err, pgerrcode.DuplicateDatabase)
}

// IsUnknownDatabase returns true if err indicates that a database does not
// exist.
func IsUnknownDatabase(err error) bool {
	return Is(err, pgerrcode.InvalidCatalogName)
}

// IsInUse returns true if err indicates that a database could not be dropped
// because other sessions are connected to it.
func IsInUse(err error) bool {
	return Is(err, pgerrcode.ObjectInUse)
}
