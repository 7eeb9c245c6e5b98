package harness

import (
	"errors"
	"fmt"
)

// ConnectError indicates that a connection to the database server, or to the
// ephemeral database, could not be established.
type ConnectError struct {
	// Database is the name of the ephemeral database. It is empty if the
	// failed connection was the control connection.
	Database string

	// DSN is the connection string with any password redacted.
	DSN string

	// Cause is the error returned by the driver.
	Cause error
}

func (e *ConnectError) Error() string {
	if e.Database == "" {
		if e.DSN == "" {
			return fmt.Sprintf("unable to locate the database server: %s", e.Cause)
		}
		return fmt.Sprintf("unable to connect to database server at %s: %s", e.DSN, e.Cause)
	}
	return fmt.Sprintf("unable to connect to the %q database: %s", e.Database, e.Cause)
}

func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// DatabaseCreationError indicates that the ephemeral database could not be
// created, for example because of a name collision or a lack of privileges.
type DatabaseCreationError struct {
	Database string
	Cause    error
}

func (e *DatabaseCreationError) Error() string {
	return fmt.Sprintf("unable to create the %q database: %s", e.Database, e.Cause)
}

func (e *DatabaseCreationError) Unwrap() error {
	return e.Cause
}

// MigrationError indicates that the migration set could not be applied to the
// ephemeral database. The database is still dropped.
type MigrationError struct {
	Database string

	// Set is the name of the migration set.
	Set string

	Cause error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("unable to apply the %q migrations to the %q database: %s", e.Set, e.Database, e.Cause)
}

func (e *MigrationError) Unwrap() error {
	return e.Cause
}

// DatabaseTeardownError indicates that the ephemeral database could not be
// dropped, or that a connection used to manage it could not be closed.
type DatabaseTeardownError struct {
	Database string

	// Cause is the teardown failure. It may aggregate several failures.
	Cause error

	// Pending is the failure of the invocation that was awaiting
	// re-raise when teardown failed, if any. It is the original value, not a
	// copy.
	Pending error
}

func (e *DatabaseTeardownError) Error() string {
	if e.Pending == nil {
		return fmt.Sprintf("unable to tear down the %q database: %s", e.Database, e.Cause)
	}

	return fmt.Sprintf(
		"unable to tear down the %q database: %s (after the test failed: %s)",
		e.Database,
		e.Cause,
		e.Pending,
	)
}

// Unwrap returns the teardown failure followed by the pending failure, if
// any, so that both are visible to [errors.Is] and [errors.As].
func (e *DatabaseTeardownError) Unwrap() []error {
	if e.Pending == nil {
		return []error{e.Cause}
	}
	return []error{e.Cause, e.Pending}
}

// IsConnectError returns true if err is caused by a [ConnectError].
func IsConnectError(err error) bool {
	var target *ConnectError
	return errors.As(err, &target)
}

// IsTeardownError returns true if err is caused by a [DatabaseTeardownError].
func IsTeardownError(err error) bool {
	var target *DatabaseTeardownError
	return errors.As(err, &target)
}
