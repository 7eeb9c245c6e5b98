// Package harness provisions isolated, disposable databases for tests.
//
// Each invocation of [Harness.Run] creates a uniquely named database, connects
// to it, applies a [migration.Set], runs the test body, and drops the
// database, whether the body returns normally, returns an error, panics, or
// calls [runtime.Goexit]. Any failure of the body is re-raised only after the
// database has been dropped.
//
// Drivers for specific database engines live under the driver directory.
package harness
