package harness

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// JoinDSN returns the connection string for the database with the given name
// on the server identified by base.
//
// If base is a URL (for example "postgres://user@host:5432/postgres?x=y"), its
// path is replaced with "/<name>" and any query parameters are kept.
// Otherwise "/<name>" is appended to base after trimming trailing slashes.
func JoinDSN(base, name string) (string, error) {
	if name == "" {
		return "", errors.New("database name must not be empty")
	}

	if strings.Contains(base, "://") {
		u, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("unable to parse connection string: %w", redact(err))
		}

		u.Path = "/" + name
		u.RawPath = ""

		return u.String(), nil
	}

	return strings.TrimRight(base, "/") + "/" + name, nil
}

// RedactDSN returns dsn with any password replaced by "xxxxx".
//
// Strings that are not URLs are returned unchanged.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

// redact strips the offending input from URL parse errors, which may contain
// credentials.
func redact(err error) error {
	var e *url.Error
	if errors.As(err, &e) {
		return e.Err
	}
	return err
}
