package memorydb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/wickwirew/glowplug/harness"
)

// Scheme is the URL scheme of connection strings understood by [Driver].
const Scheme = "memory"

// BaseDSN is the server-level connection string for a [Driver].
const BaseDSN = Scheme + "://"

// Driver is a [harness.Driver] for an in-memory [Server].
type Driver struct {
	Server *Server
}

var _ harness.Driver[*Conn] = (*Driver)(nil)

// Connect opens a connection to the server. If dsn has a path, the connection
// is scoped to the database it names, which must exist.
func (d *Driver) Connect(ctx context.Context, dsn string) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}

	if u.Scheme != Scheme {
		return nil, fmt.Errorf("unsupported scheme %q, expected %q", u.Scheme, Scheme)
	}

	c := &Conn{
		server:   d.Server,
		database: strings.TrimPrefix(u.Path, "/"),
	}

	if c.database != "" {
		c.db, err = d.Server.attach(c.database)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// DSN returns the connection string for the named database.
func (d *Driver) DSN(base, name string) (string, error) {
	return harness.JoinDSN(base, name)
}

// CreateDatabase creates a database with the given name.
func (d *Driver) CreateDatabase(ctx context.Context, control *Conn, name string) error {
	if err := control.control(ctx); err != nil {
		return err
	}
	return d.Server.create(name)
}

// DropDatabase drops the database with the given name. It fails if any
// connection to the database is open.
func (d *Driver) DropDatabase(ctx context.Context, control *Conn, name string) error {
	if err := control.control(ctx); err != nil {
		return err
	}
	return d.Server.drop(name)
}

// Close closes conn.
func (d *Driver) Close(conn *Conn) error {
	return conn.Close()
}

func (c *Conn) control(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.closed.Load() {
		return ErrClosed
	}

	if c.db != nil {
		return fmt.Errorf("connection is scoped to the %q database, expected a control connection", c.database)
	}

	return nil
}
