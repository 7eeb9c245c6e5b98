package memorydb

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/wickwirew/glowplug/driver/memory/internal/clone"
	"google.golang.org/protobuf/types/known/structpb"
)

// Conn is a connection to a [Server].
//
// A control connection is not associated with any database. A scoped
// connection is associated with a single database, and holds it open until the
// connection is closed.
type Conn struct {
	server   *Server
	database string
	db       *database
	closed   atomic.Bool
}

// Database returns the name of the database the connection is scoped to, or an
// empty string for a control connection.
func (c *Conn) Database() string {
	return c.database
}

// Exec executes a semicolon-separated sequence of "CREATE TABLE <name>" and
// "DROP TABLE <name>" statements.
func (c *Conn) Exec(ctx context.Context, script string) error {
	db, err := c.scoped(ctx)
	if err != nil {
		return err
	}
	return db.exec(script)
}

// Tables returns the names of the tables in the database, in order.
func (c *Conn) Tables(ctx context.Context) ([]string, error) {
	db, err := c.scoped(ctx)
	if err != nil {
		return nil, err
	}

	db.m.RLock()
	defer db.m.RUnlock()

	names := make([]string, 0, len(db.tables))
	for n := range db.tables {
		names = append(names, n)
	}
	slices.Sort(names)

	return names, nil
}

// Insert adds a row to the given table.
func (c *Conn) Insert(ctx context.Context, table string, row *structpb.Struct) error {
	db, err := c.scoped(ctx)
	if err != nil {
		return err
	}

	db.m.Lock()
	defer db.m.Unlock()

	rows, ok := db.tables[table]
	if !ok {
		return fmt.Errorf("%q: %w", table, ErrUnknownTable)
	}

	db.tables[table] = append(rows, clone.Clone(row))

	return nil
}

// Rows returns a copy of the rows in the given table, in insertion order.
func (c *Conn) Rows(ctx context.Context, table string) ([]*structpb.Struct, error) {
	db, err := c.scoped(ctx)
	if err != nil {
		return nil, err
	}

	db.m.RLock()
	defer db.m.RUnlock()

	rows, ok := db.tables[table]
	if !ok {
		return nil, fmt.Errorf("%q: %w", table, ErrUnknownTable)
	}

	return clone.Slice(rows), nil
}

// Count returns the number of rows in the given table.
func (c *Conn) Count(ctx context.Context, table string) (int, error) {
	db, err := c.scoped(ctx)
	if err != nil {
		return 0, err
	}

	db.m.RLock()
	defer db.m.RUnlock()

	rows, ok := db.tables[table]
	if !ok {
		return 0, fmt.Errorf("%q: %w", table, ErrUnknownTable)
	}

	return len(rows), nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	if c.db != nil {
		c.server.detach(c.db)
	}

	return nil
}

func (c *Conn) scoped(ctx context.Context) (*database, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.closed.Load() {
		return nil, ErrClosed
	}

	if c.db == nil {
		return nil, fmt.Errorf("connection is not associated with a database")
	}

	return c.db, nil
}
