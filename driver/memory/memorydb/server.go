package memorydb

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/wickwirew/glowplug/driver/memory/internal/clone"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrDatabaseExists is returned when creating a database with a name that
	// is already in use.
	ErrDatabaseExists = errors.New("database already exists")

	// ErrUnknownDatabase is returned when a database does not exist.
	ErrUnknownDatabase = errors.New("database does not exist")

	// ErrDatabaseInUse is returned when dropping a database that has open
	// connections.
	ErrDatabaseInUse = errors.New("database is being accessed by other connections")

	// ErrUnknownTable is returned when a table does not exist.
	ErrUnknownTable = errors.New("table does not exist")

	// ErrClosed is returned when using a closed connection.
	ErrClosed = errors.New("connection is closed")
)

// Server is an in-memory database server.
//
// The zero value is an empty server, ready to use.
type Server struct {
	m         sync.Mutex
	databases map[string]*database
}

type database struct {
	m       sync.RWMutex
	conns   int
	tables  map[string][]*structpb.Struct
	locked  bool
	version int
	dirty   bool
}

// Databases returns the names of the databases on the server, in order.
func (s *Server) Databases() []string {
	s.m.Lock()
	defer s.m.Unlock()

	names := make([]string, 0, len(s.databases))
	for n := range s.databases {
		names = append(names, n)
	}
	slices.Sort(names)

	return names
}

// Snapshot returns a copy of the tables in each database on the server.
func (s *Server) Snapshot() map[string]map[string][]*structpb.Struct {
	s.m.Lock()
	defer s.m.Unlock()

	snapshot := make(map[string]map[string][]*structpb.Struct, len(s.databases))
	for n, db := range s.databases {
		db.m.RLock()
		tables := make(map[string][]*structpb.Struct, len(db.tables))
		for t, rows := range db.tables {
			tables[t] = clone.Slice(rows)
		}
		db.m.RUnlock()

		snapshot[n] = tables
	}

	return snapshot
}

func (s *Server) create(name string) error {
	s.m.Lock()
	defer s.m.Unlock()

	if _, ok := s.databases[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrDatabaseExists)
	}

	if s.databases == nil {
		s.databases = map[string]*database{}
	}

	s.databases[name] = &database{
		tables:  map[string][]*structpb.Struct{},
		version: -1,
	}

	return nil
}

func (s *Server) drop(name string) error {
	s.m.Lock()
	defer s.m.Unlock()

	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownDatabase)
	}

	if db.conns != 0 {
		return fmt.Errorf("%q: %w", name, ErrDatabaseInUse)
	}

	delete(s.databases, name)

	return nil
}

func (s *Server) attach(name string) (*database, error) {
	s.m.Lock()
	defer s.m.Unlock()

	db, ok := s.databases[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownDatabase)
	}

	db.conns++

	return db, nil
}

func (s *Server) detach(db *database) {
	s.m.Lock()
	defer s.m.Unlock()

	db.conns--
}

// exec executes a semicolon-separated sequence of CREATE TABLE and DROP TABLE
// statements.
func (db *database) exec(script string) error {
	db.m.Lock()
	defer db.m.Unlock()

	for stmt := range strings.SplitSeq(script, ";") {
		fields := strings.Fields(stmt)
		if len(fields) == 0 {
			continue
		}

		if len(fields) != 3 || !strings.EqualFold(fields[1], "TABLE") {
			return fmt.Errorf("syntax error in %q", strings.TrimSpace(stmt))
		}

		table := fields[2]

		switch strings.ToUpper(fields[0]) {
		case "CREATE":
			if _, ok := db.tables[table]; ok {
				return fmt.Errorf("table %q already exists", table)
			}
			db.tables[table] = nil
		case "DROP":
			if _, ok := db.tables[table]; !ok {
				return fmt.Errorf("%q: %w", table, ErrUnknownTable)
			}
			delete(db.tables, table)
		default:
			return fmt.Errorf("syntax error in %q", strings.TrimSpace(stmt))
		}
	}

	return nil
}
