package harness

// State is a step in the lifecycle of an ephemeral database.
type State int

const (
	// Init is the state before any connection has been made.
	Init State = iota

	// ControlConnected is the state after the control connection is open.
	ControlConnected

	// DatabaseCreated is the state after the database has been created.
	DatabaseCreated

	// ScopedConnected is the state after the connection to the new
	// database is open.
	ScopedConnected

	// Migrated is the state after the migrations have been applied.
	Migrated

	// BodyExecuted is the state after the test body's outcome has been
	// captured.
	BodyExecuted

	// DatabaseDropped is the state after the database has been dropped.
	DatabaseDropped

	// Returned is the terminal state of an invocation that succeeded.
	Returned

	// Reraised is the terminal state of an invocation whose failure was
	// re-raised after teardown.
	Reraised
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case ControlConnected:
		return "control-connected"
	case DatabaseCreated:
		return "database-created"
	case ScopedConnected:
		return "scoped-connected"
	case Migrated:
		return "migrated"
	case BodyExecuted:
		return "body-executed"
	case DatabaseDropped:
		return "database-dropped"
	case Returned:
		return "returned"
	case Reraised:
		return "reraised"
	default:
		return "unknown"
	}
}

// owesTeardown returns true if a database exists in state s and has not yet
// been dropped.
func (s State) owesTeardown() bool {
	return s >= DatabaseCreated && s < DatabaseDropped
}
