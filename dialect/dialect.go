package dialect

import "context"

// Supported dialect names. These are the values accepted by connection
// configuration's "driver" option and used throughout the grammar and
// schema packages to select dialect-specific compilation.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// ExecQuerier wraps the two primitive operations every dialect driver must
// support: running a statement for its side effects and running a query for
// its result set.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the capability the connection package consumes from the
// underlying database/sql driver. It never implements network transport
// itself; that is delegated to the injected *sql.DB via dialect/sql.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name this driver was opened with.
	Dialect() string
}

// Tx extends Driver with the operations needed to finish a transaction.
// Savepoints are not part of it; they are run as plain SQL statements on
// the open transaction.
type Tx interface {
	Driver
	Commit() error
	Rollback() error
}

// Savepointer is implemented by drivers capable of nested transactions via
// savepoints. The connection package does not consult it: for every
// dialect it issues savepoint statements as plain SQL on the open
// transaction, whether or not the driver implements this interface.
type Savepointer interface {
	Savepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
}
