// Package dialect provides database dialect abstraction for Velox ORM.
//
// This package defines the interfaces and types used for database-specific
// operations, allowing Velox to support multiple database backends including
// PostgreSQL, MySQL, and SQLite.
//
// # Supported Dialects
//
// The following dialects are supported:
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The package defines the Driver interface for database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
// The Tx interface extends Driver with transaction methods:
//
//	type Tx interface {
//	    Driver
//	    Commit() error
//	    Rollback() error
//	}
//
// # ExecQuerier Interface
//
// The ExecQuerier interface is implemented by both Driver and Tx:
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/syssam/velox/dialect"
//	    "github.com/syssam/velox/dialect/sql"
//	)
//
//	db, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// Using with the connection manager:
//
//	mgr := connection.NewManager()
//	mgr.AddConnection("default", &connection.Config{Driver: dialect.Postgres, Database: "app"})
//
// # Sub-packages
//
// The dialect package contains one sub-package:
//
//   - dialect/sql: low-level database/sql wrapper (Conn, Driver, Tx, stats)
//
// Query compilation, schema compilation, and connection pooling build on
// top of this package from github.com/syssam/velox/query,
// github.com/syssam/velox/schema and github.com/syssam/velox/connection.
package dialect
