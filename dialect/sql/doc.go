// Package sql wraps database/sql with the primitives the rest of Velox
// needs to talk to a driver: a Conn that implements dialect.ExecQuerier,
// a Driver/Tx pair that implement dialect.Driver/dialect.Tx, session
// variables attached through the context, and query statistics.
//
// SQL text and bindings are produced by github.com/syssam/velox/query and
// github.com/syssam/velox/schema; this package only executes them.
//
// # Opening a driver
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Session variables
//
// Per-statement session variables (e.g. Postgres search_path, MySQL
// session settings) are attached through the context and applied before
// the next statement on a dedicated connection:
//
//	ctx = sql.WithVar(ctx, "search_path", "tenant_1")
//	drv.Exec(ctx, "select 1", []any{}, nil)
//
// # Statistics
//
// Wrapping a Driver with NewStatsDriver collects query counts, exec
// counts, total duration, and slow-query counts, and can invoke a hook
// whenever a query exceeds a configured threshold.
package sql
