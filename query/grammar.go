package query

// Grammar compiles the structured clause data a Builder accumulates into a
// dialect-specific SQL string plus the flat, ordered binding list the
// caller must supply alongside it. See query/grammar for the MySQL,
// Postgres and SQLite implementations.
type Grammar interface {
	// Dialect returns the dialect name (dialect.MySQL, dialect.Postgres,
	// dialect.SQLite) this grammar compiles for.
	Dialect() string

	CompileSelect(q *Builder) (string, error)
	CompileInsert(q *Builder, rows []map[string]any) (string, error)
	CompileInsertOrIgnore(q *Builder, rows []map[string]any) (string, error)
	CompileInsertGetID(q *Builder, rows []map[string]any, sequence string) (string, error)
	CompileUpdate(q *Builder, values map[string]any) (string, error)
	CompileDelete(q *Builder) (string, error)
	CompileExists(q *Builder) (string, error)
	// CompileTruncate returns every statement (with its own bindings)
	// needed to truncate the table, since some dialects require more than
	// one (SQLite: DELETE + sequence reset).
	CompileTruncate(q *Builder) ([]Statement, error)

	// PrepareBindingsForUpdate reorders/augments the where/join bindings
	// with the update values' bindings in the order the compiled SQL
	// expects them.
	PrepareBindingsForUpdate(q *Builder, values map[string]any) []any
	// PrepareBindingsForDelete returns the bindings compileDelete expects.
	PrepareBindingsForDelete(q *Builder) []any
	// SelectBindings returns the bindings compileSelect expects, in order.
	SelectBindings(q *Builder) []any

	// Wrap quotes a table/column identifier (or alias expression)
	// according to the dialect's identifier quoting rules.
	Wrap(value string) string
}

// Statement is one compiled SQL string with its bindings.
type Statement struct {
	SQL      string
	Bindings []any
}
