package grammar

import (
	"fmt"
	"strings"

	"github.com/syssam/velox/dialect"
	"github.com/syssam/velox/query"
)

// Postgres compiles queries for the postgres dialect: double-quoted
// identifiers, ::text casts for LIKE comparisons against non-text columns,
// ctid-subquery rewrites for UPDATE/DELETE with joins, and ON CONFLICT DO
// NOTHING for insert-or-ignore. Compiled SQL keeps '?' placeholders
// throughout; connection.Connection rewrites them into $1, $2, ... at
// execution time, so the compiled text stays comparable across dialects.
type Postgres struct{ base }

// NewPostgres returns a Grammar compiling for PostgreSQL.
func NewPostgres() *Postgres {
	g := &Postgres{base{name: dialect.Postgres}}
	g.self = g
	return g
}

func (g *Postgres) wrapValue(value string) string {
	if value == "*" {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// likeCast casts the compared column to text so LIKE/NOT LIKE still work
// against columns Postgres wouldn't otherwise pattern-match (e.g. non-text
// domains); the operator itself is left exactly as the caller gave it.
func (g *Postgres) likeCast() string { return "::text" }

func (g *Postgres) whereDate(w query.Where, part string) string {
	switch part {
	case "date":
		return fmt.Sprintf("%s::date %s ?", g.Wrap(w.Column), w.Operator)
	case "time":
		return fmt.Sprintf("%s::time %s ?", g.Wrap(w.Column), w.Operator)
	default:
		return fmt.Sprintf("extract(%s from %s) %s ?", part, g.Wrap(w.Column), w.Operator)
	}
}

// whereFullText compiles to Postgres's tsvector/tsquery match, concatenating
// multiple columns with || so a single to_tsvector call covers them all.
func (g *Postgres) whereFullText(w query.Where) (string, error) {
	cols := make([]string, len(w.Values))
	for i, c := range w.Values {
		cols[i] = g.Wrap(fmt.Sprint(c))
	}
	return fmt.Sprintf("to_tsvector('english', %s) @@ plainto_tsquery('english', ?)", strings.Join(cols, " || ' ' || ")), nil
}

// CompileInsertOrIgnore uses ON CONFLICT DO NOTHING.
func (g *Postgres) CompileInsertOrIgnore(q *query.Builder, rows []map[string]any) (string, error) {
	sql, err := g.CompileInsert(q, rows)
	if err != nil {
		return "", err
	}
	return sql + " on conflict do nothing", nil
}

// CompileInsertGetID appends RETURNING, Postgres's native way to retrieve
// a generated key without a second round trip.
func (g *Postgres) CompileInsertGetID(q *query.Builder, rows []map[string]any, sequence string) (string, error) {
	sql, err := g.CompileInsert(q, rows)
	if err != nil {
		return "", err
	}
	if sequence == "" {
		sequence = "id"
	}
	return sql + " returning " + g.Wrap(sequence), nil
}

// CompileUpdate rewrites joined updates into a single-table UPDATE whose
// WHERE clause matches the joined rows via a ctid subquery
// ("where ctid in (select ...)"), since Postgres has no direct multi-table
// UPDATE syntax.
func (g *Postgres) CompileUpdate(q *query.Builder, values map[string]any) (string, error) {
	if len(q.Joins) == 0 {
		return g.base.CompileUpdate(q, values)
	}
	cols := query.RowColumns(values)
	var sets []string
	for _, c := range cols {
		if expr, ok := values[c].(query.Expr); ok {
			sets = append(sets, g.Wrap(c)+" = "+string(expr))
			continue
		}
		sets = append(sets, g.Wrap(c)+" = ?")
	}
	selectSQL, err := g.selectCtidForUpdate(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("update %s set %s where ctid in (%s)", g.Wrap(q.FromTable), strings.Join(sets, ", "), selectSQL), nil
}

// CompileDelete rewrites a joined delete the same way, via a ctid subquery.
func (g *Postgres) CompileDelete(q *query.Builder) (string, error) {
	if len(q.Joins) == 0 {
		return g.base.CompileDelete(q)
	}
	selectSQL, err := g.selectCtidForUpdate(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("delete from %s where ctid in (%s)", g.Wrap(q.FromTable), selectSQL), nil
}

func (g *Postgres) selectCtidForUpdate(q *query.Builder) (string, error) {
	sub := query.New(g, nil)
	sub.FromKind = q.FromKind
	sub.FromTable = q.FromTable
	sub.Joins = q.Joins
	sub.Wheres = q.Wheres
	sub.Columns = []any{query.Raw(g.Wrap(q.FromTable) + ".ctid")}
	return g.base.CompileSelect(sub)
}

// CompileTruncate appends RESTART IDENTITY so auto-increment sequences
// reset, matching Laravel's Postgres grammar.
func (g *Postgres) CompileTruncate(q *query.Builder) ([]query.Statement, error) {
	return []query.Statement{{SQL: "truncate table " + g.Wrap(q.FromTable) + " restart identity"}}, nil
}
