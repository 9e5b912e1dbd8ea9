package grammar

import (
	"fmt"
	"strings"

	"github.com/syssam/velox/dialect"
	"github.com/syssam/velox/query"
)

// SQLite compiles queries for the sqlite dialect: double-quoted
// identifiers, strftime-based date functions, rowid-subquery rewrites for
// UPDATE/DELETE with joins (SQLite has no multi-table UPDATE/DELETE), and
// INSERT OR IGNORE for insert-or-ignore.
type SQLite struct{ base }

// NewSQLite returns a Grammar compiling for SQLite.
func NewSQLite() *SQLite {
	g := &SQLite{base{name: dialect.SQLite}}
	g.self = g
	return g
}

func (g *SQLite) wrapValue(value string) string {
	if value == "*" {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func (g *SQLite) likeCast() string { return "" }

func (g *SQLite) whereDate(w query.Where, part string) string {
	format := map[string]string{
		"date":  "%Y-%m-%d",
		"time":  "%H:%M:%S",
		"day":   "%d",
		"month": "%m",
		"year":  "%Y",
	}[part]
	return fmt.Sprintf("strftime('%s', %s) %s ?", format, g.Wrap(w.Column), w.Operator)
}

// whereFullText compiles to an FTS5 MATCH clause. SQLite only supports
// MATCH on a virtual fts5 table, so this assumes the queried table (or one
// joined into the query) is such a table and matches across every named
// column.
func (g *SQLite) whereFullText(w query.Where) (string, error) {
	cols := make([]string, len(w.Values))
	for i, c := range w.Values {
		cols[i] = g.Wrap(fmt.Sprint(c))
	}
	return fmt.Sprintf("(%s) match ?", strings.Join(cols, ", ")), nil
}

// CompileInsertOrIgnore uses SQLite's INSERT OR IGNORE INTO form.
func (g *SQLite) CompileInsertOrIgnore(q *query.Builder, rows []map[string]any) (string, error) {
	sql, err := g.CompileInsert(q, rows)
	if err != nil {
		return "", err
	}
	return strings.Replace(sql, "insert into", "insert or ignore into", 1), nil
}

// CompileInsertGetID is a plain insert; the generated id is read back via
// the driver's last-insert-rowid(), not embedded in the SQL.
func (g *SQLite) CompileInsertGetID(q *query.Builder, rows []map[string]any, sequence string) (string, error) {
	return g.CompileInsert(q, rows)
}

// CompileUpdate rewrites joined updates via a rowid-subquery, since
// SQLite's UPDATE cannot reference another table directly.
func (g *SQLite) CompileUpdate(q *query.Builder, values map[string]any) (string, error) {
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
	sub, err := g.selectRowIDForUpdate(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("update %s set %s where rowid in (%s)", g.Wrap(q.FromTable), strings.Join(sets, ", "), sub), nil
}

// CompileDelete rewrites a joined delete the same way, via a rowid subquery.
func (g *SQLite) CompileDelete(q *query.Builder) (string, error) {
	if len(q.Joins) == 0 {
		return g.base.CompileDelete(q)
	}
	sub, err := g.selectRowIDForUpdate(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("delete from %s where rowid in (%s)", g.Wrap(q.FromTable), sub), nil
}

func (g *SQLite) selectRowIDForUpdate(q *query.Builder) (string, error) {
	sub := query.New(g, nil)
	sub.FromKind = q.FromKind
	sub.FromTable = q.FromTable
	sub.Joins = q.Joins
	sub.Wheres = q.Wheres
	sub.Columns = []any{query.Raw(g.Wrap(q.FromTable) + ".rowid")}
	return g.base.CompileSelect(sub)
}

// CompileTruncate issues a DELETE plus a reset of the rowid sequence
// table, since SQLite has no TRUNCATE statement.
func (g *SQLite) CompileTruncate(q *query.Builder) ([]query.Statement, error) {
	table := q.FromTable
	return []query.Statement{
		{SQL: "delete from " + g.Wrap(table)},
		{SQL: "delete from sqlite_sequence where name = ?", Bindings: []any{table}},
	}, nil
}
