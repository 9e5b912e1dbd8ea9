package grammar

import (
	"fmt"
	"strings"

	"github.com/syssam/velox/dialect"
	"github.com/syssam/velox/query"
)

// MySQL compiles queries for the mysql dialect: backtick-quoted
// identifiers, INSERT IGNORE for insert-or-ignore, and
// DELETE/UPDATE-with-join rewritten as MySQL's multi-table form.
type MySQL struct{ base }

// NewMySQL returns a Grammar compiling for MySQL/MariaDB.
func NewMySQL() *MySQL {
	g := &MySQL{base{name: dialect.MySQL}}
	g.self = g
	return g
}

func (g *MySQL) wrapValue(value string) string {
	if value == "*" {
		return value
	}
	return "`" + strings.ReplaceAll(value, "`", "``") + "`"
}

func (g *MySQL) likeCast() string { return "" }

func (g *MySQL) whereDate(w query.Where, part string) string {
	return fmt.Sprintf("%s(%s) %s ?", part, g.Wrap(w.Column), w.Operator)
}

// whereFullText compiles to MySQL's MATCH(...) AGAINST(...), using boolean
// mode when the caller passed "boolean" among w.Options.
func (g *MySQL) whereFullText(w query.Where) (string, error) {
	cols := make([]string, len(w.Values))
	for i, c := range w.Values {
		cols[i] = g.Wrap(fmt.Sprint(c))
	}
	mode := ""
	for _, opt := range w.Options {
		if opt == "boolean" {
			mode = " in boolean mode"
		}
	}
	return fmt.Sprintf("match (%s) against (?%s)", strings.Join(cols, ", "), mode), nil
}

// CompileInsertOrIgnore uses INSERT IGNORE INTO, MySQL's native form.
func (g *MySQL) CompileInsertOrIgnore(q *query.Builder, rows []map[string]any) (string, error) {
	sql, err := g.CompileInsert(q, rows)
	if err != nil {
		return "", err
	}
	return strings.Replace(sql, "insert into", "insert ignore into", 1), nil
}

// CompileInsertGetID is identical to a plain insert; the caller retrieves
// the generated id via LAST_INSERT_ID() through the driver, not the SQL.
func (g *MySQL) CompileInsertGetID(q *query.Builder, rows []map[string]any, sequence string) (string, error) {
	return g.CompileInsert(q, rows)
}

// CompileUpdate rewrites joined updates into MySQL's multi-table UPDATE
// form (UPDATE t1 JOIN t2 ... SET ... WHERE ...) when the builder has
// joins, since standard SQL UPDATE cannot reference another table.
func (g *MySQL) CompileUpdate(q *query.Builder, values map[string]any) (string, error) {
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
	joins := g.compileJoins(q)
	where, err := g.compileWheres(q, q.Wheres)
	if err != nil {
		return "", err
	}
	sql := fmt.Sprintf("update %s %s set %s", g.Wrap(q.FromTable), joins, strings.Join(sets, ", "))
	if where != "" {
		sql += " where " + where
	}
	return sql, nil
}

// CompileDelete rewrites a joined delete into MySQL's DELETE t1 FROM t1
// JOIN t2 ... form.
func (g *MySQL) CompileDelete(q *query.Builder) (string, error) {
	if len(q.Joins) == 0 {
		return g.base.CompileDelete(q)
	}
	alias := g.Wrap(q.FromTable)
	joins := g.compileJoins(q)
	where, err := g.compileWheres(q, q.Wheres)
	if err != nil {
		return "", err
	}
	sql := fmt.Sprintf("delete %s from %s %s", alias, alias, joins)
	if where != "" {
		sql += " where " + where
	}
	return sql, nil
}

// CompileTruncate uses MySQL's single-statement TRUNCATE TABLE.
func (g *MySQL) CompileTruncate(q *query.Builder) ([]query.Statement, error) {
	return []query.Statement{{SQL: "truncate table " + g.Wrap(q.FromTable)}}, nil
}
