// Package grammar implements github.com/syssam/velox/query's Grammar
// interface once per supported dialect (MySQL, PostgreSQL, SQLite). Each
// dialect embeds base, which holds every compilation step that does not
// vary across dialects, and overrides only the handful of methods that do
// (identifier quoting, LIKE casts, date functions, insert-or-ignore,
// joined update/delete, truncate and full-text forms).
// There is one compiler, not one class hierarchy per dialect.
package grammar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/velox"
	"github.com/syssam/velox/dialect"
	"github.com/syssam/velox/query"
)

// dialectGrammar is implemented by each concrete dialect and consulted by
// base for the handful of operations that differ between dialects.
type dialectGrammar interface {
	query.Grammar
	wrapValue(value string) string
	whereDate(w query.Where, part string) string
	// likeCast returns a suffix appended to a wrapped column when the
	// comparison operator is LIKE/NOT LIKE, e.g. Postgres's "::text" so a
	// non-text column can still be pattern-matched. Dialects with no such
	// requirement return "".
	likeCast() string
	whereFullText(w query.Where) (string, error)
}

// whereFullText is the base fallback: full-text search syntax has no
// common-SQL form, so every dialect that supports it overrides this.
func (g *base) whereFullText(w query.Where) (string, error) {
	return "", velox.NewUnsupportedFeatureError(g.name, "full-text search")
}

// base implements every dialect-independent compilation step. Concrete
// dialects embed *base and set self to themselves so base's methods can
// call back into the dialect-specific overrides.
type base struct {
	self dialectGrammar
	name string
}

func (g *base) Dialect() string { return g.name }

// Wrap quotes a possibly-qualified identifier ("table.column") or passes
// through a raw expression/alias ("column as c") component by component.
func (g *base) Wrap(value string) string {
	if value == "*" {
		return value
	}
	if strings.Contains(strings.ToLower(value), " as ") {
		parts := splitAs(value)
		return g.Wrap(parts[0]) + " as " + g.self.wrapValue(parts[1])
	}
	segments := strings.Split(value, ".")
	for i, seg := range segments {
		if seg == "*" {
			continue
		}
		segments[i] = g.self.wrapValue(seg)
	}
	return strings.Join(segments, ".")
}

func splitAs(value string) [2]string {
	lower := strings.ToLower(value)
	idx := strings.Index(lower, " as ")
	return [2]string{strings.TrimSpace(value[:idx]), strings.TrimSpace(value[idx+4:])}
}

func (g *base) wrapColumnValue(v any) string {
	switch t := v.(type) {
	case query.Expr:
		return string(t)
	case string:
		return g.Wrap(t)
	default:
		return g.self.wrapValue(fmt.Sprint(t))
	}
}

// ---- select ----

func (g *base) CompileSelect(q *query.Builder) (string, error) {
	var parts []string

	parts = append(parts, g.compileColumns(q))
	from, err := g.compileFrom(q)
	if err != nil {
		return "", err
	}
	parts = append(parts, from)

	if j := g.compileJoins(q); j != "" {
		parts = append(parts, j)
	}
	if w, err := g.compileWheres(q, q.Wheres); err != nil {
		return "", err
	} else if w != "" {
		parts = append(parts, "where "+w)
	}
	if len(q.Groups) > 0 {
		parts = append(parts, "group by "+g.compileColumnList(q.Groups))
	}
	if len(q.Havings) > 0 {
		h, err := g.compileWheres(q, q.Havings)
		if err != nil {
			return "", err
		}
		parts = append(parts, "having "+h)
	}
	if len(q.Orders) > 0 {
		parts = append(parts, "order by "+g.compileOrders(q.Orders))
	}
	if q.LimitVal != nil {
		parts = append(parts, "limit "+strconv.Itoa(*q.LimitVal))
	}
	if q.OffsetVal != nil {
		parts = append(parts, "offset "+strconv.Itoa(*q.OffsetVal))
	}
	if lock := g.compileLock(q); lock != "" {
		parts = append(parts, lock)
	}

	sql := strings.Join(nonEmpty(parts), " ")

	if len(q.Unions) > 0 {
		for _, u := range q.Unions {
			usql, err := g.self.CompileSelect(u.Query)
			if err != nil {
				return "", err
			}
			kw := "union"
			if u.All {
				kw = "union all"
			}
			sql = sql + " " + kw + " " + usql
		}
		if len(q.Orders) > 0 {
			// union-level order already embedded per-branch for now.
		}
	}

	return sql, nil
}

func (g *base) compileColumns(q *query.Builder) string {
	if agg := q.CurrentAggregate(); agg != nil {
		cols := g.compileColumnList(agg.Columns)
		distinct := ""
		if q.Distinct {
			distinct = "distinct "
		}
		return fmt.Sprintf("select %s(%s%s) as aggregate", agg.Function, distinct, cols)
	}
	cols := q.Columns
	if len(cols) == 0 {
		cols = []any{query.Raw("*")}
	}
	prefix := "select "
	if q.Distinct {
		if len(q.DistinctColumns) > 0 {
			prefix += "distinct on (" + g.compileColumnNames(q.DistinctColumns) + ") "
		} else {
			prefix += "distinct "
		}
	}
	return prefix + g.compileColumnList(cols)
}

func (g *base) compileColumnNames(cols []string) string {
	wrapped := make([]string, len(cols))
	for i, c := range cols {
		wrapped[i] = g.Wrap(c)
	}
	return strings.Join(wrapped, ", ")
}

func (g *base) compileColumnList(cols []any) string {
	wrapped := make([]string, len(cols))
	for i, c := range cols {
		wrapped[i] = g.wrapColumnValue(c)
	}
	return strings.Join(wrapped, ", ")
}

func (g *base) compileFrom(q *query.Builder) (string, error) {
	switch q.FromKind {
	case query.FromTable:
		return "from " + g.Wrap(q.FromTable), nil
	case query.FromRaw:
		return "from " + string(q.FromRaw), nil
	case query.FromSub:
		sub := q.FromSubQuery()
		sql, err := g.self.CompileSelect(sub)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("from (%s) as %s", sql, g.self.wrapValue(q.FromTable)), nil
	default:
		return "", velox.NewLogicError("compileSelect", "no table set: call Table/From before a terminal operation")
	}
}

func (g *base) compileJoins(q *query.Builder) string {
	var out []string
	for _, j := range q.Joins {
		kw := map[query.JoinType]string{
			query.InnerJoin: "inner join",
			query.LeftJoin:  "left join",
			query.RightJoin: "right join",
			query.CrossJoin: "cross join",
		}[j.Type]

		var table string
		switch t := j.Table.(type) {
		case string:
			if j.Query != nil {
				sql, err := g.self.CompileSelect(j.Query)
				if err == nil {
					table = fmt.Sprintf("(%s) as %s", sql, g.self.wrapValue(t))
				}
			} else {
				table = g.Wrap(t)
			}
		case query.Expr:
			table = string(t)
		}

		if j.Type == query.CrossJoin {
			out = append(out, kw+" "+table)
			continue
		}
		on, _ := g.compileWheres(q, j.Wheres)
		out = append(out, fmt.Sprintf("%s %s on %s", kw, table, on))
	}
	return strings.Join(out, " ")
}

func (g *base) compileOrders(orders []query.Order) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		col := g.wrapColumnValue(o.Column)
		if o.Direction == "" {
			parts[i] = col
			continue
		}
		parts[i] = col + " " + o.Direction
	}
	return strings.Join(parts, ", ")
}

func (g *base) compileLock(q *query.Builder) string {
	switch v := q.LockVal.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "for update"
		}
		if g.name == dialect.Postgres {
			return "for share"
		}
		return "lock in share mode"
	case query.Expr:
		return string(v)
	default:
		return ""
	}
}

func nonEmpty(ss []string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ---- wheres ----

func (g *base) compileWheres(q *query.Builder, wheres []query.Where) (string, error) {
	var parts []string
	for i, w := range wheres {
		sql, err := g.compileWhere(q, w)
		if err != nil {
			return "", err
		}
		if i == 0 {
			parts = append(parts, sql)
			continue
		}
		parts = append(parts, w.Boolean+" "+sql)
	}
	return strings.Join(parts, " "), nil
}

func (g *base) compileWhere(q *query.Builder, w query.Where) (string, error) {
	switch w.Type {
	case query.WhereBasic:
		column := g.Wrap(w.Column)
		if strings.EqualFold(w.Operator, "like") || strings.EqualFold(w.Operator, "not like") {
			column += g.self.likeCast()
		}
		return fmt.Sprintf("%s %s ?", column, w.Operator), nil
	case query.WhereColumnCompare:
		return fmt.Sprintf("%s %s %s", g.Wrap(w.Column), w.Operator, g.Wrap(w.Second)), nil
	case query.WhereNested:
		inner, err := g.compileWheres(q, w.Query.Wheres)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case query.WhereIn:
		if len(w.Values) == 0 {
			return "0 = 1", nil
		}
		return fmt.Sprintf("%s in (%s)", g.Wrap(w.Column), placeholders(len(w.Values))), nil
	case query.WhereNotIn:
		if len(w.Values) == 0 {
			return "1 = 1", nil
		}
		return fmt.Sprintf("%s not in (%s)", g.Wrap(w.Column), placeholders(len(w.Values))), nil
	case query.WhereInSub:
		sql, err := g.self.CompileSelect(w.Query)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s in (%s)", g.Wrap(w.Column), sql), nil
	case query.WhereNotInSub:
		sql, err := g.self.CompileSelect(w.Query)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s not in (%s)", g.Wrap(w.Column), sql), nil
	case query.WhereNull:
		return g.Wrap(w.Column) + " is null", nil
	case query.WhereNotNull:
		return g.Wrap(w.Column) + " is not null", nil
	case query.WhereRawClause:
		return w.Raw, nil
	case query.WhereExists:
		sql, err := g.self.CompileSelect(w.Query)
		if err != nil {
			return "", err
		}
		return "exists (" + sql + ")", nil
	case query.WhereNotExists:
		sql, err := g.self.CompileSelect(w.Query)
		if err != nil {
			return "", err
		}
		return "not exists (" + sql + ")", nil
	case query.WhereBetween:
		kw := "between"
		if w.Not {
			kw = "not between"
		}
		return fmt.Sprintf("%s %s ? and ?", g.Wrap(w.Column), kw), nil
	case query.WhereBetweenColumns:
		kw := "between"
		if w.Not {
			kw = "not between"
		}
		high := ""
		if len(w.Values) > 0 {
			if s, ok := w.Values[0].(string); ok {
				high = s
			}
		}
		return fmt.Sprintf("%s %s %s and %s", g.Wrap(w.Column), kw, g.Wrap(w.Second), g.Wrap(high)), nil
	case query.WhereDate:
		return g.self.whereDate(w, "date"), nil
	case query.WhereTime:
		return g.self.whereDate(w, "time"), nil
	case query.WhereDay:
		return g.self.whereDate(w, "day"), nil
	case query.WhereMonth:
		return g.self.whereDate(w, "month"), nil
	case query.WhereYear:
		return g.self.whereDate(w, "year"), nil
	case query.WhereFullText:
		return g.self.whereFullText(w)
	default:
		return "", velox.NewUnsupportedFeatureError(g.name, "where clause of type "+string(w.Type))
	}
}

func placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "?"
	}
	return strings.Join(ps, ", ")
}

// ---- bindings ----

func (g *base) SelectBindings(q *query.Builder) []any {
	return q.AllBindings()
}

func (g *base) PrepareBindingsForUpdate(q *query.Builder, values map[string]any) []any {
	var out []any
	for _, col := range query.RowColumns(values) {
		if _, ok := values[col].(query.Expr); ok {
			continue
		}
		out = append(out, values[col])
	}
	bindings := q.Bindings
	for _, cat := range []query.BindingCategory{query.BindSelect, query.BindFrom, query.BindJoin} {
		out = append(out, bindings[cat]...)
	}
	out = append(out, bindings[query.BindWhere]...)
	for _, cat := range []query.BindingCategory{query.BindGroupBy, query.BindHaving, query.BindOrder, query.BindUnion, query.BindUnionOrder} {
		out = append(out, bindings[cat]...)
	}
	return out
}

func (g *base) PrepareBindingsForDelete(q *query.Builder) []any {
	bindings := q.Bindings
	var out []any
	for _, cat := range []query.BindingCategory{query.BindJoin, query.BindWhere} {
		out = append(out, bindings[cat]...)
	}
	return out
}

// ---- insert / update / delete / exists / truncate ----

func (g *base) CompileInsert(q *query.Builder, rows []map[string]any) (string, error) {
	if len(rows) == 0 {
		return "", velox.NewLogicError("insert", "no rows given")
	}
	cols := query.RowColumns(rows[0])
	var valueGroups []string
	for range rows {
		valueGroups = append(valueGroups, "("+placeholders(len(cols))+")")
	}
	return fmt.Sprintf("insert into %s (%s) values %s", g.Wrap(q.FromTable), g.compileColumnNames(cols), strings.Join(valueGroups, ", ")), nil
}

func (g *base) CompileInsertOrIgnore(q *query.Builder, rows []map[string]any) (string, error) {
	return "", velox.NewUnsupportedFeatureError(g.name, "insert or ignore (override in dialect)")
}

func (g *base) CompileInsertGetID(q *query.Builder, rows []map[string]any, sequence string) (string, error) {
	return g.CompileInsert(q, rows)
}

func (g *base) CompileUpdate(q *query.Builder, values map[string]any) (string, error) {
	cols := query.RowColumns(values)
	var sets []string
	for _, c := range cols {
		if expr, ok := values[c].(query.Expr); ok {
			sets = append(sets, g.Wrap(c)+" = "+string(expr))
			continue
		}
		sets = append(sets, g.Wrap(c)+" = ?")
	}
	where, err := g.compileWheres(q, q.Wheres)
	if err != nil {
		return "", err
	}
	sql := fmt.Sprintf("update %s set %s", g.Wrap(q.FromTable), strings.Join(sets, ", "))
	if where != "" {
		sql += " where " + where
	}
	return sql, nil
}

func (g *base) CompileDelete(q *query.Builder) (string, error) {
	where, err := g.compileWheres(q, q.Wheres)
	if err != nil {
		return "", err
	}
	sql := "delete from " + g.Wrap(q.FromTable)
	if where != "" {
		sql += " where " + where
	}
	return sql, nil
}

func (g *base) CompileExists(q *query.Builder) (string, error) {
	sql, err := g.self.CompileSelect(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("select exists(%s) as %s", sql, g.self.wrapValue("exists")), nil
}

func (g *base) CompileTruncate(q *query.Builder) ([]query.Statement, error) {
	return []query.Statement{{SQL: "truncate table " + g.Wrap(q.FromTable)}}, nil
}
