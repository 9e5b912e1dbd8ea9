package query

// Builder accumulates the clauses of a single query as structured data. It
// never emits SQL itself; compilation is delegated to a Grammar. A Builder
// is not safe for concurrent use from multiple goroutines: the library is
// synchronous, and statement ordering on one connection/builder is the
// call order.
type Builder struct {
	Grammar Grammar
	Conn    Conn

	FromKind  FromKind
	FromTable string
	FromRaw   Expr
	fromSub   *Builder

	Columns  []any
	Distinct bool
	DistinctColumns []string

	Joins   []*Join
	Wheres  []Where
	Groups  []any
	Havings []Where
	Orders  []Order

	LimitVal  *int
	OffsetVal *int
	LockVal   any // nil | bool (true=update lock, false=share lock) | Expr (raw lock clause)

	Unions []Union

	Bindings map[BindingCategory][]any

	aggregate *Aggregate
}

// New returns an empty Builder compiling through the given Grammar and
// executing through the given Conn. Conn may be nil for builders that are
// only ever compiled (e.g. nested wheres, subqueries).
func New(g Grammar, c Conn) *Builder {
	return &Builder{Grammar: g, Conn: c, Bindings: map[BindingCategory][]any{}}
}

// clone returns a new Builder sharing the same Grammar/Conn but with no
// clauses, used to build nested/join/union subqueries.
func (b *Builder) clone() *Builder {
	return New(b.Grammar, b.Conn)
}

// addBinding appends a value to the given binding category in insertion
// order: binding order is deterministic by category then insertion order.
func (b *Builder) addBinding(category BindingCategory, values ...any) *Builder {
	if b.Bindings == nil {
		b.Bindings = map[BindingCategory][]any{}
	}
	b.Bindings[category] = append(b.Bindings[category], values...)
	return b
}

// AllBindings flattens the bindings map in the fixed category order the
// grammar emits placeholders in.
func (b *Builder) AllBindings() []any {
	var out []any
	for _, cat := range bindingOrder {
		out = append(out, b.Bindings[cat]...)
	}
	return out
}

// ---- from / select ----

// Table sets the from-clause to a plain table name.
func (b *Builder) Table(name string) *Builder {
	b.FromKind = FromTable
	b.FromTable = name
	return b
}

// From is an alias for Table that also accepts a raw expression.
func (b *Builder) From(table any) *Builder {
	switch t := table.(type) {
	case Expr:
		b.FromKind = FromRaw
		b.FromRaw = t
	case string:
		b.FromKind = FromTable
		b.FromTable = t
	}
	return b
}

// FromSub sets the from-clause to a derived table produced by a subquery
// closure, aliased as the given name.
func (b *Builder) FromSub(alias string, fn func(*Builder)) *Builder {
	sub := b.clone()
	fn(sub)
	b.FromKind = FromSub
	b.FromTable = alias
	b.fromSub = sub
	b.addBinding(BindFrom, sub.AllBindings()...)
	return b
}

// Select replaces the column list.
func (b *Builder) Select(columns ...any) *Builder {
	if len(columns) == 0 {
		b.Columns = []any{Raw("*")}
		return b
	}
	b.Columns = append([]any{}, columns...)
	return b
}

// AddSelect appends columns to the existing column list.
func (b *Builder) AddSelect(columns ...any) *Builder {
	b.Columns = append(b.Columns, columns...)
	return b
}

// SelectRaw adds a raw select expression, with optional bindings for any
// parameters it contains.
func (b *Builder) SelectRaw(sql string, bindings ...any) *Builder {
	b.Columns = append(b.Columns, Raw(sql))
	b.addBinding(BindSelect, bindings...)
	return b
}

// SetDistinct marks the query DISTINCT (or DISTINCT ON the given columns,
// for dialects that support it).
func (b *Builder) SetDistinct(columns ...string) *Builder {
	b.Distinct = true
	b.DistinctColumns = columns
	return b
}

// ---- joins ----

func (b *Builder) join(typ JoinType, table any, first, operator, second string) *Builder {
	j := &Join{Type: typ, Table: table}
	if first != "" {
		j.Wheres = append(j.Wheres, Where{Type: WhereColumnCompare, Boolean: "and", Column: first, Operator: operator, Second: second})
	}
	b.Joins = append(b.Joins, j)
	return b
}

// Join adds an INNER JOIN comparing two columns.
func (b *Builder) Join(table any, first, operator, second string) *Builder {
	return b.join(InnerJoin, table, first, operator, second)
}

// LeftJoin adds a LEFT JOIN comparing two columns.
func (b *Builder) LeftJoin(table any, first, operator, second string) *Builder {
	return b.join(LeftJoin, table, first, operator, second)
}

// RightJoin adds a RIGHT JOIN comparing two columns.
func (b *Builder) RightJoin(table any, first, operator, second string) *Builder {
	return b.join(RightJoin, table, first, operator, second)
}

// CrossJoin adds a CROSS JOIN with no ON clause.
func (b *Builder) CrossJoin(table any) *Builder {
	b.Joins = append(b.Joins, &Join{Type: CrossJoin, Table: table})
	return b
}

// JoinWhere adds a join whose ON clause compares a column to a bound value
// rather than to another column.
func (b *Builder) JoinWhere(table any, first, operator string, value any) *Builder {
	j := &Join{Type: InnerJoin, Table: table}
	j.Wheres = append(j.Wheres, Where{Type: WhereBasic, Boolean: "and", Column: first, Operator: operator, Value: value})
	b.Joins = append(b.Joins, j)
	b.addBinding(BindJoin, value)
	return b
}

// JoinSub joins against a derived table produced by a subquery closure.
func (b *Builder) JoinSub(alias string, fn func(*Builder), first, operator, second string) *Builder {
	sub := b.clone()
	fn(sub)
	j := &Join{Type: InnerJoin, Table: alias, Query: sub}
	j.Wheres = append(j.Wheres, Where{Type: WhereColumnCompare, Boolean: "and", Column: first, Operator: operator, Second: second})
	b.Joins = append(b.Joins, j)
	b.addBinding(BindJoin, sub.AllBindings()...)
	return b
}

// ---- where ----

// Where adds a basic where clause, column/operator/value, joined with AND.
func (b *Builder) Where(column, operator string, value any) *Builder {
	return b.whereBasic(column, operator, value, "and")
}

// OrWhere adds a basic where clause joined with OR.
func (b *Builder) OrWhere(column, operator string, value any) *Builder {
	return b.whereBasic(column, operator, value, "or")
}

func (b *Builder) whereBasic(column, operator string, value any, boolean string) *Builder {
	b.Wheres = append(b.Wheres, Where{Type: WhereBasic, Boolean: boolean, Column: column, Operator: operator, Value: value})
	b.addBinding(BindWhere, value)
	return b
}

// WhereNested adds a parenthesized group of where clauses built by the
// closure against a fresh builder sharing this one's connection; its
// wheres and bindings are merged into the parent in order.
func (b *Builder) WhereNested(fn func(*Builder), boolean string) *Builder {
	sub := b.clone()
	fn(sub)
	b.Wheres = append(b.Wheres, Where{Type: WhereNested, Boolean: boolean, Query: sub})
	b.addBinding(BindWhere, sub.AllBindings()...)
	return b
}

// WhereColumn compares two columns.
func (b *Builder) WhereColumn(first, operator, second string, boolean string) *Builder {
	b.Wheres = append(b.Wheres, Where{Type: WhereColumnCompare, Boolean: boolean, Column: first, Operator: operator, Second: second})
	return b
}

// WhereIn adds a WHERE col IN (...) clause.
func (b *Builder) WhereIn(column string, values []any, boolean string, not bool) *Builder {
	typ := WhereIn
	if not {
		typ = WhereNotIn
	}
	b.Wheres = append(b.Wheres, Where{Type: typ, Boolean: boolean, Column: column, Values: values})
	b.addBinding(BindWhere, values...)
	return b
}

// WhereInSub adds a WHERE col IN (subquery) clause.
func (b *Builder) WhereInSub(column string, fn func(*Builder), boolean string, not bool) *Builder {
	sub := b.clone()
	fn(sub)
	typ := WhereInSub
	if not {
		typ = WhereNotInSub
	}
	b.Wheres = append(b.Wheres, Where{Type: typ, Boolean: boolean, Column: column, Query: sub})
	b.addBinding(BindWhere, sub.AllBindings()...)
	return b
}

// WhereNull adds a WHERE col IS [NOT] NULL clause.
func (b *Builder) WhereNull(column string, boolean string, not bool) *Builder {
	typ := WhereNull
	if not {
		typ = WhereNotNull
	}
	b.Wheres = append(b.Wheres, Where{Type: typ, Boolean: boolean, Column: column})
	return b
}

// WhereBetween adds a WHERE col BETWEEN low AND high clause.
func (b *Builder) WhereBetween(column string, low, high any, boolean string, not bool) *Builder {
	b.Wheres = append(b.Wheres, Where{Type: WhereBetween, Boolean: boolean, Column: column, Not: not, Values: []any{low, high}})
	b.addBinding(BindWhere, low, high)
	return b
}

// WhereBetweenColumns adds a WHERE col BETWEEN colLow AND colHigh clause.
func (b *Builder) WhereBetweenColumns(column string, low, high string, boolean string, not bool) *Builder {
	b.Wheres = append(b.Wheres, Where{Type: WhereBetweenColumns, Boolean: boolean, Column: column, Not: not, Second: low, Values: []any{high}})
	return b
}

// WhereRaw adds a raw where fragment with explicit bindings.
func (b *Builder) WhereRaw(sql string, bindings []any, boolean string) *Builder {
	b.Wheres = append(b.Wheres, Where{Type: WhereRawClause, Boolean: boolean, Raw: sql})
	b.addBinding(BindWhere, bindings...)
	return b
}

// WhereExists adds a WHERE [NOT] EXISTS (subquery) clause.
func (b *Builder) WhereExists(fn func(*Builder), boolean string, not bool) *Builder {
	sub := b.clone()
	fn(sub)
	typ := WhereExists
	if not {
		typ = WhereNotExists
	}
	b.Wheres = append(b.Wheres, Where{Type: typ, Boolean: boolean, Query: sub})
	b.addBinding(BindWhere, sub.AllBindings()...)
	return b
}

// WhereDate/Time/Day/Month/Year add the date-component where variants;
// each dialect compiles them differently.
func (b *Builder) whereDatePart(typ WhereType, column, operator string, value any, boolean string) *Builder {
	b.Wheres = append(b.Wheres, Where{Type: typ, Boolean: boolean, Column: column, Operator: operator, Value: value})
	b.addBinding(BindWhere, value)
	return b
}

func (b *Builder) WhereDate(column, operator string, value any, boolean string) *Builder {
	return b.whereDatePart(WhereDate, column, operator, value, boolean)
}
func (b *Builder) WhereTime(column, operator string, value any, boolean string) *Builder {
	return b.whereDatePart(WhereTime, column, operator, value, boolean)
}
func (b *Builder) WhereDay(column, operator string, value any, boolean string) *Builder {
	return b.whereDatePart(WhereDay, column, operator, value, boolean)
}
func (b *Builder) WhereMonth(column, operator string, value any, boolean string) *Builder {
	return b.whereDatePart(WhereMonth, column, operator, value, boolean)
}
func (b *Builder) WhereYear(column, operator string, value any, boolean string) *Builder {
	return b.whereDatePart(WhereYear, column, operator, value, boolean)
}

// WhereFullText adds a full-text search where clause over one or more
// columns (supplemented from original_source's grammar; see SPEC_FULL.md).
func (b *Builder) WhereFullText(columns []string, value string, options []string, boolean string) *Builder {
	b.Wheres = append(b.Wheres, Where{Type: WhereFullText, Boolean: boolean, Values: toAny(columns), Value: value, Options: options})
	b.addBinding(BindWhere, value)
	return b
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// ---- group / having / order / limit ----

// GroupBy appends columns to the GROUP BY clause.
func (b *Builder) GroupBy(columns ...any) *Builder {
	b.Groups = append(b.Groups, columns...)
	return b
}

// Having adds a basic having clause.
func (b *Builder) Having(column, operator string, value any, boolean string) *Builder {
	b.Havings = append(b.Havings, Where{Type: WhereBasic, Boolean: boolean, Column: column, Operator: operator, Value: value})
	b.addBinding(BindHaving, value)
	return b
}

// HavingRaw adds a raw having fragment.
func (b *Builder) HavingRaw(sql string, bindings []any, boolean string) *Builder {
	b.Havings = append(b.Havings, Where{Type: WhereRawClause, Boolean: boolean, Raw: sql})
	b.addBinding(BindHaving, bindings...)
	return b
}

// OrderBy appends an ORDER BY entry.
func (b *Builder) OrderBy(column any, direction string) *Builder {
	b.Orders = append(b.Orders, Order{Column: column, Direction: direction})
	return b
}

// OrderByDesc is a shorthand for OrderBy(column, "desc").
func (b *Builder) OrderByDesc(column any) *Builder { return b.OrderBy(column, "desc") }

// OrderByRaw appends a raw ORDER BY expression.
func (b *Builder) OrderByRaw(sql string, bindings []any) *Builder {
	b.Orders = append(b.Orders, Order{Column: Raw(sql)})
	b.addBinding(BindOrder, bindings...)
	return b
}

// Latest orders by the given column (default "created_at") descending.
func (b *Builder) Latest(column string) *Builder {
	if column == "" {
		column = "created_at"
	}
	return b.OrderByDesc(column)
}

// Oldest orders by the given column (default "created_at") ascending.
func (b *Builder) Oldest(column string) *Builder {
	if column == "" {
		column = "created_at"
	}
	return b.OrderBy(column, "asc")
}

// Limit sets the LIMIT clause; a negative value clears it.
func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		b.LimitVal = nil
		return b
	}
	b.LimitVal = &n
	return b
}

// Take is an alias for Limit.
func (b *Builder) Take(n int) *Builder { return b.Limit(n) }

// Offset sets the OFFSET clause; a negative value clears it.
func (b *Builder) Offset(n int) *Builder {
	if n < 0 {
		b.OffsetVal = nil
		return b
	}
	b.OffsetVal = &n
	return b
}

// Skip is an alias for Offset.
func (b *Builder) Skip(n int) *Builder { return b.Offset(n) }

// ForPage sets limit/offset for the given 1-indexed page and page size.
func (b *Builder) ForPage(page, perPage int) *Builder {
	if page < 1 {
		page = 1
	}
	return b.Offset((page - 1) * perPage).Limit(perPage)
}

// ---- union / lock ----

// Union appends another builder's result set with duplicate elimination.
func (b *Builder) Union(other *Builder) *Builder {
	b.Unions = append(b.Unions, Union{Query: other, All: false})
	b.addBinding(BindUnion, other.AllBindings()...)
	return b
}

// UnionAll appends another builder's result set without deduplication.
func (b *Builder) UnionAll(other *Builder) *Builder {
	b.Unions = append(b.Unions, Union{Query: other, All: true})
	b.addBinding(BindUnion, other.AllBindings()...)
	return b
}

// LockForUpdate requests a pessimistic write lock (SELECT ... FOR UPDATE).
func (b *Builder) LockForUpdate() *Builder { b.LockVal = true; return b }

// SharedLock requests a pessimistic read lock (LOCK IN SHARE MODE on MySQL, FOR SHARE on Postgres).
func (b *Builder) SharedLock() *Builder { b.LockVal = false; return b }

// LockRaw sets a raw lock clause.
func (b *Builder) LockRaw(sql string) *Builder { b.LockVal = Expr(sql); return b }

// ---- aggregates ----

// withAggregate temporarily replaces the column list with an aggregate
// expression; callers must call the returned restore func after
// compiling/running the select.
func (b *Builder) withAggregate(function string, columns ...any) func() {
	prevCols := b.Columns
	if len(columns) == 0 {
		columns = []any{Raw("*")}
	}
	b.aggregate = &Aggregate{Function: function, Columns: columns}
	return func() {
		b.aggregate = nil
		b.Columns = prevCols
	}
}

// CurrentAggregate exposes the currently-applied aggregate, if any, for the
// grammar to read while compiling columns.
func (b *Builder) CurrentAggregate() *Aggregate { return b.aggregate }

// FromSubQuery returns the subquery set by FromSub, if any.
func (b *Builder) FromSubQuery() *Builder { return b.fromSub }
