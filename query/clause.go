package query

// Expr marks a string as a raw SQL fragment that must not be quoted or
// parametrized by the grammar. Any caller-supplied bindings that the raw
// fragment requires must be added explicitly via the builder's *Raw
// methods; a raw expression never appends bindings on its own.
type Expr string

// Raw wraps a string as a raw SQL expression.
func Raw(sql string) Expr { return Expr(sql) }

// BindingCategory groups bindings by the clause that produced them. The
// grammar emits placeholders in exactly this category order, and within a
// category in insertion order, so that the flattened binding list always
// lines up with the '?' placeholders compileSelect produces.
type BindingCategory string

const (
	BindSelect     BindingCategory = "select"
	BindFrom       BindingCategory = "from"
	BindJoin       BindingCategory = "join"
	BindWhere      BindingCategory = "where"
	BindGroupBy    BindingCategory = "groupby"
	BindHaving     BindingCategory = "having"
	BindOrder      BindingCategory = "order"
	BindUnion      BindingCategory = "union"
	BindUnionOrder BindingCategory = "unionorder"
)

// bindingOrder is the fixed category emission order every grammar follows.
var bindingOrder = []BindingCategory{
	BindSelect, BindFrom, BindJoin, BindWhere,
	BindGroupBy, BindHaving, BindOrder, BindUnion, BindUnionOrder,
}

// FromKind distinguishes the three shapes the "from" clause can take.
type FromKind int

const (
	FromNone FromKind = iota
	FromTable
	FromRaw
	FromSub
)

// JoinType enumerates the supported join kinds.
type JoinType string

const (
	InnerJoin JoinType = "inner"
	LeftJoin  JoinType = "left"
	RightJoin JoinType = "right"
	CrossJoin JoinType = "cross"
)

// Join is one entry in the builder's ordered join list.
type Join struct {
	Type   JoinType
	Table  any // string or Expr
	Wheres []Where
	// Query, when set, makes this a "join sub" against a derived table;
	// Table then holds the alias.
	Query *Builder
}

// WhereType tags the variant of a Where clause. The grammar dispatches on
// this tag to its own compiler function; see query/grammar.
type WhereType string

const (
	WhereBasic          WhereType = "basic"
	WhereNested         WhereType = "nested"
	WhereColumnCompare  WhereType = "column"
	WhereIn             WhereType = "in"
	WhereNotIn          WhereType = "not_in"
	WhereInSub          WhereType = "in_sub"
	WhereNotInSub       WhereType = "not_in_sub"
	WhereNull           WhereType = "null"
	WhereNotNull        WhereType = "not_null"
	WhereRawClause      WhereType = "raw"
	WhereExists         WhereType = "exists"
	WhereNotExists      WhereType = "not_exists"
	WhereRowValues      WhereType = "row_values"
	WhereBetween        WhereType = "between"
	WhereBetweenColumns WhereType = "between_columns"
	WhereDate           WhereType = "date"
	WhereTime           WhereType = "time"
	WhereDay            WhereType = "day"
	WhereMonth          WhereType = "month"
	WhereYear           WhereType = "year"
	WhereFullText       WhereType = "full_text"
)

// Where is a single where/having clause. Not every field is meaningful for
// every Type; see query/grammar's dispatch table for which fields each
// variant reads.
type Where struct {
	Type     WhereType
	Boolean  string // "and" | "or"
	Not      bool
	Column   string
	Operator string
	Value    any
	Values   []any
	Second   string  // second column, for WhereColumnCompare / WhereBetweenColumns
	Query    *Builder // nested/exists/in-sub subquery
	Raw      string   // raw SQL fragment for WhereRawClause
	Options  []string // full-text search mode options
}

// Order is one ORDER BY entry. Column is either a plain column name or a
// raw Expr; Direction is "asc" or "desc" and ignored for raw orders.
type Order struct {
	Column    any
	Direction string
}

// Union is one UNION [ALL] branch appended to the builder.
type Union struct {
	Query *Builder
	All   bool
}

// Aggregate captures a temporarily-applied aggregate (count/min/max/sum/avg)
// so Builder can restore the prior column list after the aggregate runs.
type Aggregate struct {
	Function string
	Columns  []any
}
