package query

import (
	"context"
	"sort"

	"github.com/syssam/velox"
)

// Get compiles and runs the select, returning every matched row.
func (b *Builder) Get(ctx context.Context, columns ...any) ([]map[string]any, error) {
	if len(columns) > 0 {
		b.Columns = columns
	}
	sql, err := b.Grammar.CompileSelect(b)
	if err != nil {
		return nil, err
	}
	return b.Conn.Select(ctx, sql, b.Grammar.SelectBindings(b))
}

// First runs the select with an implicit LIMIT 1 and returns the first row,
// or nil if none matched.
func (b *Builder) First(ctx context.Context, columns ...any) (map[string]any, error) {
	restore := b.LimitVal
	b.Limit(1)
	rows, err := b.Get(ctx, columns...)
	b.LimitVal = restore
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FirstOrFail is First, but returns a NotFoundError when no row matched.
func (b *Builder) FirstOrFail(ctx context.Context, label string, columns ...any) (map[string]any, error) {
	row, err := b.First(ctx, columns...)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, velox.NewNotFoundError(label)
	}
	return row, nil
}

// Find is First scoped to a primary key equality on the given column.
func (b *Builder) Find(ctx context.Context, idColumn string, id any, columns ...any) (map[string]any, error) {
	b.Where(idColumn, "=", id)
	return b.First(ctx, columns...)
}

// Value returns a single column's value from the first matched row.
func (b *Builder) Value(ctx context.Context, column string) (any, error) {
	row, err := b.First(ctx, column)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return row[column], nil
}

// Pluck returns a single column's values across every matched row.
func (b *Builder) Pluck(ctx context.Context, column string) ([]any, error) {
	rows, err := b.Get(ctx, column)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row[column]
	}
	return out, nil
}

func (b *Builder) aggregateValue(ctx context.Context, function string, columns ...any) (any, error) {
	restore := b.withAggregate(function, columns...)
	defer restore()
	rows, err := b.Get(ctx, Raw("*"))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	for _, v := range rows[0] {
		return v, nil
	}
	return nil, nil
}

// Count runs COUNT(*) (or COUNT(column) when given) over the query.
func (b *Builder) Count(ctx context.Context, column ...any) (int64, error) {
	v, err := b.aggregateValue(ctx, "count", column...)
	if err != nil {
		return 0, err
	}
	return ToInt64(v), nil
}

// Min runs MIN(column).
func (b *Builder) Min(ctx context.Context, column string) (any, error) {
	return b.aggregateValue(ctx, "min", column)
}

// Max runs MAX(column).
func (b *Builder) Max(ctx context.Context, column string) (any, error) {
	return b.aggregateValue(ctx, "max", column)
}

// Sum runs SUM(column).
func (b *Builder) Sum(ctx context.Context, column string) (any, error) {
	return b.aggregateValue(ctx, "sum", column)
}

// Avg runs AVG(column).
func (b *Builder) Avg(ctx context.Context, column string) (any, error) {
	return b.aggregateValue(ctx, "avg", column)
}

// ToInt64 coerces a scanned driver value (int64, int, int32, float64) to
// int64, returning 0 for any other type.
func ToInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// Exists reports whether the query matches at least one row.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	sql, err := b.Grammar.CompileExists(b)
	if err != nil {
		return false, err
	}
	return b.Conn.Statement(ctx, sql, b.Grammar.SelectBindings(b))
}

// DoesntExist is the negation of Exists.
func (b *Builder) DoesntExist(ctx context.Context) (bool, error) {
	ok, err := b.Exists(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Insert inserts a single row of column/value pairs.
func (b *Builder) Insert(ctx context.Context, values map[string]any) error {
	return b.InsertMany(ctx, []map[string]any{values})
}

// InsertMany inserts multiple rows in a single statement.
func (b *Builder) InsertMany(ctx context.Context, rows []map[string]any) error {
	sql, err := b.Grammar.CompileInsert(b, rows)
	if err != nil {
		return err
	}
	return b.Conn.Insert(ctx, sql, flattenRows(rows))
}

// InsertOrIgnore inserts rows, silently skipping any that violate a unique
// or primary-key constraint.
func (b *Builder) InsertOrIgnore(ctx context.Context, rows []map[string]any) (int64, error) {
	sql, err := b.Grammar.CompileInsertOrIgnore(b, rows)
	if err != nil {
		return 0, err
	}
	return b.Conn.AffectingStatement(ctx, sql, flattenRows(rows))
}

// InsertGetID inserts a single row and returns the generated key for the
// given sequence/column name (empty string selects the driver default).
func (b *Builder) InsertGetID(ctx context.Context, values map[string]any, sequence string) (int64, error) {
	rows := []map[string]any{values}
	sql, err := b.Grammar.CompileInsertGetID(b, rows, sequence)
	if err != nil {
		return 0, err
	}
	return b.Conn.InsertGetID(ctx, sql, flattenRows(rows), sequence)
}

// Update updates every matched row and returns the number of rows changed.
func (b *Builder) Update(ctx context.Context, values map[string]any) (int64, error) {
	sql, err := b.Grammar.CompileUpdate(b, values)
	if err != nil {
		return 0, err
	}
	return b.Conn.Update(ctx, sql, b.Grammar.PrepareBindingsForUpdate(b, values))
}

// UpdateOrInsert updates the first row matching attrs, or inserts a new row
// merging attrs and values if none matched.
func (b *Builder) UpdateOrInsert(ctx context.Context, attrs, values map[string]any) (bool, error) {
	for k, v := range attrs {
		b.Where(k, "=", v)
	}
	exists, err := b.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		merged := map[string]any{}
		for k, v := range values {
			merged[k] = v
		}
		if len(merged) == 0 {
			return true, nil
		}
		_, err := b.Update(ctx, merged)
		return false, err
	}
	merged := map[string]any{}
	for k, v := range attrs {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	return true, b.Insert(ctx, merged)
}

// Increment adds amount to column on every matched row.
func (b *Builder) Increment(ctx context.Context, column string, amount int64, extra map[string]any) (int64, error) {
	values := map[string]any{column: Raw(wrapIncrement(b, column, amount))}
	for k, v := range extra {
		values[k] = v
	}
	return b.Update(ctx, values)
}

// Decrement subtracts amount from column on every matched row.
func (b *Builder) Decrement(ctx context.Context, column string, amount int64, extra map[string]any) (int64, error) {
	values := map[string]any{column: Raw(wrapIncrement(b, column, -amount))}
	for k, v := range extra {
		values[k] = v
	}
	return b.Update(ctx, values)
}

func wrapIncrement(b *Builder, column string, amount int64) string {
	wrapped := b.Grammar.Wrap(column)
	if amount < 0 {
		return wrapped + " - " + itoa(-amount)
	}
	return wrapped + " + " + itoa(amount)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Delete deletes every matched row and returns the number of rows removed.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	sql, err := b.Grammar.CompileDelete(b)
	if err != nil {
		return 0, err
	}
	return b.Conn.Delete(ctx, sql, b.Grammar.PrepareBindingsForDelete(b))
}

// Truncate empties the table, issuing every statement the dialect requires.
func (b *Builder) Truncate(ctx context.Context) error {
	stmts, err := b.Grammar.CompileTruncate(b)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := b.Conn.Statement(ctx, s.SQL, s.Bindings); err != nil {
			return err
		}
	}
	return nil
}

// RowColumns returns a row's keys sorted lexicographically. Every grammar's
// CompileInsert/CompileInsertGetID/CompileInsertOrIgnore must emit each
// row's columns in this same order, since flattenRows below produces the
// matching bindings in the identical order.
func RowColumns(row map[string]any) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func flattenRows(rows []map[string]any) []any {
	var out []any
	for _, row := range rows {
		for _, col := range RowColumns(row) {
			out = append(out, row[col])
		}
	}
	return out
}
