package relation

import (
	"context"

	"github.com/syssam/velox/query"
)

// Attach inserts pivot rows linking parentKey to each of relatedKeys,
// merging in any extra pivot columns (e.g. a "role" column on the pivot
// table) given in extra.
func Attach(ctx context.Context, g query.Grammar, c Conn, def Definition, parentKey any, relatedKeys []any, extra map[string]any) error {
	if len(relatedKeys) == 0 {
		return nil
	}
	var rows []map[string]any
	for _, rk := range relatedKeys {
		row := map[string]any{def.PivotLocalKey: parentKey, def.PivotForeignKey: rk}
		for k, v := range extra {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return query.New(g, c).Table(def.PivotTable).InsertMany(ctx, rows)
}

// Detach removes the pivot rows linking parentKey to each of relatedKeys.
// If relatedKeys is empty, every pivot row for parentKey is removed.
func Detach(ctx context.Context, g query.Grammar, c Conn, def Definition, parentKey any, relatedKeys []any) (int64, error) {
	b := query.New(g, c).Table(def.PivotTable).Where(def.PivotLocalKey, "=", parentKey)
	if len(relatedKeys) > 0 {
		b = b.WhereIn(def.PivotForeignKey, relatedKeys, "and", false)
	}
	return b.Delete(ctx)
}

// Sync replaces every pivot row for parentKey with exactly the set of
// relatedKeys: it detaches anything not in the new set and attaches
// anything not already present, mirroring Eloquent's BelongsToMany::sync.
func Sync(ctx context.Context, g query.Grammar, c Conn, def Definition, parentKey any, relatedKeys []any) error {
	existingRows, err := query.New(g, c).Table(def.PivotTable).
		Where(def.PivotLocalKey, "=", parentKey).
		Get(ctx)
	if err != nil {
		return err
	}
	existing := map[any]bool{}
	for _, row := range existingRows {
		existing[normalizeKey(row[def.PivotForeignKey])] = true
	}
	want := map[any]bool{}
	for _, rk := range relatedKeys {
		want[normalizeKey(rk)] = true
	}

	var toAttach []any
	for _, rk := range relatedKeys {
		if !existing[normalizeKey(rk)] {
			toAttach = append(toAttach, rk)
		}
	}
	var toDetach []any
	for key := range existing {
		if !want[key] {
			toDetach = append(toDetach, key)
		}
	}

	if len(toDetach) > 0 {
		if _, err := Detach(ctx, g, c, def, parentKey, toDetach); err != nil {
			return err
		}
	}
	if len(toAttach) > 0 {
		if err := Attach(ctx, g, c, def, parentKey, toAttach, nil); err != nil {
			return err
		}
	}
	return nil
}
