// Package relation implements the relationship engine: HasOne/HasMany/
// BelongsTo/BelongsToMany/HasManyThrough relations (the Morph* kinds are
// declared, but Load returns an error for them), a lazy loader for
// a single model, and an eager-load resolver that runs one IN-list query per
// relation per level no matter how many parent models are involved, using
// golang.org/x/sync/errgroup to run sibling relations concurrently within a
// level. query.Builder and model.Model reach this package through
// model.Builder.With and model.Model.Load rather than importing it directly,
// since relation already depends on query and model depends on both.
package relation

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/velox/contrib/dataloader"
	"github.com/syssam/velox/query"
)

// Kind enumerates the relation shapes this package resolves. Each is
// resolved by its own function rather than a class hierarchy, per the
// tagged-sum-type design applied throughout Velox.
type Kind string

const (
	KindHasOne         Kind = "has_one"
	KindHasMany        Kind = "has_many"
	KindBelongsTo      Kind = "belongs_to"
	KindBelongsToMany  Kind = "belongs_to_many"
	KindHasManyThrough Kind = "has_many_through"
	KindMorphOne       Kind = "morph_one"
	KindMorphMany      Kind = "morph_many"
	KindMorphTo        Kind = "morph_to"
)

// Definition describes one relation on a parent model: how its related
// rows are fetched and matched back to the parents that asked for it.
type Definition struct {
	Name string
	Kind Kind

	// Table is the related table queried for HasOne/HasMany/BelongsTo.
	Table string
	// LocalKey names the column on the parent row the relation matches from
	// (the parent's PK for HasOne/HasMany, the FK for BelongsTo). Load does
	// not read it: the matched value is each parent Row's KeyValue().
	LocalKey string
	// ForeignKey is the column on the related row matched against
	// LocalKey (the FK for HasOne/HasMany, the related PK for BelongsTo).
	ForeignKey string

	// Pivot fields, set only for BelongsToMany.
	PivotTable      string
	PivotLocalKey   string
	PivotForeignKey string
	// WithPivot names extra pivot-table columns (beyond the two key
	// columns) to select and attach to each related row, e.g.
	// withPivot("active") in Eloquent terms.
	WithPivot []string
	// WithTimestamps adds the pivot table's created_at/updated_at to the
	// columns WithPivot already selects.
	WithTimestamps bool
	// PivotAlias is the prefix pivot columns are aliased under in the
	// compiled query ("pivot" by default), and the key the attached pivot
	// data is nested under on each related row.
	PivotAlias string
	// PivotModelKind optionally names the model type pivot rows should be
	// hydrated as by a caller with access to a model registry (relation
	// itself stays map[string]any-based and does not hydrate models).
	PivotModelKind string

	// Through fields, set only for HasManyThrough.
	ThroughTable      string
	ThroughLocalKey   string
	ThroughForeignKey string

	// Morph fields, set only for the Morph* kinds.
	MorphType string
	MorphID   string
}

// Row is the minimal shape relation needs from a loaded parent: its key
// value and a place to store the loaded relation's result.
type Row interface {
	KeyValue() any
	SetRelation(name string, value any)
}

// Conn is the narrow query-running contract relation needs (query.Conn);
// *connection.Connection satisfies it.
type Conn = query.Conn

// Load resolves def for the given already-loaded parent rows, querying
// once (an IN-list over every parent's KeyValue()) regardless of how
// many parents there are, then matching results back onto each parent via
// contrib/dataloader's key-based matching helpers.
func Load(ctx context.Context, g query.Grammar, c Conn, def Definition, parents []Row) error {
	if len(parents) == 0 {
		return nil
	}
	keys := make([]any, len(parents))
	for i, p := range parents {
		keys[i] = p.KeyValue()
	}

	switch def.Kind {
	case KindHasOne, KindBelongsTo:
		return loadToOne(ctx, g, c, def, parents, keys)
	case KindHasMany:
		return loadToMany(ctx, g, c, def, parents, keys)
	case KindBelongsToMany:
		return loadBelongsToMany(ctx, g, c, def, parents, keys)
	case KindHasManyThrough:
		return loadHasManyThrough(ctx, g, c, def, parents, keys)
	default:
		return fmt.Errorf("relation: unsupported kind %q for eager load", def.Kind)
	}
}

func loadToOne(ctx context.Context, g query.Grammar, c Conn, def Definition, parents []Row, keys []any) error {
	rows, err := query.New(g, c).Table(def.Table).WhereIn(def.ForeignKey, keys, "and", false).Get(ctx)
	if err != nil {
		return err
	}
	ordered, _ := dataloader.OrderByKeys(keys, rows, func(row map[string]any) any {
		return normalizeKey(row[def.ForeignKey])
	})
	for i, p := range parents {
		if ordered[i] != nil {
			p.SetRelation(def.Name, ordered[i])
		} else {
			p.SetRelation(def.Name, nil)
		}
	}
	return nil
}

func loadToMany(ctx context.Context, g query.Grammar, c Conn, def Definition, parents []Row, keys []any) error {
	rows, err := query.New(g, c).Table(def.Table).WhereIn(def.ForeignKey, keys, "and", false).Get(ctx)
	if err != nil {
		return err
	}
	grouped := dataloader.GroupByKey(rows, func(row map[string]any) any {
		return normalizeKey(row[def.ForeignKey])
	})
	groups := dataloader.OrderGroupsByKeys(keys, grouped)
	for i, p := range parents {
		p.SetRelation(def.Name, groups[i])
	}
	return nil
}

// pivotAlias returns the prefix pivot columns are aliased under, defaulting
// to "pivot" when the definition doesn't set one.
func pivotAlias(def Definition) string {
	if def.PivotAlias != "" {
		return def.PivotAlias
	}
	return "pivot"
}

// pivotColumns returns every pivot-table column loadBelongsToMany selects:
// the two key columns, any WithPivot extras, and the timestamp pair when
// WithTimestamps is set.
func pivotColumns(def Definition) []string {
	cols := append([]string{def.PivotLocalKey, def.PivotForeignKey}, def.WithPivot...)
	if def.WithTimestamps {
		cols = append(cols, "created_at", "updated_at")
	}
	return cols
}

// loadBelongsToMany joins the related table to its pivot table in a single
// query, aliasing every selected pivot column under PivotAlias so each
// related row carries its own pivot data rather than requiring a second
// round trip to match pivot rows back up.
func loadBelongsToMany(ctx context.Context, g query.Grammar, c Conn, def Definition, parents []Row, keys []any) error {
	alias := pivotAlias(def)
	cols := pivotColumns(def)
	selects := []any{query.Raw(g.Wrap(def.Table + ".*"))}
	for _, col := range cols {
		selects = append(selects, query.Raw(g.Wrap(fmt.Sprintf("%s.%s as %s_%s", def.PivotTable, col, alias, col))))
	}

	rows, err := query.New(g, c).Table(def.Table).
		Select(selects...).
		Join(def.PivotTable, def.PivotTable+"."+def.PivotForeignKey, "=", def.Table+"."+def.ForeignKey).
		WhereIn(def.PivotTable+"."+def.PivotLocalKey, keys, "and", false).
		Get(ctx)
	if err != nil {
		return err
	}

	grouped := map[any][]map[string]any{}
	for _, row := range rows {
		related, pivot := splitPivotColumns(row, alias, cols)
		related[alias] = pivot
		parentKey := normalizeKey(pivot[def.PivotLocalKey])
		grouped[parentKey] = append(grouped[parentKey], related)
	}
	groups := dataloader.OrderGroupsByKeys(keys, grouped)
	for i, p := range parents {
		p.SetRelation(def.Name, groups[i])
	}
	return nil
}

// splitPivotColumns separates a joined row into the related table's own
// columns and the aliased pivot columns attached alongside them.
func splitPivotColumns(row map[string]any, alias string, pivotCols []string) (related, pivot map[string]any) {
	related = make(map[string]any, len(row))
	pivot = make(map[string]any, len(pivotCols))
	prefix := alias + "_"
	for k, v := range row {
		if strings.HasPrefix(k, prefix) {
			pivot[strings.TrimPrefix(k, prefix)] = v
			continue
		}
		related[k] = v
	}
	return related, pivot
}

func loadHasManyThrough(ctx context.Context, g query.Grammar, c Conn, def Definition, parents []Row, keys []any) error {
	throughRows, err := query.New(g, c).Table(def.ThroughTable).WhereIn(def.ThroughForeignKey, keys, "and", false).Get(ctx)
	if err != nil {
		return err
	}
	throughKeys := make([]any, 0, len(throughRows))
	throughToParent := map[any]any{}
	for _, tr := range throughRows {
		tk := normalizeKey(tr[def.ThroughLocalKey])
		throughKeys = append(throughKeys, tk)
		throughToParent[tk] = normalizeKey(tr[def.ThroughForeignKey])
	}
	var related []map[string]any
	if len(throughKeys) > 0 {
		related, err = query.New(g, c).Table(def.Table).WhereIn(def.ForeignKey, throughKeys, "and", false).Get(ctx)
		if err != nil {
			return err
		}
	}
	grouped := map[any][]map[string]any{}
	for _, r := range related {
		tk := normalizeKey(r[def.ForeignKey])
		if parentKey, ok := throughToParent[tk]; ok {
			grouped[parentKey] = append(grouped[parentKey], r)
		}
	}
	groups := dataloader.OrderGroupsByKeys(keys, grouped)
	for i, p := range parents {
		p.SetRelation(def.Name, groups[i])
	}
	return nil
}

func normalizeKey(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return v
	}
}
