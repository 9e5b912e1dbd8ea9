package relation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/velox/query"
)

// Registry maps a model type's relation name to its Definition, supplied
// by callers (the generated/hand-written model layer) so the resolver
// never needs reflection to discover relations.
type Registry map[string]Definition

// EagerLoad resolves every named relation in names against parents
// concurrently (one goroutine per relation name, bounded by
// golang.org/x/sync/errgroup so the first failure cancels the rest): one
// query per relation regardless of len(parents).
func EagerLoad(ctx context.Context, g query.Grammar, c Conn, registry Registry, parents []Row, names ...string) error {
	grp, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		def, ok := registry[name]
		if !ok {
			continue
		}
		grp.Go(func() error {
			return Load(ctx, g, c, def, parents)
		})
	}
	return grp.Wait()
}

// EagerLoadNested resolves a dotted relation path ("posts.comments") one
// level at a time: it loads the first segment for parents, then recurses
// into the loaded related rows for the remaining path, still issuing
// exactly one query per relation per level.
func EagerLoadNested(ctx context.Context, g query.Grammar, c Conn, registry Registry, parents []Row, path []string) error {
	if len(path) == 0 {
		return nil
	}
	if err := EagerLoad(ctx, g, c, registry, parents, path[0]); err != nil {
		return err
	}
	if len(path) == 1 {
		return nil
	}
	def := registry[path[0]]
	childRows := collectChildren(parents, path[0])
	children := make([]Row, len(childRows))
	for i, row := range childRows {
		children[i] = mapRow{data: row, pk: primaryKeyFor(def)}
	}
	return EagerLoadNested(ctx, g, c, registry, children, path[1:])
}

func collectChildren(parents []Row, name string) []map[string]any {
	var out []map[string]any
	for _, p := range parents {
		mp, ok := p.(mapRow)
		if !ok {
			continue
		}
		switch v := mp.data[name].(type) {
		case map[string]any:
			out = append(out, v)
		case []map[string]any:
			out = append(out, v...)
		}
	}
	return out
}

func primaryKeyFor(def Definition) string {
	if (def.Kind == KindBelongsTo || def.Kind == KindBelongsToMany) && def.ForeignKey != "" {
		return def.ForeignKey
	}
	return "id"
}

// mapRow adapts a plain map[string]any row (as returned by query.Builder.Get)
// to the Row interface the resolver needs, for relations loaded on top of
// raw query results rather than hydrated model.Model values.
type mapRow struct {
	data map[string]any
	pk   string
}

func (r mapRow) KeyValue() any { return r.data[r.pk] }

func (r mapRow) SetRelation(name string, value any) { r.data[name] = value }
