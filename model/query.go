package model

import (
	"context"
	"strings"

	"github.com/syssam/velox/query"
	"github.com/syssam/velox/relation"
)

// Builder wraps a query.Builder with the metadata needed to hydrate its
// results into *Model values and to eager-load relations requested via
// With, mirroring Eloquent's query builder sitting on top of its fluent
// query builder.
type Builder struct {
	*query.Builder
	meta  *Metadata
	eager []string
}

// NewBuilder returns a Builder scoped to meta's table, compiling through g
// and running against c.
func NewBuilder(meta *Metadata, g query.Grammar, c query.Conn) *Builder {
	return &Builder{Builder: query.New(g, c).Table(meta.Table), meta: meta}
}

// With registers relation names to eager load once Get or First runs.
// A dotted name ("posts.comments") loads one level at a time.
func (b *Builder) With(names ...string) *Builder {
	b.eager = append(b.eager, names...)
	return b
}

// Get runs the underlying select and hydrates every matched row into a
// *Model, resolving every relation requested via With before returning.
func (b *Builder) Get(ctx context.Context) ([]*Model, error) {
	rows, err := b.Builder.Get(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]*Model, len(rows))
	for i, row := range rows {
		models[i] = Hydrate(b.meta, row, orderedKeys(row))
	}
	if err := b.loadEager(ctx, models); err != nil {
		return nil, err
	}
	return models, nil
}

// First runs Get with an implicit LIMIT 1, returning the first hydrated
// model or nil if none matched.
func (b *Builder) First(ctx context.Context) (*Model, error) {
	restore := b.LimitVal
	b.Limit(1)
	models, err := b.Get(ctx)
	b.LimitVal = restore
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0], nil
}

func (b *Builder) loadEager(ctx context.Context, models []*Model) error {
	if len(models) == 0 || len(b.eager) == 0 {
		return nil
	}
	rows := make([]relation.Row, len(models))
	for i, m := range models {
		rows[i] = m
	}
	for _, name := range b.eager {
		path := strings.Split(name, ".")
		if err := relation.EagerLoadNested(ctx, b.Grammar, b.Conn, b.meta.Relations, rows, path); err != nil {
			return err
		}
	}
	return nil
}

// orderedKeys has no guaranteed order from a map, so Hydrate's declared
// column order falls back to whatever range order Go gives it; callers
// that care about presentation order should rely on Model.ToMap after the
// fact rather than this best-effort pass.
func orderedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	return keys
}
