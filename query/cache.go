package query

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/syssam/velox"
)

// cacheKey derives a velox.CacheKey from the builder's current clauses,
// so repeated calls with identical clauses hit the same cache entry.
func (b *Builder) cacheKey() velox.CacheKey {
	predicates, _ := json.Marshal(b.Wheres)
	orderBy, _ := json.Marshal(b.Orders)
	limit, offset := -1, -1
	if b.LimitVal != nil {
		limit = *b.LimitVal
	}
	if b.OffsetVal != nil {
		offset = *b.OffsetVal
	}
	return velox.CacheKey{
		Table:      b.FromTable,
		Operation:  "select",
		Predicates: string(predicates),
		OrderBy:    string(orderBy),
		Limit:      limit,
		Offset:     offset,
	}
}

// Remember runs Get, caching the encoded result for ttl under a key built
// from the table, where clauses, orders, limit, offset and the number of
// requested columns; joins, groups, havings and the column names are not
// part of the key. A hit decodes and returns the cached rows without
// touching the Conn at all.
func (b *Builder) Remember(ctx context.Context, cache velox.Cache, ttl time.Duration, columns ...any) ([]map[string]any, error) {
	k := b.cacheKey()
	key := k.String() + ":" + strconv.Itoa(k.Limit) + ":" + strconv.Itoa(k.Offset) + ":" + strconv.Itoa(len(columns))
	if cached, err := cache.Get(ctx, key); err == nil && cached != nil {
		var rows []map[string]any
		if err := json.Unmarshal(cached, &rows); err == nil {
			return rows, nil
		}
	}
	rows, err := b.Get(ctx, columns...)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(rows); err == nil {
		_ = cache.Set(ctx, key, encoded, ttl)
	}
	return rows, nil
}
