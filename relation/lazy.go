package relation

import (
	"context"

	"github.com/syssam/velox/query"
)

// LazyLoad resolves def for a single already-loaded parent row, issuing
// the same query an eager load would but scoped to one parent — used
// when code accesses a relation that was not named in an eager-load call.
func LazyLoad(ctx context.Context, g query.Grammar, c Conn, def Definition, parent Row) error {
	return Load(ctx, g, c, def, []Row{parent})
}
