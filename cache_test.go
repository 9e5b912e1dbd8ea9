package velox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey_StringJoinsFields(t *testing.T) {
	t.Parallel()

	k := CacheKey{
		Table:      "users",
		Operation:  "select",
		Predicates: "active=true",
		OrderBy:    "id asc",
		Limit:      10,
		Offset:     0,
	}
	assert.Equal(t, "users:select:active=true:id asc", k.String())
}

func TestCacheKey_StringOmitsLimitAndOffset(t *testing.T) {
	t.Parallel()

	a := CacheKey{Table: "users", Operation: "select", Predicates: "", OrderBy: "", Limit: 10}
	b := CacheKey{Table: "users", Operation: "select", Predicates: "", OrderBy: "", Limit: 20}
	assert.Equal(t, a.String(), b.String(), "Limit/Offset are not part of the cache key's string form")
}

func TestCacheKey_DifferentPredicatesProduceDifferentKeys(t *testing.T) {
	t.Parallel()

	a := CacheKey{Table: "users", Operation: "select", Predicates: "id=1"}
	b := CacheKey{Table: "users", Operation: "select", Predicates: "id=2"}
	assert.NotEqual(t, a.String(), b.String())
}
