package velox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Sentinel matching via Is()
// =============================================================================

func TestConfigurationError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	err := NewConfigurationError("default", "search_path", "not supported on mysql")
	assert.ErrorIs(t, err, ErrConfigurationInvalid)
	assert.Contains(t, err.Error(), "search_path")
	assert.Contains(t, err.Error(), "default")
}

func TestConnectionLostError_UnwrapsAndMatchesSentinel(t *testing.T) {
	t.Parallel()

	cause := errors.New("broken pipe")
	err := NewConnectionLostError("default", cause)
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.ErrorIs(t, err, cause)
}

func TestQueryError_TruncatesLongSQLAndUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("duplicate entry")
	longSQL := ""
	for i := 0; i < 300; i++ {
		longSQL += "x"
	}
	err := NewQueryError("default", longSQL, []any{1}, cause)
	assert.ErrorIs(t, err, ErrQuery)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "...")

	var qe *QueryError
	assert.True(t, errors.As(err, &qe))
	assert.Equal(t, longSQL, qe.SQL, "truncation is display-only, the struct keeps the full SQL")
}

func TestQueryError_ShortSQLIsNotTruncated(t *testing.T) {
	t.Parallel()

	err := NewQueryError("default", "select 1", nil, errors.New("boom"))
	assert.NotContains(t, err.Error(), "...")
}

func TestUnsupportedFeatureError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	err := NewUnsupportedFeatureError("sqlite", "full-text search")
	assert.ErrorIs(t, err, ErrUnsupportedFeature)
	assert.Contains(t, err.Error(), "sqlite")
	assert.Contains(t, err.Error(), "full-text search")
}

func TestLogicError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	err := NewLogicError("delete", "model does not exist")
	assert.ErrorIs(t, err, ErrLogic)
}

func TestDomainError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	err := NewDomainError("created_at", "not-a-date", "does not match declared format")
	assert.ErrorIs(t, err, ErrDomain)
	assert.Contains(t, err.Error(), "created_at")
}

func TestNotFoundError_MatchesSentinelAndHelper(t *testing.T) {
	t.Parallel()

	withID := NewNotFoundErrorWithID("users", 42)
	assert.ErrorIs(t, withID, ErrNotFound)
	assert.Contains(t, withID.Error(), "42")
	assert.True(t, IsNotFound(withID))

	withoutID := NewNotFoundError("users")
	assert.NotContains(t, withoutID.Error(), "id=")
	assert.True(t, IsNotFound(withoutID))

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("unrelated")))
}

func TestNotSingularError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	err := NewNotSingularErrorWithCount("users", 3)
	assert.ErrorIs(t, err, ErrNotSingular)
	assert.Contains(t, err.Error(), "3")
}

func TestTypedErrors_DoNotMatchUnrelatedSentinels(t *testing.T) {
	t.Parallel()

	err := NewLogicError("save", "nothing to save")
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrQuery))
}
