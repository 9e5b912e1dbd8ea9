package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/dialect"
)

// =============================================================================
// NewConfig validation
// =============================================================================

func TestNewConfig_MySQL(t *testing.T) {
	t.Parallel()

	t.Run("requires database", func(t *testing.T) {
		_, err := NewConfig("default", dialect.MySQL)
		assert.Error(t, err)
	})

	t.Run("rejects search_path", func(t *testing.T) {
		_, err := NewConfig("default", dialect.MySQL, WithDatabase("app"), WithSearchPath("public"))
		assert.Error(t, err)
	})

	t.Run("valid config", func(t *testing.T) {
		cfg, err := NewConfig("default", dialect.MySQL, WithDatabase("app"), WithHost("db"), WithCredentials("root", "secret"))
		require.NoError(t, err)
		assert.Equal(t, "app", cfg.Database)
		assert.Equal(t, "db", cfg.Host)
	})
}

func TestNewConfig_Postgres(t *testing.T) {
	t.Parallel()

	t.Run("requires database", func(t *testing.T) {
		_, err := NewConfig("default", dialect.Postgres)
		assert.Error(t, err)
	})

	t.Run("accepts search_path", func(t *testing.T) {
		cfg, err := NewConfig("default", dialect.Postgres, WithDatabase("app"), WithSearchPath("tenant_a", "public"))
		require.NoError(t, err)
		assert.Equal(t, []string{"tenant_a", "public"}, cfg.SearchPath)
	})
}

func TestNewConfig_SQLite(t *testing.T) {
	t.Parallel()

	t.Run("requires database path", func(t *testing.T) {
		_, err := NewConfig("default", dialect.SQLite)
		assert.Error(t, err)
	})

	t.Run("rejects host/username", func(t *testing.T) {
		_, err := NewConfig("default", dialect.SQLite, WithDatabase(":memory:"), WithHost("db"))
		assert.Error(t, err)
	})

	t.Run("valid in-memory config", func(t *testing.T) {
		cfg, err := NewConfig("default", dialect.SQLite, WithDatabase(":memory:"))
		require.NoError(t, err)
		assert.Equal(t, ":memory:", cfg.Database)
	})
}

func TestNewConfig_UnrecognizedDriver(t *testing.T) {
	t.Parallel()

	_, err := NewConfig("default", "oracle")
	assert.Error(t, err)
}

// =============================================================================
// DSN
// =============================================================================

func TestConfig_DSN(t *testing.T) {
	t.Parallel()

	t.Run("mysql defaults host/port/charset", func(t *testing.T) {
		cfg, err := NewConfig("default", dialect.MySQL, WithDatabase("app"), WithCredentials("root", "secret"))
		require.NoError(t, err)
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		assert.Equal(t, "root:secret@tcp(127.0.0.1:3306)/app?charset=utf8mb4&parseTime=true", dsn)
	})

	t.Run("postgres builds a URL with sslmode disabled", func(t *testing.T) {
		cfg, err := NewConfig("default", dialect.Postgres, WithDatabase("app"), WithHost("db"), WithPort(5433), WithCredentials("app", "secret"))
		require.NoError(t, err)
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		assert.Contains(t, dsn, "postgres://app:secret@db:5433/app")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("postgres includes search_path when set", func(t *testing.T) {
		cfg, err := NewConfig("default", dialect.Postgres, WithDatabase("app"), WithSearchPath("tenant_a", "public"))
		require.NoError(t, err)
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		assert.Contains(t, dsn, "search_path=tenant_a%2Cpublic")
	})

	t.Run("sqlite returns the database path directly", func(t *testing.T) {
		cfg, err := NewConfig("default", dialect.SQLite, WithDatabase("/tmp/app.db"))
		require.NoError(t, err)
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/app.db", dsn)
	})
}

// =============================================================================
// ParseSearchPath
// =============================================================================

func TestParseSearchPath(t *testing.T) {
	t.Parallel()

	t.Run("simple comma list", func(t *testing.T) {
		assert.Equal(t, []string{"tenant_a", "public"}, ParseSearchPath("tenant_a, public"))
	})

	t.Run("quoted identifiers keep embedded commas out of the split", func(t *testing.T) {
		assert.Equal(t, []string{"weird,schema", "public"}, ParseSearchPath(`"weird,schema", public`))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, ParseSearchPath(""))
	})
}
