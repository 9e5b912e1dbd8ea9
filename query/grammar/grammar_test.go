package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/query"
)

// =============================================================================
// CompileSelect
// =============================================================================

func TestCompileSelect_Basic(t *testing.T) {
	t.Parallel()

	t.Run("mysql quotes with backticks", func(t *testing.T) {
		g := NewMySQL()
		q := query.New(g, nil).Table("users").Select("id", "name").Where("active", "=", true)

		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Equal(t, "select `id`, `name` from `users` where `active` = ?", sql)
		assert.Equal(t, []any{true}, g.SelectBindings(q))
	})

	t.Run("postgres quotes with double quotes and keeps ? placeholders", func(t *testing.T) {
		g := NewPostgres()
		q := query.New(g, nil).Table("users").Select("id").Where("active", "=", true).Where("age", ">", 18)

		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Equal(t, `select "id" from "users" where "active" = ? and "age" > ?`, sql)
	})

	t.Run("postgres casts LIKE comparisons to text and keeps the operator verbatim", func(t *testing.T) {
		g := NewPostgres()
		q := query.New(g, nil).Table("users").Select("id").Where("name", "like", "%a%")

		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Equal(t, `select "id" from "users" where "name"::text like ?`, sql)
	})

	t.Run("sqlite quotes with double quotes and uses ? placeholders", func(t *testing.T) {
		g := NewSQLite()
		q := query.New(g, nil).Table("users").Select("id").Where("active", "=", true)

		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Equal(t, `select "id" from "users" where "active" = ?`, sql)
	})
}

func TestCompileSelect_Joins(t *testing.T) {
	t.Parallel()

	g := NewMySQL()
	q := query.New(g, nil).Table("users").
		Select("users.id", "posts.title").
		Join("posts", "posts.user_id", "=", "users.id").
		Where("users.active", "=", true)

	sql, err := g.CompileSelect(q)
	require.NoError(t, err)
	assert.Equal(t, "select `users`.`id`, `posts`.`title` from `users` inner join `posts` on `posts`.`user_id` = `users`.`id` where `users`.`active` = ?", sql)
}

func TestCompileSelect_WhereIn(t *testing.T) {
	t.Parallel()

	t.Run("non-empty", func(t *testing.T) {
		g := NewMySQL()
		q := query.New(g, nil).Table("users").WhereIn("id", []any{1, 2, 3}, "and", false)
		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Equal(t, "select * from `users` where `id` in (?, ?, ?)", sql)
		assert.Equal(t, []any{1, 2, 3}, g.SelectBindings(q))
	})

	t.Run("empty short-circuits to false", func(t *testing.T) {
		g := NewMySQL()
		q := query.New(g, nil).Table("users").WhereIn("id", nil, "and", false)
		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Equal(t, "select * from `users` where 0 = 1", sql)
	})

	t.Run("empty not-in short-circuits to true", func(t *testing.T) {
		g := NewMySQL()
		q := query.New(g, nil).Table("users").WhereIn("id", nil, "and", true)
		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Equal(t, "select * from `users` where 1 = 1", sql)
	})
}

func TestCompileSelect_FromSub(t *testing.T) {
	t.Parallel()

	g := NewMySQL()
	q := query.New(g, nil).
		FromSub("active_users", func(sub *query.Builder) {
			sub.Table("users").Where("active", "=", true)
		}).
		Select("id")

	sql, err := g.CompileSelect(q)
	require.NoError(t, err)
	assert.Equal(t, "select `id` from (select * from `users` where `active` = ?) as `active_users`", sql)
	assert.Equal(t, []any{true}, g.SelectBindings(q))
}

func TestCompileSelect_Union(t *testing.T) {
	t.Parallel()

	g := NewMySQL()
	left := query.New(g, nil).Table("active_users").Select("id")
	right := query.New(g, nil).Table("archived_users").Select("id")
	left.Union(right)

	sql, err := g.CompileSelect(left)
	require.NoError(t, err)
	assert.Equal(t, "select `id` from `active_users` union select `id` from `archived_users`", sql)
}

// =============================================================================
// Dialect-specific UPDATE/DELETE with JOIN rewrites
// =============================================================================

func TestCompileUpdate_WithJoin(t *testing.T) {
	t.Parallel()

	t.Run("mysql uses native multi-table update", func(t *testing.T) {
		g := NewMySQL()
		q := query.New(g, nil).Table("users").
			Join("profiles", "profiles.user_id", "=", "users.id").
			Where("users.id", "=", 1)

		sql, err := g.CompileUpdate(q, map[string]any{"name": "Ada"})
		require.NoError(t, err)
		assert.Contains(t, sql, "update `users` inner join `profiles`")
		assert.Contains(t, sql, "set `name` = ?")
	})

	t.Run("postgres rewrites via ctid subquery", func(t *testing.T) {
		g := NewPostgres()
		q := query.New(g, nil).Table("users").
			Join("profiles", "profiles.user_id", "=", "users.id").
			Where("users.id", "=", 1)

		sql, err := g.CompileUpdate(q, map[string]any{"name": "Ada"})
		require.NoError(t, err)
		assert.Contains(t, sql, `where ctid in (select`)
	})

	t.Run("sqlite rewrites via rowid subquery", func(t *testing.T) {
		g := NewSQLite()
		q := query.New(g, nil).Table("users").
			Join("profiles", "profiles.user_id", "=", "users.id").
			Where("users.id", "=", 1)

		sql, err := g.CompileUpdate(q, map[string]any{"name": "Ada"})
		require.NoError(t, err)
		assert.Contains(t, sql, "where rowid in (select")
	})
}

// =============================================================================
// CompileInsert / CompileInsertGetID / CompileInsertOrIgnore
// =============================================================================

func TestCompileInsert_ColumnOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	g := NewMySQL()
	q := query.New(g, nil).Table("users")
	rows := []map[string]any{{"name": "Ada", "age": 30, "email": "ada@example.com"}}

	sql, err := g.CompileInsert(q, rows)
	require.NoError(t, err)
	// RowColumns sorts keys alphabetically: age, email, name
	assert.Equal(t, "insert into `users` (`age`, `email`, `name`) values (?, ?, ?)", sql)
}

func TestCompileInsertOrIgnore(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{{"id": 1}}

	t.Run("mysql", func(t *testing.T) {
		g := NewMySQL()
		sql, err := g.CompileInsertOrIgnore(query.New(g, nil).Table("users"), rows)
		require.NoError(t, err)
		assert.Contains(t, sql, "insert ignore into")
	})

	t.Run("postgres", func(t *testing.T) {
		g := NewPostgres()
		sql, err := g.CompileInsertOrIgnore(query.New(g, nil).Table("users"), rows)
		require.NoError(t, err)
		assert.Contains(t, sql, "on conflict do nothing")
	})

	t.Run("sqlite", func(t *testing.T) {
		g := NewSQLite()
		sql, err := g.CompileInsertOrIgnore(query.New(g, nil).Table("users"), rows)
		require.NoError(t, err)
		assert.Contains(t, sql, "insert or ignore into")
	})
}

func TestCompileInsertGetID_PostgresAppendsReturning(t *testing.T) {
	t.Parallel()

	g := NewPostgres()
	sql, err := g.CompileInsertGetID(query.New(g, nil).Table("users"), []map[string]any{{"name": "Ada"}}, "")
	require.NoError(t, err)
	assert.Contains(t, sql, `returning "id"`)
}

// =============================================================================
// Full-text search
// =============================================================================

func TestWhereFullText(t *testing.T) {
	t.Parallel()

	t.Run("mysql compiles to match against", func(t *testing.T) {
		g := NewMySQL()
		q := query.New(g, nil).Table("posts").WhereFullText([]string{"title", "body"}, "golang", nil, "and")
		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Contains(t, sql, "match (`title`, `body`) against (?)")
	})

	t.Run("mysql boolean mode option", func(t *testing.T) {
		g := NewMySQL()
		q := query.New(g, nil).Table("posts").WhereFullText([]string{"title"}, "golang", []string{"boolean"}, "and")
		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Contains(t, sql, "in boolean mode")
	})

	t.Run("postgres compiles to tsvector match", func(t *testing.T) {
		g := NewPostgres()
		q := query.New(g, nil).Table("posts").WhereFullText([]string{"title"}, "golang", nil, "and")
		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Contains(t, sql, "to_tsvector")
		assert.Contains(t, sql, "plainto_tsquery")
	})

	t.Run("sqlite compiles to fts5 match", func(t *testing.T) {
		g := NewSQLite()
		q := query.New(g, nil).Table("posts").WhereFullText([]string{"title"}, "golang", nil, "and")
		sql, err := g.CompileSelect(q)
		require.NoError(t, err)
		assert.Contains(t, sql, "match ?")
	})
}

// =============================================================================
// Bindings
// =============================================================================

func TestPrepareBindingsForUpdate_OrdersValuesBeforeWhere(t *testing.T) {
	t.Parallel()

	g := NewMySQL()
	q := query.New(g, nil).Table("users").Where("id", "=", 7)
	bindings := g.PrepareBindingsForUpdate(q, map[string]any{"name": "Ada", "age": 30})

	require.Len(t, bindings, 3)
	assert.Equal(t, 30, bindings[0])  // age
	assert.Equal(t, "Ada", bindings[1]) // name
	assert.Equal(t, 7, bindings[2])    // where id = 7
}

// =============================================================================
// CompileTruncate
// =============================================================================

func TestCompileTruncate(t *testing.T) {
	t.Parallel()

	t.Run("mysql single statement", func(t *testing.T) {
		g := NewMySQL()
		stmts, err := g.CompileTruncate(query.New(g, nil).Table("users"))
		require.NoError(t, err)
		require.Len(t, stmts, 1)
		assert.Equal(t, "truncate table `users`", stmts[0].SQL)
	})

	t.Run("sqlite two statements", func(t *testing.T) {
		g := NewSQLite()
		stmts, err := g.CompileTruncate(query.New(g, nil).Table("users"))
		require.NoError(t, err)
		require.Len(t, stmts, 2)
		assert.Equal(t, `delete from "users"`, stmts[0].SQL)
		assert.Contains(t, stmts[1].SQL, "sqlite_sequence")
		assert.Equal(t, []any{"users"}, stmts[1].Bindings)
	})
}
