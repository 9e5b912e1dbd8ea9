package relation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/query/grammar"
)

// testRow is a minimal Row implementation standing in for a hydrated
// model.Model in these tests.
type testRow struct {
	key       any
	relations map[string]any
}

func newTestRow(key any) *testRow { return &testRow{key: key, relations: map[string]any{}} }

func (r *testRow) KeyValue() any                  { return r.key }
func (r *testRow) SetRelation(name string, v any) { r.relations[name] = v }

// recordingConn is a query.Conn double that counts how many Select calls
// land against each table and returns a pre-staged result set, so
// eager-load batching (one query per relation regardless of parent count)
// can be asserted directly.
type recordingConn struct {
	mu        sync.Mutex
	selects   []fakeCall
	responses map[string][]map[string]any

	inserted []fakeCall
	deleted  []fakeCall
}

type fakeCall struct {
	SQL      string
	Bindings []any
}

func newRecordingConn() *recordingConn {
	return &recordingConn{responses: map[string][]map[string]any{}}
}

func (c *recordingConn) stage(table string, rows []map[string]any) {
	c.responses[fmt.Sprintf("%q", table)] = rows
}

func (c *recordingConn) countFor(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	needle := fmt.Sprintf("%q", table)
	for _, call := range c.selects {
		if strings.Contains(call.SQL, needle) {
			n++
		}
	}
	return n
}

func (c *recordingConn) Select(ctx context.Context, sql string, bindings []any) ([]map[string]any, error) {
	c.mu.Lock()
	c.selects = append(c.selects, fakeCall{sql, bindings})
	c.mu.Unlock()
	for table, rows := range c.responses {
		if strings.Contains(sql, table) {
			return rows, nil
		}
	}
	return nil, nil
}

func (c *recordingConn) Insert(ctx context.Context, sql string, bindings []any) error {
	c.mu.Lock()
	c.inserted = append(c.inserted, fakeCall{sql, bindings})
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) InsertGetID(ctx context.Context, sql string, bindings []any, sequence string) (int64, error) {
	return 0, nil
}

func (c *recordingConn) Update(ctx context.Context, sql string, bindings []any) (int64, error) {
	return 0, nil
}

func (c *recordingConn) Delete(ctx context.Context, sql string, bindings []any) (int64, error) {
	c.mu.Lock()
	c.deleted = append(c.deleted, fakeCall{sql, bindings})
	c.mu.Unlock()
	return 1, nil
}

func (c *recordingConn) Statement(ctx context.Context, sql string, bindings []any) (bool, error) {
	return false, nil
}

func (c *recordingConn) AffectingStatement(ctx context.Context, sql string, bindings []any) (int64, error) {
	return 0, nil
}

// =============================================================================
// Load dispatch
// =============================================================================

func TestLoad_HasMany_OneQueryRegardlessOfParentCount(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	conn.stage("comments", []map[string]any{
		{"id": int64(1), "post_id": int64(1), "body": "first"},
		{"id": int64(2), "post_id": int64(1), "body": "second"},
		{"id": int64(3), "post_id": int64(2), "body": "third"},
	})

	def := Definition{Name: "comments", Kind: KindHasMany, Table: "comments", LocalKey: "id", ForeignKey: "post_id"}
	parents := []Row{newTestRow(int64(1)), newTestRow(int64(2)), newTestRow(int64(3))}

	require.NoError(t, Load(context.Background(), g, conn, def, parents))
	assert.Equal(t, 1, conn.countFor("comments"), "exactly one query regardless of parent count")

	p1 := parents[0].(*testRow)
	comments, ok := p1.relations["comments"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, comments, 2)

	p3 := parents[2].(*testRow)
	assert.Len(t, p3.relations["comments"].([]map[string]any), 1)
}

func TestLoad_BelongsTo_OneQueryAndNilForUnmatched(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	conn.stage("users", []map[string]any{
		{"id": int64(10), "name": "Ada"},
	})

	def := Definition{Name: "author", Kind: KindBelongsTo, Table: "users", LocalKey: "author_id", ForeignKey: "id"}
	parents := []Row{newTestRow(int64(10)), newTestRow(int64(999))}

	require.NoError(t, Load(context.Background(), g, conn, def, parents))
	assert.Equal(t, 1, conn.countFor("users"))

	found := parents[0].(*testRow)
	assert.Equal(t, "Ada", found.relations["author"].(map[string]any)["name"])

	missing := parents[1].(*testRow)
	assert.Nil(t, missing.relations["author"])
}

func TestLoad_BelongsToMany_SingleJoinedQueryWithPivotData(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	conn.stage("roles", []map[string]any{
		{"id": int64(100), "name": "admin", "pivot_user_id": int64(1), "pivot_role_id": int64(100)},
		{"id": int64(100), "name": "admin", "pivot_user_id": int64(2), "pivot_role_id": int64(100)},
		{"id": int64(200), "name": "editor", "pivot_user_id": int64(2), "pivot_role_id": int64(200)},
	})

	def := Definition{
		Name: "roles", Kind: KindBelongsToMany, Table: "roles", ForeignKey: "id",
		PivotTable: "role_user", PivotLocalKey: "user_id", PivotForeignKey: "role_id",
	}
	parents := []Row{newTestRow(int64(1)), newTestRow(int64(2))}

	require.NoError(t, Load(context.Background(), g, conn, def, parents))
	require.Len(t, conn.selects, 1, "a single joined query replaces the old pivot-then-related round trip")

	sql := conn.selects[0].SQL
	assert.Contains(t, sql, `"roles".*`)
	assert.Contains(t, sql, `"role_user"."user_id" as "pivot_user_id"`)
	assert.Contains(t, sql, `inner join "role_user"`)

	p1Roles := parents[0].(*testRow).relations["roles"].([]map[string]any)
	require.Len(t, p1Roles, 1)
	assert.Equal(t, "admin", p1Roles[0]["name"])
	p1Pivot, ok := p1Roles[0]["pivot"].(map[string]any)
	require.True(t, ok, "each related row carries its pivot columns nested under \"pivot\"")
	assert.Equal(t, int64(1), p1Pivot["user_id"])

	p2Roles := parents[1].(*testRow).relations["roles"].([]map[string]any)
	assert.Len(t, p2Roles, 2)
}

func TestLoad_BelongsToMany_WithPivotAndTimestampsSelectsExtraColumns(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	conn.stage("tags", []map[string]any{
		{"id": int64(1), "name": "go", "pivot_torrent_id": int64(5), "pivot_tag_id": int64(1), "pivot_active": true, "pivot_created_at": "2024-01-01"},
	})

	def := Definition{
		Name: "tags", Kind: KindBelongsToMany, Table: "tags", ForeignKey: "id",
		PivotTable: "tag_torrent", PivotLocalKey: "torrent_id", PivotForeignKey: "tag_id",
		WithPivot: []string{"active"}, WithTimestamps: true,
	}
	parents := []Row{newTestRow(int64(5))}

	require.NoError(t, Load(context.Background(), g, conn, def, parents))
	sql := conn.selects[0].SQL
	assert.Contains(t, sql, `"tag_torrent"."active" as "pivot_active"`)
	assert.Contains(t, sql, `"tag_torrent"."created_at" as "pivot_created_at"`)

	tags := parents[0].(*testRow).relations["tags"].([]map[string]any)
	require.Len(t, tags, 1)
	pivot := tags[0]["pivot"].(map[string]any)
	assert.Equal(t, true, pivot["active"])
}

func TestLoad_HasManyThrough(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	conn.stage("posts", []map[string]any{
		{"id": int64(50), "user_id": int64(1), "title": "hello"},
	})
	conn.stage("comments", []map[string]any{
		{"id": int64(900), "post_id": int64(50), "body": "nice"},
	})

	def := Definition{
		Name: "comments", Kind: KindHasManyThrough, Table: "comments", ForeignKey: "post_id",
		ThroughTable: "posts", ThroughLocalKey: "id", ThroughForeignKey: "user_id",
	}
	parents := []Row{newTestRow(int64(1))}

	require.NoError(t, Load(context.Background(), g, conn, def, parents))
	result := parents[0].(*testRow).relations["comments"].([]map[string]any)
	require.Len(t, result, 1)
	assert.Equal(t, "nice", result[0]["body"])
}

func TestLoad_EmptyParents_NoQuery(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	def := Definition{Name: "comments", Kind: KindHasMany, Table: "comments", ForeignKey: "post_id"}

	require.NoError(t, Load(context.Background(), g, conn, def, nil))
	assert.Empty(t, conn.selects)
}

func TestLoad_UnsupportedKind(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	def := Definition{Name: "thing", Kind: KindMorphTo}

	err := Load(context.Background(), g, conn, def, []Row{newTestRow(int64(1))})
	assert.Error(t, err)
}

// =============================================================================
// EagerLoad / EagerLoadNested
// =============================================================================

func TestEagerLoad_MultipleRelationsRunConcurrently(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	conn.stage("comments", []map[string]any{{"id": int64(1), "post_id": int64(1)}})
	conn.stage("tags", []map[string]any{{"id": int64(2), "post_id": int64(1)}})

	registry := Registry{
		"comments": {Name: "comments", Kind: KindHasMany, Table: "comments", ForeignKey: "post_id"},
		"tags":     {Name: "tags", Kind: KindHasMany, Table: "tags", ForeignKey: "post_id"},
	}
	parents := []Row{newTestRow(int64(1))}

	require.NoError(t, EagerLoad(context.Background(), g, conn, registry, parents, "comments", "tags"))
	assert.Equal(t, 1, conn.countFor("comments"))
	assert.Equal(t, 1, conn.countFor("tags"))
}

func TestEagerLoad_UnknownNameIsSkipped(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	registry := Registry{}
	parents := []Row{newTestRow(int64(1))}

	require.NoError(t, EagerLoad(context.Background(), g, conn, registry, parents, "missing"))
	assert.Empty(t, conn.selects)
}

func TestEagerLoadNested_DottedPath(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	conn.stage("posts", []map[string]any{
		{"id": int64(1), "user_id": int64(7)},
	})
	conn.stage("comments", []map[string]any{
		{"id": int64(1), "post_id": int64(1), "body": "hi"},
	})

	registry := Registry{
		"posts":    {Name: "posts", Kind: KindHasMany, Table: "posts", ForeignKey: "user_id"},
		"comments": {Name: "comments", Kind: KindHasMany, Table: "comments", ForeignKey: "post_id"},
	}
	parents := []Row{mapRow{data: map[string]any{"id": int64(7)}, pk: "id"}}

	require.NoError(t, EagerLoadNested(context.Background(), g, conn, registry, parents, []string{"posts", "comments"}))
	assert.Equal(t, 1, conn.countFor("posts"))
	assert.Equal(t, 1, conn.countFor("comments"))

	root := parents[0].(mapRow)
	loadedPosts := root.data["posts"].([]map[string]any)
	require.Len(t, loadedPosts, 1)
	loadedComments := loadedPosts[0]["comments"].([]map[string]any)
	require.Len(t, loadedComments, 1)
	assert.Equal(t, "hi", loadedComments[0]["body"])
}

// =============================================================================
// Pivot: Attach / Detach / Sync
// =============================================================================

func TestAttach_InsertsOnePivotRowPerRelatedKey(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	def := Definition{PivotTable: "role_user", PivotLocalKey: "user_id", PivotForeignKey: "role_id"}

	require.NoError(t, Attach(context.Background(), g, conn, def, int64(1), []any{int64(100), int64(200)}, map[string]any{"granted_by": "admin"}))
	require.Len(t, conn.inserted, 1)
	assert.Contains(t, conn.inserted[0].SQL, "role_user")
}

func TestAttach_NoOpForEmptyKeys(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	def := Definition{PivotTable: "role_user", PivotLocalKey: "user_id", PivotForeignKey: "role_id"}

	require.NoError(t, Attach(context.Background(), g, conn, def, int64(1), nil, nil))
	assert.Empty(t, conn.inserted)
}

func TestDetach_DeletesMatchingPivotRows(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	def := Definition{PivotTable: "role_user", PivotLocalKey: "user_id", PivotForeignKey: "role_id"}

	n, err := Detach(context.Background(), g, conn, def, int64(1), []any{int64(100)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, conn.deleted, 1)
	assert.Contains(t, conn.deleted[0].SQL, "role_user")
}

func TestSync_AttachesNewAndDetachesRemoved(t *testing.T) {
	t.Parallel()

	g := grammar.NewSQLite()
	conn := newRecordingConn()
	conn.stage("role_user", []map[string]any{
		{"user_id": int64(1), "role_id": int64(100)},
		{"user_id": int64(1), "role_id": int64(200)},
	})
	def := Definition{PivotTable: "role_user", PivotLocalKey: "user_id", PivotForeignKey: "role_id"}

	require.NoError(t, Sync(context.Background(), g, conn, def, int64(1), []any{int64(200), int64(300)}))

	require.Len(t, conn.deleted, 1, "100 should be detached")
	require.Len(t, conn.inserted, 1, "300 should be attached")
	assert.Contains(t, conn.inserted[0].SQL, "role_user")
}
