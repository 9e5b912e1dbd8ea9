package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAtlasTable_ConvertsColumnsAndName(t *testing.T) {
	t.Parallel()

	bp := NewBlueprint("users")
	bp.ID("")
	bp.String("name", 0)
	bp.Boolean("active").SetDefault(true)
	bp.Timestamps()

	table, err := toAtlasTable(bp, "mysql")
	require.NoError(t, err)

	assert.Equal(t, "users", table.Name)
	require.Len(t, table.Columns, 5)

	_, ok := table.Column("id")
	assert.True(t, ok)
	_, ok = table.Column("name")
	assert.True(t, ok)
	_, ok = table.Column("active")
	assert.True(t, ok)
	_, ok = table.Column("created_at")
	assert.True(t, ok)
	_, ok = table.Column("updated_at")
	assert.True(t, ok)

	_, ok = table.Column("does_not_exist")
	assert.False(t, ok)
}

func TestToAtlasTable_PrimaryKeyFromIDColumn(t *testing.T) {
	t.Parallel()

	bp := NewBlueprint("users")
	bp.ID("")

	table, err := toAtlasTable(bp, "sqlite")
	require.NoError(t, err)
	require.NotNil(t, table.PrimaryKey)
}

func TestToAtlasTable_ForeignKeyReferencesTarget(t *testing.T) {
	t.Parallel()

	bp := NewBlueprint("posts")
	bp.BigInteger("user_id")
	bp.Foreign("user_id", "id", "users").CascadeOnDelete()

	table, err := toAtlasTable(bp, "postgres")
	require.NoError(t, err)
	require.Len(t, table.ForeignKeys, 1)
	assert.Equal(t, "users", table.ForeignKeys[0].RefTable.Name)
	assert.Equal(t, "posts_user_id_foreign", table.ForeignKeys[0].Symbol)
}

func TestToAtlasTable_UnsupportedColumnTypeErrors(t *testing.T) {
	t.Parallel()

	bp := NewBlueprint("widgets")
	bp.Columns = append(bp.Columns, &ColumnDefinition{Name: "bogus", Type: ColumnType("not_a_real_type")})

	_, err := toAtlasTable(bp, "mysql")
	assert.Error(t, err)
}
