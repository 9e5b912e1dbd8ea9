// Package schema implements the schema builder: a fluent Blueprint for
// describing a table's desired shape, a Builder that turns Blueprints into
// DDL by diffing the desired shape against the database's current schema
// (delegated to ariga.io/atlas, which already solves "desired state vs
// introspected state" correctly per dialect), and a Grammar that compiles
// a Blueprint straight to DDL text with no database involved at all, for
// previewing or asserting on the exact SQL a migration would run.
package schema

import (
	"github.com/go-openapi/inflect"
)

// ColumnType enumerates the column kinds Blueprint can declare; the
// Builder maps each to the matching ariga.io/atlas/sql/schema column type
// for the target dialect.
type ColumnType string

const (
	TypeBigInteger    ColumnType = "bigInteger"
	TypeInteger       ColumnType = "integer"
	TypeMediumInteger ColumnType = "mediumInteger"
	TypeSmallInt      ColumnType = "smallInteger"
	TypeTinyInteger   ColumnType = "tinyInteger"
	TypeString        ColumnType = "string"
	TypeText          ColumnType = "text"
	TypeBoolean       ColumnType = "boolean"
	TypeDate          ColumnType = "date"
	TypeDateTime      ColumnType = "dateTime"
	TypeTimestamp     ColumnType = "timestamp"
	TypeDecimal       ColumnType = "decimal"
	TypeFloat         ColumnType = "float"
	TypeDouble        ColumnType = "double"
	TypeJSON          ColumnType = "json"
	TypeUUID          ColumnType = "uuid"
	TypeEnum          ColumnType = "enum"
	TypeBinary        ColumnType = "binary"
	TypeYear          ColumnType = "year"
	TypeIPAddress     ColumnType = "ipAddress"
	TypeMACAddress    ColumnType = "macAddress"
)

// ColumnDefinition describes one column a Blueprint declares, built up
// fluently the way Laravel's ColumnDefinition/Fluent works: each modifier
// method sets a field and returns the same *ColumnDefinition.
type ColumnDefinition struct {
	Name       string
	Type       ColumnType
	Length     int
	Precision  int
	Scale      int
	Allowed    []string // enum values
	Nullable   bool
	Default    any
	HasDefault bool
	AutoInc    bool
	Unsigned   bool
	Comment    string
	After      string
	First      bool

	// GeneratedExpr and GeneratedStored set a computed-column definition,
	// Laravel's virtualAs()/storedAs(). Empty GeneratedExpr means the
	// column is an ordinary stored column.
	GeneratedExpr   string
	GeneratedStored bool

	// Modify marks this column as altering an existing column's
	// definition rather than adding a new one, Laravel's change().
	Modify bool
}

// NotNull marks the column NOT NULL (columns are declared not null unless
// NullableCol is called).
func (c *ColumnDefinition) NotNull() *ColumnDefinition { c.Nullable = false; return c }

// NullableCol marks the column nullable.
func (c *ColumnDefinition) NullableCol() *ColumnDefinition { c.Nullable = true; return c }

// SetDefault sets the column's default value.
func (c *ColumnDefinition) SetDefault(v any) *ColumnDefinition {
	c.Default = v
	c.HasDefault = true
	return c
}

// WithComment attaches a column comment.
func (c *ColumnDefinition) WithComment(s string) *ColumnDefinition { c.Comment = s; return c }

// WithAfter records the existing column this one goes after (MySQL's
// AFTER). Neither the schema Grammar nor the atlas conversion reads it, so
// no compiled DDL carries an AFTER clause.
func (c *ColumnDefinition) WithAfter(column string) *ColumnDefinition { c.After = column; return c }

// VirtualAs marks the column as a virtual generated column computed from
// expr on read, never stored on disk.
func (c *ColumnDefinition) VirtualAs(expr string) *ColumnDefinition {
	c.GeneratedExpr = expr
	c.GeneratedStored = false
	return c
}

// StoredAs marks the column as a stored generated column: expr is
// computed once on write and persisted like an ordinary column.
func (c *ColumnDefinition) StoredAs(expr string) *ColumnDefinition {
	c.GeneratedExpr = expr
	c.GeneratedStored = true
	return c
}

// Change marks this column definition as altering an existing column
// rather than adding a new one, mirroring Laravel's change().
func (c *ColumnDefinition) Change() *ColumnDefinition { c.Modify = true; return c }

// IndexKind enumerates the index/constraint kinds a Blueprint can declare.
type IndexKind string

const (
	IndexPrimary  IndexKind = "primary"
	IndexUnique   IndexKind = "unique"
	IndexPlain    IndexKind = "index"
	IndexForeign  IndexKind = "foreign"
	IndexFullText IndexKind = "fullText"
	IndexSpatial  IndexKind = "spatialIndex"
	// IndexRaw declares an index over a raw expression (e.g. a functional
	// index) rather than a plain column list; Expression holds that text
	// verbatim and Columns is unused.
	IndexRaw IndexKind = "rawIndex"
)

// IndexDefinition describes one index or constraint.
type IndexDefinition struct {
	Kind       IndexKind
	Name       string
	Columns    []string
	Expression string // IndexRaw: the raw indexed expression
	References string // foreign: referenced table
	On         string
	OnDelete   string
	OnUpdate   string
}

// Command is a non-column, non-index structural change (drop column,
// rename column, drop table, ...), matching Laravel's command-queue model
// of Blueprint.
type Command struct {
	Name    string
	Args    map[string]any
}

// Blueprint accumulates the desired shape of one table: the columns and
// indexes it should have (for create/modify) or the commands it should
// run (for drop/rename/raw alterations).
type Blueprint struct {
	Table   string
	Columns []*ColumnDefinition
	Indexes []*IndexDefinition
	Drops   []string
	Renames map[string]string
	Commands []*Command
	Engine  string // MySQL storage engine, e.g. "InnoDB"
	Charset string
}

// NewBlueprint returns an empty Blueprint for the given table.
func NewBlueprint(table string) *Blueprint {
	return &Blueprint{Table: table, Renames: map[string]string{}}
}

func (b *Blueprint) addColumn(name string, typ ColumnType) *ColumnDefinition {
	col := &ColumnDefinition{Name: name, Type: typ, Nullable: false}
	b.Columns = append(b.Columns, col)
	return col
}

func (b *Blueprint) ID(name string) *ColumnDefinition {
	if name == "" {
		name = "id"
	}
	col := b.addColumn(name, TypeBigInteger)
	col.AutoInc = true
	col.Unsigned = true
	b.Primary(name)
	return col
}

func (b *Blueprint) BigInteger(name string) *ColumnDefinition { return b.addColumn(name, TypeBigInteger) }
func (b *Blueprint) Integer(name string) *ColumnDefinition    { return b.addColumn(name, TypeInteger) }
func (b *Blueprint) MediumInteger(name string) *ColumnDefinition {
	return b.addColumn(name, TypeMediumInteger)
}
func (b *Blueprint) SmallInteger(name string) *ColumnDefinition {
	return b.addColumn(name, TypeSmallInt)
}
func (b *Blueprint) TinyInteger(name string) *ColumnDefinition {
	return b.addColumn(name, TypeTinyInteger)
}

func (b *Blueprint) UnsignedBigInteger(name string) *ColumnDefinition {
	col := b.BigInteger(name)
	col.Unsigned = true
	return col
}

func (b *Blueprint) UnsignedInteger(name string) *ColumnDefinition {
	col := b.Integer(name)
	col.Unsigned = true
	return col
}

func (b *Blueprint) UnsignedMediumInteger(name string) *ColumnDefinition {
	col := b.MediumInteger(name)
	col.Unsigned = true
	return col
}

func (b *Blueprint) UnsignedSmallInteger(name string) *ColumnDefinition {
	col := b.SmallInteger(name)
	col.Unsigned = true
	return col
}

func (b *Blueprint) UnsignedTinyInteger(name string) *ColumnDefinition {
	col := b.TinyInteger(name)
	col.Unsigned = true
	return col
}

func (b *Blueprint) String(name string, length int) *ColumnDefinition {
	col := b.addColumn(name, TypeString)
	if length == 0 {
		length = 255
	}
	col.Length = length
	return col
}

func (b *Blueprint) Text(name string) *ColumnDefinition    { return b.addColumn(name, TypeText) }
func (b *Blueprint) Boolean(name string) *ColumnDefinition  { return b.addColumn(name, TypeBoolean) }
func (b *Blueprint) Date(name string) *ColumnDefinition     { return b.addColumn(name, TypeDate) }
func (b *Blueprint) DateTime(name string) *ColumnDefinition { return b.addColumn(name, TypeDateTime) }
func (b *Blueprint) JSON(name string) *ColumnDefinition     { return b.addColumn(name, TypeJSON) }
func (b *Blueprint) Binary(name string) *ColumnDefinition   { return b.addColumn(name, TypeBinary) }

// UUID declares a UUID-typed column (postgres uses its native uuid type,
// sqlite/mysql a 36-character text column). Values are not generated for
// it automatically; model.NewUUID returns a fresh one.
func (b *Blueprint) UUID(name string) *ColumnDefinition { return b.addColumn(name, TypeUUID) }

// Year declares a 4-digit year column.
func (b *Blueprint) Year(name string) *ColumnDefinition { return b.addColumn(name, TypeYear) }

// IPAddress declares a column sized to hold either an IPv4 or IPv6
// address in its text form.
func (b *Blueprint) IPAddress(name string) *ColumnDefinition {
	col := b.addColumn(name, TypeIPAddress)
	col.Length = 45
	return col
}

// MACAddress declares a column sized to hold a colon-separated MAC
// address in its text form.
func (b *Blueprint) MACAddress(name string) *ColumnDefinition {
	col := b.addColumn(name, TypeMACAddress)
	col.Length = 17
	return col
}

// RememberToken adds the conventional nullable 100-character
// remember_token column used for "remember me" login tokens.
func (b *Blueprint) RememberToken() *ColumnDefinition {
	return b.String("remember_token", 100).NullableCol()
}

func (b *Blueprint) Decimal(name string, precision, scale int) *ColumnDefinition {
	col := b.addColumn(name, TypeDecimal)
	col.Precision, col.Scale = precision, scale
	return col
}

func (b *Blueprint) Enum(name string, allowed []string) *ColumnDefinition {
	col := b.addColumn(name, TypeEnum)
	col.Allowed = allowed
	return col
}

// Timestamps adds the conventional created_at/updated_at nullable columns.
func (b *Blueprint) Timestamps() {
	b.addColumn("created_at", TypeTimestamp).NullableCol()
	b.addColumn("updated_at", TypeTimestamp).NullableCol()
}

// SoftDeletes adds the conventional nullable deleted_at column.
func (b *Blueprint) SoftDeletes() *ColumnDefinition {
	return b.addColumn("deleted_at", TypeTimestamp).NullableCol()
}

// Primary declares a primary key over the given columns.
func (b *Blueprint) Primary(columns ...string) {
	b.Indexes = append(b.Indexes, &IndexDefinition{Kind: IndexPrimary, Columns: columns})
}

// Unique declares a unique index over the given columns.
func (b *Blueprint) Unique(columns ...string) {
	b.Indexes = append(b.Indexes, &IndexDefinition{Kind: IndexUnique, Name: indexName(b.Table, columns, "unique"), Columns: columns})
}

// Index declares a plain (non-unique) index over the given columns.
func (b *Blueprint) Index(columns ...string) {
	b.Indexes = append(b.Indexes, &IndexDefinition{Kind: IndexPlain, Name: indexName(b.Table, columns, "index"), Columns: columns})
}

// FullText declares a full-text index over the given columns (MySQL's
// FULLTEXT index / Postgres's GIN-backed text search index).
func (b *Blueprint) FullText(columns ...string) *IndexDefinition {
	idx := &IndexDefinition{Kind: IndexFullText, Name: indexName(b.Table, columns, "fulltext"), Columns: columns}
	b.Indexes = append(b.Indexes, idx)
	return idx
}

// SpatialIndex declares a spatial index over the given columns (MySQL's
// SPATIAL index / Postgres's GIST index over a geometry column).
func (b *Blueprint) SpatialIndex(columns ...string) *IndexDefinition {
	idx := &IndexDefinition{Kind: IndexSpatial, Name: indexName(b.Table, columns, "spatialindex"), Columns: columns}
	b.Indexes = append(b.Indexes, idx)
	return idx
}

// RawIndex declares an index over a raw expression rather than a plain
// column list, e.g. a functional index on lower(email).
func (b *Blueprint) RawIndex(expression, name string) *IndexDefinition {
	idx := &IndexDefinition{Kind: IndexRaw, Name: name, Expression: expression}
	b.Indexes = append(b.Indexes, idx)
	return idx
}

// RenameIndex queues an index rename, applied as an ALTER TABLE ... RENAME
// INDEX/KEY statement by the grammar.
func (b *Blueprint) RenameIndex(from, to string) {
	b.Commands = append(b.Commands, &Command{Name: "renameIndex", Args: map[string]any{"from": from, "to": to}})
}

// Foreign declares a foreign key over column referencing references.on,
// following the inflect-derived convention used for relationship FKs too
// (go-openapi/inflect pluralizes/singularizes table <-> model names).
func (b *Blueprint) Foreign(column, references, on string) *IndexDefinition {
	idx := &IndexDefinition{Kind: IndexForeign, Name: indexName(b.Table, []string{column}, "foreign"), Columns: []string{column}, References: references, On: on}
	b.Indexes = append(b.Indexes, idx)
	return idx
}

func (idx *IndexDefinition) CascadeOnDelete() *IndexDefinition { idx.OnDelete = "cascade"; return idx }
func (idx *IndexDefinition) NullOnDelete() *IndexDefinition    { idx.OnDelete = "set null"; return idx }
func (idx *IndexDefinition) CascadeOnUpdate() *IndexDefinition { idx.OnUpdate = "cascade"; return idx }

func indexName(table string, columns []string, kind string) string {
	name := table
	for _, c := range columns {
		name += "_" + c
	}
	return inflect.Underscore(name) + "_" + kind
}

// DropColumn queues a column drop.
func (b *Blueprint) DropColumn(name string) { b.Drops = append(b.Drops, name) }

// RenameColumn queues a column rename.
func (b *Blueprint) RenameColumn(from, to string) { b.Renames[from] = to }

// ConstrainedForeignID conventionally names a foreign key column "<singular
// relation>_id" referencing "id" on the pluralized table, mirroring
// Laravel's foreignId()->constrained() convention (go-openapi/inflect
// supplies the pluralization).
func (b *Blueprint) ConstrainedForeignID(relation string) *IndexDefinition {
	column := inflect.Underscore(relation) + "_id"
	col := b.BigInteger(column)
	col.Unsigned = true
	table := inflect.Pluralize(inflect.Underscore(relation))
	return b.Foreign(column, "id", table)
}
