package schema

import (
	"context"
	"database/sql"
	"fmt"

	atlasschema "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/migrate"
	atlasmysql "ariga.io/atlas/sql/mysql"
	atlaspostgres "ariga.io/atlas/sql/postgres"
	atlassqlite "ariga.io/atlas/sql/sqlite"

	"github.com/syssam/velox"
	"github.com/syssam/velox/dialect"
)

// dbProvider is implemented by connection.Connection; kept as a narrow
// interface here so schema never imports connection (connection may, in
// turn, need schema for migration bootstrapping).
type dbProvider interface {
	DB() (*sql.DB, bool)
	Dialect() string
}

// Builder turns Blueprints into DDL by asking ariga.io/atlas to inspect
// the database's current schema, diff it against the Blueprint's desired
// table, and plan the ALTER/CREATE statements — rather than hand-rolling
// per-dialect ALTER TABLE diffing, which is exactly the problem atlas
// already solves.
type Builder struct {
	conn dbProvider
}

// NewBuilder returns a Builder operating against conn.
func NewBuilder(conn dbProvider) *Builder {
	return &Builder{conn: conn}
}

func (b *Builder) atlasDriver(ctx context.Context) (migrate.Driver, error) {
	db, ok := b.conn.DB()
	if !ok {
		return nil, velox.NewLogicError("schema", "connection does not expose a *sql.DB for introspection")
	}
	switch b.conn.Dialect() {
	case dialect.MySQL:
		return atlasmysql.Open(db)
	case dialect.Postgres:
		return atlaspostgres.Open(db)
	case dialect.SQLite:
		return atlassqlite.Open(db)
	default:
		return nil, velox.NewUnsupportedFeatureError(b.conn.Dialect(), "schema introspection")
	}
}

// Create creates a new table from the Blueprint.
func (b *Builder) Create(ctx context.Context, bp *Blueprint) error {
	return b.apply(ctx, bp, nil)
}

// CreateSQL compiles bp into the CREATE TABLE (and accompanying CREATE
// INDEX) statements Create would otherwise apply live through atlas,
// without touching a database. Useful for previewing a migration's DDL or
// asserting on its exact text in a test.
func (b *Builder) CreateSQL(bp *Blueprint) ([]string, error) {
	g, err := NewGrammar(b.conn.Dialect())
	if err != nil {
		return nil, err
	}
	return g.CompileCreate(bp)
}

// TableSQL compiles bp's added/dropped/renamed columns and new
// indexes/foreign keys into the ALTER TABLE statements Table would apply
// live, without inspecting or touching a database.
func (b *Builder) TableSQL(bp *Blueprint) ([]string, error) {
	g, err := NewGrammar(b.conn.Dialect())
	if err != nil {
		return nil, err
	}
	return g.CompileAlter(bp)
}

// DropSQL compiles the DROP TABLE statement Drop would apply live.
func (b *Builder) DropSQL(table string) (string, error) {
	g, err := NewGrammar(b.conn.Dialect())
	if err != nil {
		return "", err
	}
	return g.CompileDrop(table), nil
}

// RenameSQL compiles the statement Rename would apply live.
func (b *Builder) RenameSQL(from, to string) (string, error) {
	g, err := NewGrammar(b.conn.Dialect())
	if err != nil {
		return "", err
	}
	return g.CompileRename(from, to), nil
}

// Table alters an existing table according to the Blueprint's added
// columns, indexes, drops and renames.
func (b *Builder) Table(ctx context.Context, bp *Blueprint) error {
	drv, err := b.atlasDriver(ctx)
	if err != nil {
		return err
	}
	current, err := drv.InspectTable(ctx, bp.Table, nil)
	if err != nil {
		return velox.NewQueryError("", "", nil, fmt.Errorf("inspect table %s: %w", bp.Table, err))
	}
	return b.apply(ctx, bp, current)
}

// Drop drops a table outright.
func (b *Builder) Drop(ctx context.Context, table string) error {
	drv, err := b.atlasDriver(ctx)
	if err != nil {
		return err
	}
	current, err := drv.InspectTable(ctx, table, nil)
	if err != nil {
		return velox.NewQueryError("", "", nil, fmt.Errorf("inspect table %s: %w", table, err))
	}
	changes := []atlasschema.Change{&atlasschema.DropTable{T: current}}
	return planAndApply(ctx, drv, table, changes)
}

// DropIfExists drops a table only if it currently exists.
func (b *Builder) DropIfExists(ctx context.Context, table string) error {
	exists, err := b.HasTable(ctx, table)
	if err != nil || !exists {
		return err
	}
	return b.Drop(ctx, table)
}

// Rename renames a table.
func (b *Builder) Rename(ctx context.Context, from, to string) error {
	drv, err := b.atlasDriver(ctx)
	if err != nil {
		return err
	}
	current, err := drv.InspectTable(ctx, from, nil)
	if err != nil {
		return velox.NewQueryError("", "", nil, fmt.Errorf("inspect table %s: %w", from, err))
	}
	renamed := *current
	renamed.Name = to
	changes := []atlasschema.Change{&atlasschema.RenameTable{From: current, To: &renamed}}
	return planAndApply(ctx, drv, from, changes)
}

// HasTable reports whether table exists in the database's current schema.
func (b *Builder) HasTable(ctx context.Context, table string) (bool, error) {
	drv, err := b.atlasDriver(ctx)
	if err != nil {
		return false, err
	}
	_, err = drv.InspectTable(ctx, table, nil)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// HasColumn reports whether table currently has a column named column.
func (b *Builder) HasColumn(ctx context.Context, table, column string) (bool, error) {
	drv, err := b.atlasDriver(ctx)
	if err != nil {
		return false, err
	}
	t, err := drv.InspectTable(ctx, table, nil)
	if err != nil {
		return false, nil
	}
	_, ok := t.Column(column)
	return ok, nil
}

// GetColumnListing returns every column name currently on table, in the
// order the database reports them. MySQL's information_schema.columns
// ordering is treated as stable, matching ordinal_position.
func (b *Builder) GetColumnListing(ctx context.Context, table string) ([]string, error) {
	drv, err := b.atlasDriver(ctx)
	if err != nil {
		return nil, err
	}
	t, err := drv.InspectTable(ctx, table, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names, nil
}

// schemaInspector is the subset of migrate.Driver (via its embedded
// sql/schema.Inspector) that inspects an entire schema at once rather
// than one table at a time; asserted against narrowly here so
// DropAllTables degrades to an explicit error on a driver that somehow
// doesn't support it, rather than a compile-time dependency on atlas's
// exact Inspector surface.
type schemaInspector interface {
	InspectSchema(ctx context.Context, name string, opts *atlasschema.InspectOptions) (*atlasschema.Schema, error)
}

// DropAllTables drops every table currently in the database's default
// schema, used by migration.Migrator.Fresh to reset a database completely
// before re-running every migration from scratch (Laravel's
// migrate:fresh, which runs Schema::dropAllTables() rather than Down()
// on each migration).
func (b *Builder) DropAllTables(ctx context.Context) error {
	drv, err := b.atlasDriver(ctx)
	if err != nil {
		return err
	}
	insp, ok := drv.(schemaInspector)
	if !ok {
		return velox.NewUnsupportedFeatureError(b.conn.Dialect(), "schema-wide inspection")
	}
	sch, err := insp.InspectSchema(ctx, "", nil)
	if err != nil {
		return velox.NewQueryError("", "", nil, fmt.Errorf("inspect schema: %w", err))
	}
	if len(sch.Tables) == 0 {
		return nil
	}
	changes := make([]atlasschema.Change, len(sch.Tables))
	for i, t := range sch.Tables {
		changes[i] = &atlasschema.DropTable{T: t}
	}
	return planAndApply(ctx, drv, "all_tables", changes)
}

func (b *Builder) apply(ctx context.Context, bp *Blueprint, current *atlasschema.Table) error {
	drv, err := b.atlasDriver(ctx)
	if err != nil {
		return err
	}
	desired, err := toAtlasTable(bp, b.conn.Dialect())
	if err != nil {
		return err
	}

	var changes []atlasschema.Change
	if current == nil {
		changes = []atlasschema.Change{&atlasschema.AddTable{T: desired}}
	} else {
		changes, err = drv.TableDiff(current, desired)
		if err != nil {
			return err
		}
	}
	for _, name := range bp.Drops {
		if current != nil {
			if col, ok := current.Column(name); ok {
				changes = append(changes, &atlasschema.ModifyTable{T: current, Changes: []atlasschema.Change{&atlasschema.DropColumn{C: col}}})
			}
		}
	}
	return planAndApply(ctx, drv, bp.Table, changes)
}

func planAndApply(ctx context.Context, drv migrate.Driver, name string, changes []atlasschema.Change) error {
	if len(changes) == 0 {
		return nil
	}
	plan, err := drv.PlanChanges(ctx, "velox_"+name, changes)
	if err != nil {
		return velox.NewQueryError("", "", nil, fmt.Errorf("plan changes for %s: %w", name, err))
	}
	if err := drv.ApplyChanges(ctx, changes); err != nil {
		return velox.NewQueryError("", "", nil, fmt.Errorf("apply changes for %s (%d statements): %w", name, len(plan.Changes), err))
	}
	return nil
}
