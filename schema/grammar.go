package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/velox/dialect"
)

// Grammar compiles a Blueprint into dialect-specific DDL text without
// touching a database — the schema-side counterpart to query/grammar's
// query compiler. Builder's Create/Table/Drop/Rename still go through
// ariga.io/atlas's live inspect/diff/apply path since that already solves
// ALTER-TABLE diffing against whatever a database currently holds; Grammar
// exists for the case atlas can't help with: compiling a Blueprint's SQL
// text with no connection at all, e.g. to preview a migration or assert on
// a CREATE TABLE statement's exact shape in a test.
type Grammar interface {
	// CompileCreate compiles a CREATE TABLE statement from bp's columns,
	// primary key and foreign keys. Unique/plain indexes are returned as
	// additional statements since not every dialect allows them inline.
	CompileCreate(bp *Blueprint) ([]string, error)
	// CompileAlter compiles ALTER TABLE statements for bp's added columns,
	// dropped columns, renamed columns, and new indexes/foreign keys.
	CompileAlter(bp *Blueprint) ([]string, error)
	CompileDrop(table string) string
	CompileDropIfExists(table string) string
	CompileRename(from, to string) string
	Dialect() string
}

// dialectGrammar is implemented by each concrete dialect and consulted by
// base for the handful of operations that differ between dialects.
type dialectGrammar interface {
	Grammar
	wrapValue(value string) string
	columnType(col *ColumnDefinition) (string, error)
	// inlinePrimaryKey reports whether bp's primary key is already expressed
	// by a column modifier (SQLite's "integer primary key autoincrement")
	// and so must not also get a trailing "primary key (...)" clause.
	inlinePrimaryKey(bp *Blueprint) bool
	// changeColumnSQL compiles the statement that alters an existing
	// column to col's new definition (Blueprint's Change()).
	changeColumnSQL(table string, col *ColumnDefinition) (string, error)
	// indexKindSQL renders the CREATE INDEX statement for a full-text,
	// spatial or raw-expression index; dialects differ enough here (MySQL's
	// FULLTEXT/SPATIAL KEY vs Postgres's GIN/GIST access methods) that base
	// has no sensible shared default.
	indexKindSQL(table string, idx *IndexDefinition) string
}

// base implements every dialect-independent compilation step. Concrete
// dialects embed *base and set self to themselves so base's methods can
// call back into the dialect-specific overrides, the same tagged-sum-type
// split query/grammar uses for the query compiler.
type base struct {
	self dialectGrammar
	name string
}

// NewGrammar returns the Grammar for the named dialect.
func NewGrammar(dialectName string) (Grammar, error) {
	switch dialectName {
	case dialect.MySQL:
		return NewMySQLGrammar(), nil
	case dialect.Postgres:
		return NewPostgresGrammar(), nil
	case dialect.SQLite:
		return NewSQLiteGrammar(), nil
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", dialectName)
	}
}

func (g *base) Dialect() string { return g.name }

func (g *base) wrap(name string) string { return g.self.wrapValue(name) }

func (g *base) wrapList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = g.wrap(n)
	}
	return strings.Join(quoted, ", ")
}

// CompileCreate builds one CREATE TABLE statement holding every column,
// the primary key (unless the dialect already inlined it on a column), and
// every foreign key, followed by one CREATE [UNIQUE] INDEX statement per
// unique/plain index declared on the Blueprint.
func (g *base) CompileCreate(bp *Blueprint) ([]string, error) {
	var parts []string
	for _, col := range bp.Columns {
		colSQL, err := g.compileColumnDef(col)
		if err != nil {
			return nil, err
		}
		parts = append(parts, colSQL)
	}

	if !g.self.inlinePrimaryKey(bp) {
		for _, idx := range bp.Indexes {
			if idx.Kind == IndexPrimary {
				parts = append(parts, fmt.Sprintf("primary key (%s)", g.wrapList(idx.Columns)))
			}
		}
	}

	for _, idx := range bp.Indexes {
		if idx.Kind == IndexForeign {
			parts = append(parts, g.compileForeignKey(idx))
		}
	}

	stmts := []string{fmt.Sprintf("create table %s (\n  %s\n)", g.wrap(bp.Table), strings.Join(parts, ",\n  "))}
	stmts = append(stmts, g.compileIndexStatements(bp)...)
	return stmts, nil
}

// CompileAlter compiles added/changed columns, dropped/renamed columns,
// renamed indexes, and new indexes/foreign keys into the ALTER TABLE
// statements needed to bring an existing table to the Blueprint's shape.
func (g *base) CompileAlter(bp *Blueprint) ([]string, error) {
	var stmts []string
	table := g.wrap(bp.Table)

	for _, col := range bp.Columns {
		if col.Modify {
			sql, err := g.self.changeColumnSQL(bp.Table, col)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, sql)
			continue
		}
		colSQL, err := g.compileColumnDef(col)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, fmt.Sprintf("alter table %s add column %s", table, colSQL))
	}
	for _, name := range bp.Drops {
		stmts = append(stmts, fmt.Sprintf("alter table %s drop column %s", table, g.wrap(name)))
	}
	for from, to := range bp.Renames {
		stmts = append(stmts, fmt.Sprintf("alter table %s rename column %s to %s", table, g.wrap(from), g.wrap(to)))
	}
	for _, cmd := range bp.Commands {
		if cmd.Name == "renameIndex" {
			stmts = append(stmts, fmt.Sprintf("alter table %s rename index %s to %s", table, g.wrap(fmt.Sprint(cmd.Args["from"])), g.wrap(fmt.Sprint(cmd.Args["to"]))))
		}
	}
	stmts = append(stmts, g.compileIndexStatements(bp)...)
	for _, idx := range bp.Indexes {
		if idx.Kind == IndexForeign {
			stmts = append(stmts, fmt.Sprintf("alter table %s add %s", table, g.compileForeignKey(idx)))
		}
	}
	return stmts, nil
}

func (g *base) compileIndexStatements(bp *Blueprint) []string {
	var stmts []string
	for _, idx := range bp.Indexes {
		switch idx.Kind {
		case IndexUnique:
			stmts = append(stmts, fmt.Sprintf("create unique index %s on %s (%s)", g.wrap(idx.Name), g.wrap(bp.Table), g.wrapList(idx.Columns)))
		case IndexPlain:
			stmts = append(stmts, fmt.Sprintf("create index %s on %s (%s)", g.wrap(idx.Name), g.wrap(bp.Table), g.wrapList(idx.Columns)))
		case IndexFullText, IndexSpatial, IndexRaw:
			stmts = append(stmts, g.self.indexKindSQL(bp.Table, idx))
		}
	}
	return stmts
}

func (g *base) compileColumnDef(col *ColumnDefinition) (string, error) {
	colType, err := g.self.columnType(col)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(g.wrap(col.Name))
	b.WriteString(" ")
	b.WriteString(colType)
	if col.GeneratedExpr != "" {
		kind := "virtual"
		if col.GeneratedStored {
			kind = "stored"
		}
		b.WriteString(fmt.Sprintf(" as (%s) %s", col.GeneratedExpr, kind))
		return b.String(), nil
	}
	if !col.Nullable {
		b.WriteString(" not null")
	}
	if col.HasDefault {
		b.WriteString(" default ")
		b.WriteString(formatDDLDefault(col.Default))
	}
	if col.Comment != "" {
		b.WriteString(fmt.Sprintf(" comment '%s'", strings.ReplaceAll(col.Comment, "'", "''")))
	}
	return b.String(), nil
}

func (g *base) compileForeignKey(idx *IndexDefinition) string {
	sql := fmt.Sprintf("constraint %s foreign key (%s) references %s (%s)",
		g.wrap(idx.Name), g.wrapList(idx.Columns), g.wrap(idx.On), g.wrap(idx.References))
	if idx.OnDelete != "" {
		sql += " on delete " + idx.OnDelete
	}
	if idx.OnUpdate != "" {
		sql += " on update " + idx.OnUpdate
	}
	return sql
}

func (g *base) CompileDrop(table string) string {
	return "drop table " + g.wrap(table)
}

func (g *base) CompileDropIfExists(table string) string {
	return "drop table if exists " + g.wrap(table)
}

func (g *base) CompileRename(from, to string) string {
	return fmt.Sprintf("alter table %s rename to %s", g.wrap(from), g.wrap(to))
}

func (g *base) inlinePrimaryKey(bp *Blueprint) bool { return false }

func formatDDLDefault(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int, int32, int64, float32, float64:
		return fmt.Sprint(t)
	default:
		return strconv.Quote(fmt.Sprint(t))
	}
}
