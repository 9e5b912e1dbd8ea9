package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/velox"
	"github.com/syssam/velox/dialect"
)

// SQLiteGrammar compiles Blueprints into SQLite DDL: double-quoted
// identifiers and SQLite's single-column "integer primary key autoincrement"
// form for auto-incrementing keys, which doubles as the column's primary
// key declaration — SQLite rejects a table that both inlines that and
// carries a trailing "primary key (...)" clause, so inlinePrimaryKey
// reports true whenever a Blueprint has one.
type SQLiteGrammar struct{ base }

// NewSQLiteGrammar returns a Grammar compiling DDL for SQLite.
func NewSQLiteGrammar() *SQLiteGrammar {
	g := &SQLiteGrammar{base{name: dialect.SQLite}}
	g.self = g
	return g
}

func (g *SQLiteGrammar) wrapValue(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func (g *SQLiteGrammar) inlinePrimaryKey(bp *Blueprint) bool {
	for _, col := range bp.Columns {
		if col.AutoInc {
			return true
		}
	}
	return false
}

func (g *SQLiteGrammar) columnType(col *ColumnDefinition) (string, error) {
	if col.AutoInc {
		return "integer primary key autoincrement", nil
	}
	switch col.Type {
	case TypeBigInteger, TypeInteger, TypeSmallInt:
		return "integer", nil
	case TypeString:
		return fmt.Sprintf("varchar(%d)", stringLength(col)), nil
	case TypeText:
		return "text", nil
	case TypeBoolean:
		return "boolean", nil
	case TypeDate:
		return "date", nil
	case TypeDateTime, TypeTimestamp:
		return "datetime", nil
	case TypeDecimal:
		return fmt.Sprintf("decimal(%d, %d)", decimalPrecision(col), col.Scale), nil
	case TypeFloat, TypeDouble:
		return "real", nil
	case TypeJSON:
		return "text", nil
	case TypeUUID:
		return "varchar(36)", nil
	case TypeEnum:
		return fmt.Sprintf("text check (%s in (%s))", g.wrap(col.Name), quotedList(col.Allowed)), nil
	case TypeBinary:
		return "blob", nil
	case TypeMediumInteger, TypeTinyInteger, TypeYear:
		return "integer", nil
	case TypeIPAddress:
		return fmt.Sprintf("varchar(%d)", stringLength(col)), nil
	case TypeMACAddress:
		return fmt.Sprintf("varchar(%d)", stringLength(col)), nil
	default:
		return "", velox.NewUnsupportedFeatureError(dialect.SQLite, "column type "+string(col.Type))
	}
}

// changeColumnSQL has no direct SQLite equivalent (SQLite's own ALTER
// TABLE can rename/add/drop columns but cannot retype one in place); the
// closest honest approximation is a comment marking the column for
// recreation, which is the workaround SQLite itself documents: rebuild the
// table via a temporary copy.
func (g *SQLiteGrammar) changeColumnSQL(table string, col *ColumnDefinition) (string, error) {
	colSQL, err := g.compileColumnDef(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("-- sqlite has no ALTER COLUMN; rebuild %s with %s", g.wrap(table), colSQL), nil
}

// indexKindSQL: SQLite has no FULLTEXT/SPATIAL index syntax (full-text
// search instead requires a separate virtual fts5 table), so full-text and
// spatial requests compile to a plain index over the same columns as the
// closest available approximation; IndexRaw still compiles to a genuine
// expression index, which SQLite does support.
func (g *SQLiteGrammar) indexKindSQL(table string, idx *IndexDefinition) string {
	if idx.Kind == IndexRaw {
		return fmt.Sprintf("create index %s on %s (%s)", g.wrap(idx.Name), g.wrap(table), idx.Expression)
	}
	return fmt.Sprintf("create index %s on %s (%s)", g.wrap(idx.Name), g.wrap(table), g.wrapList(idx.Columns))
}
