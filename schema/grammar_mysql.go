package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/velox"
	"github.com/syssam/velox/dialect"
)

// MySQLGrammar compiles Blueprints into MySQL/MariaDB DDL: backtick-quoted
// identifiers, AUTO_INCREMENT, and TINYINT(1) for booleans.
type MySQLGrammar struct{ base }

// NewMySQLGrammar returns a Grammar compiling DDL for MySQL/MariaDB.
func NewMySQLGrammar() *MySQLGrammar {
	g := &MySQLGrammar{base{name: dialect.MySQL}}
	g.self = g
	return g
}

func (g *MySQLGrammar) wrapValue(value string) string {
	return "`" + strings.ReplaceAll(value, "`", "``") + "`"
}

func (g *MySQLGrammar) columnType(col *ColumnDefinition) (string, error) {
	switch col.Type {
	case TypeBigInteger:
		return unsignedSuffix("bigint", col) + autoIncSuffix(col, " auto_increment"), nil
	case TypeInteger:
		return unsignedSuffix("int", col) + autoIncSuffix(col, " auto_increment"), nil
	case TypeSmallInt:
		return unsignedSuffix("smallint", col) + autoIncSuffix(col, " auto_increment"), nil
	case TypeString:
		return fmt.Sprintf("varchar(%d)", stringLength(col)), nil
	case TypeText:
		return "text", nil
	case TypeBoolean:
		return "tinyint(1)", nil
	case TypeDate:
		return "date", nil
	case TypeDateTime:
		return "datetime", nil
	case TypeTimestamp:
		return "timestamp", nil
	case TypeDecimal:
		return fmt.Sprintf("decimal(%d, %d)", decimalPrecision(col), col.Scale), nil
	case TypeFloat:
		return "float", nil
	case TypeDouble:
		return "double", nil
	case TypeJSON:
		return "json", nil
	case TypeUUID:
		return "char(36)", nil
	case TypeEnum:
		return fmt.Sprintf("enum(%s)", quotedList(col.Allowed)), nil
	case TypeBinary:
		return "blob", nil
	case TypeMediumInteger:
		return unsignedSuffix("mediumint", col) + autoIncSuffix(col, " auto_increment"), nil
	case TypeTinyInteger:
		return unsignedSuffix("tinyint", col) + autoIncSuffix(col, " auto_increment"), nil
	case TypeYear:
		return "year", nil
	case TypeIPAddress:
		return fmt.Sprintf("varchar(%d)", stringLength(col)), nil
	case TypeMACAddress:
		return fmt.Sprintf("varchar(%d)", stringLength(col)), nil
	default:
		return "", velox.NewUnsupportedFeatureError(dialect.MySQL, "column type "+string(col.Type))
	}
}

// changeColumnSQL uses MySQL's MODIFY COLUMN, which restates the column's
// full definition in place.
func (g *MySQLGrammar) changeColumnSQL(table string, col *ColumnDefinition) (string, error) {
	colSQL, err := g.compileColumnDef(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("alter table %s modify column %s", g.wrap(table), colSQL), nil
}

// indexKindSQL compiles MySQL's FULLTEXT/SPATIAL KEY forms as a separate
// CREATE statement (valid as its own DDL statement outside of CREATE
// TABLE, even though MySQL also allows them inline).
func (g *MySQLGrammar) indexKindSQL(table string, idx *IndexDefinition) string {
	switch idx.Kind {
	case IndexFullText:
		return fmt.Sprintf("create fulltext index %s on %s (%s)", g.wrap(idx.Name), g.wrap(table), g.wrapList(idx.Columns))
	case IndexSpatial:
		return fmt.Sprintf("create spatial index %s on %s (%s)", g.wrap(idx.Name), g.wrap(table), g.wrapList(idx.Columns))
	default: // IndexRaw
		return fmt.Sprintf("create index %s on %s (%s)", g.wrap(idx.Name), g.wrap(table), idx.Expression)
	}
}

func unsignedSuffix(base string, col *ColumnDefinition) string {
	if col.Unsigned {
		return base + " unsigned"
	}
	return base
}

func autoIncSuffix(col *ColumnDefinition, suffix string) string {
	if col.AutoInc {
		return suffix
	}
	return ""
}

func stringLength(col *ColumnDefinition) int {
	if col.Length == 0 {
		return 255
	}
	return col.Length
}

func decimalPrecision(col *ColumnDefinition) int {
	if col.Precision == 0 {
		return 10
	}
	return col.Precision
}

func quotedList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
