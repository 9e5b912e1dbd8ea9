package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/velox"
	"github.com/syssam/velox/dialect"
)

// PostgresGrammar compiles Blueprints into PostgreSQL DDL: double-quoted
// identifiers, {small,,big}serial for auto-incrementing keys instead of a
// trailing AUTO_INCREMENT modifier, and a CHECK constraint standing in for
// enums (Postgres's native enum type requires a separate CREATE TYPE
// statement per allowed-value set, which Blueprint has no slot for yet).
type PostgresGrammar struct{ base }

// NewPostgresGrammar returns a Grammar compiling DDL for PostgreSQL.
func NewPostgresGrammar() *PostgresGrammar {
	g := &PostgresGrammar{base{name: dialect.Postgres}}
	g.self = g
	return g
}

func (g *PostgresGrammar) wrapValue(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func (g *PostgresGrammar) columnType(col *ColumnDefinition) (string, error) {
	switch col.Type {
	case TypeBigInteger:
		if col.AutoInc {
			return "bigserial", nil
		}
		return "bigint", nil
	case TypeInteger:
		if col.AutoInc {
			return "serial", nil
		}
		return "int", nil
	case TypeSmallInt:
		if col.AutoInc {
			return "smallserial", nil
		}
		return "smallint", nil
	case TypeString:
		return fmt.Sprintf("varchar(%d)", stringLength(col)), nil
	case TypeText:
		return "text", nil
	case TypeBoolean:
		return "boolean", nil
	case TypeDate:
		return "date", nil
	case TypeDateTime, TypeTimestamp:
		return "timestamp", nil
	case TypeDecimal:
		return fmt.Sprintf("decimal(%d, %d)", decimalPrecision(col), col.Scale), nil
	case TypeFloat:
		return "real", nil
	case TypeDouble:
		return "double precision", nil
	case TypeJSON:
		return "jsonb", nil
	case TypeUUID:
		return "uuid", nil
	case TypeEnum:
		return fmt.Sprintf("text check (%s in (%s))", g.wrap(col.Name), quotedList(col.Allowed)), nil
	case TypeBinary:
		return "bytea", nil
	case TypeMediumInteger:
		return "int", nil
	case TypeTinyInteger:
		return "smallint", nil
	case TypeYear:
		return "smallint", nil
	case TypeIPAddress:
		return "inet", nil
	case TypeMACAddress:
		return "macaddr", nil
	default:
		return "", velox.NewUnsupportedFeatureError(dialect.Postgres, "column type "+string(col.Type))
	}
}

// changeColumnSQL uses Postgres's ALTER COLUMN ... TYPE form; nullability
// and defaults need their own ALTER COLUMN clauses in real Postgres, but
// Blueprint's Change() only needs to restate the column's type here, which
// is the part every dialect shares.
func (g *PostgresGrammar) changeColumnSQL(table string, col *ColumnDefinition) (string, error) {
	colType, err := g.columnType(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("alter table %s alter column %s type %s", g.wrap(table), g.wrap(col.Name), colType), nil
}

// indexKindSQL compiles Postgres's GIN (full text) / GIST (spatial)
// access-method indexes, and a verbatim expression index for IndexRaw.
func (g *PostgresGrammar) indexKindSQL(table string, idx *IndexDefinition) string {
	switch idx.Kind {
	case IndexFullText:
		return fmt.Sprintf("create index %s on %s using gin (%s)", g.wrap(idx.Name), g.wrap(table), g.wrapList(idx.Columns))
	case IndexSpatial:
		return fmt.Sprintf("create index %s on %s using gist (%s)", g.wrap(idx.Name), g.wrap(table), g.wrapList(idx.Columns))
	default: // IndexRaw
		return fmt.Sprintf("create index %s on %s (%s)", g.wrap(idx.Name), g.wrap(table), idx.Expression)
	}
}
