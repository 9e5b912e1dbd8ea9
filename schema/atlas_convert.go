package schema

import (
	atlasschema "ariga.io/atlas/sql/schema"

	"github.com/syssam/velox"
)

// toAtlasTable converts a Blueprint's declared columns/indexes into
// atlas's generic sql/schema representation. Each dialect's atlas driver
// (ariga.io/atlas/sql/{mysql,postgres,sqlite}) normalizes these generic
// types to its own concrete column types when planning/applying changes,
// so this conversion itself stays dialect-agnostic.
func toAtlasTable(bp *Blueprint, dialectName string) (*atlasschema.Table, error) {
	t := atlasschema.NewTable(bp.Table)
	for _, col := range bp.Columns {
		ct, err := atlasColumnType(col)
		if err != nil {
			return nil, err
		}
		c := atlasschema.NewColumn(col.Name).
			SetType(ct).
			SetNull(col.Nullable)
		if col.HasDefault {
			c = c.SetDefault(&atlasschema.Literal{V: formatDefault(col.Default)})
		}
		if col.Comment != "" {
			c = c.SetComment(col.Comment)
		}
		t.AddColumns(c)
	}
	for _, idx := range bp.Indexes {
		switch idx.Kind {
		case IndexPrimary:
			t.SetPrimaryKey(atlasschema.NewPrimaryKey(columnsOf(t, idx.Columns)...))
		case IndexUnique:
			t.AddIndexes(atlasschema.NewUniqueIndex(idx.Name).AddColumns(columnsOf(t, idx.Columns)...))
		case IndexPlain:
			t.AddIndexes(atlasschema.NewIndex(idx.Name).AddColumns(columnsOf(t, idx.Columns)...))
		case IndexFullText, IndexSpatial:
			// atlas's generic sql/schema.Index has no portable full-text
			// or spatial index type (each dialect driver expresses it
			// through its own attrs, e.g. atlasmysql.IndexType); recorded
			// here as a plain index over the same columns so atlas still
			// diffs its presence/absence, with the real FULLTEXT/SPATIAL
			// form coming from the Grammar path (CreateSQL/TableSQL)
			// instead.
			t.AddIndexes(atlasschema.NewIndex(idx.Name).AddColumns(columnsOf(t, idx.Columns)...))
		case IndexRaw:
			// No column list to diff against; atlas's live apply path
			// skips raw-expression indexes entirely and leaves them to
			// the Grammar path.
		case IndexForeign:
			fk := atlasschema.NewForeignKey(idx.Name).
				AddColumns(columnsOf(t, idx.Columns)...).
				SetRefTable(atlasschema.NewTable(idx.On))
			if idx.OnDelete != "" {
				fk.OnDelete = atlasschema.ReferenceOption(idx.OnDelete)
			}
			if idx.OnUpdate != "" {
				fk.OnUpdate = atlasschema.ReferenceOption(idx.OnUpdate)
			}
			t.AddForeignKeys(fk)
		}
	}
	return t, nil
}

func columnsOf(t *atlasschema.Table, names []string) []*atlasschema.Column {
	cols := make([]*atlasschema.Column, 0, len(names))
	for _, n := range names {
		if c, ok := t.Column(n); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

func atlasColumnType(col *ColumnDefinition) (atlasschema.Type, error) {
	switch col.Type {
	case TypeBigInteger:
		return &atlasschema.IntegerType{T: "bigint", Unsigned: col.Unsigned}, nil
	case TypeInteger:
		return &atlasschema.IntegerType{T: "int", Unsigned: col.Unsigned}, nil
	case TypeSmallInt:
		return &atlasschema.IntegerType{T: "smallint", Unsigned: col.Unsigned}, nil
	case TypeString:
		return &atlasschema.StringType{T: "varchar", Size: col.Length}, nil
	case TypeText:
		return &atlasschema.StringType{T: "text"}, nil
	case TypeBoolean:
		return &atlasschema.BoolType{T: "boolean"}, nil
	case TypeDate:
		return &atlasschema.TimeType{T: "date"}, nil
	case TypeDateTime, TypeTimestamp:
		return &atlasschema.TimeType{T: "timestamp"}, nil
	case TypeDecimal:
		return &atlasschema.DecimalType{T: "decimal", Precision: col.Precision, Scale: col.Scale}, nil
	case TypeFloat:
		return &atlasschema.FloatType{T: "float"}, nil
	case TypeDouble:
		return &atlasschema.FloatType{T: "double"}, nil
	case TypeJSON:
		return &atlasschema.JSONType{T: "json"}, nil
	case TypeUUID:
		return &atlasschema.StringType{T: "char", Size: 36}, nil
	case TypeEnum:
		return &atlasschema.EnumType{Values: col.Allowed}, nil
	case TypeBinary:
		return &atlasschema.BinaryType{T: "blob"}, nil
	case TypeMediumInteger:
		return &atlasschema.IntegerType{T: "mediumint", Unsigned: col.Unsigned}, nil
	case TypeTinyInteger:
		return &atlasschema.IntegerType{T: "tinyint", Unsigned: col.Unsigned}, nil
	case TypeYear:
		return &atlasschema.IntegerType{T: "smallint"}, nil
	case TypeIPAddress, TypeMACAddress:
		return &atlasschema.StringType{T: "varchar", Size: col.Length}, nil
	default:
		return nil, velox.NewUnsupportedFeatureError("", "column type "+string(col.Type))
	}
}

func formatDefault(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return ""
	}
}
