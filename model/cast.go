package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/google/uuid"
)

// castIn converts a raw driver/caller value into the attribute's
// in-memory Go representation, per the column's declared CastType.
func castIn(meta *Metadata, key string, v any) any {
	cast, ok := meta.Casts[key]
	if !ok || v == nil {
		return v
	}
	switch cast {
	case CastInt:
		return toInt(v)
	case CastFloat:
		return toFloat(v)
	case CastBool:
		return toBool(v)
	case CastString:
		return fmt.Sprint(v)
	case CastDateTime:
		if t, ok := v.(time.Time); ok {
			return t
		}
		if s, ok := v.(string); ok {
			if t, err := time.Parse(meta.dateFormat(), s); err == nil {
				return t
			}
		}
		return v
	case CastJSON:
		if s, ok := v.(string); ok {
			var out any
			if err := json.Unmarshal([]byte(s), &out); err == nil {
				return out
			}
		}
		return v
	case CastMsgpack:
		if b, ok := v.([]byte); ok {
			var out any
			if err := msgpack.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		if s, ok := v.(string); ok {
			var out any
			if err := msgpack.Unmarshal([]byte(s), &out); err == nil {
				return out
			}
		}
		return v
	default:
		return v
	}
}

// castOut converts an in-memory attribute value back to the form it
// should be sent to the driver as (the inverse of castIn).
func castOut(meta *Metadata, key string, v any) any {
	cast, ok := meta.Casts[key]
	if !ok || v == nil {
		return v
	}
	switch cast {
	case CastDateTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(meta.dateFormat())
		}
		return v
	case CastJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	case CastMsgpack:
		b, err := msgpack.Marshal(v)
		if err != nil {
			return v
		}
		return b
	default:
		return v
	}
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	default:
		return false
	}
}

// NewUUID generates a new random UUID string (google/uuid), suitable as the
// value of a UUID column (see schema.Blueprint.UUID). Model does not call
// it: UUID primary keys are not generated automatically.
func NewUUID() string {
	return uuid.NewString()
}
