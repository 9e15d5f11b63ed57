package database

import (
	"time"

	"github.com/spf13/cast"
)

// Row is one result row keyed by column name
type Row map[string]any

// normalize turns driver byte slices into strings so callers compare plain values
func normalize(raw map[string]any) Row {
	row := make(Row, len(raw))
	for k, v := range raw {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
			continue
		}
		row[k] = v
	}
	return row
}

// String returns the column as text. Dates render as YYYY-MM-DD.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format("2006-01-02")
	case []byte:
		return string(v)
	default:
		return cast.ToString(v)
	}
}

// Int64 returns the column as an integer, or fallback when absent or not numeric
func (r Row) Int64(column string, fallback int64) int64 {
	v, ok := r[column]
	if !ok || v == nil {
		return fallback
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return fallback
	}
	return n
}

// Has reports whether the column is present in the row
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}
