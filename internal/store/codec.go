package store

import (
	"database/sql"
	"encoding/json"
)

// jsonColumn serializes v for a TEXT column; nil-ish values store NULL so
// queries can distinguish absent from empty.
func jsonColumn(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		if len(t) == 0 {
			return nil
		}
	case json.RawMessage:
		if len(t) == 0 {
			return nil
		}
		return string(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

// scanJSON decodes a nullable TEXT column into out, leaving out untouched
// on NULL or corrupt payloads.
func scanJSON(ns sql.NullString, out any) {
	if !ns.Valid || ns.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(ns.String), out)
}

// encodeVector serializes an embedding for its column.
func encodeVector(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return nil
	}
	return string(data)
}

// decodeVector deserializes an embedding column; NULL and corrupt values
// come back nil.
func decodeVector(ns sql.NullString) []float32 {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(ns.String), &vec); err != nil {
		return nil
	}
	return vec
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
