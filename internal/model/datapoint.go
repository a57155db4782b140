package model

import "encoding/json"

// DataPoint is an open record produced by a data source: field name to value,
// where values may be numeric, string, or boolean. Treated as immutable once
// it enters a batch.
type DataPoint map[string]any

// EntityID returns the record's entity identifier, falling back from
// "entityId" to "id". Empty when neither is present.
func (d DataPoint) EntityID() string {
	for _, key := range []string{"entityId", "id"} {
		if v, ok := d[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// EntityType returns the record's entity type, if any.
func (d DataPoint) EntityType() string {
	if v, ok := d["entityType"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Numeric returns the named field coerced to float64. The second return is
// false when the field is absent or not a numeric type. Strings never count
// as numeric, even when they would parse.
func (d DataPoint) Numeric(field string) (float64, bool) {
	v, ok := d[field]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ToFloat coerces the supported numeric representations to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
