package graph

import (
	"fmt"
	"time"
)

// Record groups key-value pairs returned from the graph engine.
type Record map[string]any

// Map returns the nested map stored under key, as produced by a cypher map
// projection such as `RETURN c {.*} AS row`.
func (r Record) Map(key string) Record {
	switch v := r[key].(type) {
	case map[string]any:
		return Record(v)
	case Record:
		return v
	default:
		return nil
	}
}

// String returns the value under key as a string, or "".
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Int returns integral values under key; the Bolt driver yields int64.
func (r Record) Int(key string) int {
	switch v := r[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Bool returns the value under key, false when absent.
func (r Record) Bool(key string) bool {
	v, _ := r[key].(bool)
	return v
}

// Strings returns a list property. Lists come back from the driver as []any.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Time parses RFC 3339 strings and passes native temporal values through.
// The zero time is returned when the value is absent or unparseable.
func (r Record) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		if v == "" {
			return time.Time{}
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// FormatTime renders t the way Time reads it back.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
