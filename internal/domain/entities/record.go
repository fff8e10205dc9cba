// Package entities contains core domain data structures.
package entities

import (
	"strconv"
	"strings"
	"time"
)

// Record is a single row of a dataset collection. Apart from the id and the
// recency fields it is an opaque key/value bag.
type Record map[string]any

// Field names the synchronizer reads from records.
const (
	FieldID        = "id"
	FieldUpdatedAt = "updatedAt"
	FieldFecha     = "fecha"
)

// recencyLayouts are the textual date formats accepted as recency signals.
var recencyLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ID returns the record id, or "" when the record has none.
func (r Record) ID() string {
	switch v := r[FieldID].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Recency returns the record's recency signal in Unix milliseconds.
// updatedAt wins over fecha; a record with neither is treated as oldest (0).
func (r Record) Recency() float64 {
	if ms := signalValue(r[FieldUpdatedAt]); ms != 0 {
		return ms
	}
	return signalValue(r[FieldFecha])
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// signalValue converts a recency field to milliseconds. Unparseable values count as 0.
func signalValue(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case time.Time:
		return float64(t.UnixMilli())
	case string:
		return parseSignal(t)
	default:
		return 0
	}
}

func parseSignal(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	for _, layout := range recencyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UnixMilli())
		}
	}
	return 0
}
