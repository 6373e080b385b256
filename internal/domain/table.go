package domain

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used by every feed and the output.
const DateLayout = "2006-01-02"

// RawRecord is one source row keyed by the source's native column names.
// Values are untyped scalars as delivered by the adapter.
type RawRecord map[string]any

// RawTable is the record set a source adapter hands to the pipeline.
type RawTable struct {
	Columns []string
	Records []RawRecord
}

// HasColumn reports whether the raw table carries the named column.
func (t RawTable) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Row is one canonical row. A missing key and a nil value both mean null.
type Row map[Field]any

// Table is an ordered set of canonical rows with an ordered column list.
type Table struct {
	Columns []Field
	Rows    []Row
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// HasColumn reports whether f is one of the table's columns.
func (t Table) HasColumn(f Field) bool {
	return slices.Contains(t.Columns, f)
}

// WithColumn returns the column list with f appended if it is missing.
func (t Table) WithColumn(f Field) Table {
	if !t.HasColumn(f) {
		t.Columns = append(slices.Clone(t.Columns), f)
	}
	return t
}

// Partition splits the rows into those matching keep and the rest.
// Both results share the receiver's columns.
func (t Table) Partition(keep func(Row) bool) (kept, rest Table) {
	kept = Table{Columns: t.Columns}
	rest = Table{Columns: t.Columns}
	for _, r := range t.Rows {
		if keep(r) {
			kept.Rows = append(kept.Rows, r)
		} else {
			rest.Rows = append(rest.Rows, r)
		}
	}
	return kept, rest
}

// Concat appends the rows of others, merging column lists in first-seen order.
func Concat(tables ...Table) Table {
	var out Table
	for _, t := range tables {
		for _, c := range t.Columns {
			out = out.WithColumn(c)
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsNull reports whether the field is absent or nil.
func (r Row) IsNull(f Field) bool {
	v, ok := r[f]
	return !ok || v == nil
}

// Text returns the field as a string.
func (r Row) Text(f Field) (string, bool) {
	s, ok := r[f].(string)
	return s, ok
}

// Date returns the field as a calendar date.
func (r Row) Date(f Field) (time.Time, bool) {
	d, ok := r[f].(time.Time)
	return d, ok
}

// Number returns the field as a float64.
func (r Row) Number(f Field) (float64, bool) {
	n, ok := r[f].(float64)
	return n, ok
}

// Coerce converts an untyped source value to the representation used for
// fields of the given kind: string, UTC midnight time.Time, or float64.
// Empty and unparseable values become nil.
func Coerce(kind Kind, v any) any {
	if v == nil {
		return nil
	}
	switch kind {
	case KindDate:
		return coerceDate(v)
	case KindNumber:
		if f, ok := toFloat(v); ok {
			return f
		}
		return nil
	default:
		return coerceText(v)
	}
}

func coerceDate(v any) any {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return truncateDay(x)
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil
		}
		if d, err := time.Parse(DateLayout, x); err == nil {
			return d
		}
		if len(x) >= len(DateLayout) {
			if d, err := time.Parse(DateLayout, x[:len(DateLayout)]); err == nil {
				return d
			}
		}
		return nil
	default:
		return nil
	}
}

func coerceText(v any) any {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return nil
	}
}

// toFloat reads numeric values delivered as Go numbers, json.Number or
// numeric strings. NaN is treated as null.
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
