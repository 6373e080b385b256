package domain

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Finalize puts a table into its canonical output shape: key columns first,
// the remaining columns sorted by name, rows ordered by key. It fails with a
// DuplicateKeyError if two rows share a key. It must run after every step
// that can add, remove or rewrite rows.
func Finalize(t Table, keys []Field) (Table, error) {
	t = SortColumns(t, keys)
	rows := slices.Clone(t.Rows)
	slices.SortStableFunc(rows, func(a, b Row) int { return compareKeys(a, b, keys) })
	t.Rows = rows
	if err := CheckUnique(t, keys); err != nil {
		return Table{}, err
	}
	return t, nil
}

// SortColumns orders the key columns first, in key order, followed by every
// other column sorted by name.
func SortColumns(t Table, keys []Field) Table {
	cols := make([]Field, 0, len(t.Columns))
	cols = append(cols, keys...)
	var rest []Field
	for _, c := range t.Columns {
		if !slices.Contains(keys, c) {
			rest = append(rest, c)
		}
	}
	slices.Sort(rest)
	t.Columns = append(cols, rest...)
	return t
}

// CheckUnique verifies that no two rows share the same key tuple.
func CheckUnique(t Table, keys []Field) error {
	seen := make(map[string]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		k := keyString(r, keys)
		if _, dup := seen[k]; dup {
			return &DuplicateKeyError{Keys: keys, Values: keyValues(r, keys)}
		}
		seen[k] = struct{}{}
	}
	return nil
}

func keyString(r Row, keys []Field) string {
	return strings.Join(keyValues(r, keys), "\x1f")
}

func keyValues(r Row, keys []Field) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = formatValue(r[k])
	}
	return out
}

func compareKeys(a, b Row, keys []Field) int {
	for _, k := range keys {
		if c := compareValues(a[k], b[k]); c != 0 {
			return c
		}
	}
	return 0
}

// compareValues orders nulls first, then values of the same type naturally.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	}
	return strings.Compare(formatValue(a), formatValue(b))
}

// FormatValue renders a canonical value the way the output table stores it:
// dates as YYYY-MM-DD, numbers with up to 12 significant digits, null as "".
func FormatValue(v any) string {
	return formatValue(v)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(DateLayout)
	case float64:
		return strconv.FormatFloat(x, 'g', 12, 64)
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'g', 12, 64)
		}
		return ""
	}
}
