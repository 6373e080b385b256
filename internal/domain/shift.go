package domain

import (
	"log/slog"
	"slices"
)

// ShiftDates corrects regions that report values ahead of the observation
// date. Each FIPS series matched by a rule is ordered by date and its numeric
// columns are moved back by rule.Days observations; the trailing rows left
// without values are dropped. Series are shifted independently so values never
// leak across regions.
func ShiftDates(t Table, rules []DateShiftRule, logger *slog.Logger, report *Report) Table {
	numeric := numericColumns(t.Columns)
	for _, rule := range rules {
		matched, rest := t.Partition(rule.Matches)
		if matched.Len() == 0 {
			continue
		}

		series := groupByFIPS(matched.Rows)
		shifted := make([]Row, 0, matched.Len())
		dropped := 0
		for _, fips := range sortedKeys(series) {
			rows := series[fips]
			slices.SortStableFunc(rows, compareByDate)
			n := len(rows) - rule.Days
			if n < 0 {
				n = 0
			}
			for i := 0; i < n; i++ {
				row := rows[i].Clone()
				for _, c := range numeric {
					row[c] = rows[i+rule.Days][c]
				}
				shifted = append(shifted, row)
			}
			dropped += len(rows) - n
		}

		logger.Info("shifted region dates", "rule", rule.Name, "series", len(series),
			"days", rule.Days, "dropped_rows", dropped)
		report.drop(DropShiftedTail, dropped)
		t = Table{Columns: t.Columns, Rows: append(rest.Rows, shifted...)}
	}
	return t
}

// ApplyFieldExclusions nulls fields a source reports unreliably at a given
// aggregation level.
func ApplyFieldExclusions(t Table, rules []FieldExclusionRule) Table {
	if len(rules) == 0 {
		return t
	}
	out := Table{Columns: t.Columns, Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		row, cloned := r, false
		for _, rule := range rules {
			if !rule.Matches(r) {
				continue
			}
			if !cloned {
				row, cloned = r.Clone(), true
			}
			for _, f := range rule.Fields {
				row[f] = nil
			}
		}
		out.Rows[i] = row
	}
	return out
}

func numericColumns(cols []Field) []Field {
	var out []Field
	for _, c := range cols {
		if c.Kind() == KindNumber {
			out = append(out, c)
		}
	}
	return out
}

func groupByFIPS(rows []Row) map[string][]Row {
	out := make(map[string][]Row)
	for _, r := range rows {
		fips, _ := r.Text(FieldFIPS)
		out[fips] = append(out[fips], r)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func compareByDate(a, b Row) int {
	da, _ := a.Date(FieldDate)
	db, _ := b.Date(FieldDate)
	return da.Compare(db)
}
