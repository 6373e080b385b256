package domain

import (
	"log/slog"
	"strings"
	"time"
)

// AncientEpoch is the earliest plausible observation date. Earlier dates are
// upstream sentinels or garbage.
var AncientEpoch = time.Date(2019, time.December, 1, 0, 0, 0, 0, time.UTC)

// CheckStaleness fails when the newest value of the date field is older
// than today minus staleDays. A non-positive staleDays disables the check.
func CheckStaleness(t Table, field Field, staleDays int) error {
	if staleDays <= 0 {
		return nil
	}
	var latest time.Time
	for _, r := range t.Rows {
		if d, ok := r.Date(field); ok && d.After(latest) {
			latest = d
		}
	}
	threshold := Today().AddDate(0, 0, -staleDays)
	if latest.Before(threshold) {
		return &StaleDataError{Latest: latest, Threshold: threshold}
	}
	return nil
}

// FilterQuality applies the row-level quality checks in their required order:
// null keys, ancient dates, known bad values, then backfill removal. Later
// steps rely on the cleanup done by earlier ones.
func FilterQuality(t Table, rules Rules, logger *slog.Logger, report *Report) Table {
	t = DropNullKeys(t, []Field{FieldFIPS, FieldDate, FieldState}, logger, report)
	t = DropAncient(t, logger, report)
	t = ApplyBadValues(t, rules.BadValues, logger, report)
	t = RemoveBackfills(t, rules.Backfills, logger, report)
	return t
}

// DropNullKeys removes rows with a null in any of the key fields. The dropped
// rows are logged in full for operator review.
func DropNullKeys(t Table, keys []Field, logger *slog.Logger, report *Report) Table {
	kept, bad := t.Partition(func(r Row) bool {
		for _, k := range keys {
			if r.IsNull(k) {
				return false
			}
		}
		return true
	})
	if bad.Len() > 0 {
		logger.Warn("dropping rows with null in important columns", "bad_rows", formatRows(bad))
		report.drop(DropNullKey, bad.Len())
	}
	return kept
}

// DropAncient removes rows dated before AncientEpoch.
func DropAncient(t Table, logger *slog.Logger, report *Report) Table {
	kept, ancient := t.Partition(func(r Row) bool {
		d, ok := r.Date(FieldDate)
		return !ok || !d.Before(AncientEpoch)
	})
	if ancient.Len() > 0 {
		logger.Info("dropping rows of ancient data", "bad_rows", formatRows(ancient))
		report.drop(DropAncientDate, ancient.Len())
	}
	return kept
}

// ApplyBadValues nulls the flagged field of every row inside a bad-value
// window. The row itself is kept for its other fields.
func ApplyBadValues(t Table, rules []BadValueRule, logger *slog.Logger, report *Report) Table {
	if len(rules) == 0 {
		return t
	}
	out := Table{Columns: t.Columns, Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		row, cloned := r, false
		for _, rule := range rules {
			if !rule.Matches(r) || row.IsNull(rule.Field) {
				continue
			}
			if !cloned {
				row, cloned = r.Clone(), true
			}
			row[rule.Field] = nil
			if report != nil {
				report.Corrected++
			}
			logger.Debug("nulled known bad value", "rule", rule.Name, "fips", r[FieldFIPS], "date", formatValue(r[FieldDate]))
		}
		out.Rows[i] = row
	}
	return out
}

// RemoveBackfills subtracts each backfilled amount from the county's field
// on and after the backfill date, and from the county's state when state rows
// are present.
func RemoveBackfills(t Table, rules []BackfillRule, logger *slog.Logger, report *Report) Table {
	if len(rules) == 0 {
		return t
	}
	out := Table{Columns: t.Columns, Rows: make([]Row, len(t.Rows))}
	copy(out.Rows, t.Rows)
	for _, rule := range rules {
		adjusted := 0
		for i, r := range out.Rows {
			if !rule.Matches(r) {
				continue
			}
			v, ok := r.Number(rule.Field)
			if !ok {
				continue
			}
			row := r.Clone()
			row[rule.Field] = v - rule.Amount
			out.Rows[i] = row
			adjusted++
		}
		if adjusted > 0 {
			logger.Info("removed backfilled values", "fips", rule.FIPS, "field", rule.Field,
				"date", rule.Date.Format(DateLayout), "amount", rule.Amount, "rows", adjusted)
		}
		if report != nil {
			report.Backfilled += adjusted
		}
	}
	return out
}

func formatRows(t Table) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = formatRow(t.Columns, r)
	}
	return out
}

func formatRow(cols []Field, r Row) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(string(c))
		b.WriteByte('=')
		b.WriteString(formatValue(r[c]))
	}
	return b.String()
}
