package domain

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Raw Forecast Hub columns.
const (
	ColUnit         = "unit"
	ColTarget       = "target"
	ColClass        = "class"
	ColQuantile     = "quantile"
	ColValue        = "value"
	ColForecastDate = "forecast_date"
	ColModelAbbr    = "model_abbr"
	ColTargetDate   = "target_date"

	colTargetType = "target_type"
	colAggregate  = "target_summation"
)

// NationalUnit is the Forecast Hub region code of the national forecast.
const NationalUnit = "US"

// ForecastHorizon is the furthest target kept, relative to the forecast date.
const ForecastHorizon = 4 * 7 * 24 * time.Hour

// Target is a parsed forecast target descriptor such as "2 wk ahead inc death".
type Target struct {
	Horizon     int
	Unit        string
	Aggregation string
	Type        string
}

// ParseTarget parses "<N> <wk|day> [ahead] <inc|cum> <type>".
func ParseTarget(s string) (Target, error) {
	tokens := strings.Fields(s)
	if len(tokens) != 4 && len(tokens) != 5 {
		return Target{}, &TargetParseError{Target: s, Reason: fmt.Sprintf("expected 4 or 5 tokens, got %d", len(tokens))}
	}
	n, err := strconv.Atoi(tokens[0])
	if err != nil || n < 0 {
		return Target{}, &TargetParseError{Target: s, Reason: "horizon is not a non-negative integer"}
	}
	unit := tokens[1]
	if unit != "wk" && unit != "day" {
		return Target{}, &TargetParseError{Target: s, Reason: fmt.Sprintf("unknown horizon unit %q", unit)}
	}
	if len(tokens) == 5 && tokens[2] != "ahead" {
		return Target{}, &TargetParseError{Target: s, Reason: fmt.Sprintf("unexpected token %q", tokens[2])}
	}
	if len(tokens) == 4 && tokens[2] == "ahead" {
		return Target{}, &TargetParseError{Target: s, Reason: "missing target type"}
	}
	return Target{
		Horizon:     n,
		Unit:        unit,
		Aggregation: tokens[len(tokens)-2],
		Type:        tokens[len(tokens)-1],
	}, nil
}

// Date returns the date the target refers to for a forecast made on forecastDate.
func (t Target) Date(forecastDate time.Time) time.Time {
	if t.Unit == "day" {
		return forecastDate.AddDate(0, 0, t.Horizon)
	}
	return forecastDate.AddDate(0, 0, 7*t.Horizon)
}

// AnnotateTargets parses every record's target and adds target_date,
// target_type and target_summation. A record without a parseable
// forecast_date or target is fatal.
func AnnotateTargets(raw RawTable) (RawTable, error) {
	for _, col := range []string{ColTarget, ColForecastDate, ColValue} {
		if !raw.HasColumn(col) {
			return RawTable{}, &MissingColumnError{Column: col}
		}
	}
	out := RawTable{Columns: slices.Clone(raw.Columns)}
	for _, col := range []string{ColTargetDate, colTargetType, colAggregate} {
		if !out.HasColumn(col) {
			out.Columns = append(out.Columns, col)
		}
	}
	out.Records = make([]RawRecord, len(raw.Records))
	for i, rec := range raw.Records {
		desc, _ := rec[ColTarget].(string)
		target, err := ParseTarget(desc)
		if err != nil {
			return RawTable{}, err
		}
		fd, ok := Coerce(KindDate, rec[ColForecastDate]).(time.Time)
		if !ok {
			return RawTable{}, &TargetParseError{Target: desc, Reason: fmt.Sprintf("invalid forecast_date %v", rec[ColForecastDate])}
		}
		r := make(RawRecord, len(rec)+3)
		for k, v := range rec {
			r[k] = v
		}
		r[ColForecastDate] = fd
		r[ColTargetDate] = target.Date(fd)
		r[colTargetType] = target.Type
		r[colAggregate] = target.Aggregation
		out.Records[i] = r
	}
	return out, nil
}

// FilterForecastRows keeps sub-national, quantile, incidence rows whose
// target lies within ForecastHorizon of the forecast date. Records must have
// been annotated by AnnotateTargets.
func FilterForecastRows(raw RawTable, logger *slog.Logger, report *Report) RawTable {
	out := RawTable{Columns: raw.Columns}
	for _, rec := range raw.Records {
		if keepForecastRecord(rec) {
			out.Records = append(out.Records, rec)
		}
	}
	if dropped := len(raw.Records) - len(out.Records); dropped > 0 {
		logger.Debug("filtered forecast rows", "dropped", dropped, "kept", len(out.Records))
		report.drop(DropForecastFilter, dropped)
	}
	return out
}

func keepForecastRecord(rec RawRecord) bool {
	if unit := Coerce(KindText, rec[ColUnit]); unit == nil || unit == NationalUnit {
		return false
	}
	if Coerce(KindNumber, rec[ColQuantile]) == nil {
		return false
	}
	if rec[colAggregate] != "inc" {
		return false
	}
	fd, _ := rec[ColForecastDate].(time.Time)
	td, _ := rec[ColTargetDate].(time.Time)
	return !td.After(fd.Add(ForecastHorizon))
}

// PivotTargetTypes turns the long (target_type, value) pairs into one value
// column per target type, keyed by model, unit, forecast date, target date
// and quantile. Output columns are the key columns followed by the target
// types in name order.
func PivotTargetTypes(raw RawTable) (RawTable, error) {
	keyCols := []string{ColModelAbbr, ColUnit, ColForecastDate, ColTargetDate, ColQuantile}
	for _, col := range []string{ColModelAbbr, ColUnit} {
		if !raw.HasColumn(col) {
			return RawTable{}, &MissingColumnError{Column: col}
		}
	}

	index := make(map[string]int)
	var out []RawRecord
	types := make(map[string]bool)
	for _, rec := range raw.Records {
		typ, _ := rec[colTargetType].(string)
		if typ == "" {
			continue
		}
		types[typ] = true

		rec = normalizeForecastKey(rec)
		values := make([]string, len(keyCols))
		for i, c := range keyCols {
			values[i] = formatValue(rec[c])
		}
		k := strings.Join(values, "\x1f")
		i, ok := index[k]
		if !ok {
			row := make(RawRecord, len(keyCols)+2)
			for _, c := range keyCols {
				row[c] = rec[c]
			}
			i = len(out)
			index[k] = i
			out = append(out, row)
		}
		if _, dup := out[i][typ]; dup {
			return RawTable{}, &DuplicateKeyError{
				Keys:   []Field{FieldModelAbbr, FieldFIPS, FieldForecastDate, FieldDate, FieldQuantile},
				Values: values,
				Column: Field(typ),
			}
		}
		out[i][typ] = Coerce(KindNumber, rec[ColValue])
	}

	cols := slices.Clone(keyCols)
	cols = append(cols, sortedKeys(types)...)
	return RawTable{Columns: cols, Records: out}, nil
}

// normalizeForecastKey coerces the key values so that "0.5" and 0.5, or
// "06" and 6, group together.
func normalizeForecastKey(rec RawRecord) RawRecord {
	r := make(RawRecord, len(rec))
	for k, v := range rec {
		r[k] = v
	}
	r[ColModelAbbr] = Coerce(KindText, rec[ColModelAbbr])
	r[ColUnit] = FIPSFromCode(rec[ColUnit])
	r[ColQuantile] = Coerce(KindNumber, rec[ColQuantile])
	return r
}

// DropUnresolvedRegions removes forecast rows whose FIPS is not a known state
// or county code.
func DropUnresolvedRegions(t Table, ref *ReferenceData, logger *slog.Logger, report *Report) Table {
	kept, bad := t.Partition(func(r Row) bool {
		fips, ok := r.Text(FieldFIPS)
		return ok && ref.Resolves(fips)
	})
	if bad.Len() > 0 {
		var codes []string
		for _, r := range bad.Rows {
			codes = append(codes, formatValue(r[FieldFIPS]))
		}
		logger.Warn("some forecast regions did not match by fips", "bad_fips", distinct(codes))
		report.drop(DropUnresolvedRegion, bad.Len())
	}
	return kept
}

// PivotQuantiles folds the quantile into the value column names, producing
// one row per (fips, date, model, forecast date) with columns named
// "<field>_<quantile>". Every value column is crossed with every quantile
// seen; missing combinations are null.
func PivotQuantiles(t Table) (Table, error) {
	keys := ForecastKeys
	var valueCols []Field
	for _, c := range t.Columns {
		if c != FieldQuantile && !slices.Contains(keys, c) {
			valueCols = append(valueCols, c)
		}
	}

	var quantiles []float64
	index := make(map[string]int)
	out := Table{Columns: slices.Clone(keys)}
	for _, r := range t.Rows {
		q, ok := r.Number(FieldQuantile)
		if !ok {
			continue
		}
		if !slices.Contains(quantiles, q) {
			quantiles = append(quantiles, q)
		}
		k := keyString(r, keys)
		i, seen := index[k]
		if !seen {
			row := make(Row, len(keys))
			for _, key := range keys {
				row[key] = r[key]
			}
			i = len(out.Rows)
			index[k] = i
			out.Rows = append(out.Rows, row)
		}
		for _, c := range valueCols {
			col := QuantileColumn(c, q)
			if _, dup := out.Rows[i][col]; dup {
				return Table{}, &DuplicateKeyError{Keys: keys, Values: keyValues(r, keys), Column: col}
			}
			out.Rows[i][col] = r[c]
		}
	}

	slices.Sort(quantiles)
	for _, c := range valueCols {
		for _, q := range quantiles {
			out.Columns = append(out.Columns, QuantileColumn(c, q))
		}
	}
	return out, nil
}

// QuantileColumn names the wide column holding field at quantile q.
func QuantileColumn(f Field, q float64) Field {
	return Field(string(f) + "_" + strconv.FormatFloat(q, 'f', -1, 64))
}
