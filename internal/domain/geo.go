package domain

import (
	"log/slog"
	"slices"
)

// CountyRef is one row of the county reference table.
type CountyRef struct {
	FIPS       string
	State      string
	Name       string
	Population float64
}

// StateRef is one row of the state reference table.
type StateRef struct {
	FIPS string
	Abbr string
	Name string
}

// ReferenceData holds the read-only lookups used to resolve FIPS codes.
type ReferenceData struct {
	Counties map[string]CountyRef
	States   map[string]StateRef
}

// NewReferenceData indexes reference rows by FIPS.
func NewReferenceData(counties []CountyRef, states []StateRef) *ReferenceData {
	ref := &ReferenceData{
		Counties: make(map[string]CountyRef, len(counties)),
		States:   make(map[string]StateRef, len(states)),
	}
	for _, c := range counties {
		ref.Counties[c.FIPS] = c
	}
	for _, s := range states {
		ref.States[s.FIPS] = s
	}
	return ref
}

// Resolves reports whether a FIPS code exists in the reference tables.
func (r *ReferenceData) Resolves(fips string) bool {
	switch len(fips) {
	case CountyFIPSLen:
		_, ok := r.Counties[fips]
		return ok
	case StateFIPSLen:
		_, ok := r.States[fips]
		return ok
	default:
		return false
	}
}

// SplitRegions partitions rows by FIPS width into county rows (5 digits) and
// state rows (2 digits). Rows with any other FIPS value are dropped; rows with
// a null FIPS stay with the states so the null-key filter reports them.
func SplitRegions(t Table, logger *slog.Logger, report *Report) (counties, states Table) {
	counties = Table{Columns: t.Columns}
	states = Table{Columns: t.Columns}
	var unsupported []string
	for _, r := range t.Rows {
		fips, ok := r.Text(FieldFIPS)
		switch {
		case !ok:
			states.Rows = append(states.Rows, r)
		case len(fips) == CountyFIPSLen:
			counties.Rows = append(counties.Rows, r)
		case len(fips) == StateFIPSLen:
			states.Rows = append(states.Rows, r)
		default:
			unsupported = append(unsupported, fips)
		}
	}
	if len(unsupported) > 0 {
		logger.Warn("dropping rows with unsupported fips width", "fips", distinct(unsupported))
		report.drop(DropUnsupportedFIPS, len(unsupported))
	}
	return counties, states
}

// ResolveCounties joins county rows to the county reference table. Rows whose
// FIPS is not in the table are dropped with a single warning; survivors gain
// STATE, COUNTY, COUNTRY and AGGREGATE_LEVEL="county".
func ResolveCounties(t Table, ref *ReferenceData, logger *slog.Logger, report *Report) Table {
	out := Table{Columns: withGeoColumns(t.Columns, FieldState, FieldCounty)}
	var missing []string
	for _, r := range t.Rows {
		fips, _ := r.Text(FieldFIPS)
		c, ok := ref.Counties[fips]
		if !ok {
			missing = append(missing, fips)
			continue
		}
		row := r.Clone()
		row[FieldState] = c.State
		row[FieldCounty] = c.Name
		row[FieldCountry] = Country
		row[FieldAggregateLevel] = LevelCounty
		out.Rows = append(out.Rows, row)
	}
	if len(missing) > 0 {
		logger.Warn("some counties did not match by fips", "bad_fips", distinct(missing))
		report.drop(DropUnmatchedCounty, len(missing))
	}
	return out
}

// ResolveStates joins state rows to the state reference table. A miss leaves
// STATE null; the null-key filter removes such rows later. All rows gain
// COUNTRY and AGGREGATE_LEVEL="state".
func ResolveStates(t Table, ref *ReferenceData) Table {
	out := Table{Columns: withGeoColumns(t.Columns, FieldState)}
	out.Rows = make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := r.Clone()
		fips, _ := r.Text(FieldFIPS)
		if s, ok := ref.States[fips]; ok {
			row[FieldState] = s.Abbr
		} else {
			row[FieldState] = nil
		}
		row[FieldCountry] = Country
		row[FieldAggregateLevel] = LevelState
		out.Rows = append(out.Rows, row)
	}
	return out
}

// ResolveGeography splits a table by region type and enriches each partition
// from the reference data. Counties and states are joined separately so a
// 2-digit and a 5-digit code never share a lookup.
func ResolveGeography(t Table, ref *ReferenceData, logger *slog.Logger, report *Report) (counties, states Table) {
	counties, states = SplitRegions(t, logger, report)
	return ResolveCounties(counties, ref, logger, report), ResolveStates(states, ref)
}

func withGeoColumns(cols []Field, extra ...Field) []Field {
	out := slices.Clone(cols)
	for _, f := range append(extra, FieldCountry, FieldAggregateLevel) {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}
