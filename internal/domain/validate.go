package domain

import (
	"errors"
	"fmt"
	"slices"
)

// KeysFor returns the row key of a finished output table: the forecast key
// when the table carries model columns, the timeseries key otherwise.
func KeysFor(t Table) []Field {
	if t.HasColumn(FieldModelAbbr) {
		return ForecastKeys
	}
	return TimeseriesKeys
}

// Validate re-checks a finished output table: key columns present and first,
// remaining columns sorted, no null keys, valid FIPS widths, case rows
// carrying a state, and unique keys. All violations are reported together.
func Validate(t Table, keys []Field) error {
	var errs []error
	for _, k := range keys {
		if !t.HasColumn(k) {
			errs = append(errs, &MissingColumnError{Column: string(k)})
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if want := SortColumns(t, keys).Columns; !slices.Equal(want, t.Columns) {
		errs = append(errs, fmt.Errorf("columns out of order: got %v, want %v", t.Columns, want))
	}

	needState := t.HasColumn(FieldState) && !slices.Contains(keys, FieldModelAbbr)
	for i, r := range t.Rows {
		line := i + 2 // header is line 1
		for _, k := range keys {
			if r.IsNull(k) {
				errs = append(errs, fmt.Errorf("line %d: null %s", line, k))
			}
		}
		if fips, ok := r.Text(FieldFIPS); ok && len(fips) != StateFIPSLen && len(fips) != CountyFIPSLen {
			errs = append(errs, fmt.Errorf("line %d: invalid fips %q", line, fips))
		}
		if needState && r.IsNull(FieldState) {
			errs = append(errs, fmt.Errorf("line %d: null %s", line, FieldState))
		}
	}
	if err := CheckUnique(t, keys); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
