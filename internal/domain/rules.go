package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Day is a calendar date decoded from "YYYY-MM-DD".
type Day struct{ time.Time }

func (d *Day) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid date %q", value.Line, value.Value)
	}
	d.Time = t
	return nil
}

// Rules is the maintained list of region-specific exceptions. Each rule
// pairs a row predicate with an effect so new regions or windows can be added
// without touching the transformation code.
type Rules struct {
	DateShifts      []DateShiftRule      `yaml:"date_shifts"`
	BadValues       []BadValueRule       `yaml:"bad_values"`
	Backfills       []BackfillRule       `yaml:"backfills"`
	FieldExclusions []FieldExclusionRule `yaml:"field_exclusions"`
}

// DateShiftRule moves numeric values of a region back by Days observations.
type DateShiftRule struct {
	Name       string   `yaml:"name"`
	FIPSPrefix string   `yaml:"fips_prefix"`
	Level      string   `yaml:"aggregate_level"`
	Days       int      `yaml:"days"`
	Sources    []string `yaml:"sources"`
}

// Matches reports whether a row belongs to the shifted region.
func (r DateShiftRule) Matches(row Row) bool {
	fips, ok := row.Text(FieldFIPS)
	if !ok || !strings.HasPrefix(fips, r.FIPSPrefix) {
		return false
	}
	return r.Level == "" || row[FieldAggregateLevel] == r.Level
}

// BadValueRule nulls one field for one region over an inclusive date range.
type BadValueRule struct {
	Name    string   `yaml:"name"`
	FIPS    string   `yaml:"fips"`
	Field   Field    `yaml:"field"`
	Start   Day      `yaml:"start"`
	End     Day      `yaml:"end"`
	Sources []string `yaml:"sources"`
}

// Matches reports whether a row falls inside the bad-value window.
func (r BadValueRule) Matches(row Row) bool {
	if row[FieldFIPS] != r.FIPS {
		return false
	}
	d, ok := row.Date(FieldDate)
	return ok && !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

// BackfillRule records a one-time upstream backfill: Amount was added to a
// county's cumulative Field on Date and is removed from that date onwards.
type BackfillRule struct {
	FIPS    string   `yaml:"fips"`
	Date    Day      `yaml:"date"`
	Field   Field    `yaml:"field"`
	Amount  float64  `yaml:"amount"`
	Note    string   `yaml:"note"`
	Sources []string `yaml:"sources"`
}

// Matches reports whether a row is the rule's county on or after the
// backfill date. State rows are never adjusted.
func (r BackfillRule) Matches(row Row) bool {
	if row[FieldFIPS] != r.FIPS {
		return false
	}
	d, ok := row.Date(FieldDate)
	return ok && !d.Before(r.Date.Time)
}

// FieldExclusionRule nulls fields that a source reports unreliably at one
// aggregation level.
type FieldExclusionRule struct {
	Level   string   `yaml:"aggregate_level"`
	Fields  []Field  `yaml:"fields"`
	Reason  string   `yaml:"reason"`
	Sources []string `yaml:"sources"`
}

// Matches reports whether a row is at the excluded aggregation level.
func (r FieldExclusionRule) Matches(row Row) bool {
	return row[FieldAggregateLevel] == r.Level
}

// DefaultRules returns the rule list compiled into the binary.
func DefaultRules() (Rules, error) {
	return ParseRules(defaultRules)
}

// ParseRules decodes and validates a YAML rule list.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := r.validate(); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	for i := range r.Backfills {
		if r.Backfills[i].Field == "" {
			r.Backfills[i].Field = FieldCases
		}
	}
	return r, nil
}

func (r Rules) validate() error {
	var errs []error
	for _, s := range r.DateShifts {
		if s.FIPSPrefix == "" {
			errs = append(errs, fmt.Errorf("date shift %q: fips_prefix is required", s.Name))
		}
		if s.Days < 1 {
			errs = append(errs, fmt.Errorf("date shift %q: days must be positive", s.Name))
		}
	}
	for _, b := range r.BadValues {
		if b.FIPS == "" || b.Field == "" {
			errs = append(errs, fmt.Errorf("bad value %q: fips and field are required", b.Name))
		}
		if b.End.Before(b.Start.Time) {
			errs = append(errs, fmt.Errorf("bad value %q: end before start", b.Name))
		}
	}
	for _, b := range r.Backfills {
		if len(b.FIPS) != CountyFIPSLen {
			errs = append(errs, fmt.Errorf("backfill %q: fips must be a county code", b.FIPS))
		}
		if b.Field != "" && b.Field.Kind() != KindNumber {
			errs = append(errs, fmt.Errorf("backfill %q: field %s is not numeric", b.FIPS, b.Field))
		}
	}
	for _, e := range r.FieldExclusions {
		if e.Level != LevelCounty && e.Level != LevelState {
			errs = append(errs, fmt.Errorf("field exclusion: unknown aggregate_level %q", e.Level))
		}
	}
	return errors.Join(errs...)
}

// ForSource returns the rules that apply to the named source. Rules without
// a sources list apply everywhere.
func (r Rules) ForSource(source string) Rules {
	applies := func(sources []string) bool {
		return len(sources) == 0 || slices.Contains(sources, source)
	}
	var out Rules
	for _, s := range r.DateShifts {
		if applies(s.Sources) {
			out.DateShifts = append(out.DateShifts, s)
		}
	}
	for _, b := range r.BadValues {
		if applies(b.Sources) {
			out.BadValues = append(out.BadValues, b)
		}
	}
	for _, b := range r.Backfills {
		if applies(b.Sources) {
			out.Backfills = append(out.Backfills, b)
		}
	}
	for _, e := range r.FieldExclusions {
		if applies(e.Sources) {
			out.FieldExclusions = append(out.FieldExclusions, e)
		}
	}
	return out
}
