package domain

// FieldMapping binds a source column to its canonical field. An empty Field
// marks a column with no canonical counterpart; it is dropped on mapping.
type FieldMapping struct {
	Source   string
	Field    Field
	Required bool
}

// Derivation computes a canonical field from a source column before
// renaming. Derived fields are already in canonical form and bypass renaming.
type Derivation struct {
	Field  Field
	Source string
	Derive func(any) any
}

// Schema is the ordered mapping table for one source.
type Schema struct {
	Name     string
	Mappings []FieldMapping
	Derived  []Derivation
}

// CovidUSSchema maps the CMDC covid_us dataset.
var CovidUSSchema = Schema{
	Name: "covid_us",
	Derived: []Derivation{
		{Field: FieldFIPS, Source: "location", Derive: FIPSFromCode},
	},
	Mappings: []FieldMapping{
		{Source: "location"},
		{Source: "dt", Field: FieldDate, Required: true},

		{Source: "negative_tests_total", Field: FieldNegativeTests},
		{Source: "positive_tests_total", Field: FieldPositiveTests},
		{Source: "tests_total", Field: FieldTotalTests},

		{Source: "active_total"},
		{Source: "cases_total", Field: FieldCases},
		{Source: "cases_confirmed"},
		{Source: "cases_suspected"},
		{Source: "recovered_total", Field: FieldRecovered},
		{Source: "deaths_total", Field: FieldDeaths},
		{Source: "deaths_confirmed"},
		{Source: "deaths_suspected"},

		{Source: "hospital_beds_capacity_count", Field: FieldStaffedBeds},
		{Source: "hospital_beds_in_use_covid_confirmed"},
		{Source: "hospital_beds_in_use_covid_new"},
		{Source: "hospital_beds_in_use_covid_suspected"},
		{Source: "hospital_beds_in_use_any", Field: FieldHospitalBedsInUseAny},
		{Source: "hospital_beds_in_use_covid_total", Field: FieldCurrentHospitalized},
		{Source: "num_hospitals_reporting"},
		{Source: "num_of_hospitals"},

		{Source: "icu_beds_capacity_count", Field: FieldICUBeds},
		{Source: "icu_beds_in_use_covid_confirmed"},
		{Source: "icu_beds_in_use_covid_suspected"},
		{Source: "icu_beds_in_use_any", Field: FieldCurrentICUTotal},
		{Source: "icu_beds_in_use_covid_total", Field: FieldCurrentICU},

		{Source: "ventilators_in_use_any"},
		{Source: "ventilators_capacity_count"},
		{Source: "ventilators_in_use_covid_total", Field: FieldCurrentVentilated},
		{Source: "ventilators_in_use_covid_confirmed"},
		{Source: "ventilators_in_use_covid_suspected"},
	},
}

// USAFactsSchema maps the CMDC usafacts_covid dataset. Its location column is
// itself named "fips" and holds unpadded integers.
var USAFactsSchema = Schema{
	Name: "usafacts_covid",
	Derived: []Derivation{
		{Field: FieldFIPS, Source: "fips", Derive: FIPSFromCode},
	},
	Mappings: []FieldMapping{
		{Source: "dt", Field: FieldDate, Required: true},
		{Source: "cases_total", Field: FieldCases},
		{Source: "deaths_total", Field: FieldDeaths},
	},
}

// ForecastSchema maps the Forecast Hub table after target types have been
// pivoted into the "case" and "death" columns.
var ForecastSchema = Schema{
	Name: "forecast_hub",
	Derived: []Derivation{
		{Field: FieldFIPS, Source: "unit", Derive: FIPSFromCode},
	},
	Mappings: []FieldMapping{
		{Source: "model_abbr", Field: FieldModelAbbr, Required: true},
		{Source: "unit"},
		{Source: "forecast_date", Field: FieldForecastDate, Required: true},
		{Source: "target_date", Field: FieldDate, Required: true},
		{Source: "quantile", Field: FieldQuantile},
		{Source: "case", Field: FieldWeeklyNewCases},
		{Source: "death", Field: FieldWeeklyNewDeaths},
	},
}

// Map narrows a raw table to the schema's canonical columns. Mapped columns
// are renamed and coerced, derived fields are computed, and everything else is
// dropped. Row order and count are preserved. Columns that already carry a
// canonical name produced by this schema pass through, so mapping an
// already-mapped table is a no-op.
func (s Schema) Map(raw RawTable) (Table, error) {
	if err := s.checkRequired(raw); err != nil {
		return Table{}, err
	}

	bySource := make(map[string]Field, len(s.Mappings))
	targets := make(map[string]Field)
	for _, m := range s.Mappings {
		bySource[m.Source] = m.Field
		if m.Field != "" {
			targets[string(m.Field)] = m.Field
		}
	}
	derived := make(map[string]Derivation, len(s.Derived))
	for _, d := range s.Derived {
		derived[string(d.Field)] = d
		targets[string(d.Field)] = d.Field
	}

	// Resolve each raw column once; row loops below only copy values.
	type plan struct {
		source string
		field  Field
	}
	var plans []plan
	out := Table{}
	for _, col := range raw.Columns {
		if _, ok := derived[col]; ok {
			continue
		}
		f, mapped := bySource[col]
		if !mapped {
			f = targets[col]
		}
		if f == "" || out.HasColumn(f) {
			continue
		}
		plans = append(plans, plan{source: col, field: f})
		out.Columns = append(out.Columns, f)
	}
	for _, d := range s.Derived {
		out = out.WithColumn(d.Field)
	}

	out.Rows = make([]Row, len(raw.Records))
	for i, rec := range raw.Records {
		row := make(Row, len(out.Columns))
		for _, p := range plans {
			row[p.field] = Coerce(p.field.Kind(), rec[p.source])
		}
		for _, d := range s.Derived {
			if v, ok := rec[d.Source]; ok {
				row[d.Field] = d.Derive(v)
			} else {
				row[d.Field] = d.Derive(rec[string(d.Field)])
			}
		}
		out.Rows[i] = row
	}
	return out, nil
}

func (s Schema) checkRequired(raw RawTable) error {
	for _, d := range s.Derived {
		if !raw.HasColumn(d.Source) && !raw.HasColumn(string(d.Field)) {
			return &MissingColumnError{Column: d.Source, Field: d.Field}
		}
	}
	for _, m := range s.Mappings {
		if !m.Required {
			continue
		}
		if !raw.HasColumn(m.Source) && !raw.HasColumn(string(m.Field)) {
			return &MissingColumnError{Column: m.Source, Field: m.Field}
		}
	}
	return nil
}

// Raw converts a canonical table back into a raw table keyed by canonical
// names.
func (t Table) Raw() RawTable {
	raw := RawTable{
		Columns: make([]string, len(t.Columns)),
		Records: make([]RawRecord, len(t.Rows)),
	}
	for i, c := range t.Columns {
		raw.Columns[i] = string(c)
	}
	for i, r := range t.Rows {
		rec := make(RawRecord, len(r))
		for k, v := range r {
			rec[string(k)] = v
		}
		raw.Records[i] = rec
	}
	return raw
}
