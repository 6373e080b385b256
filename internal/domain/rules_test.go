package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	require.Len(t, rules.DateShifts, 1)
	assert.Equal(t, "48", rules.DateShifts[0].FIPSPrefix)
	assert.Equal(t, LevelCounty, rules.DateShifts[0].Level)
	assert.Equal(t, 1, rules.DateShifts[0].Days)

	require.Len(t, rules.BadValues, 1)
	assert.Equal(t, "12", rules.BadValues[0].FIPS)
	assert.Equal(t, FieldCurrentICU, rules.BadValues[0].Field)
	assert.Equal(t, day("2020-05-14"), rules.BadValues[0].Start.Time)
	assert.Equal(t, day("2020-05-20"), rules.BadValues[0].End.Time)

	require.Len(t, rules.FieldExclusions, 1)
	assert.ElementsMatch(t,
		[]Field{FieldICUBeds, FieldHospitalBedsInUseAny, FieldStaffedBeds, FieldCurrentICUTotal},
		rules.FieldExclusions[0].Fields)

	assert.Empty(t, rules.Backfills)
}

func TestParseRules(t *testing.T) {
	t.Run("backfill defaults to cases", func(t *testing.T) {
		rules, err := ParseRules([]byte(`
backfills:
  - fips: "06037"
    date: 2020-07-24
    amount: 100
`))
		require.NoError(t, err)
		require.Len(t, rules.Backfills, 1)
		assert.Equal(t, FieldCases, rules.Backfills[0].Field)
		assert.Equal(t, day("2020-07-24"), rules.Backfills[0].Date.Time)
		assert.Equal(t, 100.0, rules.Backfills[0].Amount)
	})

	t.Run("collects every validation error", func(t *testing.T) {
		_, err := ParseRules([]byte(`
date_shifts:
  - name: broken
    days: 0
backfills:
  - fips: "06"
    date: 2020-07-24
    amount: 1
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fips_prefix is required")
		assert.Contains(t, err.Error(), "days must be positive")
		assert.Contains(t, err.Error(), "must be a county code")
	})

	t.Run("invalid date", func(t *testing.T) {
		_, err := ParseRules([]byte(`
bad_values:
  - name: x
    fips: "12"
    field: current_icu
    start: yesterday
    end: 2020-05-20
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid date")
	})
}

func TestRulesForSource(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	covid := rules.ForSource("covid_us")
	assert.Len(t, covid.DateShifts, 1)
	assert.Len(t, covid.BadValues, 1)
	assert.Len(t, covid.FieldExclusions, 1)

	usafacts := rules.ForSource("usafacts_covid")
	assert.Empty(t, usafacts.DateShifts)
	assert.Empty(t, usafacts.BadValues)
	assert.Empty(t, usafacts.FieldExclusions)
}

func TestBackfillRuleMatches(t *testing.T) {
	rule := BackfillRule{FIPS: "06037", Date: Day{day("2020-04-02")}}

	assert.True(t, rule.Matches(Row{FieldFIPS: "06037", FieldDate: day("2020-04-02")}))
	assert.False(t, rule.Matches(Row{FieldFIPS: "06", FieldDate: day("2020-04-03")}), "state rows are not adjusted")
	assert.False(t, rule.Matches(Row{FieldFIPS: "06037", FieldDate: day("2020-04-01")}))
	assert.False(t, rule.Matches(Row{FieldFIPS: "06001", FieldDate: day("2020-04-03")}))
}
