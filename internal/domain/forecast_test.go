package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Target
	}{
		{"weeks ahead", "1 wk ahead inc case", Target{Horizon: 1, Unit: "wk", Aggregation: "inc", Type: "case"}},
		{"without ahead", "2 wk inc death", Target{Horizon: 2, Unit: "wk", Aggregation: "inc", Type: "death"}},
		{"days", "3 day ahead cum death", Target{Horizon: 3, Unit: "day", Aggregation: "cum", Type: "death"}},
		{"extra spaces", " 4  wk ahead inc  hosp ", Target{Horizon: 4, Unit: "wk", Aggregation: "inc", Type: "hosp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	invalid := []string{"", "1 wk", "wk ahead inc case", "1 month ahead inc case", "1 wk later inc case", "1 wk ahead inc", "1 wk ahead inc case extra"}
	for _, input := range invalid {
		t.Run("invalid "+input, func(t *testing.T) {
			_, err := ParseTarget(input)

			var parseErr *TargetParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, input, parseErr.Target)
		})
	}
}

func TestTargetDate(t *testing.T) {
	fd := day("2020-06-01")

	assert.Equal(t, day("2020-06-15"), Target{Horizon: 2, Unit: "wk"}.Date(fd))
	assert.Equal(t, day("2020-06-04"), Target{Horizon: 3, Unit: "day"}.Date(fd))
}

func forecastRecord(unit, target string, quantile any, value float64) RawRecord {
	class := "quantile"
	if quantile == nil {
		class = "point"
	}
	return RawRecord{
		ColUnit:         unit,
		ColTarget:       target,
		ColClass:        class,
		ColQuantile:     quantile,
		ColValue:        value,
		ColForecastDate: "2020-06-01",
		ColModelAbbr:    "COVIDhub-ensemble",
	}
}

func rawForecast(records ...RawRecord) RawTable {
	return RawTable{
		Columns: []string{ColUnit, ColTarget, ColClass, ColQuantile, ColValue, ColForecastDate, ColModelAbbr},
		Records: records,
	}
}

// reshapeForecast runs the forecast steps in pipeline order.
func reshapeForecast(t *testing.T, raw RawTable, report *Report) Table {
	t.Helper()
	annotated, err := AnnotateTargets(raw)
	require.NoError(t, err)
	stage1, err := PivotTargetTypes(FilterForecastRows(annotated, discardLogger(), report))
	require.NoError(t, err)
	mapped, err := ForecastSchema.Map(stage1)
	require.NoError(t, err)
	resolved := DropUnresolvedRegions(mapped, testReference(), discardLogger(), report)
	wide, err := PivotQuantiles(resolved)
	require.NoError(t, err)
	out, err := Finalize(wide, ForecastKeys)
	require.NoError(t, err)
	return out
}

func TestForecastPivot(t *testing.T) {
	t.Run("quantiles become columns", func(t *testing.T) {
		raw := rawForecast(
			forecastRecord("06", "1 wk ahead inc case", 0.1, 100),
			forecastRecord("06", "1 wk ahead inc case", 0.5, 150),
			forecastRecord("06", "1 wk ahead inc case", 0.9, 200),
			forecastRecord("US", "1 wk ahead inc case", 0.5, 9000),
			forecastRecord("06", "1 wk ahead cum case", 0.5, 5000),
			forecastRecord("06", "1 wk ahead inc case", nil, 150),
			forecastRecord("06", "5 wk ahead inc case", 0.5, 175),
		)
		report := NewReport("forecast_hub")

		got := reshapeForecast(t, raw, report)

		assert.Equal(t, []Field{
			FieldFIPS, FieldDate, FieldModelAbbr, FieldForecastDate,
			"weekly_new_cases_0.1", "weekly_new_cases_0.5", "weekly_new_cases_0.9",
		}, got.Columns)
		require.Equal(t, 1, got.Len())
		row := got.Rows[0]
		assert.Equal(t, "06", row[FieldFIPS])
		assert.Equal(t, day("2020-06-08"), row[FieldDate])
		assert.Equal(t, day("2020-06-01"), row[FieldForecastDate])
		assert.Equal(t, "COVIDhub-ensemble", row[FieldModelAbbr])
		assert.Equal(t, 100.0, row["weekly_new_cases_0.1"])
		assert.Equal(t, 150.0, row["weekly_new_cases_0.5"])
		assert.Equal(t, 200.0, row["weekly_new_cases_0.9"])
		assert.Equal(t, 4, report.Dropped[DropForecastFilter])
	})

	t.Run("cases and deaths crossed with quantiles", func(t *testing.T) {
		raw := rawForecast(
			forecastRecord("06037", "2 wk ahead inc case", 0.025, 10),
			forecastRecord("06037", "2 wk ahead inc death", 0.025, 1),
			forecastRecord("06037", "2 wk ahead inc death", 0.5, 2),
			forecastRecord("6037", "4 wk ahead inc case", 0.5, 30),
		)

		got := reshapeForecast(t, raw, nil)

		assert.Equal(t, []Field{
			FieldFIPS, FieldDate, FieldModelAbbr, FieldForecastDate,
			"weekly_new_cases_0.025", "weekly_new_cases_0.5",
			"weekly_new_deaths_0.025", "weekly_new_deaths_0.5",
		}, got.Columns)
		require.Equal(t, 2, got.Len())
		assert.Equal(t, day("2020-06-15"), got.Rows[0][FieldDate])
		assert.Equal(t, 10.0, got.Rows[0]["weekly_new_cases_0.025"])
		assert.Nil(t, got.Rows[0]["weekly_new_cases_0.5"])
		assert.Equal(t, 2.0, got.Rows[0]["weekly_new_deaths_0.5"])
		assert.Equal(t, day("2020-06-29"), got.Rows[1][FieldDate])
		assert.Equal(t, 30.0, got.Rows[1]["weekly_new_cases_0.5"])
	})

	t.Run("unknown target types dropped by mapping", func(t *testing.T) {
		raw := rawForecast(
			forecastRecord("06", "1 day ahead inc hosp", 0.5, 3),
			forecastRecord("06", "1 wk ahead inc death", 0.5, 4),
		)

		got := reshapeForecast(t, raw, nil)

		assert.Equal(t, []Field{
			FieldFIPS, FieldDate, FieldModelAbbr, FieldForecastDate, "weekly_new_deaths_0.5",
		}, got.Columns)
	})

	t.Run("unresolved regions dropped", func(t *testing.T) {
		raw := rawForecast(
			forecastRecord("06", "1 wk ahead inc case", 0.5, 1),
			forecastRecord("99", "1 wk ahead inc case", 0.5, 2),
		)
		report := NewReport("forecast_hub")

		got := reshapeForecast(t, raw, report)

		require.Equal(t, 1, got.Len())
		assert.Equal(t, 1, report.Dropped[DropUnresolvedRegion])
	})
}

func TestForecastErrors(t *testing.T) {
	t.Run("bad target", func(t *testing.T) {
		_, err := AnnotateTargets(rawForecast(forecastRecord("06", "next week", 0.5, 1)))

		var parseErr *TargetParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "next week", parseErr.Target)
	})

	t.Run("missing target column", func(t *testing.T) {
		_, err := AnnotateTargets(RawTable{Columns: []string{ColUnit, ColValue, ColForecastDate}})

		var missing *MissingColumnError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, ColTarget, missing.Column)
	})

	t.Run("duplicate target value", func(t *testing.T) {
		annotated, err := AnnotateTargets(rawForecast(
			forecastRecord("06", "1 wk ahead inc case", 0.5, 1),
			forecastRecord("06", "1 wk inc case", "0.5", 2),
		))
		require.NoError(t, err)

		_, err = PivotTargetTypes(annotated)

		var dup *DuplicateKeyError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, Field("case"), dup.Column)
		assert.Contains(t, err.Error(), "quantile=0.5")
	})
}

func TestQuantileColumn(t *testing.T) {
	assert.Equal(t, Field("weekly_new_cases_0.025"), QuantileColumn(FieldWeeklyNewCases, 0.025))
	assert.Equal(t, Field("weekly_new_deaths_0.5"), QuantileColumn(FieldWeeklyNewDeaths, 0.5))
	assert.Equal(t, Field("weekly_new_deaths_0.99"), QuantileColumn(FieldWeeklyNewDeaths, 0.99))
}
