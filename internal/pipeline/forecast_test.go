package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covid-projections/covid-data-etl/internal/domain"
	"github.com/covid-projections/covid-data-etl/internal/pipeline"
)

func forecastRaw() domain.RawTable {
	rec := func(unit, target string, quantile any, value float64) domain.RawRecord {
		return domain.RawRecord{
			"unit": unit, "target": target, "class": "quantile", "quantile": quantile, "value": value,
			"forecast_date": "2020-06-01", "model_abbr": "COVIDhub-ensemble",
		}
	}
	return domain.RawTable{
		Columns: []string{"unit", "target", "class", "quantile", "value", "forecast_date", "model_abbr"},
		Records: []domain.RawRecord{
			rec("06", "1 wk ahead inc case", 0.1, 100),
			rec("06", "1 wk ahead inc case", 0.5, 150),
			rec("06", "1 wk ahead inc case", 0.9, 200),
			rec("US", "1 wk ahead inc case", 0.5, 9000),
			rec("06", "1 wk ahead cum case", 0.5, 12000),
			rec("06", "1 wk ahead inc case", nil, 150),
		},
	}
}

func TestForecastTransformer(t *testing.T) {
	tfm := pipeline.NewForecastTransformer(0, slog.Default())
	report := domain.NewReport("forecast_hub")

	got, err := tfm.Transform(context.Background(), forecastRaw(), testReference(), report)
	require.NoError(t, err)

	assert.Equal(t, []domain.Field{
		domain.FieldFIPS, domain.FieldDate, domain.FieldModelAbbr, domain.FieldForecastDate,
		"weekly_new_cases_0.1", "weekly_new_cases_0.5", "weekly_new_cases_0.9",
	}, got.Columns)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, date("2020-06-08"), got.Rows[0][domain.FieldDate])
	assert.Equal(t, 3, report.Dropped[domain.DropForecastFilter])
}

func TestForecastTransformer_Stale(t *testing.T) {
	freezeClock(t, time.Date(2020, 6, 20, 0, 0, 0, 0, time.UTC))
	tfm := pipeline.NewForecastTransformer(7, slog.Default())

	_, err := tfm.Transform(context.Background(), forecastRaw(), testReference(), nil)

	var stale *domain.StaleDataError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, date("2020-06-01"), stale.Latest)
}

func TestForecastTransformer_BadTarget(t *testing.T) {
	raw := forecastRaw()
	raw.Records[0]["target"] = "next tuesday"
	tfm := pipeline.NewForecastTransformer(0, slog.Default())

	_, err := tfm.Transform(context.Background(), raw, testReference(), nil)

	var parseErr *domain.TargetParseError
	require.ErrorAs(t, err, &parseErr)
}

type memoryCache struct {
	raw      domain.RawTable
	written  *domain.RawTable
	version  time.Time
	writeErr error
}

func (m *memoryCache) ReadRaw(_ context.Context) (domain.RawTable, error) { return m.raw, nil }

func (m *memoryCache) WriteRaw(_ context.Context, raw domain.RawTable) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = &raw
	return nil
}

func (m *memoryCache) WriteVersion(_ context.Context, forecastDate time.Time) error {
	m.version = forecastDate
	return nil
}

func TestCachedExtractor(t *testing.T) {
	t.Run("fetch writes cache and version", func(t *testing.T) {
		source := &mockExtractor{raw: forecastRaw()}
		cache := &memoryCache{}
		ext := pipeline.NewCachedExtractor(source, cache, true, slog.Default())

		raw, err := ext.Extract(context.Background())
		require.NoError(t, err)

		assert.Len(t, raw.Records, 6)
		require.NotNil(t, cache.written)
		assert.Len(t, cache.written.Records, 6)
		assert.Equal(t, date("2020-06-01"), cache.version)
	})

	t.Run("no fetch replays cache", func(t *testing.T) {
		source := &mockExtractor{}
		cache := &memoryCache{raw: forecastRaw()}
		ext := pipeline.NewCachedExtractor(source, cache, false, slog.Default())

		raw, err := ext.Extract(context.Background())
		require.NoError(t, err)

		assert.Len(t, raw.Records, 6)
		assert.Equal(t, 0, source.calls)
		assert.Nil(t, cache.written)
	})

	t.Run("cache write failure", func(t *testing.T) {
		cache := &memoryCache{writeErr: errors.New("read-only file system")}
		ext := pipeline.NewCachedExtractor(&mockExtractor{raw: forecastRaw()}, cache, true, slog.Default())

		_, err := ext.Extract(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache raw forecast")
	})
}
