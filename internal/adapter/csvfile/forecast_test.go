package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covid-projections/covid-data-etl/internal/domain"
)

func TestForecastStore_RawRoundTrip(t *testing.T) {
	store := NewForecastStore(t.TempDir())
	raw := domain.RawTable{
		Columns: []string{domain.ColUnit, domain.ColTarget, domain.ColQuantile, domain.ColValue},
		Records: []domain.RawRecord{
			{domain.ColUnit: "06", domain.ColTarget: "1 wk ahead inc case", domain.ColQuantile: 0.025, domain.ColValue: 4000.0},
			{domain.ColUnit: "US", domain.ColTarget: "1 wk ahead inc case", domain.ColQuantile: nil, domain.ColValue: 5000.0},
		},
	}

	require.NoError(t, store.WriteRaw(context.Background(), raw))
	got, err := store.ReadRaw(context.Background())
	require.NoError(t, err)

	assert.Equal(t, raw.Columns, got.Columns)
	assert.Equal(t, []domain.RawRecord{
		{domain.ColUnit: "06", domain.ColTarget: "1 wk ahead inc case", domain.ColQuantile: "0.025", domain.ColValue: "4000"},
		{domain.ColUnit: "US", domain.ColTarget: "1 wk ahead inc case", domain.ColQuantile: nil, domain.ColValue: "5000"},
	}, got.Records, "unit codes stay text so leading zeros survive")
}

func TestForecastStore_ReadRawMissing(t *testing.T) {
	_, err := NewForecastStore(t.TempDir()).ReadRaw(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "read raw forecast cache")
}

func TestForecastStore_WriteVersion(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2020, time.July, 14, 9, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	root := t.TempDir()
	store := NewForecastStore(root)
	require.NoError(t, store.WriteVersion(context.Background(), day("2020-07-13")))

	got, err := os.ReadFile(filepath.Join(root, ForecastVersionFile))
	require.NoError(t, err)
	assert.Equal(t, "Updated on 2020-07-14T09:30:00.000000\nUsing forecast from 2020-07-13\n", string(got))
}
