package csvfile

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/covid-projections/covid-data-etl/internal/domain"
)

// Forecast Hub cache files relative to the data root.
const (
	ForecastRawFile     = "forecast-hub/raw.csv"
	ForecastVersionFile = "forecast-hub/version.txt"
)

const versionStampLayout = "2006-01-02T15:04:05.000000"

// ForecastStore keeps the last raw Forecast Hub download and the version
// stamp describing it. It implements pipeline.ForecastCache.
type ForecastStore struct {
	rawPath     string
	versionPath string
}

// NewForecastStore creates a store under dataRoot.
func NewForecastStore(dataRoot string) *ForecastStore {
	return &ForecastStore{
		rawPath:     filepath.Join(dataRoot, ForecastRawFile),
		versionPath: filepath.Join(dataRoot, ForecastVersionFile),
	}
}

// ReadRaw loads the cached raw download.
func (s *ForecastStore) ReadRaw(ctx context.Context) (domain.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawTable{}, err
	}
	raw, err := readRaw(s.rawPath)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read raw forecast cache: %w", err)
	}
	return raw, nil
}

// WriteRaw replaces the cached raw download.
func (s *ForecastStore) WriteRaw(ctx context.Context, raw domain.RawTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeRaw(s.rawPath, raw)
}

// WriteVersion records when the cache was refreshed and which forecast date
// it holds.
func (s *ForecastStore) WriteVersion(ctx context.Context, forecastDate time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeAtomic(s.versionPath, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Updated on %s\nUsing forecast from %s\n",
			domain.Now().UTC().Format(versionStampLayout), domain.FormatValue(forecastDate))
		return err
	})
}
