package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/covid-projections/covid-data-etl/internal/domain"
)

// ForecastTransformer reshapes a long Forecast Hub download into the wide
// quantile table keyed by (fips, date, model_abbr, forecast_date).
type ForecastTransformer struct {
	staleDays int
	logger    *slog.Logger
}

// NewForecastTransformer creates a forecast transformer. A positive staleDays
// fails runs whose newest forecast date is older than that many days.
func NewForecastTransformer(staleDays int, logger *slog.Logger) *ForecastTransformer {
	return &ForecastTransformer{
		staleDays: staleDays,
		logger:    logger.With("component", "transformer", "dataset", domain.ForecastSchema.Name),
	}
}

func (t *ForecastTransformer) Transform(ctx context.Context, raw domain.RawTable, ref *domain.ReferenceData, report *domain.Report) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}

	annotated, err := domain.AnnotateTargets(raw)
	if err != nil {
		return domain.Table{}, err
	}
	filtered := domain.FilterForecastRows(annotated, t.logger, report)

	byType, err := domain.PivotTargetTypes(filtered)
	if err != nil {
		return domain.Table{}, err
	}
	long, err := domain.ForecastSchema.Map(byType)
	if err != nil {
		return domain.Table{}, err
	}
	if err := domain.CheckStaleness(long, domain.FieldForecastDate, t.staleDays); err != nil {
		return domain.Table{}, err
	}

	long = domain.DropUnresolvedRegions(long, ref, t.logger, report)
	wide, err := domain.PivotQuantiles(long)
	if err != nil {
		return domain.Table{}, err
	}
	return domain.Finalize(wide, domain.ForecastKeys)
}

// ForecastCache stores the last raw Forecast Hub download and its version stamp.
type ForecastCache interface {
	ReadRaw(ctx context.Context) (domain.RawTable, error)
	WriteRaw(ctx context.Context, raw domain.RawTable) error
	WriteVersion(ctx context.Context, forecastDate time.Time) error
}

// CachedExtractor fetches from an upstream source and keeps a copy in the
// cache, or replays the cache when fetching is disabled.
type CachedExtractor struct {
	source Extractor
	cache  ForecastCache
	fetch  bool
	logger *slog.Logger
}

// NewCachedExtractor wraps source with a raw cache.
func NewCachedExtractor(source Extractor, cache ForecastCache, fetch bool, logger *slog.Logger) *CachedExtractor {
	return &CachedExtractor{source: source, cache: cache, fetch: fetch, logger: logger}
}

func (e *CachedExtractor) Extract(ctx context.Context) (domain.RawTable, error) {
	if !e.fetch {
		e.logger.Info("using cached raw forecast")
		return e.cache.ReadRaw(ctx)
	}

	raw, err := e.source.Extract(ctx)
	if err != nil {
		return domain.RawTable{}, err
	}
	if err := e.cache.WriteRaw(ctx, raw); err != nil {
		return domain.RawTable{}, fmt.Errorf("cache raw forecast: %w", err)
	}
	forecastDate := latestForecastDate(raw)
	if err := e.cache.WriteVersion(ctx, forecastDate); err != nil {
		return domain.RawTable{}, fmt.Errorf("write forecast version: %w", err)
	}
	e.logger.Info("cached raw forecast", "rows", len(raw.Records), "forecast_date", domain.FormatValue(forecastDate))
	return raw, nil
}

func latestForecastDate(raw domain.RawTable) time.Time {
	var latest time.Time
	for _, rec := range raw.Records {
		if d, ok := domain.Coerce(domain.KindDate, rec[domain.ColForecastDate]).(time.Time); ok && d.After(latest) {
			latest = d
		}
	}
	return latest
}
