package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/covid-projections/covid-data-etl/internal/domain"
	"github.com/covid-projections/covid-data-etl/internal/observability"
)

// Extractor reads the complete raw record set of one dataset.
type Extractor interface {
	Extract(ctx context.Context) (domain.RawTable, error)
}

// Transformer reconciles a raw record set into a canonical table.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawTable, ref *domain.ReferenceData, report *domain.Report) (domain.Table, error)
}

// Loader writes a canonical table to its destination.
type Loader interface {
	Load(ctx context.Context, t domain.Table) error
}

// ReferenceLoader provides the geographic reference tables for one run.
type ReferenceLoader interface {
	LoadReference(ctx context.Context) (*domain.ReferenceData, error)
}

// Dataset binds the three stages that produce one output table.
type Dataset struct {
	Name        string
	Extractor   Extractor
	Transformer Transformer
	Loader      Loader
}

// Result describes the outcome of one dataset within a run.
type Result struct {
	RunID    string         `json:"run_id"`
	Dataset  string         `json:"dataset"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration_ns"`
	Report   *domain.Report `json:"report,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Pipeline orchestrates batch extract-transform-load runs over its datasets.
type Pipeline struct {
	datasets  []Dataset
	reference ReferenceLoader
	logger    *slog.Logger
	metrics   *observability.Metrics

	ready   atomic.Bool
	mu      sync.Mutex
	lastErr error
	results map[string]Result
}

// New creates a Pipeline over the given datasets.
func New(ref ReferenceLoader, logger *slog.Logger, metrics *observability.Metrics, datasets ...Dataset) *Pipeline {
	return &Pipeline{
		datasets:  datasets,
		reference: ref,
		logger:    logger,
		metrics:   metrics,
		results:   make(map[string]Result),
	}
}

// Datasets returns the configured dataset names in run order.
func (p *Pipeline) Datasets() []string {
	names := make([]string, len(p.datasets))
	for i, d := range p.datasets {
		names[i] = d.Name
	}
	return names
}

// CheckReadiness returns nil if the most recent run succeeded for every
// dataset it covered.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.ready.Load() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastErr != nil {
		return fmt.Errorf("last run failed: %w", p.lastErr)
	}
	return errors.New("pipeline has not completed a run yet")
}

// Results returns the latest result of every dataset that has run, ordered by
// dataset name.
func (p *Pipeline) Results() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, 0, len(p.results))
	for _, r := range p.results {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Result) int { return strings.Compare(a.Dataset, b.Dataset) })
	return out
}

// Run executes one batch run over the named datasets, or all of them when no
// names are given. Reference tables are loaded once and shared by every
// dataset of the run. A failing dataset does not stop the others; the
// returned error joins every dataset failure.
func (p *Pipeline) Run(ctx context.Context, names ...string) ([]Result, error) {
	selected, err := p.selectDatasets(names)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	logger.Info("run started", "datasets", len(selected))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ref, err := p.reference.LoadReference(ctx)
	if err != nil {
		err = fmt.Errorf("load reference data: %w", err)
		p.finish(nil, err)
		return nil, err
	}

	results := make([]Result, 0, len(selected))
	var errs []error
	for _, d := range selected {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := p.runDataset(ctx, d, ref, runID, logger.With("dataset", d.Name))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
		}
		results = append(results, res)
	}

	err = errors.Join(errs...)
	p.finish(results, err)
	if err != nil {
		logger.Error("run failed", "error", err)
	} else {
		logger.Info("run finished")
	}
	return results, err
}

func (p *Pipeline) runDataset(ctx context.Context, d Dataset, ref *domain.ReferenceData, runID string, logger *slog.Logger) (Result, error) {
	start := time.Now()
	report := domain.NewReport(d.Name)
	res := Result{RunID: runID, Dataset: d.Name, Started: start.UTC(), Report: report}

	err := p.etl(ctx, d, ref, report, logger)
	res.Duration = time.Since(start)
	p.metrics.RunDuration.WithLabelValues(d.Name).Observe(res.Duration.Seconds())
	p.recordReport(report)

	if err != nil {
		res.Error = err.Error()
		p.metrics.Runs.WithLabelValues(d.Name, "error").Inc()
		logger.Error("dataset failed", "error", err, "duration", res.Duration)
		return res, err
	}

	p.metrics.Runs.WithLabelValues(d.Name, "success").Inc()
	p.metrics.LastSuccess.WithLabelValues(d.Name).Set(float64(time.Now().Unix()))
	logger.Info("dataset written",
		"rows_in", report.RowsIn,
		"rows_out", report.RowsOut,
		"dropped", report.TotalDropped(),
		"corrected", report.Corrected,
		"backfilled", report.Backfilled,
		"duration", res.Duration,
	)
	return res, nil
}

// etl runs the three stages. Nothing is loaded unless extraction and the
// whole transformation succeed.
func (p *Pipeline) etl(ctx context.Context, d Dataset, ref *domain.ReferenceData, report *domain.Report, logger *slog.Logger) error {
	raw, err := d.Extractor.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	report.RowsIn = len(raw.Records)
	p.metrics.RowsExtracted.WithLabelValues(d.Name).Add(float64(report.RowsIn))
	logger.Debug("extracted raw records", "rows", report.RowsIn, "columns", len(raw.Columns))

	table, err := d.Transformer.Transform(ctx, raw, ref, report)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	report.RowsOut = table.Len()

	if err := d.Loader.Load(ctx, table); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	p.metrics.RowsWritten.WithLabelValues(d.Name).Add(float64(table.Len()))
	return nil
}

func (p *Pipeline) recordReport(report *domain.Report) {
	for reason, n := range report.Dropped {
		p.metrics.RowsDropped.WithLabelValues(report.Dataset, string(reason)).Add(float64(n))
	}
	p.metrics.RowsCorrected.WithLabelValues(report.Dataset, "bad_value").Add(float64(report.Corrected))
	p.metrics.RowsCorrected.WithLabelValues(report.Dataset, "backfill").Add(float64(report.Backfilled))
}

func (p *Pipeline) finish(results []Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range results {
		p.results[r.Dataset] = r
	}
	p.lastErr = err
	p.ready.Store(err == nil)
}

func (p *Pipeline) selectDatasets(names []string) ([]Dataset, error) {
	if len(names) == 0 {
		return p.datasets, nil
	}
	out := make([]Dataset, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(p.datasets, func(d Dataset) bool { return d.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown dataset %q", name)
		}
		out = append(out, p.datasets[i])
	}
	return out, nil
}
