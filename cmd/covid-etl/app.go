package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/covid-projections/covid-data-etl/internal/adapter/cmdc"
	"github.com/covid-projections/covid-data-etl/internal/adapter/csvfile"
	kafkaadapter "github.com/covid-projections/covid-data-etl/internal/adapter/kafka"
	"github.com/covid-projections/covid-data-etl/internal/adapter/zoltar"
	"github.com/covid-projections/covid-data-etl/internal/config"
	"github.com/covid-projections/covid-data-etl/internal/domain"
	"github.com/covid-projections/covid-data-etl/internal/observability"
	"github.com/covid-projections/covid-data-etl/internal/pipeline"
)

// Dataset names, shared with the schema names.
var (
	datasetCovidUS  = domain.CovidUSSchema.Name
	datasetUSAFacts = domain.USAFactsSchema.Name
	datasetForecast = domain.ForecastSchema.Name
)

// Case feed sources.
const (
	sourceCMDC  = "cmdc"
	sourceKafka = "kafka"
)

// runOptions are the flags shared by the run commands.
type runOptions struct {
	fetch   bool
	summary bool
	source  string
}

// app holds the process-wide dependencies built from the environment.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	rules   domain.Rules
}

// newApp loads the configuration. Long-running services log through the
// shared service logger; one-shot commands log to stderr.
func newApp(service bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	if service {
		logger = observability.NewServiceLogger(cfg)
	}
	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics(), rules: rules}, nil
}

// loadRules reads the region rule file, or the built-in rules when path is
// empty.
func loadRules(path string) (domain.Rules, error) {
	if path == "" {
		return domain.DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Rules{}, fmt.Errorf("read rules: %w", err)
	}
	rules, err := domain.ParseRules(data)
	if err != nil {
		return domain.Rules{}, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// newPipeline assembles the pipeline over every dataset.
func (a *app) newPipeline(opts runOptions) (*pipeline.Pipeline, error) {
	datasets, err := a.datasets(opts)
	if err != nil {
		return nil, err
	}
	ref := csvfile.NewReferenceLoader(a.cfg.DataRoot, a.logger)
	return pipeline.New(ref, a.logger, a.metrics, datasets...), nil
}

func (a *app) datasets(opts runOptions) ([]pipeline.Dataset, error) {
	covidUS, usafacts, err := a.caseExtractors(opts.source)
	if err != nil {
		return nil, err
	}

	if opts.fetch && !a.cfg.ZoltarCredentials() {
		a.logger.Warn("Z_USERNAME and Z_PASSWORD are not set; forecast fetches will fail")
	}
	forecastSource := zoltar.NewClient(a.cfg, a.metrics, a.logger)
	forecastCache := csvfile.NewForecastStore(a.cfg.DataRoot)

	return []pipeline.Dataset{
		{
			Name:        datasetCovidUS,
			Extractor:   covidUS,
			Transformer: pipeline.NewCaseTransformer(domain.CovidUSSchema, a.rules, a.cfg.StaleDaysCovidUS, a.logger),
			Loader:      a.writer(csvfile.CovidUSOutput),
		},
		{
			Name:        datasetUSAFacts,
			Extractor:   usafacts,
			Transformer: pipeline.NewCaseTransformer(domain.USAFactsSchema, a.rules, a.cfg.StaleDaysUSAFacts, a.logger),
			Loader:      a.writer(csvfile.USAFactsOutput),
		},
		{
			Name:        datasetForecast,
			Extractor:   pipeline.NewCachedExtractor(forecastSource, forecastCache, opts.fetch, a.logger),
			Transformer: pipeline.NewForecastTransformer(a.cfg.ForecastStaleDays, a.logger),
			Loader:      a.writer(csvfile.ForecastOutput),
		},
	}, nil
}

func (a *app) caseExtractors(source string) (covidUS, usafacts pipeline.Extractor, err error) {
	switch source {
	case sourceCMDC:
		client := cmdc.NewClient(a.cfg, a.metrics, a.logger)
		return client.Extractor(datasetCovidUS), client.Extractor(datasetUSAFacts), nil
	case sourceKafka:
		if !a.cfg.KafkaEnabled() {
			return nil, nil, fmt.Errorf("--source=%s requires KAFKA_BROKERS", sourceKafka)
		}
		src := kafkaadapter.NewSource(a.cfg, a.metrics, a.logger)
		return src.Extractor(datasetCovidUS), src.Extractor(datasetUSAFacts), nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q: must be %s or %s", source, sourceCMDC, sourceKafka)
	}
}

func (a *app) writer(rel string) *csvfile.TableWriter {
	return csvfile.NewTableWriter(filepath.Join(a.cfg.DataRoot, rel), a.logger)
}
