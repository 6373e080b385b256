package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reconciliation runs.
type Metrics struct {
	RowsExtracted   *prometheus.CounterVec // labels: dataset
	RowsWritten     *prometheus.CounterVec // labels: dataset
	RowsDropped     *prometheus.CounterVec // labels: dataset, reason
	RowsCorrected   *prometheus.CounterVec // labels: dataset, kind={bad_value,backfill}
	Runs            *prometheus.CounterVec // labels: dataset, outcome={success,error}
	RunDuration     *prometheus.HistogramVec
	LastSuccess     *prometheus.GaugeVec // labels: dataset
	PipelineRunning prometheus.Gauge

	// Upstream API metrics.
	FetchRequests *prometheus.CounterVec   // labels: source={cmdc,zoltar,kafka}, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: source
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsExtracted,
		m.RowsWritten,
		m.RowsDropped,
		m.RowsCorrected,
		m.Runs,
		m.RunDuration,
		m.LastSuccess,
		m.PipelineRunning,
		m.FetchRequests,
		m.FetchDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they need without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_extracted_total",
			Help:      "Raw records read from a source.",
		}, []string{"dataset"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Canonical rows written to the output table.",
		}, []string{"dataset"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows removed by a recoverable quality condition.",
		}, []string{"dataset", "reason"}),
		RowsCorrected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_corrected_total",
			Help:      "Rows rewritten by a region rule.",
		}, []string{"dataset", "kind"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Dataset runs by outcome.",
		}, []string{"dataset", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-transform-load run of one dataset.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"dataset"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run of a dataset.",
		}, []string{"dataset"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Upstream API requests by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
	}
}
