// Package cmdc fetches case and hospitalization feeds from the Covid Modeling
// Data Collaborative API.
package cmdc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/covid-projections/covid-data-etl/internal/config"
	"github.com/covid-projections/covid-data-etl/internal/domain"
	"github.com/covid-projections/covid-data-etl/internal/observability"
)

const source = "cmdc"

// Long-format columns. A long response carries one observation per row and
// is pivoted to one record per (location, dt).
const (
	colDate     = "dt"
	colVariable = "variable"
	colValue    = "value"
)

// Retry policy for transient failures: network errors and 5xx responses.
const (
	defaultAttempts = 3
	initialBackoff  = time.Second
	maxBackoff      = 8 * time.Second
)

// locationColumns are the region identifiers used by the CMDC datasets.
var locationColumns = []string{"location", "fips"}

// Client fetches CMDC datasets over HTTP.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger

	attempts int
	backoff  time.Duration
}

// NewClient creates a CMDC client from the service configuration.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: cfg.CMDCAPIKey,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		baseURL:  strings.TrimRight(cfg.CMDCBaseURL, "/"),
		metrics:  metrics,
		logger:   logger.With("component", "cmdc"),
		attempts: defaultAttempts,
		backoff:  initialBackoff,
	}
}

// Fetch downloads a whole dataset, e.g. "covid_us" or "usafacts_covid".
func (c *Client) Fetch(ctx context.Context, dataset string) (domain.RawTable, error) {
	start := time.Now()
	raw, err := c.fetch(ctx, dataset)
	c.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return domain.RawTable{}, err
	}
	c.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
	c.logger.Info("fetched dataset", "dataset", dataset, "records", len(raw.Records),
		"duration", time.Since(start))
	return raw, nil
}

// fetch retries transient failures with a doubling backoff. Client errors
// and undecodable bodies fail at once.
func (c *Client) fetch(ctx context.Context, dataset string) (domain.RawTable, error) {
	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		raw, err := c.fetchOnce(ctx, dataset)
		if err == nil || attempt >= c.attempts || !retryable(err) {
			return raw, err
		}
		c.logger.Warn("fetch failed, retrying", "dataset", dataset, "attempt", attempt,
			"backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return domain.RawTable{}, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (c *Client) fetchOnce(ctx context.Context, dataset string) (domain.RawTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+dataset, nil)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("cmdc %s request: %w", dataset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.RawTable{}, &StatusError{Dataset: dataset, Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	var rows []map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return domain.RawTable{}, fmt.Errorf("decode %s response: %w", dataset, err)
	}
	return toRawTable(rows), nil
}

// StatusError reports a non-200 response from the API.
type StatusError struct {
	Dataset string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cmdc API error: %s: status %d: %s", e.Dataset, e.Status, e.Body)
}

// retryable reports whether err is a network failure or a server error.
func retryable(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Status >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && !errors.Is(err, context.Canceled)
}

// toRawTable converts decoded rows into a raw table, pivoting long rows.
func toRawTable(rows []map[string]any) domain.RawTable {
	if loc, ok := longFormat(rows); ok {
		return pivotLong(rows, loc)
	}
	cols := make(map[string]bool)
	records := make([]domain.RawRecord, len(rows))
	for i, r := range rows {
		records[i] = domain.RawRecord(r)
		for k := range r {
			cols[k] = true
		}
	}
	return domain.RawTable{Columns: sortedColumns(cols), Records: records}
}

// longFormat reports whether rows are (dt, location, variable, value)
// observations and returns the name of the location column.
func longFormat(rows []map[string]any) (string, bool) {
	if len(rows) == 0 {
		return "", false
	}
	first := rows[0]
	if len(first) != 4 {
		return "", false
	}
	for _, k := range []string{colDate, colVariable, colValue} {
		if _, ok := first[k]; !ok {
			return "", false
		}
	}
	for _, loc := range locationColumns {
		if _, ok := first[loc]; ok {
			return loc, true
		}
	}
	return "", false
}

func pivotLong(rows []map[string]any, loc string) domain.RawTable {
	cols := map[string]bool{colDate: true, loc: true}
	index := make(map[string]int)
	var records []domain.RawRecord
	for _, r := range rows {
		variable, _ := r[colVariable].(string)
		if variable == "" {
			continue
		}
		cols[variable] = true
		k := fmt.Sprint(r[loc]) + "\x1f" + fmt.Sprint(r[colDate])
		i, ok := index[k]
		if !ok {
			i = len(records)
			index[k] = i
			records = append(records, domain.RawRecord{colDate: r[colDate], loc: r[loc]})
		}
		records[i][variable] = r[colValue]
	}
	return domain.RawTable{Columns: sortedColumns(cols), Records: records}
}

func sortedColumns(cols map[string]bool) []string {
	out := make([]string, 0, len(cols))
	for k := range cols {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Extractor reads one CMDC dataset. It implements pipeline.Extractor.
type Extractor struct {
	client  *Client
	dataset string
}

// Extractor returns an extractor for the named dataset.
func (c *Client) Extractor(dataset string) *Extractor {
	return &Extractor{client: c, dataset: dataset}
}

// Extract fetches the full dataset.
func (e *Extractor) Extract(ctx context.Context) (domain.RawTable, error) {
	return e.client.Fetch(ctx, e.dataset)
}
