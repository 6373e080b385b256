// Package zoltar downloads the latest forecast of one model from the Zoltar
// Forecast Hub repository.
package zoltar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/covid-projections/covid-data-etl/internal/config"
	"github.com/covid-projections/covid-data-etl/internal/domain"
	"github.com/covid-projections/covid-data-etl/internal/observability"
)

const source = "zoltar"

// ProjectName is the Zoltar project holding the COVID-19 Forecast Hub.
const ProjectName = "COVID-19 Forecasts"

// Prediction classes flattened into raw rows. Other classes (bin, named,
// sample) are ignored.
const (
	classPoint    = "point"
	classQuantile = "quantile"
)

// Columns is the raw column set produced by Extract.
var Columns = []string{
	domain.ColUnit, domain.ColTarget, domain.ColClass, domain.ColQuantile,
	domain.ColValue, domain.ColForecastDate, domain.ColModelAbbr,
}

// ErrNoForecast is returned when the model has no forecast with a timezero.
var ErrNoForecast = errors.New("no forecasts found")

// Client talks to the Zoltar REST API. It implements pipeline.Extractor.
type Client struct {
	username   string
	password   string
	project    string
	model      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Zoltar client for the configured forecast model.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		username: cfg.ZoltarUsername,
		password: cfg.ZoltarPassword,
		project:  ProjectName,
		model:    cfg.ForecastModel,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		baseURL: strings.TrimRight(cfg.ZoltarBaseURL, "/"),
		metrics: metrics,
		logger:  logger.With("component", "zoltar", "model", cfg.ForecastModel),
	}
}

// Extract authenticates, finds the model's latest forecast and returns its
// point and quantile predictions as raw rows.
func (c *Client) Extract(ctx context.Context) (domain.RawTable, error) {
	start := time.Now()
	raw, err := c.extract(ctx)
	c.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return domain.RawTable{}, err
	}
	c.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
	return raw, nil
}

func (c *Client) extract(ctx context.Context) (domain.RawTable, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return domain.RawTable{}, err
	}
	fc, err := c.latestForecast(ctx, token)
	if err != nil {
		return domain.RawTable{}, err
	}
	c.logger.Info("latest forecast", "forecast_date", fc.TimeZero.Date, "forecast_id", fc.ID)

	var data forecastData
	if err := c.get(ctx, token, fmt.Sprintf("/api/forecast/%d/data/", fc.ID), &data); err != nil {
		return domain.RawTable{}, fmt.Errorf("download forecast %d: %w", fc.ID, err)
	}
	raw := flatten(data, fc.TimeZero.Date, c.model)
	c.logger.Info("fetched forecast", "records", len(raw.Records))
	return raw, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	if c.username == "" || c.password == "" {
		return "", errors.New("zoltar credentials missing: set Z_USERNAME and Z_PASSWORD")
	}
	body, err := json.Marshal(map[string]string{"username": c.username, "password": c.password})
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api-token-auth/", "", bytes.NewReader(body), &resp); err != nil {
		return "", fmt.Errorf("zoltar authentication: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("zoltar authentication: empty token")
	}
	return resp.Token, nil
}

// latestForecast resolves project and model by name and returns the model's
// forecast with the newest timezero date.
func (c *Client) latestForecast(ctx context.Context, token string) (forecast, error) {
	var projects []project
	if err := c.get(ctx, token, "/api/projects/", &projects); err != nil {
		return forecast{}, fmt.Errorf("list projects: %w", err)
	}
	projectID := -1
	for _, p := range projects {
		if p.Name == c.project {
			projectID = p.ID
			break
		}
	}
	if projectID < 0 {
		return forecast{}, fmt.Errorf("project %q not found", c.project)
	}

	var models []model
	if err := c.get(ctx, token, fmt.Sprintf("/api/project/%d/models/", projectID), &models); err != nil {
		return forecast{}, fmt.Errorf("list models: %w", err)
	}
	modelID := -1
	for _, m := range models {
		if m.Abbreviation == c.model {
			modelID = m.ID
			break
		}
	}
	if modelID < 0 {
		return forecast{}, fmt.Errorf("model %q not found in project %q", c.model, c.project)
	}

	var forecasts []forecast
	if err := c.get(ctx, token, fmt.Sprintf("/api/model/%d/forecasts/", modelID), &forecasts); err != nil {
		return forecast{}, fmt.Errorf("list forecasts: %w", err)
	}
	var latest forecast
	for _, f := range forecasts {
		// timezero dates are YYYY-MM-DD, so string order is date order.
		if f.TimeZero.Date > latest.TimeZero.Date {
			latest = f
		}
	}
	if latest.TimeZero.Date == "" {
		return forecast{}, fmt.Errorf("%w for %s in %s", ErrNoForecast, c.model, c.project)
	}
	return latest, nil
}

func (c *Client) get(ctx context.Context, token, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, token, nil, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "JWT "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("zoltar API error: %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// flatten turns the prediction JSON into one raw row per point value and per
// quantile value.
func flatten(data forecastData, forecastDate, modelAbbr string) domain.RawTable {
	raw := domain.RawTable{Columns: Columns}
	row := func(p prediction, quantile, value any) domain.RawRecord {
		return domain.RawRecord{
			domain.ColUnit:         p.Unit,
			domain.ColTarget:       p.Target,
			domain.ColClass:        p.Class,
			domain.ColQuantile:     quantile,
			domain.ColValue:        value,
			domain.ColForecastDate: forecastDate,
			domain.ColModelAbbr:    modelAbbr,
		}
	}
	for _, p := range data.Predictions {
		switch p.Class {
		case classPoint:
			raw.Records = append(raw.Records, row(p, nil, p.Prediction.Value))
		case classQuantile:
			qs, _ := p.Prediction.Quantile.([]any)
			vs, _ := p.Prediction.Value.([]any)
			for i := 0; i < len(qs) && i < len(vs); i++ {
				raw.Records = append(raw.Records, row(p, qs[i], vs[i]))
			}
		}
	}
	return raw
}

// Zoltar API response types.

type project struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type model struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation"`
}

type forecast struct {
	ID       int `json:"id"`
	TimeZero struct {
		Date string `json:"timezero_date"`
	} `json:"time_zero"`
}

type forecastData struct {
	Predictions []prediction `json:"predictions"`
}

type prediction struct {
	Unit       string `json:"unit"`
	Target     string `json:"target"`
	Class      string `json:"class"`
	Prediction struct {
		// A scalar for point predictions, parallel lists for quantiles.
		Quantile any `json:"quantile"`
		Value    any `json:"value"`
	} `json:"prediction"`
}
