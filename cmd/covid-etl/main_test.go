package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covid-projections/covid-data-etl/internal/config"
	"github.com/covid-projections/covid-data-etl/internal/domain"
	"github.com/covid-projections/covid-data-etl/internal/observability"
	"github.com/covid-projections/covid-data-etl/internal/pipeline"
)

func testApp(cfg *config.Config) *app {
	rules, err := domain.DefaultRules()
	if err != nil {
		panic(err)
	}
	return &app{
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: observability.NewMetricsForTesting(),
		rules:   rules,
	}
}

func TestApp_Datasets(t *testing.T) {
	a := testApp(&config.Config{DataRoot: t.TempDir(), HTTPTimeout: time.Second, ForecastModel: "COVIDhub-ensemble"})

	p, err := a.newPipeline(runOptions{fetch: true, source: sourceCMDC})
	require.NoError(t, err)
	assert.Equal(t, []string{"covid_us", "usafacts_covid", "forecast_hub"}, p.Datasets())
}

func TestApp_WarnsWithoutZoltarCredentials(t *testing.T) {
	var logs bytes.Buffer
	a := testApp(&config.Config{DataRoot: t.TempDir(), ForecastModel: "COVIDhub-ensemble"})
	a.logger = slog.New(slog.NewTextHandler(&logs, nil))

	_, err := a.newPipeline(runOptions{fetch: true, source: sourceCMDC})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Z_USERNAME and Z_PASSWORD are not set")

	logs.Reset()
	_, err = a.newPipeline(runOptions{fetch: false, source: sourceCMDC})
	require.NoError(t, err)
	assert.Empty(t, logs.String())

	a.cfg.ZoltarUsername, a.cfg.ZoltarPassword = "user", "secret"
	_, err = a.newPipeline(runOptions{fetch: true, source: sourceCMDC})
	require.NoError(t, err)
	assert.Empty(t, logs.String())
}

func TestApp_KafkaSourceRequiresBrokers(t *testing.T) {
	a := testApp(&config.Config{DataRoot: t.TempDir()})

	_, err := a.newPipeline(runOptions{source: sourceKafka})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")

	a.cfg.KafkaBrokers = []string{"localhost:9092"}
	a.cfg.KafkaSourceTopic = "raw-covid-records"
	_, err = a.newPipeline(runOptions{source: sourceKafka})
	assert.NoError(t, err)
}

func TestApp_UnknownSource(t *testing.T) {
	a := testApp(&config.Config{DataRoot: t.TempDir()})
	_, err := a.newPipeline(runOptions{source: "ftp"})
	assert.ErrorContains(t, err, `unknown source "ftp"`)
}

func TestRunCommands_FetchFlagOnlyWhereForecastRuns(t *testing.T) {
	for _, cmd := range []*cobra.Command{forecastCmd, allCmd} {
		assert.NotNil(t, cmd.Flags().Lookup("fetch"), cmd.Name())
	}
	for _, cmd := range []*cobra.Command{countyCmd, usafactsCmd} {
		assert.Nil(t, cmd.Flags().Lookup("fetch"), cmd.Name())
		assert.NotNil(t, cmd.Flags().Lookup("source"), cmd.Name())
	}
}

func TestLoadRules(t *testing.T) {
	t.Run("default rules when unset", func(t *testing.T) {
		rules, err := loadRules("")
		require.NoError(t, err)
		want, err := domain.DefaultRules()
		require.NoError(t, err)
		assert.Equal(t, want, rules)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadRules(filepath.Join(t.TempDir(), "rules.yaml"))
		assert.ErrorContains(t, err, "read rules")
	})

	t.Run("invalid file names the path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("date_shifts: [{name: x, days: -1}]\n"), 0o644))
		_, err := loadRules(path)
		assert.ErrorContains(t, err, path)
	})
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(good, []byte("fips,date,cases,state\n06,2020-04-01,1,CA\n06037,2020-04-01,2,CA\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("fips,date,cases,state\n06,2020-04-01,1,CA\n06,2020-04-01,2,CA\n"), 0o644))

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, runValidate(cmd, []string{good}))
	assert.Contains(t, out.String(), "ok   "+good+" (2 rows, 4 columns)")

	out.Reset()
	err := runValidate(cmd, []string{good, bad})
	require.EqualError(t, err, "1 of 2 tables failed validation")
	assert.Contains(t, out.String(), "FAIL "+bad)
	assert.Contains(t, out.String(), "duplicate timeseries key (fips=06, date=2020-04-01)")
}

func TestRenderSummary(t *testing.T) {
	report := domain.NewReport("covid_us")
	report.RowsIn, report.RowsOut = 10, 7
	report.Dropped[domain.DropNullKey] = 2
	report.Dropped[domain.DropAncientDate] = 1
	report.Corrected = 4

	var out bytes.Buffer
	renderSummary(&out, []pipeline.Result{
		{Dataset: "covid_us", Report: report, Duration: 1500 * time.Millisecond},
		{Dataset: "forecast_hub", Error: "extract: zoltar authentication: status 400"},
	})

	got := out.String()
	assert.Contains(t, got, "covid_us")
	assert.Contains(t, got, "3 (null_key=2, ancient_date=1)")
	assert.Contains(t, got, "1.5s")
	assert.Contains(t, got, "FAILED: extract: zoltar authentication")
	assert.Contains(t, got, "TOTAL", "footers are upper-cased by the light style")
}

func TestDropSummary_NoDrops(t *testing.T) {
	assert.Equal(t, "0", dropSummary(domain.NewReport("usafacts_covid")))
}
