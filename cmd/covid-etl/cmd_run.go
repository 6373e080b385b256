package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runFlags = runOptions{fetch: true}

var countyCmd = &cobra.Command{
	Use:   "county",
	Short: "Reconcile the CMDC covid_us county and state feed",
	Args:  cobra.NoArgs,
	RunE:  runDatasets(datasetCovidUS),
}

var usafactsCmd = &cobra.Command{
	Use:   "usafacts",
	Short: "Reconcile the CMDC usafacts_covid feed",
	Args:  cobra.NoArgs,
	RunE:  runDatasets(datasetUSAFacts),
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Download and reshape the latest Forecast Hub forecast",
	Long: "forecast downloads the latest forecast of FORECAST_MODEL from Zoltar,\n" +
		"caches it as forecast-hub/raw.csv and writes the wide quantile table.\n" +
		"With --fetch=false the cached raw.csv is transformed again instead.",
	Args: cobra.NoArgs,
	RunE: runDatasets(datasetForecast),
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every dataset once",
	Args:  cobra.NoArgs,
	RunE:  runDatasets(),
}

func init() {
	for _, cmd := range []*cobra.Command{countyCmd, usafactsCmd, forecastCmd, allCmd} {
		addRunFlags(cmd, &runFlags)
	}
	for _, cmd := range []*cobra.Command{forecastCmd, allCmd} {
		addFetchFlag(cmd, &runFlags)
	}
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.BoolVar(&opts.summary, "summary", false, "Print a per-dataset summary table")
	f.StringVar(&opts.source, "source", sourceCMDC, "Case feed source: cmdc or kafka")
}

// addFetchFlag registers --fetch on the commands that run the forecast.
func addFetchFlag(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().BoolVar(&opts.fetch, "fetch", true, "Fetch a fresh forecast (false replays the raw cache)")
}

// runDatasets returns a RunE that runs the named datasets once, or every
// dataset when none are named.
func runDatasets(names ...string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		p, err := a.newPipeline(runFlags)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		results, err := p.Run(ctx, names...)
		if runFlags.summary && len(results) > 0 {
			renderSummary(cmd.OutOrStdout(), results)
		}
		return err
	}
}
