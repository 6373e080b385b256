// Command covid-etl reconciles the CMDC case feeds and the Forecast Hub
// download into canonical timeseries tables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "covid-etl",
	Short: "Reconcile COVID case and forecast feeds into canonical timeseries tables",
	Long: "covid-etl fetches the CMDC county/state case feeds and the Forecast Hub\n" +
		"ensemble forecast, reconciles them into (fips, date) keyed tables and\n" +
		"writes them under DATA_ROOT. Configuration is read from the environment.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(countyCmd)
	rootCmd.AddCommand(usafactsCmd)
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
