package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/covid-projections/covid-data-etl/internal/adapter/csvfile"
	"github.com/covid-projections/covid-data-etl/internal/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate <csv>...",
	Short: "Re-check the invariants of written output tables",
	Long: "validate reads output tables and checks that key columns come first,\n" +
		"the other columns are sorted, no key is null or duplicated, FIPS codes\n" +
		"have state or county width and case rows carry a state.",
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		t, err := csvfile.ReadTable(path)
		if err == nil {
			err = domain.Validate(t, domain.KeysFor(t))
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s\n%v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (%d rows, %d columns)\n", path, t.Len(), len(t.Columns))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tables failed validation", failed, len(args))
	}
	return nil
}
