package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/covid-projections/covid-data-etl/internal/domain"
	"github.com/covid-projections/covid-data-etl/internal/pipeline"
)

// renderSummary prints one row per dataset result.
func renderSummary(w io.Writer, results []pipeline.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Dataset", "Rows in", "Rows out", "Dropped", "Corrected", "Backfilled", "Duration", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	var in, out, dropped int
	for _, r := range results {
		rep := r.Report
		if rep == nil {
			rep = domain.NewReport(r.Dataset)
		}
		status := "ok"
		if r.Error != "" {
			status = "FAILED: " + r.Error
		}
		t.AppendRow(table.Row{
			r.Dataset, rep.RowsIn, rep.RowsOut, dropSummary(rep), rep.Corrected, rep.Backfilled,
			r.Duration.Round(time.Millisecond), status,
		})
		in += rep.RowsIn
		out += rep.RowsOut
		dropped += rep.TotalDropped()
	}
	t.AppendFooter(table.Row{"Total", in, out, dropped, "", "", "", ""})
	t.Render()
}

// dropSummary renders the dropped count with its reasons, e.g.
// "3 (null_key=2, ancient_date=1)".
func dropSummary(rep *domain.Report) string {
	total := rep.TotalDropped()
	if total == 0 {
		return "0"
	}
	s := fmt.Sprintf("%d (", total)
	first := true
	for _, reason := range dropReasons {
		n := rep.Dropped[reason]
		if n == 0 {
			continue
		}
		if !first {
			s += ", "
		}
		s += fmt.Sprintf("%s=%d", reason, n)
		first = false
	}
	return s + ")"
}

// dropReasons fixes the display order of drop reasons.
var dropReasons = []domain.DropReason{
	domain.DropUnsupportedFIPS,
	domain.DropUnmatchedCounty,
	domain.DropNullKey,
	domain.DropAncientDate,
	domain.DropShiftedTail,
	domain.DropForecastFilter,
	domain.DropUnresolvedRegion,
}
