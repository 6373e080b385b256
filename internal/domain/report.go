package domain

// DropReason labels a recoverable quality condition that removed rows.
type DropReason string

const (
	DropUnmatchedCounty  DropReason = "unmatched_county"
	DropUnsupportedFIPS  DropReason = "unsupported_fips"
	DropNullKey          DropReason = "null_key"
	DropAncientDate      DropReason = "ancient_date"
	DropUnresolvedRegion DropReason = "unresolved_region"
	DropShiftedTail      DropReason = "date_shift_tail"
	DropForecastFilter   DropReason = "forecast_filter"
)

// Report tallies what the reconciliation steps removed or rewrote for one
// dataset. A nil *Report is valid and discards everything.
type Report struct {
	Dataset    string             `json:"dataset"`
	RowsIn     int                `json:"rows_in"`
	RowsOut    int                `json:"rows_out"`
	Dropped    map[DropReason]int `json:"dropped"`
	Corrected  int                `json:"corrected"`
	Backfilled int                `json:"backfilled"`
}

// NewReport creates an empty report for a dataset.
func NewReport(dataset string) *Report {
	return &Report{Dataset: dataset, Dropped: make(map[DropReason]int)}
}

func (r *Report) drop(reason DropReason, n int) {
	if r == nil || n == 0 {
		return
	}
	if r.Dropped == nil {
		r.Dropped = make(map[DropReason]int)
	}
	r.Dropped[reason] += n
}

// TotalDropped sums rows dropped for every reason.
func (r *Report) TotalDropped() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, n := range r.Dropped {
		total += n
	}
	return total
}
