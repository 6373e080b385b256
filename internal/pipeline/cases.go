package pipeline

import (
	"context"
	"log/slog"

	"github.com/covid-projections/covid-data-etl/internal/domain"
)

// CaseTransformer reconciles a CMDC case feed (covid_us or usafacts_covid)
// into the (fips, date) timeseries table.
type CaseTransformer struct {
	schema    domain.Schema
	rules     domain.Rules
	staleDays int
	logger    *slog.Logger
}

// NewCaseTransformer creates a transformer for one case feed. Only the rules
// that apply to the schema's source are kept. A non-positive staleDays
// disables the staleness check.
func NewCaseTransformer(schema domain.Schema, rules domain.Rules, staleDays int, logger *slog.Logger) *CaseTransformer {
	return &CaseTransformer{
		schema:    schema,
		rules:     rules.ForSource(schema.Name),
		staleDays: staleDays,
		logger:    logger.With("component", "transformer", "dataset", schema.Name),
	}
}

func (t *CaseTransformer) Transform(ctx context.Context, raw domain.RawTable, ref *domain.ReferenceData, report *domain.Report) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}

	table, err := t.schema.Map(raw)
	if err != nil {
		return domain.Table{}, err
	}
	if err := domain.CheckStaleness(table, domain.FieldDate, t.staleDays); err != nil {
		return domain.Table{}, err
	}

	counties, states := domain.ResolveGeography(table, ref, t.logger, report)
	table = domain.Concat(states, counties)
	table = domain.FilterQuality(table, t.rules, t.logger, report)
	table = domain.ShiftDates(table, t.rules.DateShifts, t.logger, report)
	table = domain.ApplyFieldExclusions(table, t.rules.FieldExclusions)

	return domain.Finalize(table, domain.TimeseriesKeys)
}
