// Package domain reconciles raw epidemiological records into canonical
// timeseries tables.
//
// # Data Sources
//
// Case and hospitalization data come from the Covid Modeling Data
// Collaborative (CMDC) API in two datasets: covid_us (state and county rows
// with cases, deaths, tests and bed usage) and usafacts_covid (county cases
// and deaths mirrored from USAFacts). Forecasts come from the Zoltar Forecast
// Hub, one model per run, in long form: one row per (unit, target, quantile).
//
// # Data Conventions
//
// FIPS codes:
//
//	2 digits for a state ("06"), 5 digits for a county ("06037").
//	CMDC delivers them as integers, so 6 must become "06" and 6037 "06037".
//	The Forecast Hub uses the unit "US" for the national forecast.
//
// Forecast targets:
//
//	"<N> <wk|day> [ahead] <inc|cum> <type>", e.g. "2 wk ahead inc death".
//	The target date is the forecast date plus N weeks (or days). Only
//	incidence ("inc") targets up to four weeks out are kept, and point
//	forecasts are dropped because they duplicate the 0.5 quantile.
//
// Wide forecast columns:
//
//	The quantile is folded into the column name: weekly_new_cases_0.025,
//	weekly_new_deaths_0.5 and so on.
//
// # Pipeline Order
//
// Every case dataset runs the same steps: [Schema.Map], [CheckStaleness],
// [ResolveGeography], [FilterQuality], [ShiftDates] (counties only),
// [ApplyFieldExclusions], then [Finalize]. The quality filter order matters:
// null keys are dropped before bad-value windows are applied, and backfills
// are removed last.
//
// # Region Rules
//
// Region-specific exceptions (Texas counties reporting a day ahead, the
// Florida ICU window, state bed columns, backfills) live in rules.yaml and
// are compiled in; an operator can supply a replacement file.
package domain
