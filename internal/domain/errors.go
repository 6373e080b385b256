package domain

import (
	"fmt"
	"strings"
	"time"
)

// MissingColumnError reports a raw column required by a mandatory canonical
// field that the source did not deliver.
type MissingColumnError struct {
	Column string
	Field  Field
}

func (e *MissingColumnError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("missing column %q", e.Column)
	}
	return fmt.Sprintf("missing column %q required for %s", e.Column, e.Field)
}

// StaleDataError reports a feed whose newest observation is older than the
// allowed threshold.
type StaleDataError struct {
	Latest    time.Time
	Threshold time.Time
}

func (e *StaleDataError) Error() string {
	if e.Latest.IsZero() {
		return "stale data: feed has no dated rows"
	}
	return fmt.Sprintf("stale data: latest date is %s, need %s or later",
		e.Latest.Format(DateLayout), e.Threshold.Format(DateLayout))
}

// TargetParseError reports a forecast target descriptor that does not follow
// "<N> <wk|day> [ahead] <inc|cum> <type>".
type TargetParseError struct {
	Target string
	Reason string
}

func (e *TargetParseError) Error() string {
	return fmt.Sprintf("parse target %q: %s", e.Target, e.Reason)
}

// DuplicateKeyError reports two rows sharing the same timeseries key.
type DuplicateKeyError struct {
	Keys   []Field
	Values []string
	Column Field // set when the collision is on a pivoted value column
}

func (e *DuplicateKeyError) Error() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = fmt.Sprintf("%s=%s", k, e.Values[i])
	}
	msg := "duplicate timeseries key (" + strings.Join(parts, ", ") + ")"
	if e.Column != "" {
		msg += " for column " + string(e.Column)
	}
	return msg
}
