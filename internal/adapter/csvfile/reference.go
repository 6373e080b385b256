package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/covid-projections/covid-data-etl/internal/domain"
)

// Reference file locations relative to the data root.
const (
	StateFile  = "misc/state.txt"
	CountyFile = "misc/fips_population.csv"
)

// ReferenceLoader reads the census state table and the county FIPS table.
// It implements pipeline.ReferenceLoader.
type ReferenceLoader struct {
	statePath  string
	countyPath string
	logger     *slog.Logger
}

// NewReferenceLoader creates a loader for the reference files under dataRoot.
func NewReferenceLoader(dataRoot string, logger *slog.Logger) *ReferenceLoader {
	return &ReferenceLoader{
		statePath:  filepath.Join(dataRoot, StateFile),
		countyPath: filepath.Join(dataRoot, CountyFile),
		logger:     logger.With("component", "reference"),
	}
}

// LoadReference reads both tables concurrently.
func (l *ReferenceLoader) LoadReference(ctx context.Context) (*domain.ReferenceData, error) {
	var (
		states   []domain.StateRef
		counties []domain.CountyRef
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		states, err = readStates(ctx, l.statePath)
		return err
	})
	g.Go(func() error {
		var err error
		counties, err = readCounties(ctx, l.countyPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	l.logger.Debug("loaded reference data", "states", len(states), "counties", len(counties))
	return domain.NewReferenceData(counties, states), nil
}

// readStates parses the pipe-delimited census file
// STATE|STUSAB|STATE_NAME|STATENS.
func readStates(ctx context.Context, path string) ([]domain.StateRef, error) {
	var out []domain.StateRef
	err := readRecords(ctx, path, '|', []string{"STATE", "STUSAB", "STATE_NAME"}, func(rec map[string]string) error {
		fips, _ := domain.FIPSFromCode(rec["STATE"]).(string)
		if len(fips) != domain.StateFIPSLen {
			return fmt.Errorf("invalid state fips %q", rec["STATE"])
		}
		out = append(out, domain.StateRef{
			FIPS: fips,
			Abbr: strings.TrimSpace(rec["STUSAB"]),
			Name: placeName(rec["STATE_NAME"]),
		})
		return nil
	})
	return out, err
}

// readCounties parses fips,state,county,population.
func readCounties(ctx context.Context, path string) ([]domain.CountyRef, error) {
	var out []domain.CountyRef
	err := readRecords(ctx, path, ',', []string{"fips", "state", "county"}, func(rec map[string]string) error {
		fips, _ := domain.FIPSFromCode(rec["fips"]).(string)
		if len(fips) != domain.CountyFIPSLen {
			return fmt.Errorf("invalid county fips %q", rec["fips"])
		}
		c := domain.CountyRef{
			FIPS:  fips,
			State: strings.TrimSpace(rec["state"]),
			Name:  placeName(rec["county"]),
		}
		if p := strings.TrimSpace(rec["population"]); p != "" {
			n, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return fmt.Errorf("invalid population %q for %s", p, fips)
			}
			c.Population = n
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// placeName trims and NFC-normalizes a place name so that composed and
// decomposed spellings (e.g. "Doña Ana") compare equal.
func placeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// readRecords streams a delimited file with a header row, calling fn with
// each record keyed by column name.
func readRecords(ctx context.Context, path string, sep rune, required []string, fn func(map[string]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open reference file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = sep
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for _, col := range required {
		if !slices.Contains(header, col) {
			return fmt.Errorf("%s: %w", path, &domain.MissingColumnError{Column: col})
		}
	}

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		values, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(values) {
				rec[h] = values[i]
			}
		}
		if err := fn(rec); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}
