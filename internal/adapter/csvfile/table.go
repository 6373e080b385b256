package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/covid-projections/covid-data-etl/internal/domain"
)

// Output tables relative to the data root.
const (
	CovidUSOutput  = "cases-covid-county-data/timeseries-common.csv"
	USAFactsOutput = "cases-covid-county-data/timeseries-usafacts.csv"
	ForecastOutput = "forecast-hub/timeseries-common.csv"
)

// TableWriter writes a canonical table to a CSV file. It implements
// pipeline.Loader.
type TableWriter struct {
	path   string
	logger *slog.Logger
}

// NewTableWriter creates a writer for path.
func NewTableWriter(path string, logger *slog.Logger) *TableWriter {
	return &TableWriter{path: path, logger: logger.With("component", "csv_writer", "path", path)}
}

// Load writes the table atomically: dates as YYYY-MM-DD, numbers with up to
// 12 significant digits and nulls as empty cells.
func (w *TableWriter) Load(ctx context.Context, t domain.Table) error {
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = string(c)
	}
	err := writeAtomic(w.path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(header); err != nil {
			return err
		}
		record := make([]string, len(t.Columns))
		for _, r := range t.Rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i, c := range t.Columns {
				record[i] = domain.FormatValue(r[c])
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	w.logger.Info("wrote table", "rows", t.Len(), "columns", len(t.Columns))
	return nil
}

// ReadTable reads a canonical table written by TableWriter, typing each
// column by its field kind.
func ReadTable(path string) (domain.Table, error) {
	raw, err := readRaw(path)
	if err != nil {
		return domain.Table{}, err
	}
	t := domain.Table{Columns: make([]domain.Field, len(raw.Columns))}
	for i, c := range raw.Columns {
		t.Columns[i] = domain.Field(c)
	}
	t.Rows = make([]domain.Row, len(raw.Records))
	for i, rec := range raw.Records {
		row := make(domain.Row, len(t.Columns))
		for _, f := range t.Columns {
			row[f] = domain.Coerce(f.Kind(), rec[string(f)])
		}
		t.Rows[i] = row
	}
	return t, nil
}

// readRaw reads a CSV file with a header row. Cells stay strings; empty
// cells are nil.
func readRaw(path string) (domain.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RawTable{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read header of %s: %w", path, err)
	}
	raw := domain.RawTable{Columns: header}
	for {
		values, err := r.Read()
		if err == io.EOF {
			return raw, nil
		}
		if err != nil {
			return domain.RawTable{}, fmt.Errorf("read %s: %w", path, err)
		}
		rec := make(domain.RawRecord, len(header))
		for i, h := range header {
			if values[i] == "" {
				rec[h] = nil
			} else {
				rec[h] = values[i]
			}
		}
		raw.Records = append(raw.Records, rec)
	}
}

// writeRaw writes a raw table with its columns as the header.
func writeRaw(path string, raw domain.RawTable) error {
	return writeAtomic(path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(raw.Columns); err != nil {
			return err
		}
		record := make([]string, len(raw.Columns))
		for _, rec := range raw.Records {
			for i, c := range raw.Columns {
				record[i] = domain.FormatValue(rec[c])
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// writeAtomic writes to a temporary file beside path and renames it into
// place, so readers never see a partial file.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
