package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/okian/pitwall/internal/domain/model"
)

// Output file names written by WriteFiles.
const (
	DatasetFile  = "f1_dataset.csv"
	CoverageFile = "f1_coverage.csv"
)

var datasetKeyColumns = []string{"source", "event_name", "year", "round_number", "event_key", "driver_id", "driver_name"}

var coverageColumns = []string{
	"source", "year", "round_number", "event_name", "drivers",
	"fp_available", "qualifying_available", "race_available", "standings_available",
}

// ValueColumns returns the value columns present in rows: practice columns,
// then joined facts, then anything else sorted by name.
func ValueColumns(rows []Row) []string {
	present := make(map[string]bool)
	for _, r := range rows {
		for k := range r.Record.Values {
			present[k] = true
		}
	}
	var cols []string
	for _, group := range [][]string{model.PracticeColumns, FactColumns} {
		for _, c := range group {
			if present[c] {
				cols = append(cols, c)
				delete(present, c)
			}
		}
	}
	rest := make([]string, 0, len(present))
	for c := range present {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// WriteDatasetCSV writes one line per row. Missing values are empty cells.
func WriteDatasetCSV(w io.Writer, rows []Row) error {
	cols := ValueColumns(rows)
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), datasetKeyColumns...), cols...)); err != nil {
		return fmt.Errorf("write dataset header: %w", err)
	}
	line := make([]string, 0, len(datasetKeyColumns)+len(cols))
	for _, r := range rows {
		line = append(line[:0],
			r.Source, r.EventName,
			strconv.Itoa(r.Year), strconv.Itoa(r.Round), strconv.Itoa(r.EventKey),
			r.Record.DriverID, r.Record.DisplayName(),
		)
		for _, c := range cols {
			if v, ok := r.Record.Get(c); ok {
				line = append(line, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				line = append(line, "")
			}
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write dataset row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCoverageCSV writes one line per visited round with 0/1 flags.
func WriteCoverageCSV(w io.Writer, coverage []Coverage) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(coverageColumns); err != nil {
		return fmt.Errorf("write coverage header: %w", err)
	}
	for _, c := range coverage {
		if err := cw.Write([]string{
			c.Source, strconv.Itoa(c.Year), strconv.Itoa(c.Round), c.EventName, strconv.Itoa(c.Drivers),
			flag(c.Practice), flag(c.Qualifying), flag(c.Race), flag(c.Standings),
		}); err != nil {
			return fmt.Errorf("write coverage row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFiles writes the dataset and coverage CSVs into dir and returns their
// paths. Each file is replaced atomically.
func WriteFiles(dir string, res Result) (datasetPath, coveragePath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}
	datasetPath = filepath.Join(dir, DatasetFile)
	if err := writeAtomic(datasetPath, func(w io.Writer) error { return WriteDatasetCSV(w, res.Rows) }); err != nil {
		return "", "", err
	}
	coveragePath = filepath.Join(dir, CoverageFile)
	if err := writeAtomic(coveragePath, func(w io.Writer) error { return WriteCoverageCSV(w, res.Coverage) }); err != nil {
		return "", "", err
	}
	return datasetPath, coveragePath, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
