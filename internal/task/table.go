package task

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table is a task backed by numeric CSV rows. Columns whose header starts
// with "class" are targets, a "t" column is skipped, and every other column
// is an input. Each column is min-max scaled into [0, 1].
type Table struct {
	name    string
	inputs  int
	outputs int
	samples []Sample
	targets []columnRange
}

type columnRange struct {
	min, max float64
}

func (t *Table) Name() string { return t.name }
func (t *Table) Description() string {
	return fmt.Sprintf("csv table with %d rows", len(t.samples))
}
func (t *Table) Inputs() int  { return t.inputs }
func (t *Table) Outputs() int { return t.outputs }

func (t *Table) Samples() []Sample {
	out := make([]Sample, len(t.samples))
	for i, s := range t.samples {
		out[i] = Sample{
			Input:  append([]float64(nil), s.Input...),
			Target: append([]float64(nil), s.Target...),
		}
	}
	return out
}

// DecodeTarget maps a normalized output back to the scale of target column i.
func (t *Table) DecodeTarget(i int, value float64) float64 {
	r := t.targets[i]
	return fromUnit(value, r.min, r.max)
}

// LoadTableCSV reads a table task from path, named after the file stem.
func LoadTableCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ReadTableCSV(f, name)
}

func ReadTableCSV(in io.Reader, name string) (*Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("table name is required")
	}
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("table %s is empty", name)
	}
	if err != nil {
		return nil, fmt.Errorf("read table csv header: %w", err)
	}

	var inputCols, targetCols []int
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		switch {
		case key == "t":
		case strings.HasPrefix(key, "class"):
			targetCols = append(targetCols, i)
		default:
			inputCols = append(inputCols, i)
		}
	}
	if len(inputCols) == 0 || len(targetCols) == 0 {
		return nil, fmt.Errorf("table %s needs at least one input and one class column", name)
	}

	var rows [][]float64
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read table csv row %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("table row %d: expected %d fields, got %d", line, len(header), len(record))
		}
		row := make([]float64, len(record))
		for i, raw := range record {
			if strings.ToLower(strings.TrimSpace(header[i])) == "t" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("parse table row %d column %d: %w", line, i, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %s has no rows", name)
	}

	ranges := make([]columnRange, len(header))
	for c := range header {
		r := columnRange{min: rows[0][c], max: rows[0][c]}
		for _, row := range rows[1:] {
			r.min = min(r.min, row[c])
			r.max = max(r.max, row[c])
		}
		ranges[c] = r
	}

	table := &Table{name: name, inputs: len(inputCols), outputs: len(targetCols)}
	for _, c := range targetCols {
		table.targets = append(table.targets, ranges[c])
	}
	for _, row := range rows {
		s := Sample{
			Input:  make([]float64, len(inputCols)),
			Target: make([]float64, len(targetCols)),
		}
		for i, c := range inputCols {
			s.Input[i] = toUnit(row[c], ranges[c].min, ranges[c].max)
		}
		for i, c := range targetCols {
			s.Target[i] = toUnit(row[c], ranges[c].min, ranges[c].max)
		}
		table.samples = append(table.samples, s)
	}
	return table, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
