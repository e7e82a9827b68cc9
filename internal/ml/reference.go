package ml

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
)

// Reference holds the distinct values observed per column in the raw training
// dataset. Only the requested columns are retained.
type Reference struct {
	values map[string][]string
	rows   int
}

// LoadReference reads a CSV file with a header row.
func LoadReference(path string, columns []string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference dataset: %w", err)
	}
	defer f.Close()

	ref, err := ReadReference(f, columns)
	if err != nil {
		return nil, fmt.Errorf("reference dataset %s: %w", path, err)
	}

	log.Info().Str("path", path).Int("rows", ref.rows).Int("columns", len(columns)).Msg("reference dataset loaded")
	return ref, nil
}

func ReadReference(r io.Reader, columns []string) (*Reference, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	positions := make([]int, len(columns))
	sets := make([]map[string]struct{}, len(columns))
	for i, col := range columns {
		pos, ok := index[col]
		if !ok {
			return nil, fmt.Errorf("column %q not found in header", col)
		}
		positions[i] = pos
		sets[i] = make(map[string]struct{})
	}

	rows := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rows+2, err)
		}
		rows++
		for i, pos := range positions {
			if pos < len(rec) {
				sets[i][rec[pos]] = struct{}{}
			}
		}
	}

	ref := &Reference{values: make(map[string][]string, len(columns)), rows: rows}
	for i, col := range columns {
		vals := make([]string, 0, len(sets[i]))
		for v := range sets[i] {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		ref.values[col] = vals
	}
	return ref, nil
}

// Values returns a copy of the sorted distinct values of column.
func (r *Reference) Values(column string) ([]string, bool) {
	v, ok := r.values[column]
	if !ok {
		return nil, false
	}
	return append([]string(nil), v...), true
}

func (r *Reference) Rows() int { return r.rows }
