package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// readColumns parses numeric columns from a CSV file. Lines starting with
// '#' are comments. A first row that does not parse as numbers is treated
// as a header and skipped.
func readColumns(path string, cols ...int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseColumns(f, path, cols...)
}

func parseColumns(r io.Reader, name string, cols ...int) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	out := make([][]float64, len(cols))
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		vals := make([]float64, len(cols))
		bad := -1
		for i, c := range cols {
			if c >= len(rec) {
				return nil, fmt.Errorf("%s row %d: column %d missing (%d fields)", name, row+1, c, len(rec))
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				bad = c
				break
			}
			vals[i] = v
		}
		if bad >= 0 {
			if row == 0 {
				continue
			}
			return nil, fmt.Errorf("%s row %d: column %d is not a number: %q", name, row+1, bad, rec[bad])
		}
		for i := range cols {
			out[i] = append(out[i], vals[i])
		}
	}
	if len(out) > 0 && len(out[0]) == 0 {
		return nil, fmt.Errorf("%s: no numeric rows", name)
	}
	return out, nil
}

// writeColumns writes equal-length columns under a header row.
func writeColumns(w io.Writer, header []string, cols ...[]float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(cols))
	for i := range cols[0] {
		for c := range cols {
			rec[c] = strconv.FormatFloat(cols[c][i], 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeColumnsFile writes columns to path, or stdout when path is "-".
func writeColumnsFile(path string, header []string, cols ...[]float64) error {
	if path == "-" || path == "" {
		return writeColumns(os.Stdout, header, cols...)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeColumns(f, header, cols...); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
