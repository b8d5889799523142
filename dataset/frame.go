// Package dataset holds tabular data as read from CSV: a header plus string
// cells, where the empty string marks a missing value.
package dataset

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// Missing is the cell value of a missing observation.
const Missing = ""

// Frame is an in-memory table of string cells.
type Frame struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// NewFrame builds a Frame from a header and rows. Every row must have exactly
// len(header) cells and column names must be unique.
func NewFrame(header []string, rows [][]string) (*Frame, error) {
	if len(header) == 0 {
		return nil, errors.NewDataError("", 0, "header is empty")
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; dup {
			return nil, errors.NewDataError(h, 0, "duplicate column name")
		}
		index[h] = i
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, errors.NewDataError("", i+1, "expected "+strconv.Itoa(len(header))+" fields, got "+strconv.Itoa(len(row)))
		}
	}
	return &Frame{
		header: append([]string(nil), header...),
		index:  index,
		rows:   rows,
	}, nil
}

// NumRows returns the number of data rows.
func (f *Frame) NumRows() int {
	return len(f.rows)
}

// Columns returns a copy of the header.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.header...)
}

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	if i, ok := f.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether name is part of the header.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a copy of the cells of column name.
func (f *Frame) Column(name string) ([]string, error) {
	j, err := f.mustIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[j]
	}
	return out, nil
}

// At returns the cell at row i of column name.
func (f *Frame) At(i int, name string) (string, error) {
	j, err := f.mustIndex(name)
	if err != nil {
		return "", err
	}
	return f.rows[i][j], nil
}

// Set overwrites the cell at row i of column name.
func (f *Frame) Set(i int, name, value string) error {
	j, err := f.mustIndex(name)
	if err != nil {
		return err
	}
	f.rows[i][j] = value
	return nil
}

// IsMissing reports whether a cell value is the missing marker.
func IsMissing(v string) bool {
	return v == Missing
}

// IsNumeric reports whether every observed cell of column name parses as a
// float. A column with no observed cell is not numeric.
func (f *Frame) IsNumeric(name string) (bool, error) {
	j, err := f.mustIndex(name)
	if err != nil {
		return false, err
	}
	observed := 0
	for _, row := range f.rows {
		if IsMissing(row[j]) {
			continue
		}
		if _, err := ParseFloat(row[j]); err != nil {
			return false, nil
		}
		observed++
	}
	return observed > 0, nil
}

// MissingCount returns the number of missing cells per column, in header order.
func (f *Frame) MissingCount() map[string]int {
	counts := make(map[string]int, len(f.header))
	for _, h := range f.header {
		counts[h] = 0
	}
	for _, row := range f.rows {
		for j, v := range row {
			if IsMissing(v) {
				counts[f.header[j]]++
			}
		}
	}
	return counts
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	rows := make([][]string, len(f.rows))
	for i, row := range f.rows {
		rows[i] = append([]string(nil), row...)
	}
	index := make(map[string]int, len(f.index))
	for k, v := range f.index {
		index[k] = v
	}
	return &Frame{header: f.Columns(), index: index, rows: rows}
}

// SelectRows returns a new Frame holding copies of the given rows in order.
func (f *Frame) SelectRows(indices []int) (*Frame, error) {
	rows := make([][]string, len(indices))
	for k, i := range indices {
		if i < 0 || i >= len(f.rows) {
			return nil, errors.NewValueError("Frame.SelectRows", "row index "+strconv.Itoa(i)+" out of range")
		}
		rows[k] = append([]string(nil), f.rows[i]...)
	}
	return &Frame{header: f.Columns(), index: f.index, rows: rows}, nil
}

// Float64Matrix converts the given columns into an n×len(columns) matrix.
// Missing or non-numeric cells are reported as DataErrors.
func (f *Frame) Float64Matrix(columns []string) (*mat.Dense, error) {
	if len(f.rows) == 0 {
		return nil, errors.ErrEmptyData
	}
	idx := make([]int, len(columns))
	for k, c := range columns {
		j, err := f.mustIndex(c)
		if err != nil {
			return nil, err
		}
		idx[k] = j
	}

	data := make([]float64, len(f.rows)*len(columns))
	for i, row := range f.rows {
		for k, j := range idx {
			if IsMissing(row[j]) {
				return nil, errors.NewDataError(columns[k], i+1, "missing value")
			}
			v, err := ParseFloat(row[j])
			if err != nil {
				return nil, errors.NewDataError(columns[k], i+1, "not numeric: "+strconv.Quote(row[j]))
			}
			data[i*len(columns)+k] = v
		}
	}
	return mat.NewDense(len(f.rows), len(columns), data), nil
}

func (f *Frame) mustIndex(name string) (int, error) {
	j, ok := f.index[name]
	if !ok {
		return -1, errors.NewDataError(name, 0, "no such column")
	}
	return j, nil
}

// ParseFloat parses a numeric cell, tolerating surrounding spaces.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// FormatFloat renders a number the way it is written back into a cell.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
