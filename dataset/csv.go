package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// DefaultNAValues are the cell spellings read as missing, matching pandas'
// read_csv defaults.
var DefaultNAValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a",
	"nan", "null",
}

// IsNAValue reports whether v is one of DefaultNAValues.
func IsNAValue(v string) bool {
	return slices.Contains(DefaultNAValues, v)
}

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	Delimiter rune     // Field delimiter (default: ',')
	NAValues  []string // Cell values treated as missing (default: DefaultNAValues)
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		Delimiter: ',',
		NAValues:  DefaultNAValues,
	}
}

// LoadCSV loads a Frame from a CSV file with a header row.
func LoadCSV(filename string, opts *CSVOptions) (*Frame, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset %s", filename)
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads a Frame from an io.Reader.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Frame, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}
	na := make(map[string]struct{}, len(opts.NAValues))
	for _, v := range opts.NAValues {
		na[v] = struct{}{}
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewDataError("", 0, "missing header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = h
	}

	var rows [][]string
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read CSV row %d", line)
		}
		if len(record) != len(header) {
			return nil, errors.NewDataError("", line, "ragged row: expected "+strconv.Itoa(len(header))+" fields, got "+strconv.Itoa(len(record)))
		}
		for j, v := range record {
			if _, isNA := na[v]; isNA {
				record[j] = Missing
			}
		}
		rows = append(rows, record)
	}

	return NewFrame(header, rows)
}
