package pipeline

import (
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/dataset"
	"github.com/YuminosukeSato/loanml/loan"
	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/pkg/log"
	"github.com/YuminosukeSato/loanml/preprocessing"
)

// Prepared is the dataset after imputation and label encoding, split into
// the feature matrix and the encoded target.
type Prepared struct {
	// Frame holds the imputed cells with categorical columns replaced by codes.
	Frame    *dataset.Frame
	Imputer  *preprocessing.SimpleImputer
	Encoders map[string]*preprocessing.LabelEncoder

	// FeatureColumns are the model inputs in CSV order.
	FeatureColumns []string
	// Dropped lists columns left out of the features, with the reason.
	Dropped map[string]string

	X *mat.Dense
	Y *mat.Dense
}

// Prepare imputes every column with its mode, label-encodes the categorical
// columns and extracts X and y. Columns with no observed value and
// non-numeric columns that are not known categoricals are dropped.
func Prepare(f *dataset.Frame, logger log.Logger) (*Prepared, error) {
	if logger == nil {
		logger = log.GetLoggerWithName("pipeline")
	}
	if !f.HasColumn(loan.TargetColumn) {
		return nil, errors.NewDataError(loan.TargetColumn, 0, "target column is missing")
	}
	if f.NumRows() == 0 {
		return nil, errors.NewModelError("pipeline.Prepare", "empty data", errors.ErrEmptyData)
	}

	dropped := make(map[string]string)
	missing := f.MissingCount()
	var keep []string
	for _, c := range f.Columns() {
		if missing[c] == f.NumRows() {
			if c == loan.TargetColumn {
				return nil, errors.NewDataError(c, 0, "target column has no values")
			}
			dropped[c] = "no observed values"
			continue
		}
		if missing[c] > 0 {
			logger.Debug("Imputing column", log.ColumnKey, c, log.MissingKey, missing[c])
		}
		keep = append(keep, c)
	}
	if len(keep) != len(f.Columns()) {
		var err error
		if f, err = selectColumns(f, keep); err != nil {
			return nil, err
		}
	}

	imputer := preprocessing.NewSimpleImputer()
	imputed, err := imputer.FitTransform(f)
	if err != nil {
		return nil, err
	}

	encoders := make(map[string]*preprocessing.LabelEncoder)
	for _, c := range imputed.Columns() {
		if !loan.IsCategorical(c) {
			continue
		}
		values, err := imputed.Column(c)
		if err != nil {
			return nil, err
		}
		enc := preprocessing.NewLabelEncoder()
		codes, err := enc.FitTransform(values)
		if err != nil {
			return nil, errors.Wrapf(err, "encode column %s", c)
		}
		for i, code := range codes {
			if err := imputed.Set(i, c, strconv.Itoa(code)); err != nil {
				return nil, err
			}
		}
		encoders[c] = enc
	}

	var features []string
	for _, c := range loan.FeatureColumnsOf(imputed.Columns()) {
		if _, ok := encoders[c]; !ok {
			numeric, err := imputed.IsNumeric(c)
			if err != nil {
				return nil, err
			}
			if !numeric {
				dropped[c] = "not numeric"
				continue
			}
		}
		features = append(features, c)
	}
	for c, reason := range dropped {
		logger.Warn("Dropping column", log.ColumnKey, c, "reason", reason)
	}
	if len(features) == 0 {
		return nil, errors.NewDataError("", 0, "no usable feature columns")
	}

	X, err := imputed.Float64Matrix(features)
	if err != nil {
		return nil, err
	}
	y, err := imputed.Float64Matrix([]string{loan.TargetColumn})
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Frame:          imputed,
		Imputer:        imputer,
		Encoders:       encoders,
		FeatureColumns: features,
		Dropped:        dropped,
		X:              X,
		Y:              y,
	}, nil
}

// selectColumns returns a frame holding only the given columns.
func selectColumns(f *dataset.Frame, columns []string) (*dataset.Frame, error) {
	cols := make([][]string, len(columns))
	for j, c := range columns {
		values, err := f.Column(c)
		if err != nil {
			return nil, err
		}
		cols[j] = values
	}
	rows := make([][]string, f.NumRows())
	for i := range rows {
		row := make([]string, len(columns))
		for j := range columns {
			row[j] = cols[j][i]
		}
		rows[i] = row
	}
	return dataset.NewFrame(columns, rows)
}

// takeRows copies the given rows of m.
func takeRows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		out.SetRow(k, m.RawRowView(i))
	}
	return out
}
