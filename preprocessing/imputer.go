package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/dataset"
	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// Imputation strategies.
const (
	StrategyMostFrequent = "most_frequent"
	StrategyConstant     = "constant"
)

// SimpleImputer は欠損値を列ごとの代表値で埋める
//
// most_frequent では観測値の最頻値を使い、同数の場合は最小の値を選ぶ
// （数値列は数値順、それ以外は辞書順）。
type SimpleImputer struct {
	*model.StateManager

	// Strategy は "most_frequent" または "constant"
	Strategy string

	// FillValue は constant 戦略で使う値
	FillValue string

	// Columns は学習した列名（学習時の順序）
	Columns []string

	// Statistics は列ごとの補完値
	Statistics map[string]string
}

// ImputerOption configures a SimpleImputer.
type ImputerOption func(*SimpleImputer)

// WithStrategy sets the imputation strategy.
func WithStrategy(strategy string) ImputerOption {
	return func(s *SimpleImputer) { s.Strategy = strategy }
}

// WithFillValue sets the value used by the constant strategy.
func WithFillValue(v string) ImputerOption {
	return func(s *SimpleImputer) { s.FillValue = v }
}

// NewSimpleImputer は most_frequent 戦略の SimpleImputer を作成する
func NewSimpleImputer(opts ...ImputerOption) *SimpleImputer {
	s := &SimpleImputer{
		StateManager: model.NewStateManager(),
		Strategy:     StrategyMostFrequent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit は各列の補完値を計算する
func (s *SimpleImputer) Fit(f *dataset.Frame) error {
	if f.NumRows() == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	if s.StateManager == nil {
		s.StateManager = model.NewStateManager()
	}

	columns := f.Columns()
	stats := make(map[string]string, len(columns))
	for _, c := range columns {
		switch s.Strategy {
		case StrategyMostFrequent:
			v, err := mostFrequent(f, c)
			if err != nil {
				return err
			}
			stats[c] = v
		case StrategyConstant:
			if dataset.IsMissing(s.FillValue) {
				return errors.NewValidationError("fill_value", "must not be the missing marker", s.FillValue)
			}
			stats[c] = s.FillValue
		default:
			return errors.NewValidationError("strategy", "must be most_frequent or constant", s.Strategy)
		}
	}

	s.Columns = columns
	s.Statistics = stats
	s.SetDimensions(len(columns), f.NumRows())
	s.SetFitted()
	return nil
}

// Transform は欠損セルを補完した新しい Frame を返す
//
// 学習時に存在しなかった列は、欠損がなければそのまま通す。
func (s *SimpleImputer) Transform(f *dataset.Frame) (*dataset.Frame, error) {
	if err := s.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}

	out := f.Clone()
	for _, c := range out.Columns() {
		fill, known := s.Statistics[c]
		for i := 0; i < out.NumRows(); i++ {
			v, _ := out.At(i, c)
			if !dataset.IsMissing(v) {
				continue
			}
			if !known {
				return nil, errors.NewDataError(c, i+1, "missing value in a column the imputer was not fitted on")
			}
			if err := out.Set(i, c, fill); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (s *SimpleImputer) FitTransform(f *dataset.Frame) (*dataset.Frame, error) {
	if err := s.Fit(f); err != nil {
		return nil, err
	}
	return s.Transform(f)
}

// GetParams はパラメータを返す
func (s *SimpleImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy":   s.Strategy,
		"fill_value": s.FillValue,
	}
}

func mostFrequent(f *dataset.Frame, column string) (string, error) {
	values, err := f.Column(column)
	if err != nil {
		return "", err
	}
	numeric, err := f.IsNumeric(column)
	if err != nil {
		return "", err
	}

	if numeric {
		counts := make(map[float64]int)
		for _, v := range values {
			if dataset.IsMissing(v) {
				continue
			}
			x, _ := dataset.ParseFloat(v)
			counts[x]++
		}
		best, bestCount := math.Inf(1), 0
		for x, n := range counts {
			if n > bestCount || (n == bestCount && x < best) {
				best, bestCount = x, n
			}
		}
		return dataset.FormatFloat(best), nil
	}

	counts := make(map[string]int)
	for _, v := range values {
		if !dataset.IsMissing(v) {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return "", errors.NewDataError(column, 0, "no observed value to impute from")
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, nil
}
