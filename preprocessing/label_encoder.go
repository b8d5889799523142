package preprocessing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/dataset"
	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// LabelEncoder はカテゴリ値を 0..n_classes-1 の整数に変換する
//
// クラスはソート済みで保持される。すべての値が数値として解釈できる場合は
// 数値順、それ以外は辞書順。
type LabelEncoder struct {
	*model.StateManager

	// Classes は学習したクラス（ソート済み）
	Classes []string

	// Numeric はクラスを数値として扱うかどうか
	Numeric bool
}

// NewLabelEncoder は新しい LabelEncoder を作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{StateManager: model.NewStateManager()}
}

// Fit はクラスの一覧を学習する
func (e *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if e.StateManager == nil {
		e.StateManager = model.NewStateManager()
	}

	numeric := true
	for i, v := range values {
		if dataset.IsMissing(v) {
			return errors.NewDataError("", i+1, "missing value; impute before encoding")
		}
		if _, err := dataset.ParseFloat(v); err != nil {
			numeric = false
		}
	}

	seen := make(map[string]struct{})
	var classes []string
	for _, v := range values {
		key := canonical(v, numeric)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		classes = append(classes, key)
	}

	if numeric {
		sort.Slice(classes, func(i, j int) bool {
			a, _ := dataset.ParseFloat(classes[i])
			b, _ := dataset.ParseFloat(classes[j])
			return a < b
		})
	} else {
		sort.Strings(classes)
	}

	e.Classes = classes
	e.Numeric = numeric
	e.SetDimensions(1, len(values))
	e.SetFitted()
	return nil
}

// Transform はラベルを整数コードに変換する
func (e *LabelEncoder) Transform(values []string) ([]int, error) {
	if err := e.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		index[c] = i
	}

	codes := make([]int, len(values))
	var unseen []string
	for i, v := range values {
		code, ok := index[canonical(v, e.Numeric)]
		if !ok {
			unseen = append(unseen, v)
			continue
		}
		codes[i] = code
	}
	if len(unseen) > 0 {
		return nil, errors.NewValueError("LabelEncoder.Transform",
			fmt.Sprintf("y contains previously unseen labels: [%s]", strings.Join(unseen, " ")))
	}
	return codes, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (e *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// InverseTransform は整数コードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if err := e.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d out of range [0, %d)", c, len(e.Classes)))
		}
		out[i] = e.Classes[c]
	}
	return out, nil
}

// Code returns the integer code of a single label.
func (e *LabelEncoder) Code(label string) (int, error) {
	codes, err := e.Transform([]string{label})
	if err != nil {
		return 0, err
	}
	return codes[0], nil
}

func canonical(v string, numeric bool) string {
	if !numeric {
		return v
	}
	x, err := dataset.ParseFloat(v)
	if err != nil {
		return v
	}
	return dataset.FormatFloat(x)
}
