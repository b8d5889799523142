package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// CheckXY validates a training pair: X non-empty, y an n×1 column of
// integral labels with as many rows as X.
func CheckXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	if X == nil || y == nil {
		return 0, 0, errors.NewModelError(op, "nil input", errors.ErrEmptyData)
	}
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yc != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yc, 1)
	}
	if yr != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yr, 0)
	}
	for i := 0; i < yr; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, 0, errors.NewValidationError("y", "class labels must be integers", v)
		}
	}
	return nSamples, nFeatures, nil
}

// EncodeLabels returns the sorted distinct labels of y and, for each row, the
// index of its label in that slice.
func EncodeLabels(y mat.Matrix) (classes []int, codes []int) {
	n, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < n; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	classes = make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	codes = make([]int, n)
	for i := 0; i < n; i++ {
		codes[i] = index[int(y.At(i, 0))]
	}
	return classes, codes
}

// ArgmaxLabels maps each row of proba to the class with the highest
// probability. Ties go to the first (smallest) class.
func ArgmaxLabels(proba mat.Matrix, classes []int) *mat.Dense {
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(classes[best]))
	}
	return out
}

// Score returns the mean accuracy of p on (X, y), or 0 when prediction fails.
func Score(p Predictor, X, y mat.Matrix) float64 {
	pred, err := p.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := y.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}
