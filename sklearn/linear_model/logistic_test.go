package linear_model

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	// Class 0: points around (1, 1), Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRTol(1e-4))
	require.NoError(t, lr.Fit(X, y))

	predictions, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.Equal(t, y.At(i, 0), predictions.At(i, 0), "sample %d", i)
	}

	XTest := mat.NewDense(2, 2, []float64{
		1.0, 1.0,
		3.0, 3.0,
	})
	testPreds, err := lr.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, 0.0, testPreds.At(0, 0))
	assert.Equal(t, 1.0, testPreds.At(1, 0))
	assert.Equal(t, []int{0, 1}, lr.Classes())
}

// TestLogisticRegression_PredictProba tests probability predictions
func TestLogisticRegression_PredictProba(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(500))
	require.NoError(t, lr.Fit(X, y))

	probas, err := lr.PredictProba(X)
	require.NoError(t, err)

	rows, cols := probas.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, 2, cols)

	predictions, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		p0, p1 := probas.At(i, 0), probas.At(i, 1)
		assert.GreaterOrEqual(t, p0, 0.0)
		assert.LessOrEqual(t, p1, 1.0)
		assert.InDelta(t, 1.0, p0+p1, 1e-9)

		// the predicted class carries the higher probability
		if predictions.At(i, 0) == 1 {
			assert.Greater(t, p1, p0, "sample %d", i)
		} else {
			assert.GreaterOrEqual(t, p0, p1, "sample %d", i)
		}
	}
}

// TestLogisticRegression_Score tests accuracy calculation
func TestLogisticRegression_Score(t *testing.T) {
	// class 1 when at least two features are set
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 0, 1,
		0, 1, 0,
		0, 1, 1,
		1, 0, 0,
		1, 0, 1,
		1, 1, 0,
		1, 1, 1,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 1, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRC(10.0))
	require.NoError(t, lr.Fit(X, y))
	assert.GreaterOrEqual(t, lr.Score(X, y), 0.75)

	XSimple := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
	})
	ySimple := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr2 := NewLogisticRegression(WithLRMaxIter(1000), WithLRC(10.0))
	require.NoError(t, lr2.Fit(XSimple, ySimple))
	assert.Equal(t, 1.0, lr2.Score(XSimple, ySimple))
}

// TestLogisticRegression_Regularization tests L2 regularization
func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 1, 1, 0, 0, 1, 1, 1})

	lrStrong := NewLogisticRegression(WithLRC(0.01), WithLRMaxIter(1000))
	require.NoError(t, lrStrong.Fit(X, y))

	lrWeak := NewLogisticRegression(WithLRC(100.0), WithLRMaxIter(1000))
	require.NoError(t, lrWeak.Fit(X, y))

	norm := func(w []float64) float64 {
		s := 0.0
		for _, v := range w {
			s += v * v
		}
		return math.Sqrt(s)
	}
	assert.Less(t, norm(lrStrong.Coef[0]), norm(lrWeak.Coef[0]),
		"strong regularization should produce smaller weights")
}

// TestLogisticRegression_Multiclass tests one-vs-rest classification
func TestLogisticRegression_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
		4, 4,
		4, 5,
		5, 4,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRC(10.0))
	require.NoError(t, lr.Fit(X, y))

	assert.Equal(t, []int{0, 1, 2}, lr.Classes())
	assert.Len(t, lr.Coef, 3)

	// the outer classes are linearly separable from the rest
	predictions, err := lr.Predict(X)
	require.NoError(t, err)
	for _, i := range []int{0, 1, 2, 6, 7, 8} {
		assert.Equal(t, y.At(i, 0), predictions.At(i, 0), "sample %d", i)
	}

	probas, err := lr.PredictProba(X)
	require.NoError(t, err)
	rows, cols := probas.Dims()
	require.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			p := probas.At(i, j)
			assert.True(t, p >= 0 && p <= 1, "invalid probability at (%d, %d): %v", i, j, p)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

// TestLogisticRegression_ConvergenceWarning checks that hitting max_iter warns
func TestLogisticRegression_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1), WithLRTol(0), WithLRC(1e6))
	require.NoError(t, lr.Fit(X, y))

	require.NotEmpty(t, warnings)
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warnings[0], &cw))
	assert.Equal(t, "lbfgs", cw.Algorithm)
}

// TestLogisticRegression_GetSetParams tests parameter management
func TestLogisticRegression_GetSetParams(t *testing.T) {
	lr := NewLogisticRegression()

	params := lr.GetParams()
	assert.Equal(t, 1.0, params["C"])
	assert.Equal(t, 100, params["max_iter"])
	assert.Equal(t, "lbfgs", params["solver"])

	require.NoError(t, lr.SetParams(map[string]interface{}{
		"C":        2.0,
		"max_iter": 200,
		"penalty":  "none",
		"tol":      1e-5,
	}))
	assert.Equal(t, 2.0, lr.C)
	assert.Equal(t, 200, lr.MaxIter)
	assert.Equal(t, "none", lr.Penalty)
	assert.Equal(t, 1e-5, lr.Tol)

	assert.Error(t, lr.SetParams(map[string]interface{}{"unknown": 1}))
	assert.Error(t, lr.SetParams(map[string]interface{}{"C": "high"}))
}

func TestLogisticRegression_InvalidParams(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})

	tests := []struct {
		name string
		opt  LogisticRegressionOption
	}{
		{"non-positive C", WithLRC(0)},
		{"zero max_iter", WithLRMaxIter(0)},
		{"l1 penalty", WithLRPenalty("l1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *errors.ValidationError
			err := NewLogisticRegression(tt.opt).Fit(X, y)
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

// TestLogisticRegression_NotFitted tests error when predicting without fitting
func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	var nf *errors.NotFittedError
	_, err := lr.Predict(X)
	assert.True(t, errors.As(err, &nf))

	_, err = lr.PredictProba(X)
	assert.True(t, errors.As(err, &nf))
}

func TestLogisticRegression_DimensionMismatch(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	var de *errors.DimensionError
	_, err := lr.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	assert.True(t, errors.As(err, &de))
}

func TestLogisticRegression_NonFiniteLoss(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 0, math.NaN(), 1, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	lr := NewLogisticRegression()

	err := lr.Fit(X, y)
	var ni *errors.NumericalInstabilityError
	require.True(t, errors.As(err, &ni), "err = %v", err)
	assert.Equal(t, "lbfgs_loss", ni.Operation)
	assert.False(t, lr.IsFitted())
}

func TestLogisticRegression_GobRoundTrip(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(lr))
	var restored LogisticRegression
	require.NoError(t, gob.NewDecoder(&buf).Decode(&restored))

	want, err := lr.PredictProba(X)
	require.NoError(t, err)
	got, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
