package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		1, 10, 5,
		2, 20, 5,
		3, 30, 5,
		4, 40, 5,
	})

	scaler := NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 25, 5}, scaler.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), scaler.Scale[0], 1e-12)
	assert.Equal(t, 1.0, scaler.Scale[2], "constant column keeps unit scale")

	r, c := Xs.Dims()
	for j := 0; j < c; j++ {
		col := make([]float64, r)
		mat.Col(col, j, Xs)
		var sum, sq float64
		for _, v := range col {
			sum += v
			sq += v * v
		}
		assert.InDelta(t, 0, sum/float64(r), 1e-12)
		if j < 2 {
			assert.InDelta(t, 1, sq/float64(r), 1e-12)
		}
	}

	back, err := scaler.InverseTransform(Xs)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-9))
}

func TestStandardScaler_TransformUsesTrainingStatistics(t *testing.T) {
	train := mat.NewDense(2, 1, []float64{0, 2})
	test := mat.NewDense(1, 1, []float64{4})

	scaler := NewStandardScalerDefault()
	require.NoError(t, scaler.Fit(train))
	out, err := scaler.Transform(test)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, out.At(0, 0), 1e-12)
}

func TestStandardScaler_Options(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{2, 4})

	noMean := NewStandardScaler(false, true)
	out, err := noMean.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out.At(0, 0), 1e-12)

	noStd := NewStandardScaler(true, false)
	out, err = noStd.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, out.At(0, 0), 1e-12)
	assert.Equal(t, "StandardScaler(with_mean=true, with_std=false, n_features=1)", noStd.String())
}

func TestStandardScaler_Errors(t *testing.T) {
	scaler := NewStandardScalerDefault()

	_, err := scaler.Transform(mat.NewDense(1, 2, nil))
	var nfe *errors.NotFittedError
	assert.True(t, errors.As(err, &nfe))

	require.NoError(t, scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = scaler.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}
