package neighbors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

func TestKNeighborsClassifier_Predict(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		5, 5,
		5, 6,
		6, 5,
		6, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, knn.Fit(X, y))

	tests := []struct {
		name  string
		x     []float64
		want  float64
		proba []float64
	}{
		{"near origin", []float64{0.2, 0.3}, 0, []float64{1, 0}},
		{"near far cluster", []float64{5.5, 5.4}, 1, []float64{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mat.NewDense(1, 2, tt.x)
			pred, err := knn.Predict(q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred.At(0, 0))

			proba, err := knn.PredictProba(q)
			require.NoError(t, err)
			assert.Equal(t, tt.proba, mat.Row(nil, 0, proba))
		})
	}
}

func TestKNeighborsClassifier_DefaultK(t *testing.T) {
	X := mat.NewDense(7, 1, []float64{0, 1, 2, 3, 10, 11, 12})
	y := mat.NewDense(7, 1, []float64{0, 0, 0, 1, 1, 1, 1})

	knn := NewKNeighborsClassifier()
	assert.Equal(t, 5, knn.GetParams()["n_neighbors"])
	require.NoError(t, knn.Fit(X, y))

	// 5 nearest of 1.5: 1, 2, 0, 3, 10 -> three votes for 0
	proba, err := knn.PredictProba(mat.NewDense(1, 1, []float64{1.5}))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, proba.At(0, 0), 1e-12)
	assert.InDelta(t, 0.4, proba.At(0, 1), 1e-12)
}

func TestKNeighborsClassifier_TieGoesToSmallestLabel(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-1, 1, -2, 2})
	y := mat.NewDense(4, 1, []float64{7, 3, 7, 3})

	knn := NewKNeighborsClassifier(WithNNeighbors(2))
	require.NoError(t, knn.Fit(X, y))

	pred, err := knn.Predict(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.Equal(t, 3.0, pred.At(0, 0))
}

func TestKNeighborsClassifier_DistanceWeights(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 3, 4})
	y := mat.NewDense(3, 1, []float64{0, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(3), WithWeights("distance"))
	require.NoError(t, knn.Fit(X, y))

	// weights 1/1 for class 0 against 1/2 + 1/3 for class 1
	pred, err := knn.Predict(mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))

	// an exact match outvotes everything else
	proba, err := knn.PredictProba(mat.NewDense(1, 1, []float64{3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, mat.Row(nil, 0, proba))
}

func TestKNeighborsClassifier_ParallelMatchesSerial(t *testing.T) {
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%17))
		X.Set(i, 1, float64(i%13))
		y.Set(i, 0, float64((i%17+i%13)%2))
	}
	serial := NewKNeighborsClassifier(WithNJobs(1))
	require.NoError(t, serial.Fit(X, y))
	par := NewKNeighborsClassifier(WithNJobs(8))
	require.NoError(t, par.Fit(X, y))

	a, err := serial.PredictProba(X)
	require.NoError(t, err)
	b, err := par.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
}

func TestKNeighborsClassifier_Errors(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{0, 1, 1})

	var verr *errors.ValidationError
	assert.True(t, errors.As(NewKNeighborsClassifier(WithNNeighbors(0)).Fit(X, y), &verr))
	assert.True(t, errors.As(NewKNeighborsClassifier(WithNNeighbors(1), WithWeights("gauss")).Fit(X, y), &verr))

	var vErr *errors.ValueError
	assert.True(t, errors.As(NewKNeighborsClassifier().Fit(X, y), &vErr))

	var nf *errors.NotFittedError
	_, err := NewKNeighborsClassifier().Predict(X)
	assert.True(t, errors.As(err, &nf))

	knn := NewKNeighborsClassifier(WithNNeighbors(1))
	require.NoError(t, knn.Fit(X, y))
	var de *errors.DimensionError
	_, err = knn.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	assert.True(t, errors.As(err, &de))
}
