package dataset

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainTestSplit_Sizes(t *testing.T) {
	tests := []struct {
		n         int
		testSize  float64
		wantTrain int
		wantTest  int
	}{
		{614, 0.2, 491, 123},
		{100, 0.2, 80, 20},
		{10, 0.2, 8, 2},
		{5, 0.2, 4, 1},
		{2, 0.5, 1, 1},
	}

	for _, tt := range tests {
		train, test, err := TrainTestSplit(tt.n, tt.testSize, 42)
		require.NoError(t, err)
		assert.Len(t, train, tt.wantTrain, "n=%d", tt.n)
		assert.Len(t, test, tt.wantTest, "n=%d", tt.n)

		all := append(append([]int(nil), train...), test...)
		sort.Ints(all)
		for i, v := range all {
			require.Equal(t, i, v, "split must be a partition of [0, n)")
		}
	}
}

func TestTrainTestSplit_Deterministic(t *testing.T) {
	train1, test1, err := TrainTestSplit(50, 0.2, 42)
	require.NoError(t, err)
	train2, test2, err := TrainTestSplit(50, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)

	_, test3, err := TrainTestSplit(50, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test1, test3)
}

func TestTrainTestSplit_Invalid(t *testing.T) {
	_, _, err := TrainTestSplit(1, 0.2, 42)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(10, 0, 42)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(10, 1, 42)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(3, 0.99, 42)
	assert.Error(t, err)
}
