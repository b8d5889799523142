package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// TrainTestSplit shuffles the row indices [0, nSamples) with a seeded PCG
// source and cuts them into train and test sets. The test set holds
// ceil(testSize*nSamples) rows; both sets are non-empty.
func TrainTestSplit(nSamples int, testSize float64, seed uint64) (train, test []int, err error) {
	if nSamples < 2 {
		return nil, nil, errors.NewValidationError("n_samples", "need at least 2 samples to split", nSamples)
	}
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(nSamples)))
	nTrain := nSamples - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewValidationError("test_size", "leaves an empty train or test set", testSize)
	}

	r := rand.New(rand.NewPCG(seed, seed))
	perm := r.Perm(nSamples)

	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}
