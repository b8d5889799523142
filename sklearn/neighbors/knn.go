// Package neighbors implements k-nearest-neighbour classification.
package neighbors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/core/parallel"
	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// KNeighborsClassifier votes among the k closest training samples
// (Euclidean distance). Fit only memorizes the training set.
type KNeighborsClassifier struct {
	*model.StateManager

	// Hyperparameters
	NNeighbors int
	Weights    string // "uniform" or "distance"
	NJobs      int

	// Fitted state
	TrainX      [][]float64
	TrainCodes  []int
	ClassLabels []int
}

// Option configures a KNeighborsClassifier.
type Option func(*KNeighborsClassifier)

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option {
	return func(c *KNeighborsClassifier) {
		c.NNeighbors = k
	}
}

// WithWeights sets the vote weighting ("uniform" or "distance").
func WithWeights(w string) Option {
	return func(c *KNeighborsClassifier) {
		c.Weights = w
	}
}

// WithNJobs sets the number of goroutines used for queries.
func WithNJobs(n int) Option {
	return func(c *KNeighborsClassifier) {
		c.NJobs = n
	}
}

// NewKNeighborsClassifier creates a classifier with scikit-learn defaults
// (k=5, uniform weights).
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	c := &KNeighborsClassifier{
		StateManager: model.NewStateManager(),
		NNeighbors:   5,
		Weights:      "uniform",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fit stores the training samples.
func (c *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	n, nFeatures, err := model.CheckXY("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if c.NNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", c.NNeighbors)
	}
	if c.NNeighbors > n {
		return errors.NewValueError("KNeighborsClassifier.Fit",
			fmt.Sprintf("expected n_neighbors <= n_samples, got n_neighbors = %d, n_samples = %d", c.NNeighbors, n))
	}
	switch c.Weights {
	case "uniform", "distance":
	default:
		return errors.NewValidationError("weights", "must be uniform or distance", c.Weights)
	}
	if c.StateManager == nil {
		c.StateManager = model.NewStateManager()
	}
	c.Reset()

	c.ClassLabels, c.TrainCodes = model.EncodeLabels(y)
	c.TrainX = make([][]float64, n)
	for i := range c.TrainX {
		c.TrainX[i] = make([]float64, nFeatures)
		mat.Row(c.TrainX[i], i, X)
	}
	c.SetDimensions(nFeatures, n)
	c.SetFitted()
	return nil
}

type neighbor struct {
	index int
	dist  float64
}

// kneighbors returns the k nearest training rows to x, closest first.
// Equal distances keep training order.
func (c *KNeighborsClassifier) kneighbors(x []float64, buf []neighbor) []neighbor {
	buf = buf[:0]
	for i, row := range c.TrainX {
		buf = append(buf, neighbor{index: i, dist: floats.Distance(row, x, 2)})
	}
	sort.SliceStable(buf, func(a, b int) bool { return buf[a].dist < buf[b].dist })
	return buf[:c.NNeighbors]
}

// PredictProba returns the (weighted) share of neighbour votes per class.
func (c *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := c.RequireFitted("KNeighborsClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := c.CheckFeatures("KNeighborsClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	nClasses := len(c.ClassLabels)
	out := mat.NewDense(nSamples, nClasses, nil)

	parallel.ParallelizeN(nSamples, c.NJobs, func(start, end int) {
		x := make([]float64, nFeatures)
		buf := make([]neighbor, 0, len(c.TrainX))
		votes := make([]float64, nClasses)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			for k := range votes {
				votes[k] = 0
			}
			nn := c.kneighbors(x, buf)
			exact := false
			if c.Weights == "distance" {
				// 距離0の近傍があればそれだけで投票する
				for _, nb := range nn {
					if nb.dist == 0 {
						votes[c.TrainCodes[nb.index]]++
						exact = true
					}
				}
			}
			if !exact {
				for _, nb := range nn {
					w := 1.0
					if c.Weights == "distance" {
						w = 1 / nb.dist
					}
					votes[c.TrainCodes[nb.index]] += w
				}
			}
			total := floats.Sum(votes)
			for k, v := range votes {
				out.Set(i, k, v/total)
			}
		}
	})
	return out, nil
}

// Predict returns the majority class; ties go to the smallest label.
func (c *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, c.ClassLabels), nil
}

// Classes returns the sorted class labels seen during Fit.
func (c *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), c.ClassLabels...)
}

// Score returns the mean accuracy on the given data.
func (c *KNeighborsClassifier) Score(X, y mat.Matrix) float64 {
	return model.Score(c, X, y)
}

// GetParams returns the hyperparameters.
func (c *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": c.NNeighbors,
		"weights":     c.Weights,
		"metric":      "euclidean",
		"n_jobs":      c.NJobs,
	}
}
