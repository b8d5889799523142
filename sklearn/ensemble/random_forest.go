// Package ensemble provides tree ensembles: a bagged random forest and
// second-order gradient boosted trees.
package ensemble

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/core/parallel"
	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of bootstrap
// trees grown on random feature subsets.
type RandomForestClassifier struct {
	*model.StateManager

	// Hyperparameters
	NEstimators     int
	Criterion       string
	MaxDepth        int    // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string // "sqrt", "log2" or "all"
	Bootstrap       bool
	RandomState     uint64
	NJobs           int // <1 means all CPUs

	// Fitted state
	Estimators         []*tree.DecisionTreeClassifier
	ClassLabels        []int
	FeatureImportances []float64
}

// ForestOption configures a RandomForestClassifier.
type ForestOption func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.NEstimators = n
	}
}

// WithForestMaxDepth limits the depth of each tree.
func WithForestMaxDepth(depth int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.MaxDepth = depth
	}
}

// WithForestMaxFeatures sets the per-split feature budget rule.
func WithForestMaxFeatures(rule string) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.MaxFeatures = rule
	}
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(bootstrap bool) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.Bootstrap = bootstrap
	}
}

// WithForestRandomState seeds bootstrap draws and feature permutations.
func WithForestRandomState(seed uint64) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.RandomState = seed
	}
}

// WithNJobs sets the number of trees fitted concurrently.
func WithNJobs(n int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.NJobs = n
	}
}

// NewRandomForestClassifier creates a forest with scikit-learn defaults
// (100 trees, gini, sqrt features, bootstrap).
func NewRandomForestClassifier(opts ...ForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		StateManager:    model.NewStateManager(),
		NEstimators:     100,
		Criterion:       "gini",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     "sqrt",
		Bootstrap:       true,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

func (rf *RandomForestClassifier) featureBudget(nFeatures int) (int, error) {
	switch rf.MaxFeatures {
	case "sqrt":
		return max(1, int(math.Sqrt(float64(nFeatures)))), nil
	case "log2":
		return max(1, int(math.Log2(float64(nFeatures)))), nil
	case "all", "":
		return nFeatures, nil
	default:
		return 0, errors.NewValidationError("max_features", "must be sqrt, log2 or all", rf.MaxFeatures)
	}
}

// Fit grows NEstimators trees. Per-tree seeds are drawn sequentially from
// RandomState, so the fitted forest does not depend on NJobs.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.NEstimators)
	}
	budget, err := rf.featureBudget(nFeatures)
	if err != nil {
		return err
	}
	if rf.StateManager == nil {
		rf.StateManager = model.NewStateManager()
	}
	rf.Reset()

	master := rand.New(rand.NewPCG(rf.RandomState, rf.RandomState))
	seeds := make([]uint64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	errs := make([]error, rf.NEstimators)
	parallel.ParallelizeN(rf.NEstimators, rf.NJobs, func(start, end int) {
		for t := start; t < end; t++ {
			errs[t] = errors.SafeExecute(fmt.Sprintf("RandomForestClassifier.Fit tree %d", t), func() error {
				dt := tree.NewDecisionTreeClassifier(
					tree.WithCriterion(rf.Criterion),
					tree.WithMaxDepth(rf.MaxDepth),
					tree.WithMinSamplesSplit(rf.MinSamplesSplit),
					tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
					tree.WithMaxFeatures(budget),
					tree.WithRandomState(seeds[t]),
				)
				var weights []float64
				if rf.Bootstrap {
					weights = bootstrapWeights(nSamples, seeds[t])
				}
				if err := dt.FitWeighted(X, y, weights); err != nil {
					return err
				}
				trees[t] = dt
				return nil
			})
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	rf.Estimators = trees
	rf.ClassLabels = trees[0].Classes()
	rf.FeatureImportances = averageImportances(trees, nFeatures)
	rf.SetDimensions(nFeatures, nSamples)
	rf.SetFitted()
	return nil
}

// bootstrapWeights draws n samples with replacement and returns how often
// each row was drawn.
func bootstrapWeights(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, ^seed))
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[rng.IntN(n)]++
	}
	return w
}

func averageImportances(trees []*tree.DecisionTreeClassifier, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, dt := range trees {
		for j, v := range dt.GetFeatureImportances() {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// PredictProba returns the mean of the trees' class probabilities.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := rf.CheckFeatures("RandomForestClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	sum := mat.NewDense(nSamples, len(rf.ClassLabels), nil)
	for _, dt := range rf.Estimators {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.Estimators)), sum)
	return sum, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, rf.ClassLabels), nil
}

// Classes returns the sorted class labels seen during Fit.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.ClassLabels...)
}

// Score returns the mean accuracy on the given data.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	return model.Score(rf, X, y)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"criterion":         rf.Criterion,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"min_samples_leaf":  rf.MinSamplesLeaf,
		"max_features":      rf.MaxFeatures,
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
		"n_jobs":            rf.NJobs,
	}
}
