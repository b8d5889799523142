package ensemble

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/core/parallel"
	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// minHessian keeps leaf weights finite when predictions saturate.
const minHessian = 1e-16

// BoostNode is one node of a regression tree fitted on gradient statistics.
// Leaves have Feature == -1 and carry the (already shrunk) leaf weight.
type BoostNode struct {
	Feature   int
	Threshold float64 // x < Threshold goes left
	Left      int
	Right     int
	Weight    float64
	Gain      float64
	Cover     float64 // sum of hessians
}

// BoostTree is a single boosting round.
type BoostTree struct {
	Nodes []BoostNode
}

func (t *BoostTree) predict(x []float64) float64 {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		if x[n.Feature] < n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Weight
}

// GradientBoostingClassifier is an XGBoost-style booster for binary
// log-loss: each round fits a tree to first and second order gradients with
// exact greedy split finding and L2-regularized leaf weights.
type GradientBoostingClassifier struct {
	*model.StateManager

	// Hyperparameters (XGBoost names in GetParams)
	NEstimators    int
	LearningRate   float64 // eta
	MaxDepth       int
	Lambda         float64 // L2 on leaf weights
	Gamma          float64 // minimum split loss
	MinChildWeight float64
	BaseScore      float64
	NJobs          int

	// Fitted state
	Trees              []BoostTree
	BaseMargin         float64
	ClassLabels        []int
	FeatureImportances []float64 // total gain, normalized
}

// BoostingOption configures a GradientBoostingClassifier.
type BoostingOption func(*GradientBoostingClassifier)

// WithRounds sets the number of boosting rounds.
func WithRounds(n int) BoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.NEstimators = n
	}
}

// WithLearningRate sets the shrinkage applied to every leaf.
func WithLearningRate(eta float64) BoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.LearningRate = eta
	}
}

// WithBoostMaxDepth limits the depth of each round's tree.
func WithBoostMaxDepth(depth int) BoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.MaxDepth = depth
	}
}

// WithLambda sets the L2 penalty on leaf weights.
func WithLambda(lambda float64) BoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.Lambda = lambda
	}
}

// WithGamma sets the minimum loss reduction needed to split.
func WithGamma(gamma float64) BoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.Gamma = gamma
	}
}

// WithMinChildWeight sets the minimum hessian sum per child.
func WithMinChildWeight(w float64) BoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.MinChildWeight = w
	}
}

// WithBoostNJobs sets the number of goroutines used for split finding.
func WithBoostNJobs(n int) BoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.NJobs = n
	}
}

// NewGradientBoostingClassifier creates a booster with XGBoost defaults.
func NewGradientBoostingClassifier(opts ...BoostingOption) *GradientBoostingClassifier {
	gb := &GradientBoostingClassifier{
		StateManager:   model.NewStateManager(),
		NEstimators:    100,
		LearningRate:   0.3,
		MaxDepth:       6,
		Lambda:         1,
		Gamma:          0,
		MinChildWeight: 1,
		BaseScore:      0.5,
	}
	for _, opt := range opts {
		opt(gb)
	}
	return gb
}

func (gb *GradientBoostingClassifier) validate() error {
	switch {
	case gb.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", gb.NEstimators)
	case gb.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", gb.LearningRate)
	case gb.MaxDepth < 1:
		return errors.NewValidationError("max_depth", "must be >= 1", gb.MaxDepth)
	case gb.Lambda < 0:
		return errors.NewValidationError("reg_lambda", "must be non-negative", gb.Lambda)
	case gb.Gamma < 0:
		return errors.NewValidationError("gamma", "must be non-negative", gb.Gamma)
	case gb.MinChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be non-negative", gb.MinChildWeight)
	case gb.BaseScore <= 0 || gb.BaseScore >= 1:
		return errors.NewValidationError("base_score", "must be in (0, 1)", gb.BaseScore)
	}
	return nil
}

// Fit runs NEstimators boosting rounds. Only binary targets are supported.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	if err := gb.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXY("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	classes, codes := model.EncodeLabels(y)
	if len(classes) != 2 {
		return errors.NewModelError("GradientBoostingClassifier.Fit",
			fmt.Sprintf("got %d classes", len(classes)), errors.ErrBinaryOnly)
	}
	if gb.StateManager == nil {
		gb.StateManager = model.NewStateManager()
	}
	gb.Reset()

	b := &boostBuilder{
		gb:        gb,
		nFeatures: nFeatures,
		x:         make([]float64, nSamples*nFeatures),
		grad:      make([]float64, nSamples),
		hess:      make([]float64, nSamples),
		gain:      make([]float64, nFeatures),
	}
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			b.x[i*nFeatures+j] = X.At(i, j)
		}
	}

	gb.BaseMargin = math.Log(gb.BaseScore / (1 - gb.BaseScore))
	margin := make([]float64, nSamples)
	for i := range margin {
		margin[i] = gb.BaseMargin
	}
	all := make([]int, nSamples)
	for i := range all {
		all[i] = i
	}

	gb.Trees = make([]BoostTree, 0, gb.NEstimators)
	row := make([]float64, nFeatures)
	for round := 0; round < gb.NEstimators; round++ {
		for i := 0; i < nSamples; i++ {
			p := errors.Sigmoid(margin[i])
			b.grad[i] = p - float64(codes[i])
			b.hess[i] = math.Max(p*(1-p), minHessian)
		}

		t := BoostTree{}
		b.grow(&t, all, 0)
		gb.Trees = append(gb.Trees, t)

		for i := 0; i < nSamples; i++ {
			copy(row, b.x[i*nFeatures:(i+1)*nFeatures])
			margin[i] += t.predict(row)
		}
		if err := errors.CheckNumericalStability("boosting_margin", margin, round); err != nil {
			return err
		}
	}

	total := 0.0
	for _, g := range b.gain {
		total += g
	}
	gb.FeatureImportances = b.gain
	if total > 0 {
		for j := range gb.FeatureImportances {
			gb.FeatureImportances[j] /= total
		}
	}

	gb.ClassLabels = classes
	gb.SetDimensions(nFeatures, nSamples)
	gb.SetFitted()
	return nil
}

type boostBuilder struct {
	gb        *GradientBoostingClassifier
	nFeatures int
	x         []float64
	grad      []float64
	hess      []float64
	gain      []float64
}

type boostSplit struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (b *boostBuilder) score(g, h float64) float64 {
	return g * g / (h + b.gb.Lambda)
}

// grow appends the subtree for rows to t and returns its node index.
func (b *boostBuilder) grow(t *BoostTree, rows []int, depth int) int {
	var G, H float64
	for _, i := range rows {
		G += b.grad[i]
		H += b.hess[i]
	}
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, BoostNode{
		Feature: -1,
		Left:    -1,
		Right:   -1,
		Weight:  -G / (H + b.gb.Lambda) * b.gb.LearningRate,
		Cover:   H,
	})
	if depth >= b.gb.MaxDepth || len(rows) < 2 {
		return idx
	}

	best := b.findSplit(rows, G, H)
	if best == nil {
		return idx
	}
	b.gain[best.feature] += best.gain

	l := b.grow(t, best.left, depth+1)
	r := b.grow(t, best.right, depth+1)
	n := &t.Nodes[idx]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = l
	n.Right = r
	n.Gain = best.gain
	return idx
}

// findSplit evaluates every feature in parallel and keeps the best gain,
// preferring the lowest feature index on ties.
func (b *boostBuilder) findSplit(rows []int, G, H float64) *boostSplit {
	perFeature := make([]*boostSplit, b.nFeatures)
	parent := b.score(G, H)
	parallel.ParallelizeN(b.nFeatures, b.gb.NJobs, func(start, end int) {
		order := make([]int, len(rows))
		for f := start; f < end; f++ {
			copy(order, rows)
			sort.SliceStable(order, func(a, c int) bool {
				return b.x[order[a]*b.nFeatures+f] < b.x[order[c]*b.nFeatures+f]
			})
			var GL, HL float64
			var best *boostSplit
			bestPos := 0
			for pos := 1; pos < len(order); pos++ {
				prev := order[pos-1]
				GL += b.grad[prev]
				HL += b.hess[prev]
				lo := b.x[prev*b.nFeatures+f]
				hi := b.x[order[pos]*b.nFeatures+f]
				if hi == lo {
					continue
				}
				GR, HR := G-GL, H-HL
				if HL < b.gb.MinChildWeight || HR < b.gb.MinChildWeight {
					continue
				}
				gain := 0.5*(b.score(GL, HL)+b.score(GR, HR)-parent) - b.gb.Gamma
				if best == nil || gain > best.gain {
					best = &boostSplit{feature: f, threshold: lo/2 + hi/2, gain: gain}
					if best.threshold <= lo {
						best.threshold = hi
					}
					bestPos = pos
				}
			}
			if best != nil {
				best.left = append([]int(nil), order[:bestPos]...)
				best.right = append([]int(nil), order[bestPos:]...)
				perFeature[f] = best
			}
		}
	})

	var best *boostSplit
	for _, s := range perFeature {
		if s != nil && s.gain > 1e-6 && (best == nil || s.gain > best.gain) {
			best = s
		}
	}
	return best
}

// DecisionFunction returns the raw margin (log-odds of the positive class).
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) (*mat.VecDense, error) {
	if err := gb.RequireFitted("GradientBoostingClassifier", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := gb.CheckFeatures("GradientBoostingClassifier.DecisionFunction", X); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	out := mat.NewVecDense(nSamples, nil)
	x := make([]float64, nFeatures)
	for i := 0; i < nSamples; i++ {
		mat.Row(x, i, X)
		m := gb.BaseMargin
		for t := range gb.Trees {
			m += gb.Trees[t].predict(x)
		}
		out.SetVec(i, m)
	}
	return out, nil
}

// PredictProba returns [P(classes[0]), P(classes[1])] per sample.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	margin, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n := margin.Len()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := errors.Sigmoid(margin.AtVec(i))
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict thresholds the positive-class probability at 0.5.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, gb.ClassLabels), nil
}

// Classes returns the two class labels seen during Fit.
func (gb *GradientBoostingClassifier) Classes() []int {
	return append([]int(nil), gb.ClassLabels...)
}

// Score returns the mean accuracy on the given data.
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) float64 {
	return model.Score(gb, X, y)
}

// GetParams returns the hyperparameters under XGBoost's names.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     gb.NEstimators,
		"learning_rate":    gb.LearningRate,
		"max_depth":        gb.MaxDepth,
		"reg_lambda":       gb.Lambda,
		"gamma":            gb.Gamma,
		"min_child_weight": gb.MinChildWeight,
		"base_score":       gb.BaseScore,
		"objective":        "binary:logistic",
	}
}
