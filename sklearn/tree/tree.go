// Package tree implements CART decision tree classifiers.
//
// The fitted tree is stored as a flat slice of nodes so that it can be
// gob-encoded inside a model bundle and shared by the random forest.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/pkg/errors"
)

const (
	// featureThreshold 未満の差は同じ値として扱う (sklearn と同じ 1e-7)
	featureThreshold = 1e-7
	impurityEpsilon  = 1e-12
)

// Node is one node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Value is the weighted class distribution of the training samples that
	// reached the node, normalized to sum to 1.
	Value    []float64
	Impurity float64
	NSamples int
	Weight   float64
	Depth    int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

// DecisionTreeClassifier is a CART classifier compatible with
// scikit-learn's DecisionTreeClassifier.
type DecisionTreeClassifier struct {
	*model.StateManager

	// Hyperparameters
	Criterion       string // "gini" or "entropy"
	MaxDepth        int    // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 means all features
	RandomState     uint64

	// Fitted tree
	Nodes              []Node
	ClassLabels        []int
	FeatureImportances []float64
	MaxDepthReached    int
	NLeaves            int
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the split quality measure ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.Criterion = criterion
	}
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.MinSamplesLeaf = n
	}
}

// WithMaxFeatures sets the number of features examined per split.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.MaxFeatures = n
	}
}

// WithRandomState seeds the feature permutation.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.RandomState = seed
	}
}

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		StateManager:    model.NewStateManager(),
		Criterion:       "gini",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate(nFeatures int) error {
	switch dt.Criterion {
	case "gini", "entropy":
	default:
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.Criterion)
	}
	if dt.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", dt.MaxDepth)
	}
	if dt.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.MinSamplesSplit)
	}
	if dt.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.MinSamplesLeaf)
	}
	if dt.MaxFeatures < 0 || dt.MaxFeatures > nFeatures {
		return errors.NewValidationError("max_features", fmt.Sprintf("must be in [0, %d]", nFeatures), dt.MaxFeatures)
	}
	return nil
}

// Fit builds the tree from the training set.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Samples with zero
// weight are ignored; classes are still taken from the whole of y so that
// bootstrap replicas agree on the class layout.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	nSamples, nFeatures, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := dt.validate(nFeatures); err != nil {
		return err
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}
	if dt.StateManager == nil {
		dt.StateManager = model.NewStateManager()
	}
	dt.Reset()

	classes, codes := model.EncodeLabels(y)

	b := &builder{
		dt:        dt,
		nFeatures: nFeatures,
		nClasses:  len(classes),
		x:         make([]float64, nSamples*nFeatures),
		codes:     codes,
		weight:    make([]float64, nSamples),
		rng:       rand.New(rand.NewPCG(dt.RandomState, dt.RandomState)),
	}
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			b.x[i*nFeatures+j] = X.At(i, j)
		}
	}
	samples := make([]int, 0, nSamples)
	for i := 0; i < nSamples; i++ {
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		if w < 0 {
			return errors.NewValidationError("sample_weight", "must be non-negative", w)
		}
		b.weight[i] = w
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "all sample weights are zero", errors.ErrEmptyData)
	}

	dt.Nodes = dt.Nodes[:0]
	dt.FeatureImportances = make([]float64, nFeatures)
	dt.MaxDepthReached = 0
	dt.NLeaves = 0
	b.build(samples, 0)

	total := 0.0
	for _, v := range dt.FeatureImportances {
		total += v
	}
	if total > 0 {
		for j := range dt.FeatureImportances {
			dt.FeatureImportances[j] /= total
		}
	}

	dt.ClassLabels = classes
	dt.SetDimensions(nFeatures, nSamples)
	dt.SetFitted()
	return nil
}

type builder struct {
	dt        *DecisionTreeClassifier
	nFeatures int
	nClasses  int
	x         []float64
	codes     []int
	weight    []float64
	rng       *rand.Rand
}

func (b *builder) at(i, j int) float64 {
	return b.x[i*b.nFeatures+j]
}

func (b *builder) impurity(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	imp := 0.0
	switch b.dt.Criterion {
	case "entropy":
		for _, c := range counts {
			if c > 0 {
				p := c / total
				imp -= p * math.Log2(p)
			}
		}
	default:
		imp = 1
		for _, c := range counts {
			p := c / total
			imp -= p * p
		}
	}
	return imp
}

type split struct {
	feature     int
	threshold   float64
	pos         int // samples[:pos] go left after sorting by feature
	improvement float64
	order       []int
}

// build grows the subtree for samples depth-first and returns its node index.
func (b *builder) build(samples []int, depth int) int {
	dt := b.dt
	counts := make([]float64, b.nClasses)
	total := 0.0
	for _, i := range samples {
		counts[b.codes[i]] += b.weight[i]
		total += b.weight[i]
	}
	imp := b.impurity(counts, total)

	value := make([]float64, b.nClasses)
	for k, c := range counts {
		value[k] = c / total
	}

	idx := len(dt.Nodes)
	dt.Nodes = append(dt.Nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    value,
		Impurity: imp,
		NSamples: len(samples),
		Weight:   total,
		Depth:    depth,
	})
	if depth > dt.MaxDepthReached {
		dt.MaxDepthReached = depth
	}

	n := len(samples)
	isLeaf := (dt.MaxDepth > 0 && depth >= dt.MaxDepth) ||
		n < dt.MinSamplesSplit ||
		n < 2*dt.MinSamplesLeaf ||
		imp <= impurityEpsilon

	var best *split
	if !isLeaf {
		best = b.bestSplit(samples, counts, total, imp)
	}
	if best == nil {
		dt.NLeaves++
		return idx
	}

	left := append([]int(nil), best.order[:best.pos]...)
	right := append([]int(nil), best.order[best.pos:]...)

	dt.FeatureImportances[best.feature] += best.improvement
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)

	node := &dt.Nodes[idx]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = l
	node.Right = r
	return idx
}

// bestSplit scans max_features randomly ordered features; constant features
// do not count towards the budget.
func (b *builder) bestSplit(samples []int, counts []float64, total, imp float64) *split {
	dt := b.dt
	maxFeatures := dt.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = b.nFeatures
	}

	features := b.rng.Perm(b.nFeatures)
	var best *split
	visited := 0
	order := make([]int, len(samples))
	leftCounts := make([]float64, b.nClasses)
	rightCounts := make([]float64, b.nClasses)

	for _, f := range features {
		if visited >= maxFeatures {
			break
		}
		copy(order, samples)
		sort.SliceStable(order, func(a, c int) bool { return b.at(order[a], f) < b.at(order[c], f) })
		if b.at(order[len(order)-1], f) <= b.at(order[0], f)+featureThreshold {
			continue
		}
		visited++

		for k := range leftCounts {
			leftCounts[k] = 0
			rightCounts[k] = counts[k]
		}
		leftW := 0.0
		for pos := 1; pos < len(order); pos++ {
			prev := order[pos-1]
			w := b.weight[prev]
			leftCounts[b.codes[prev]] += w
			rightCounts[b.codes[prev]] -= w
			leftW += w

			if pos < dt.MinSamplesLeaf || len(order)-pos < dt.MinSamplesLeaf {
				continue
			}
			lo, hi := b.at(prev, f), b.at(order[pos], f)
			if hi <= lo+featureThreshold {
				continue
			}
			rightW := total - leftW
			childImp := (leftW*b.impurity(leftCounts, leftW) + rightW*b.impurity(rightCounts, rightW)) / total
			improvement := total * (imp - childImp)
			if best == nil || improvement > best.improvement {
				threshold := lo/2 + hi/2
				if threshold == hi {
					threshold = lo
				}
				if best == nil {
					best = &split{}
				}
				best.feature = f
				best.threshold = threshold
				best.pos = pos
				best.improvement = improvement
				best.order = append(best.order[:0], order...)
			}
		}
	}
	// improvement 0 の分割も採用する (XOR のような構造で必要)
	return best
}

// leaf returns the leaf reached by row x.
func (dt *DecisionTreeClassifier) leaf(x []float64) *Node {
	node := &dt.Nodes[0]
	for !node.IsLeaf() {
		if x[node.Feature] <= node.Threshold {
			node = &dt.Nodes[node.Left]
		} else {
			node = &dt.Nodes[node.Right]
		}
	}
	return node
}

// PredictProba returns the class distribution of the leaf each sample reaches.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := dt.CheckFeatures("DecisionTreeClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	out := mat.NewDense(nSamples, len(dt.ClassLabels), nil)
	x := make([]float64, nFeatures)
	for i := 0; i < nSamples; i++ {
		mat.Row(x, i, X)
		out.SetRow(i, dt.leaf(x).Value)
	}
	return out, nil
}

// Predict returns the most probable class per sample.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, dt.ClassLabels), nil
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.ClassLabels...)
}

// Score returns the mean accuracy on the given data.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	return model.Score(dt, X, y)
}

// GetFeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.FeatureImportances...)
}

// GetDepth returns the depth of the fitted tree (a lone root has depth 0).
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.MaxDepthReached
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.NLeaves
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.Criterion,
		"max_depth":         dt.MaxDepth,
		"min_samples_split": dt.MinSamplesSplit,
		"min_samples_leaf":  dt.MinSamplesLeaf,
		"max_features":      dt.MaxFeatures,
		"random_state":      dt.RandomState,
	}
}

// SetParams updates the hyperparameters.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.Criterion, ok = value.(string)
		case "max_depth":
			dt.MaxDepth, ok = value.(int)
		case "min_samples_split":
			dt.MinSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.MinSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.MaxFeatures, ok = value.(int)
		case "random_state":
			dt.RandomState, ok = value.(uint64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return nil
}
