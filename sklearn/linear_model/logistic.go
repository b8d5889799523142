// Package linear_model provides linear classifiers.
package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// LogisticRegression implements L2-regularized logistic regression solved
// with L-BFGS. Compatible with scikit-learn's LogisticRegression defaults
// (penalty="l2", C=1.0, solver="lbfgs", max_iter=100, tol=1e-4).
//
// More than two classes are handled one-vs-rest; PredictProba then
// normalizes the per-class sigmoid scores.
type LogisticRegression struct {
	*model.StateManager

	// Hyperparameters
	Penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength
	FitIntercept bool
	Solver       string // only "lbfgs"
	MaxIter      int
	Tol          float64
	RandomState  int64 // lbfgs is deterministic; kept for parameter parity

	// Learned parameters
	Coef        [][]float64 // one row per binary problem
	Intercept   []float64
	ClassLabels []int
	NIter       []int // iterations used per binary problem
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		StateManager: model.NewStateManager(),
		Penalty:      "l2",
		C:            1.0,
		FitIntercept: true,
		Solver:       "lbfgs",
		MaxIter:      100,
		Tol:          1e-4,
		RandomState:  -1,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.FitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of L-BFGS iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.MaxIter = maxIter
	}
}

// WithLRTol sets the gradient tolerance for stopping
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Tol = tol
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.RandomState = seed
	}
}

func (lr *LogisticRegression) validate() error {
	if lr.C <= 0 || math.IsNaN(lr.C) {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be >= 1", lr.MaxIter)
	}
	if lr.Tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", lr.Tol)
	}
	switch lr.Penalty {
	case "l2", "none":
	default:
		return errors.NewValidationError("penalty", "only l2 and none are supported by lbfgs", lr.Penalty)
	}
	if lr.Solver != "lbfgs" {
		return errors.NewValidationError("solver", "only lbfgs is supported", lr.Solver)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if lr.StateManager == nil {
		lr.StateManager = model.NewStateManager()
	}
	lr.Reset()

	classes, codes := model.EncodeLabels(y)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(classes)))
	}

	rows := make([][]float64, nSamples)
	for i := range rows {
		rows[i] = make([]float64, nFeatures)
		for j := 0; j < nFeatures; j++ {
			rows[i][j] = X.At(i, j)
		}
	}

	nProblems := len(classes)
	if nProblems == 2 {
		nProblems = 1
	}
	lr.Coef = make([][]float64, nProblems)
	lr.Intercept = make([]float64, nProblems)
	lr.NIter = make([]int, nProblems)

	target := make([]float64, nSamples)
	for k := 0; k < nProblems; k++ {
		positive := k
		if nProblems == 1 {
			positive = 1
		}
		for i, c := range codes {
			target[i] = 0
			if c == positive {
				target[i] = 1
			}
		}
		coef, intercept, iters, err := lr.fitBinary(rows, target)
		if err != nil {
			return errors.Wrapf(err, "LogisticRegression.Fit: class %d", classes[positive])
		}
		lr.Coef[k] = coef
		lr.Intercept[k] = intercept
		lr.NIter[k] = iters
	}

	lr.ClassLabels = classes
	lr.SetDimensions(nFeatures, nSamples)
	lr.SetFitted()
	return nil
}

// fitBinary minimizes the mean log-loss plus ||w||²/(2·C·n), the objective
// scikit-learn's lbfgs solver uses. The intercept is not penalized.
func (lr *LogisticRegression) fitBinary(rows [][]float64, target []float64) ([]float64, float64, int, error) {
	n := len(rows)
	p := len(rows[0])
	dim := p
	if lr.FitIntercept {
		dim++
	}
	alpha := 0.0
	if lr.Penalty == "l2" {
		alpha = 1 / (lr.C * float64(n))
	}

	margin := func(w []float64, x []float64) float64 {
		z := floats.Dot(w[:p], x)
		if lr.FitIntercept {
			z += w[p]
		}
		return z
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			loss := 0.0
			for i, x := range rows {
				z := margin(w, x)
				loss += errors.LogOnePlusExp(z) - target[i]*z
			}
			reg := 0.5 * alpha * floats.Dot(w[:p], w[:p])
			return loss/float64(n) + reg
		},
		Grad: func(grad, w []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, x := range rows {
				r := errors.Sigmoid(margin(w, x)) - target[i]
				floats.AddScaled(grad[:p], r, x)
				if lr.FitIntercept {
					grad[p] += r
				}
			}
			floats.Scale(1/float64(n), grad)
			floats.AddScaled(grad[:p], alpha, w[:p])
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: lr.Tol,
		MajorIterations:   lr.MaxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   64 * 2.220446049250313e-16,
			Iterations: 10,
		},
	}

	result, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, 0, errors.Wrap(err, "lbfgs")
	}
	if cerr := errors.CheckScalar("lbfgs_loss", result.F, result.MajorIterations); cerr != nil {
		return nil, 0, 0, cerr
	}
	w := result.Location.X
	if cerr := errors.CheckNumericalStability("lbfgs", w, result.MajorIterations); cerr != nil {
		return nil, 0, 0, cerr
	}
	switch {
	case result.Status == optimize.IterationLimit:
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.MajorIterations,
			"lbfgs failed to converge: increase the number of iterations (max_iter) or scale the data"))
	case err != nil:
		// 直線探索の失敗でも得られた点は使える
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.MajorIterations, err.Error()))
	}

	coef := append([]float64(nil), w[:p]...)
	intercept := 0.0
	if lr.FitIntercept {
		intercept = w[p]
	}
	return coef, intercept, result.MajorIterations, nil
}

// DecisionFunction returns the linear scores, one column per binary problem.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := lr.CheckFeatures("LogisticRegression.DecisionFunction", X); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	scores := mat.NewDense(nSamples, len(lr.Coef), nil)
	x := make([]float64, nFeatures)
	for i := 0; i < nSamples; i++ {
		mat.Row(x, i, X)
		for k, coef := range lr.Coef {
			scores.Set(i, k, floats.Dot(coef, x)+lr.Intercept[k])
		}
	}
	return scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, lr.ClassLabels), nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := scores.Dims()
	nClasses := len(lr.ClassLabels)
	probas := mat.NewDense(nSamples, nClasses, nil)

	if nClasses == 2 {
		for i := 0; i < nSamples; i++ {
			p1 := errors.Sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1-p1)
			probas.Set(i, 1, p1)
		}
		return probas, nil
	}

	// one-vs-rest: 各クラスのsigmoidを正規化
	row := make([]float64, nClasses)
	for i := 0; i < nSamples; i++ {
		for k := 0; k < nClasses; k++ {
			row[k] = errors.Sigmoid(scores.At(i, k))
		}
		sum := floats.Sum(row)
		for k := 0; k < nClasses; k++ {
			probas.Set(i, k, errors.SafeDivide(row[k], sum))
		}
	}
	return probas, nil
}

// Classes returns the sorted class labels seen during Fit.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.ClassLabels...)
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	return model.Score(lr, X, y)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.Penalty,
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"solver":        lr.Solver,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
		"random_state":  lr.RandomState,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.Penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.FitIntercept, ok = value.(bool)
		case "solver":
			lr.Solver, ok = value.(string)
		case "max_iter":
			lr.MaxIter, ok = value.(int)
		case "tol":
			lr.Tol, ok = value.(float64)
		case "random_state":
			lr.RandomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return nil
}
