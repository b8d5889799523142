// Package svm implements a binary C-support vector classifier.
package svm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/core/parallel"
	"github.com/YuminosukeSato/loanml/pkg/errors"
)

const (
	// tau は非正の二次係数を置き換える値 (LIBSVM と同じ)
	tau = 1e-12
	// GammaScale selects gamma = 1 / (n_features * X.var()).
	GammaScale = 0.0
)

// SVC is a C-support vector classifier trained with SMO using the maximal
// violating pair working set selection. Only binary targets are supported.
//
// PredictProba is the logistic function of the decision value; it is a
// monotone score, not a Platt-calibrated probability.
type SVC struct {
	*model.StateManager

	// Hyperparameters
	C       float64
	Kernel  string  // "rbf" or "linear"
	Gamma   float64 // GammaScale or a positive value
	Tol     float64
	MaxIter int // <1 means max(10_000_000, 100*n)

	// Fitted state
	GammaValue     float64
	SupportVectors [][]float64
	DualCoef       []float64 // alpha_i * y_i per support vector
	Rho            float64
	ClassLabels    []int
	NIter          int
}

// Option configures an SVC.
type Option func(*SVC)

// WithC sets the penalty parameter.
func WithC(c float64) Option {
	return func(s *SVC) {
		s.C = c
	}
}

// WithKernel sets the kernel ("rbf" or "linear").
func WithKernel(kernel string) Option {
	return func(s *SVC) {
		s.Kernel = kernel
	}
}

// WithGamma sets the RBF kernel coefficient; GammaScale derives it from X.
func WithGamma(gamma float64) Option {
	return func(s *SVC) {
		s.Gamma = gamma
	}
}

// WithTol sets the stopping tolerance on the KKT violation.
func WithTol(tol float64) Option {
	return func(s *SVC) {
		s.Tol = tol
	}
}

// WithMaxIter caps the number of SMO iterations.
func WithMaxIter(n int) Option {
	return func(s *SVC) {
		s.MaxIter = n
	}
}

// NewSVC creates an SVC with scikit-learn defaults (C=1, rbf, gamma="scale", tol=1e-3).
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		StateManager: model.NewStateManager(),
		C:            1.0,
		Kernel:       "rbf",
		Gamma:        GammaScale,
		Tol:          1e-3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SVC) validate() error {
	switch {
	case s.C <= 0:
		return errors.NewValidationError("C", "must be positive", s.C)
	case s.Gamma < 0:
		return errors.NewValidationError("gamma", "must be non-negative", s.Gamma)
	case s.Tol <= 0:
		return errors.NewValidationError("tol", "must be positive", s.Tol)
	}
	switch s.Kernel {
	case "rbf", "linear":
	default:
		return errors.NewValidationError("kernel", "must be rbf or linear", s.Kernel)
	}
	return nil
}

func (s *SVC) kernel(a, b []float64) float64 {
	if s.Kernel == "linear" {
		return floats.Dot(a, b)
	}
	d := 0.0
	for k := range a {
		diff := a[k] - b[k]
		d += diff * diff
	}
	return math.Exp(-s.GammaValue * d)
}

// Fit solves the dual problem with SMO.
func (s *SVC) Fit(X, y mat.Matrix) error {
	if err := s.validate(); err != nil {
		return err
	}
	n, nFeatures, err := model.CheckXY("SVC.Fit", X, y)
	if err != nil {
		return err
	}
	classes, codes := model.EncodeLabels(y)
	if len(classes) != 2 {
		return errors.NewModelError("SVC.Fit", fmt.Sprintf("got %d classes", len(classes)), errors.ErrBinaryOnly)
	}
	if s.StateManager == nil {
		s.StateManager = model.NewStateManager()
	}
	s.Reset()

	rows := make([][]float64, n)
	flat := make([]float64, 0, n*nFeatures)
	for i := range rows {
		rows[i] = make([]float64, nFeatures)
		mat.Row(rows[i], i, X)
		flat = append(flat, rows[i]...)
	}
	s.GammaValue = s.Gamma
	if s.GammaValue == GammaScale {
		_, variance := stat.PopMeanVariance(flat, nil)
		s.GammaValue = 1.0
		if variance > 0 {
			s.GammaValue = 1 / (float64(nFeatures) * variance)
		}
	}

	// classes[1] が +1
	yy := make([]float64, n)
	for i, c := range codes {
		yy[i] = float64(2*c - 1)
	}

	Q := make([]float64, n*n)
	parallel.Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < n; j++ {
				Q[i*n+j] = yy[i] * yy[j] * s.kernel(rows[i], rows[j])
			}
		}
	})

	alpha, grad, iters := s.smo(Q, yy)
	s.Rho = calculateRho(alpha, grad, yy, s.C)
	s.NIter = iters

	s.SupportVectors = s.SupportVectors[:0]
	s.DualCoef = s.DualCoef[:0]
	for i, a := range alpha {
		if a > 0 {
			s.SupportVectors = append(s.SupportVectors, rows[i])
			s.DualCoef = append(s.DualCoef, a*yy[i])
		}
	}

	s.ClassLabels = classes
	s.SetDimensions(nFeatures, n)
	s.SetFitted()
	return nil
}

// smo returns the dual solution, the final gradient of the dual objective
// and the iteration count.
func (s *SVC) smo(Q, yy []float64) (alpha, grad []float64, iter int) {
	n := len(yy)
	C := s.C
	alpha = make([]float64, n)
	grad = make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}
	maxIter := s.MaxIter
	if maxIter < 1 {
		maxIter = max(10_000_000, 100*n)
	}

	for iter = 0; iter < maxIter; iter++ {
		i, j, gap := selectWorkingSet(alpha, grad, yy, C)
		if j < 0 || gap < s.Tol {
			return alpha, grad, iter
		}

		Qi := Q[i*n : (i+1)*n]
		Qj := Q[j*n : (j+1)*n]
		oldAi, oldAj := alpha[i], alpha[j]

		if yy[i] != yy[j] {
			quad := Qi[i] + Qj[j] + 2*Qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = C - diff
				}
			} else if alpha[j] > C {
				alpha[j] = C
				alpha[i] = C + diff
			}
		} else {
			quad := Qi[i] + Qj[j] - 2*Qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = sum - C
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = sum - C
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dAi, dAj := alpha[i]-oldAi, alpha[j]-oldAj
		for k := 0; k < n; k++ {
			grad[k] += Qi[k]*dAi + Qj[k]*dAj
		}
	}

	errors.Warn(errors.NewConvergenceWarning("smo", iter,
		"solver terminated early (max_iter reached); consider pre-processing your data with StandardScaler"))
	return alpha, grad, iter
}

// selectWorkingSet returns the maximal violating pair and its KKT gap.
// j is -1 when no pair can make progress.
func selectWorkingSet(alpha, grad, yy []float64, C float64) (int, int, float64) {
	gmax, gmin := math.Inf(-1), math.Inf(1)
	i, j := -1, -1
	for t := range alpha {
		v := -yy[t] * grad[t]
		up := (yy[t] > 0 && alpha[t] < C) || (yy[t] < 0 && alpha[t] > 0)
		low := (yy[t] < 0 && alpha[t] < C) || (yy[t] > 0 && alpha[t] > 0)
		if up && v > gmax {
			gmax = v
			i = t
		}
		if low && v < gmin {
			gmin = v
			j = t
		}
	}
	if i < 0 || j < 0 {
		return i, -1, 0
	}
	return i, j, gmax - gmin
}

// calculateRho averages y·G over free support vectors, falling back to the
// midpoint of the feasible interval.
func calculateRho(alpha, grad, yy []float64, C float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	nFree := 0
	sumFree := 0.0
	for i := range alpha {
		yG := yy[i] * grad[i]
		switch {
		case alpha[i] >= C:
			if yy[i] < 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case alpha[i] <= 0:
			if yy[i] > 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

// DecisionFunction returns sum_i alpha_i y_i K(x_i, x) - rho per sample.
// Positive values favour Classes()[1].
func (s *SVC) DecisionFunction(X mat.Matrix) (*mat.VecDense, error) {
	if err := s.RequireFitted("SVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := s.CheckFeatures("SVC.DecisionFunction", X); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	out := mat.NewVecDense(nSamples, nil)
	parallel.ParallelizeWithThreshold(nSamples, 64, func(start, end int) {
		x := make([]float64, nFeatures)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			d := -s.Rho
			for k, sv := range s.SupportVectors {
				d += s.DualCoef[k] * s.kernel(sv, x)
			}
			out.SetVec(i, d)
		}
	})
	return out, nil
}

// PredictProba returns [1-p, p] with p the logistic of the decision value.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	d, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n := d.Len()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := errors.Sigmoid(d.AtVec(i))
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns Classes()[1] where the decision value is positive.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := s.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, s.ClassLabels), nil
}

// Classes returns the two class labels seen during Fit.
func (s *SVC) Classes() []int {
	return append([]int(nil), s.ClassLabels...)
}

// Score returns the mean accuracy on the given data.
func (s *SVC) Score(X, y mat.Matrix) float64 {
	return model.Score(s, X, y)
}

// NSupport returns the number of support vectors.
func (s *SVC) NSupport() int {
	return len(s.SupportVectors)
}

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	gamma := interface{}(s.Gamma)
	if s.Gamma == GammaScale {
		gamma = "scale"
	}
	return map[string]interface{}{
		"C":        s.C,
		"kernel":   s.Kernel,
		"gamma":    gamma,
		"tol":      s.Tol,
		"max_iter": s.MaxIter,
	}
}
