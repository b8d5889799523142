// Package pipeline runs the loan-approval training flow end to end: load,
// impute, encode, split, scale, fit every candidate, pick the most accurate
// one and write the comparison chart and the model bundle.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/bundle"
	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/dataset"
	"github.com/YuminosukeSato/loanml/loan"
	"github.com/YuminosukeSato/loanml/metrics"
	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/pkg/log"
	"github.com/YuminosukeSato/loanml/preprocessing"
	"github.com/YuminosukeSato/loanml/report"
)

// DefaultTestSize is the held-out share of the rows.
const DefaultTestSize = 0.2

// Options configures Run.
type Options struct {
	// DataPath is the CSV to train on. Ignored when Frame is set.
	DataPath string
	// Frame is an already loaded dataset.
	Frame *dataset.Frame

	TestSize float64
	Seed     uint64
	Workers  int

	// ChartPath and BundlePath are skipped when empty.
	ChartPath  string
	BundlePath string

	// Models defaults to DefaultModels(Seed, Workers).
	Models []ModelSpec

	// OnModelStart and OnModelDone are called around each candidate.
	OnModelStart func(index int, name string)
	OnModelDone  func(index int, result ModelResult)

	Logger log.Logger
}

// DefaultOptions returns options with an 80/20 split and seed 42.
func DefaultOptions() Options {
	return Options{
		TestSize: DefaultTestSize,
		Seed:     DefaultSeed,
	}
}

// ModelResult is the evaluation of one candidate on the test rows.
type ModelResult struct {
	Name        string
	Model       model.Classifier
	Accuracy    float64
	Report      *metrics.Report
	Confusion   *mat.Dense
	Predictions mat.Matrix
	// AUC and LogLoss score the probability of the larger class code and
	// stay zero for non-binary targets.
	AUC         float64
	LogLoss     float64
	FitDuration time.Duration
}

// Result is the outcome of a training run.
type Result struct {
	RunID  uuid.UUID
	Models []ModelResult
	// Best indexes Models.
	Best   int
	Bundle *bundle.Bundle

	Prepared      *Prepared
	Scaler        *preprocessing.StandardScaler
	TrainIndices  []int
	TestIndices   []int
	XTest         mat.Matrix
	YTest         *mat.Dense
	ChartPath     string
	BundlePath    string
	TotalDuration time.Duration
}

// BestModel returns the selected candidate.
func (r *Result) BestModel() ModelResult {
	return r.Models[r.Best]
}

// Entries returns the accuracies in training order for reporting.
func (r *Result) Entries() []report.Entry {
	out := make([]report.Entry, len(r.Models))
	for i, m := range r.Models {
		out[i] = report.Entry{Name: m.Name, Accuracy: m.Accuracy}
	}
	return out
}

// Run executes the training flow. Cancelling ctx stops the run between
// stages and between models. A model that fails or panics aborts the run
// before anything is written.
func Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	if opts.TestSize == 0 {
		opts.TestSize = DefaultTestSize
	}
	if opts.Models == nil {
		opts.Models = DefaultModels(opts.Seed, opts.Workers)
	}
	if len(opts.Models) == 0 {
		return nil, errors.NewValidationError("models", "at least one model is required", 0)
	}

	runID := uuid.New()
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("pipeline")
	}
	logger = logger.With(log.RunIDKey, runID.String())

	frame := opts.Frame
	if frame == nil {
		logger.Info("Loading dataset", log.PathKey, opts.DataPath)
		var err error
		if frame, err = dataset.LoadCSV(opts.DataPath, nil); err != nil {
			return nil, err
		}
	}
	logger.Info("Dataset loaded",
		log.SamplesKey, frame.NumRows(),
		log.FeaturesKey, len(frame.Columns()),
	)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "training cancelled")
	}
	prep, err := Prepare(frame, logger.With(log.PhaseKey, log.PhasePreprocessing))
	if err != nil {
		return nil, err
	}

	train, test, err := dataset.TrainTestSplit(prep.X.RawMatrix().Rows, opts.TestSize, opts.Seed)
	if err != nil {
		return nil, err
	}
	XTrain, XTest := takeRows(prep.X, train), takeRows(prep.X, test)
	yTrain, yTest := takeRows(prep.Y, train), takeRows(prep.Y, test)

	scaler := preprocessing.NewStandardScalerDefault()
	XTrainScaled, err := scaler.FitTransform(XTrain)
	if err != nil {
		return nil, err
	}
	XTestScaled, err := scaler.Transform(XTest)
	if err != nil {
		return nil, err
	}
	logger.Info("Data split",
		"train", len(train),
		"test", len(test),
		log.FeaturesKey, len(prep.FeatureColumns),
		log.RandomSeedKey, opts.Seed,
	)

	results := make([]ModelResult, 0, len(opts.Models))
	best := 0
	for i, spec := range opts.Models {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "training cancelled")
		}
		if opts.OnModelStart != nil {
			opts.OnModelStart(i, spec.Name)
		}

		res, err := evaluate(spec, XTrainScaled, yTrain, XTestScaled, yTest)
		if err != nil {
			logger.Error("Model training failed", err, log.ModelNameKey, spec.Name)
			return nil, errors.Wrapf(err, "model %s", spec.Name)
		}
		logger.Info("Model evaluated",
			log.ModelNameKey, spec.Name,
			log.OperationKey, log.OperationScore,
			log.AccuracyKey, res.Accuracy,
			log.DurationMsKey, res.FitDuration.Milliseconds(),
		)

		results = append(results, res)
		if res.Accuracy > results[best].Accuracy {
			best = i
		}
		if opts.OnModelDone != nil {
			opts.OnModelDone(i, res)
		}
	}

	result := &Result{
		RunID:        runID,
		Models:       results,
		Best:         best,
		Prepared:     prep,
		Scaler:       scaler,
		TrainIndices: train,
		TestIndices:  test,
		XTest:        XTestScaled,
		YTest:        yTest,
	}
	logger.Info("Best model selected",
		log.ModelNameKey, results[best].Name,
		log.AccuracyKey, results[best].Accuracy,
	)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "training cancelled")
	}
	if opts.ChartPath != "" {
		if err := report.SaveAccuracyChart(opts.ChartPath, result.Entries()); err != nil {
			return nil, err
		}
		result.ChartPath = opts.ChartPath
		logger.Info("Chart saved", log.PathKey, opts.ChartPath)
	}

	candidates := make([]bundle.ModelScore, len(results))
	for i, r := range results {
		candidates[i] = bundle.ModelScore{Name: r.Name, Accuracy: r.Accuracy}
	}
	b, err := bundle.New(results[best].Model, prep.Imputer, prep.Encoders, scaler, prep.FeatureColumns, bundle.Metadata{
		RunID:      runID,
		ModelName:  results[best].Name,
		Accuracy:   results[best].Accuracy,
		Candidates: candidates,
		ClassNames: prep.Encoders[loan.TargetColumn].Classes,
		DataPath:   opts.DataPath,
	})
	if err != nil {
		return nil, err
	}
	result.Bundle = b
	if opts.BundlePath != "" {
		if err := b.Save(opts.BundlePath); err != nil {
			return nil, err
		}
		result.BundlePath = opts.BundlePath
		logger.Info("Bundle saved", log.PathKey, opts.BundlePath)
	}

	result.TotalDuration = time.Since(start)
	return result, nil
}

// evaluate fits one candidate under panic recovery and scores it.
func evaluate(spec ModelSpec, XTrain, yTrain, XTest, yTest mat.Matrix) (ModelResult, error) {
	m := spec.New()
	res := ModelResult{Name: spec.Name, Model: m}

	start := time.Now()
	if err := errors.SafeExecute(spec.Name+".Fit", func() error {
		return m.Fit(XTrain, yTrain)
	}); err != nil {
		return res, err
	}
	res.FitDuration = time.Since(start)

	err := errors.SafeExecute(spec.Name+".Predict", func() error {
		pred, err := m.Predict(XTest)
		if err != nil {
			return err
		}
		res.Predictions = pred
		if res.Accuracy, err = metrics.AccuracyScore(yTest, pred); err != nil {
			return err
		}
		if res.Report, err = metrics.ClassificationReport(yTest, pred, nil, nil); err != nil {
			return err
		}
		if res.Confusion, _, err = metrics.ConfusionMatrix(yTest, pred, nil); err != nil {
			return err
		}
		return scoreProba(&res, m, XTest, yTest)
	})
	return res, err
}

// scoreProba fills AUC and log-loss for binary targets.
func scoreProba(res *ModelResult, m model.Classifier, X, y mat.Matrix) error {
	classes := m.Classes()
	if len(classes) != 2 {
		return nil
	}
	proba, err := m.PredictProba(X)
	if err != nil {
		return err
	}
	n, _ := y.Dims()
	yBin := mat.NewVecDense(n, nil)
	pPos := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if int(y.At(i, 0)) == classes[1] {
			yBin.SetVec(i, 1)
		}
		pPos.SetVec(i, proba.At(i, 1))
	}
	if res.AUC, err = metrics.AUC(yBin, pPos); err != nil {
		return err
	}
	res.LogLoss, err = metrics.BinaryLogLoss(yBin, pPos)
	return err
}
