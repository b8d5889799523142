// Standard attribute keys for loanml log records.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so that training runs and prediction traffic can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the model, e.g. "Logistic Regression".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"

	// RunIDKey correlates every record of one training run.
	RunIDKey = "run.id"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// ColumnKey names a dataset column.
	ColumnKey = "data.column"

	// MissingKey counts missing cells.
	MissingKey = "data.missing"

	// ClassesKey counts distinct target classes.
	ClassesKey = "data.classes"

	// PathKey is a file system path (dataset, chart, bundle).
	PathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records model accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// LossKey records the loss value during training.
	LossKey = "metrics.loss"

	// IterationKey records the iteration number of an iterative solver.
	IterationKey = "training.iteration"
)

// Prediction and Serving Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// ConfidenceKey records the approval probability of a prediction.
	ConfidenceKey = "preds.confidence"

	// RequestIDKey correlates the records of one HTTP request.
	RequestIDKey = "http.request_id"

	// StatusKey is the HTTP response status.
	StatusKey = "http.status"

	// RouteKey is the matched HTTP route.
	RouteKey = "http.route"
)

// Error and Warning Context
const (
	// ErrorKey holds the error message.
	ErrorKey = "error"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	// Populated automatically when an error carries a stack.
	StacktraceKey = "error.stacktrace"

	// WarningKey holds a structured library warning.
	WarningKey = "warning"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
