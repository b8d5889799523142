package pipeline

import (
	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/sklearn/ensemble"
	"github.com/YuminosukeSato/loanml/sklearn/linear_model"
	"github.com/YuminosukeSato/loanml/sklearn/neighbors"
	"github.com/YuminosukeSato/loanml/sklearn/svm"
	"github.com/YuminosukeSato/loanml/sklearn/tree"
)

// DefaultSeed seeds the split and every seeded model.
const DefaultSeed = 42

// Candidate model names, in training order.
const (
	ModelLogisticRegression = "Logistic Regression"
	ModelDecisionTree       = "Decision Tree"
	ModelRandomForest       = "Random Forest"
	ModelSVM                = "SVM"
	ModelKNN                = "KNN"
	ModelXGBoost            = "XGBoost"
)

// ModelSpec names a candidate and builds a fresh, unfitted instance of it.
type ModelSpec struct {
	Name string
	New  func() model.Classifier
}

// DefaultModels returns the six candidates with library defaults. seed goes to
// every model that draws random numbers; workers bounds the goroutines of the
// parallel ones (0 means NumCPU).
func DefaultModels(seed uint64, workers int) []ModelSpec {
	return []ModelSpec{
		{ModelLogisticRegression, func() model.Classifier {
			return linear_model.NewLogisticRegression(linear_model.WithLRRandomState(int64(seed)))
		}},
		{ModelDecisionTree, func() model.Classifier {
			return tree.NewDecisionTreeClassifier(tree.WithRandomState(seed))
		}},
		{ModelRandomForest, func() model.Classifier {
			return ensemble.NewRandomForestClassifier(
				ensemble.WithForestRandomState(seed),
				ensemble.WithNJobs(workers),
			)
		}},
		{ModelSVM, func() model.Classifier {
			return svm.NewSVC()
		}},
		{ModelKNN, func() model.Classifier {
			return neighbors.NewKNeighborsClassifier(neighbors.WithNJobs(workers))
		}},
		{ModelXGBoost, func() model.Classifier {
			return ensemble.NewGradientBoostingClassifier(ensemble.WithBoostNJobs(workers))
		}},
	}
}
