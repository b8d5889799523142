// Package loanml predicts loan approval from applicant data.
//
// Training reads a loan application CSV, fills missing cells with each
// column's most frequent value, label-encodes the categorical columns, holds
// out 20% of the rows, standardizes the features on the training part and
// fits six classifiers:
//
//   - Logistic Regression
//   - Decision Tree
//   - Random Forest
//   - SVM
//   - KNN
//   - gradient boosted trees ("XGBoost")
//
// Each model is scored on the held-out rows. The most accurate one is saved
// together with its imputer, encoders and scaler as a bundle, and the
// accuracies are drawn as a bar chart.
//
// # Quick Start
//
//	loanml train --data loan_data.csv
//	echo '{"Credit_History": 1, "ApplicantIncome": 5000}' | loanml predict
//	loanml serve --addr :8080
//
// From Go:
//
//	res, err := pipeline.Run(ctx, pipeline.Options{
//	    DataPath:   "loan_data.csv",
//	    Seed:       pipeline.DefaultSeed,
//	    ChartPath:  "model_comparison.png",
//	    BundlePath: "loan_model.gob",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	preds, err := res.Bundle.PredictApplications([]loan.Application{app})
//
// # Packages
//
//   - dataset: CSV loading, string frames, train/test split
//   - preprocessing: SimpleImputer, LabelEncoder, StandardScaler
//   - sklearn/...: the six classifiers
//   - metrics: accuracy, confusion matrix, classification report, AUC
//   - pipeline: the end-to-end training run
//   - report: comparison chart and text summaries
//   - bundle: persisted model plus preprocessing, inference on raw records
//   - server: HTTP prediction API
//   - loan: dataset columns and the application record
//   - core/model, core/parallel: estimator plumbing
//   - pkg/log, pkg/errors, pkg/config: logging, errors, configuration
package loanml
