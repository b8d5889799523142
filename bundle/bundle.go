// Package bundle persists a trained loan-approval model together with the
// preprocessing it was trained behind, and replays that preprocessing at
// inference time.
package bundle

import (
	"encoding/gob"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/core/model"
	"github.com/YuminosukeSato/loanml/dataset"
	"github.com/YuminosukeSato/loanml/loan"
	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/preprocessing"
	"github.com/YuminosukeSato/loanml/sklearn/ensemble"
	"github.com/YuminosukeSato/loanml/sklearn/linear_model"
	"github.com/YuminosukeSato/loanml/sklearn/neighbors"
	"github.com/YuminosukeSato/loanml/sklearn/svm"
	"github.com/YuminosukeSato/loanml/sklearn/tree"
)

func init() {
	// Model はインターフェース型なので具象型を登録しておく
	gob.Register(&linear_model.LogisticRegression{})
	gob.Register(&tree.DecisionTreeClassifier{})
	gob.Register(&ensemble.RandomForestClassifier{})
	gob.Register(&svm.SVC{})
	gob.Register(&neighbors.KNeighborsClassifier{})
	gob.Register(&ensemble.GradientBoostingClassifier{})
}

// ModelScore is the test accuracy of one candidate model.
type ModelScore struct {
	Name     string  `json:"name"`
	Accuracy float64 `json:"accuracy"`
}

// Metadata describes the training run that produced a bundle.
type Metadata struct {
	RunID      uuid.UUID    `json:"run_id"`
	ModelName  string       `json:"model_name"`
	Accuracy   float64      `json:"accuracy"`
	Candidates []ModelScore `json:"candidates"`
	ClassNames []string     `json:"class_names"`
	DataPath   string       `json:"data_path,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Bundle is everything needed to score a raw application: the fitted
// imputer, the label encoders (one per categorical column, the target
// included), the ordered feature columns, the scaler and the model.
type Bundle struct {
	Model          model.Classifier
	Imputer        *preprocessing.SimpleImputer
	Encoders       map[string]*preprocessing.LabelEncoder
	Scaler         *preprocessing.StandardScaler
	FeatureColumns []string
	Metadata       Metadata
}

// New assembles a bundle and checks that its parts fit together.
func New(
	m model.Classifier,
	imputer *preprocessing.SimpleImputer,
	encoders map[string]*preprocessing.LabelEncoder,
	scaler *preprocessing.StandardScaler,
	featureColumns []string,
	meta Metadata,
) (*Bundle, error) {
	b := &Bundle{
		Model:          m,
		Imputer:        imputer,
		Encoders:       encoders,
		Scaler:         scaler,
		FeatureColumns: append([]string(nil), featureColumns...),
		Metadata:       meta,
	}
	if b.Metadata.RunID == uuid.Nil {
		b.Metadata.RunID = uuid.New()
	}
	if b.Metadata.CreatedAt.IsZero() {
		b.Metadata.CreatedAt = time.Now().UTC()
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate reports the first missing or unfitted component.
func (b *Bundle) Validate() error {
	switch {
	case b.Model == nil || !b.Model.IsFitted():
		return errors.NewModelError("Bundle.Validate", "model", errors.New("model is missing or not fitted"))
	case b.Imputer == nil || !b.Imputer.IsFitted():
		return errors.NewModelError("Bundle.Validate", "imputer", errors.New("imputer is missing or not fitted"))
	case b.Scaler == nil || !b.Scaler.IsFitted():
		return errors.NewModelError("Bundle.Validate", "scaler", errors.New("scaler is missing or not fitted"))
	case len(b.FeatureColumns) == 0:
		return errors.NewModelError("Bundle.Validate", "features", errors.New("no feature columns"))
	}
	if enc, ok := b.Encoders[loan.TargetColumn]; !ok || !enc.IsFitted() {
		return errors.NewModelError("Bundle.Validate", "encoder",
			errors.Newf("no fitted encoder for target column %s", loan.TargetColumn))
	}
	if n, _ := b.Scaler.GetDimensions(); n != len(b.FeatureColumns) {
		return errors.NewDimensionError("Bundle.Validate", len(b.FeatureColumns), n, 1)
	}
	return nil
}

// Save writes the bundle atomically to path.
func (b *Bundle) Save(path string) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return model.SaveModel(b, path)
}

// Load reads and validates a bundle written by Save.
func Load(path string) (*Bundle, error) {
	var b Bundle
	if err := model.LoadModel(&b, path); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid bundle %s", path)
	}
	return &b, nil
}

// Transform imputes, encodes and scales f into the model's feature matrix.
// f must contain every feature column; other columns are ignored.
func (b *Bundle) Transform(f *dataset.Frame) (mat.Matrix, error) {
	for _, c := range b.FeatureColumns {
		if !f.HasColumn(c) {
			return nil, errors.NewDataError(c, 0, "required feature column is missing")
		}
	}
	imputed, err := b.Imputer.Transform(f)
	if err != nil {
		return nil, err
	}
	for _, c := range b.FeatureColumns {
		enc, ok := b.Encoders[c]
		if !ok {
			continue
		}
		values, err := imputed.Column(c)
		if err != nil {
			return nil, err
		}
		codes, err := enc.Transform(values)
		if err != nil {
			return nil, errors.Wrapf(err, "encode column %s", c)
		}
		for i, code := range codes {
			if err := imputed.Set(i, c, strconv.Itoa(code)); err != nil {
				return nil, err
			}
		}
	}
	X, err := imputed.Float64Matrix(b.FeatureColumns)
	if err != nil {
		return nil, err
	}
	return b.Scaler.Transform(X)
}

// PredictFrame scores every row of f.
func (b *Bundle) PredictFrame(f *dataset.Frame) ([]loan.Prediction, error) {
	if f.NumRows() == 0 {
		return nil, errors.NewModelError("Bundle.PredictFrame", "empty data", errors.ErrEmptyData)
	}
	X, err := b.Transform(f)
	if err != nil {
		return nil, err
	}
	pred, err := b.Model.Predict(X)
	if err != nil {
		return nil, err
	}
	proba, err := b.Model.PredictProba(X)
	if err != nil {
		return nil, err
	}

	target := b.Encoders[loan.TargetColumn]
	approvedCol := -1
	if code, err := target.Code(loan.ApprovedLabel); err == nil {
		for j, c := range b.Model.Classes() {
			if c == code {
				approvedCol = j
			}
		}
	}

	n, _ := X.Dims()
	codes := make([]int, n)
	for i := range codes {
		codes[i] = int(pred.At(i, 0))
	}
	labels, err := target.InverseTransform(codes)
	if err != nil {
		return nil, err
	}

	out := make([]loan.Prediction, n)
	for i := range out {
		p := 0.0
		if approvedCol >= 0 {
			p = proba.At(i, approvedCol)
		}
		out[i] = loan.Prediction{
			Label:       labels[i],
			Approved:    labels[i] == loan.ApprovedLabel,
			Probability: p,
		}
	}
	return out, nil
}

// Predict scores records keyed by column name. Absent keys and NA spellings
// ("NA", "null", ...) are missing values and get imputed, as in LoadCSV.
func (b *Bundle) Predict(records []map[string]string) ([]loan.Prediction, error) {
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(b.FeatureColumns))
		for j, c := range b.FeatureColumns {
			if v := rec[c]; !dataset.IsNAValue(v) {
				row[j] = v
			}
		}
		rows[i] = row
	}
	f, err := dataset.NewFrame(b.FeatureColumns, rows)
	if err != nil {
		return nil, err
	}
	return b.PredictFrame(f)
}

// PredictApplications scores loan applications.
func (b *Bundle) PredictApplications(apps []loan.Application) ([]loan.Prediction, error) {
	records := make([]map[string]string, len(apps))
	for i, a := range apps {
		records[i] = a.Record()
	}
	return b.Predict(records)
}
