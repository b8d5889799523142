package bundle

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/dataset"
	"github.com/YuminosukeSato/loanml/loan"
	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/preprocessing"
	"github.com/YuminosukeSato/loanml/sklearn/tree"
)

// loanFrame builds a small dataset whose approval is decided by Credit_History.
func loanFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	header := []string{
		loan.ColLoanID, loan.ColGender, loan.ColEducation,
		loan.ColApplicantIncome, loan.ColCreditHistory, loan.ColLoanStatus,
	}
	var rows [][]string
	for i := 0; i < 40; i++ {
		gender := "Male"
		if i%2 == 1 {
			gender = "Female"
		}
		edu := "Graduate"
		if i%3 == 0 {
			edu = "Not Graduate"
		}
		credit, status := "1", "Y"
		if i%4 == 0 {
			credit, status = "0", "N"
		}
		rows = append(rows, []string{
			"LP" + strconv.Itoa(1000+i), gender, edu,
			strconv.Itoa(3000 + 100*i), credit, status,
		})
	}
	rows[5][1] = dataset.Missing
	rows[7][4] = dataset.Missing

	f, err := dataset.NewFrame(header, rows)
	require.NoError(t, err)
	return f
}

func trainBundle(t *testing.T) *Bundle {
	t.Helper()
	f := loanFrame(t)

	imputer := preprocessing.NewSimpleImputer()
	imputed, err := imputer.FitTransform(f)
	require.NoError(t, err)

	encoders := make(map[string]*preprocessing.LabelEncoder)
	for _, c := range imputed.Columns() {
		if !loan.IsCategorical(c) {
			continue
		}
		values, err := imputed.Column(c)
		require.NoError(t, err)
		enc := preprocessing.NewLabelEncoder()
		codes, err := enc.FitTransform(values)
		require.NoError(t, err)
		for i, code := range codes {
			require.NoError(t, imputed.Set(i, c, strconv.Itoa(code)))
		}
		encoders[c] = enc
	}

	features := loan.FeatureColumnsOf(imputed.Columns())
	X, err := imputed.Float64Matrix(features)
	require.NoError(t, err)
	y, err := imputed.Float64Matrix([]string{loan.TargetColumn})
	require.NoError(t, err)

	scaler := preprocessing.NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	require.NoError(t, err)

	dt := tree.NewDecisionTreeClassifier(tree.WithRandomState(42))
	require.NoError(t, dt.Fit(Xs, y))

	b, err := New(dt, imputer, encoders, scaler, features, Metadata{
		ModelName:  "Decision Tree",
		Accuracy:   1,
		Candidates: []ModelScore{{Name: "Decision Tree", Accuracy: 1}},
		ClassNames: encoders[loan.TargetColumn].Classes,
	})
	require.NoError(t, err)
	return b
}

func TestNew_FillsMetadata(t *testing.T) {
	b := trainBundle(t)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", b.Metadata.RunID.String())
	assert.False(t, b.Metadata.CreatedAt.IsZero())
	assert.Equal(t, []string{loan.ColGender, loan.ColEducation, loan.ColApplicantIncome, loan.ColCreditHistory}, b.FeatureColumns)
	assert.Equal(t, []string{"N", "Y"}, b.Metadata.ClassNames)
}

func TestNew_RejectsIncompleteParts(t *testing.T) {
	b := trainBundle(t)

	tests := []struct {
		name   string
		mutate func(*Bundle)
	}{
		{"unfitted model", func(c *Bundle) { c.Model = tree.NewDecisionTreeClassifier() }},
		{"nil imputer", func(c *Bundle) { c.Imputer = nil }},
		{"nil scaler", func(c *Bundle) { c.Scaler = nil }},
		{"no target encoder", func(c *Bundle) {
			c.Encoders = map[string]*preprocessing.LabelEncoder{loan.ColGender: c.Encoders[loan.ColGender]}
		}},
		{"feature count mismatch", func(c *Bundle) { c.FeatureColumns = c.FeatureColumns[:2] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *b
			tt.mutate(&c)
			_, err := New(c.Model, c.Imputer, c.Encoders, c.Scaler, c.FeatureColumns, c.Metadata)
			assert.Error(t, err)
		})
	}
}

func TestBundle_Predict(t *testing.T) {
	b := trainBundle(t)

	tests := []struct {
		name     string
		record   map[string]string
		label    string
		approved bool
		proba    float64
	}{
		{
			name: "good credit",
			record: map[string]string{
				loan.ColGender: "Male", loan.ColEducation: "Graduate",
				loan.ColApplicantIncome: "5000", loan.ColCreditHistory: "1",
			},
			label: "Y", approved: true, proba: 1,
		},
		{
			name: "bad credit",
			record: map[string]string{
				loan.ColGender: "Female", loan.ColEducation: "Not Graduate",
				loan.ColApplicantIncome: "4000", loan.ColCreditHistory: "0",
			},
			label: "N", approved: false, proba: 0,
		},
		{
			name:   "missing fields are imputed",
			record: map[string]string{loan.ColCreditHistory: "0"},
			label:  "N", approved: false, proba: 0,
		},
		{
			name: "NA spellings are imputed",
			record: map[string]string{
				loan.ColGender: "NA", loan.ColEducation: "null",
				loan.ColApplicantIncome: "N/A", loan.ColCreditHistory: "0",
			},
			label: "N", approved: false, proba: 0,
		},
		{
			name:   "missing credit history takes the mode",
			record: map[string]string{loan.ColGender: "Male"},
			label:  "Y", approved: true, proba: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preds, err := b.Predict([]map[string]string{tt.record})
			require.NoError(t, err)
			require.Len(t, preds, 1)
			assert.Equal(t, tt.label, preds[0].Label)
			assert.Equal(t, tt.approved, preds[0].Approved)
			assert.InDelta(t, tt.proba, preds[0].Probability, 1e-12)
		})
	}
}

func TestBundle_PredictApplications(t *testing.T) {
	b := trainBundle(t)
	preds, err := b.PredictApplications([]loan.Application{
		{Gender: "Female", Education: "Graduate", ApplicantIncome: loan.Float(6000), CreditHistory: loan.Float(1)},
		{CreditHistory: loan.Float(0)},
	})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.True(t, preds[0].Approved)
	assert.False(t, preds[1].Approved)
}

func TestBundle_PredictErrors(t *testing.T) {
	b := trainBundle(t)

	_, err := b.Predict([]map[string]string{{loan.ColGender: "Other"}})
	var verr *errors.ValueError
	assert.True(t, errors.As(err, &verr), "unknown category")

	_, err = b.Predict([]map[string]string{{loan.ColApplicantIncome: "lots"}})
	var derr *errors.DataError
	assert.True(t, errors.As(err, &derr), "non-numeric income")

	_, err = b.Predict(nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	f, err := dataset.NewFrame([]string{loan.ColGender}, [][]string{{"Male"}})
	require.NoError(t, err)
	_, err = b.PredictFrame(f)
	assert.True(t, errors.As(err, &derr), "missing feature column")
}

func TestBundle_SaveLoad(t *testing.T) {
	b := trainBundle(t)
	path := filepath.Join(t.TempDir(), "loan_model.gob")
	require.NoError(t, b.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, b.FeatureColumns, loaded.FeatureColumns)
	assert.Equal(t, b.Metadata.RunID, loaded.Metadata.RunID)
	assert.Equal(t, b.Metadata.ModelName, loaded.Metadata.ModelName)
	assert.True(t, b.Metadata.CreatedAt.Equal(loaded.Metadata.CreatedAt))
	assert.IsType(t, &tree.DecisionTreeClassifier{}, loaded.Model)

	f := loanFrame(t)
	want, err := b.PredictFrame(f)
	require.NoError(t, err)
	got, err := loaded.PredictFrame(f)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	Xw, err := b.Transform(f)
	require.NoError(t, err)
	Xg, err := loaded.Transform(f)
	require.NoError(t, err)
	assert.True(t, mat.Equal(Xw, Xg))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}
