package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

func col(vs ...float64) *mat.Dense {
	return mat.NewDense(len(vs), 1, vs)
}

func TestBinaryScores(t *testing.T) {
	yTrue := col(1, 1, 1, 0, 0, 1, 0, 1)
	yPred := col(1, 0, 1, 0, 1, 1, 0, 1)
	// tp=4 fp=1 fn=1

	p, err := PrecisionScore(yTrue, yPred, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, p, 1e-12)

	r, err := RecallScore(yTrue, yPred, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, r, 1e-12)

	f1, err := F1Score(yTrue, yPred, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, f1, 1e-12)

	acc, err := AccuracyScore(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)
}

func TestPrecisionScore_ZeroDivisionWarns(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	p, err := PrecisionScore(col(1, 0), col(0, 0), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)
	require.Len(t, warnings, 1)

	var umw *errors.UndefinedMetricWarning
	require.True(t, errors.As(warnings[0], &umw))
	assert.Equal(t, "precision", umw.Metric)
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := col(0, 0, 1, 1, 1, 2)
	yPred := col(0, 1, 1, 1, 0, 2)

	cm, labels, err := ConfusionMatrix(yTrue, yPred, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, labels)
	want := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		1, 2, 0,
		0, 0, 1,
	})
	assert.True(t, mat.Equal(want, cm))

	_, _, err = ConfusionMatrix(col(0, 1), col(0), nil)
	assert.Error(t, err)
}

func TestClassificationReport(t *testing.T) {
	yTrue := col(0, 0, 0, 1, 1, 1, 1, 1)
	yPred := col(0, 1, 0, 1, 1, 1, 0, 1)

	report, err := ClassificationReport(yTrue, yPred, nil, []string{"N", "Y"})
	require.NoError(t, err)

	require.Len(t, report.Classes, 2)
	n, y := report.Classes[0], report.Classes[1]
	assert.Equal(t, "N", n.Label)
	assert.InDelta(t, 2.0/3.0, n.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, n.Recall, 1e-12)
	assert.Equal(t, 3, n.Support)
	assert.InDelta(t, 0.8, y.Precision, 1e-12)
	assert.InDelta(t, 0.8, y.Recall, 1e-12)
	assert.Equal(t, 5, y.Support)

	assert.InDelta(t, 0.75, report.Accuracy, 1e-12)
	assert.Equal(t, 8, report.Support)
	assert.InDelta(t, (2.0/3.0+0.8)/2, report.MacroAvg.F1, 1e-12)
	assert.InDelta(t, (3*(2.0/3.0)+5*0.8)/8, report.WeightedAvg.Precision, 1e-12)

	text := report.String()
	lines := strings.Split(text, "\n")
	assert.Equal(t, "              precision    recall  f1-score   support", lines[0])
	assert.Equal(t, "           N       0.67      0.67      0.67         3", lines[2])
	assert.Equal(t, "           Y       0.80      0.80      0.80         5", lines[3])
	assert.Equal(t, "    accuracy                           0.75         8", lines[5])
	assert.Contains(t, text, "   macro avg       0.73      0.73      0.73         8")
	assert.Contains(t, text, "weighted avg       0.75      0.75      0.75         8")

	_, err = ClassificationReport(yTrue, yPred, nil, []string{"only one"})
	assert.Error(t, err)
}
