package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/loanml/dataset"
	"github.com/YuminosukeSato/loanml/pkg/errors"
)

func newFrame(t *testing.T, header []string, rows ...[]string) *dataset.Frame {
	t.Helper()
	f, err := dataset.NewFrame(header, rows)
	require.NoError(t, err)
	return f
}

func TestSimpleImputer_MostFrequent(t *testing.T) {
	f := newFrame(t, []string{"Gender", "LoanAmount", "Term"},
		[]string{"Male", "120", "360"},
		[]string{"", "66", "360.0"},
		[]string{"Female", "", "180"},
		[]string{"Male", "120", ""},
		[]string{"Female", "66", "360"},
		[]string{"Male", "", "180"},
	)

	imp := NewSimpleImputer()
	out, err := imp.FitTransform(f)
	require.NoError(t, err)

	assert.Equal(t, "Male", imp.Statistics["Gender"])
	assert.Equal(t, "66", imp.Statistics["LoanAmount"], "numeric ties resolve to the smallest value")
	assert.Equal(t, "360", imp.Statistics["Term"], "360 and 360.0 count as the same value")

	for col, n := range out.MissingCount() {
		assert.Zero(t, n, col)
	}
	assert.Equal(t, 2, f.MissingCount()["LoanAmount"], "input frame is not modified")
}

func TestSimpleImputer_StringTiesAreLexical(t *testing.T) {
	f := newFrame(t, []string{"Area"},
		[]string{"Urban"}, []string{"Rural"}, []string{""},
	)
	imp := NewSimpleImputer()
	require.NoError(t, imp.Fit(f))
	assert.Equal(t, "Rural", imp.Statistics["Area"])
}

func TestSimpleImputer_Constant(t *testing.T) {
	f := newFrame(t, []string{"Area"}, []string{""}, []string{"Urban"})
	imp := NewSimpleImputer(WithStrategy(StrategyConstant), WithFillValue("Unknown"))
	out, err := imp.FitTransform(f)
	require.NoError(t, err)

	v, err := out.At(0, "Area")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", v)
}

func TestSimpleImputer_Errors(t *testing.T) {
	allMissing := newFrame(t, []string{"x"}, []string{""}, []string{""})
	err := NewSimpleImputer().Fit(allMissing)
	var dataErr *errors.DataError
	assert.True(t, errors.As(err, &dataErr))

	err = NewSimpleImputer(WithStrategy("mean")).Fit(newFrame(t, []string{"x"}, []string{"1"}))
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = NewSimpleImputer().Transform(allMissing)
	var nfe *errors.NotFittedError
	assert.True(t, errors.As(err, &nfe))

	imp := NewSimpleImputer()
	require.NoError(t, imp.Fit(newFrame(t, []string{"x"}, []string{"1"})))
	_, err = imp.Transform(newFrame(t, []string{"y"}, []string{""}))
	assert.True(t, errors.As(err, &dataErr))
}
