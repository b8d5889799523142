package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

func newTestFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame(
		[]string{"id", "income", "area"},
		[][]string{
			{"a", "100", "Urban"},
			{"b", "", "Rural"},
			{"c", "250.5", ""},
		},
	)
	require.NoError(t, err)
	return f
}

func TestFrame_IsNumeric(t *testing.T) {
	f := newTestFrame(t)

	numeric, err := f.IsNumeric("income")
	require.NoError(t, err)
	assert.True(t, numeric)

	numeric, err = f.IsNumeric("area")
	require.NoError(t, err)
	assert.False(t, numeric)

	_, err = f.IsNumeric("nope")
	assert.Error(t, err)

	empty, err := NewFrame([]string{"x"}, [][]string{{""}})
	require.NoError(t, err)
	numeric, err = empty.IsNumeric("x")
	require.NoError(t, err)
	assert.False(t, numeric, "an all-missing column is not numeric")
}

func TestFrame_CloneIsDeep(t *testing.T) {
	f := newTestFrame(t)
	c := f.Clone()
	require.NoError(t, c.Set(0, "income", "999"))

	orig, err := f.At(0, "income")
	require.NoError(t, err)
	assert.Equal(t, "100", orig)
}

func TestFrame_SelectRows(t *testing.T) {
	f := newTestFrame(t)

	sub, err := f.SelectRows([]int{2, 0})
	require.NoError(t, err)
	ids, err := sub.Column("id")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids)

	_, err = f.SelectRows([]int{3})
	assert.Error(t, err)
}

func TestFrame_Float64Matrix(t *testing.T) {
	f := newTestFrame(t)

	_, err := f.Float64Matrix([]string{"income"})
	var dataErr *errors.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "income", dataErr.Column)
	assert.Equal(t, 2, dataErr.Row)

	require.NoError(t, f.Set(1, "income", "7"))
	m, err := f.Float64Matrix([]string{"income"})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, 250.5, m.At(2, 0))

	_, err = f.Float64Matrix([]string{"id"})
	assert.Error(t, err)
}

func TestNewFrame_RaggedRow(t *testing.T) {
	_, err := NewFrame([]string{"a", "b"}, [][]string{{"1"}})
	var dataErr *errors.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, 1, dataErr.Row)
}
