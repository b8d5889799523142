package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

func TestLabelEncoder_FitTransform(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		classes []string
		codes   []int
	}{
		{
			name:    "lexical",
			values:  []string{"Y", "N", "Y", "Y"},
			classes: []string{"N", "Y"},
			codes:   []int{1, 0, 1, 1},
		},
		{
			name:    "mixed dependents stay lexical",
			values:  []string{"0", "3+", "1", "2", "0"},
			classes: []string{"0", "1", "2", "3+"},
			codes:   []int{0, 3, 1, 2, 0},
		},
		{
			name:    "numeric order",
			values:  []string{"10", "9", "1.0", "1"},
			classes: []string{"1", "9", "10"},
			codes:   []int{2, 1, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewLabelEncoder()
			codes, err := enc.FitTransform(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.classes, enc.Classes)
			assert.Equal(t, tt.codes, codes)
			for _, c := range codes {
				assert.GreaterOrEqual(t, c, 0)
				assert.Less(t, c, len(enc.Classes))
			}

			back, err := enc.InverseTransform(codes)
			require.NoError(t, err)
			for i := range back {
				code, err := enc.Code(back[i])
				require.NoError(t, err)
				assert.Equal(t, codes[i], code)
			}
		})
	}
}

func TestLabelEncoder_Errors(t *testing.T) {
	enc := NewLabelEncoder()
	_, err := enc.Transform([]string{"a"})
	var nfe *errors.NotFittedError
	assert.True(t, errors.As(err, &nfe))

	require.NoError(t, enc.Fit([]string{"Urban", "Rural"}))
	_, err = enc.Transform([]string{"Urban", "Moon"})
	var valErr *errors.ValueError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Message, "Moon")

	_, err = enc.InverseTransform([]int{5})
	assert.Error(t, err)

	err = NewLabelEncoder().Fit([]string{"a", ""})
	var dataErr *errors.DataError
	assert.True(t, errors.As(err, &dataErr))

	err = NewLabelEncoder().Fit(nil)
	assert.Error(t, err)
}
