package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

const loanCSV = `Loan_ID,Gender,Married,Dependents,Education,Self_Employed,ApplicantIncome,CoapplicantIncome,LoanAmount,Loan_Amount_Term,Credit_History,Property_Area,Loan_Status
LP001002,Male,No,0,Graduate,No,5849,0,,360,1,Urban,Y
LP001003,Male,Yes,1,Graduate,No,4583,1508,128,360,1,Rural,N
LP001005,NA,Yes,0,Graduate,Yes,3000,0,66,360,1,Urban,Y
LP001006,Male,Yes,0,Not Graduate,n/a,2583,2358,120,360,NaN,Urban,Y
LP001008,Male,No,3+,Graduate,No,6000,0,141,360,1,Urban,Y
`

func TestLoadCSVFromReader(t *testing.T) {
	f, err := LoadCSVFromReader(strings.NewReader(loanCSV), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, f.NumRows())
	assert.Equal(t, 13, len(f.Columns()))
	assert.Equal(t, 0, f.ColumnIndex("Loan_ID"))
	assert.Equal(t, -1, f.ColumnIndex("Nope"))

	missing := f.MissingCount()
	assert.Equal(t, 1, missing["LoanAmount"])
	assert.Equal(t, 1, missing["Gender"])
	assert.Equal(t, 1, missing["Self_Employed"])
	assert.Equal(t, 1, missing["Credit_History"])
	assert.Equal(t, 0, missing["Loan_Status"])

	dependents, err := f.Column("Dependents")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "0", "0", "3+"}, dependents)
}

func TestLoadCSVFromReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		row   int
	}{
		{"empty input", "", 0},
		{"ragged row", "a,b\n1,2\n3\n", 2},
		{"duplicate header", "a,a\n1,2\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSVFromReader(strings.NewReader(tt.input), nil)
			var dataErr *errors.DataError
			require.True(t, errors.As(err, &dataErr), "got %v", err)
			assert.Equal(t, tt.row, dataErr.Row)
		})
	}
}

func TestLoadCSVFromReader_CustomOptions(t *testing.T) {
	input := "\ufeffa;b\n1;?\n2;x\n"
	f, err := LoadCSVFromReader(strings.NewReader(input), &CSVOptions{Delimiter: ';', NAValues: []string{"?"}})
	require.NoError(t, err)

	assert.True(t, f.HasColumn("a"), "byte order mark must be stripped")
	v, err := f.At(0, "b")
	require.NoError(t, err)
	assert.True(t, IsMissing(v))
}

func TestIsNAValue(t *testing.T) {
	for _, v := range []string{"", "NA", "N/A", "null", "NaN", "None"} {
		assert.True(t, IsNAValue(v), v)
	}
	for _, v := range []string{"0", "No", "na ", "Urban"} {
		assert.False(t, IsNAValue(v), v)
	}
}

func TestLoadCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loan.csv")
	require.NoError(t, os.WriteFile(path, []byte(loanCSV), 0o600))

	f, err := LoadCSV(path, DefaultCSVOptions())
	require.NoError(t, err)
	assert.Equal(t, 5, f.NumRows())

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), nil)
	assert.Error(t, err)
}
