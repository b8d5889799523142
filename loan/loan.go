// Package loan describes the loan-approval dataset: its columns and the
// application record accepted by the prediction API.
package loan

import (
	"math"
	"slices"

	"github.com/YuminosukeSato/loanml/dataset"
)

// Dataset columns.
const (
	ColLoanID            = "Loan_ID"
	ColGender            = "Gender"
	ColMarried           = "Married"
	ColDependents        = "Dependents"
	ColEducation         = "Education"
	ColSelfEmployed      = "Self_Employed"
	ColApplicantIncome   = "ApplicantIncome"
	ColCoapplicantIncome = "CoapplicantIncome"
	ColLoanAmount        = "LoanAmount"
	ColLoanAmountTerm    = "Loan_Amount_Term"
	ColCreditHistory     = "Credit_History"
	ColPropertyArea      = "Property_Area"
	ColLoanStatus        = "Loan_Status"
)

// IDColumn identifies a row and is never a feature.
const IDColumn = ColLoanID

// TargetColumn holds the approval decision ("Y" or "N").
const TargetColumn = ColLoanStatus

// ApprovedLabel is the target value of an approved application.
const ApprovedLabel = "Y"

// CategoricalColumns are label-encoded before training. The target is included.
var CategoricalColumns = []string{
	ColGender,
	ColMarried,
	ColDependents,
	ColEducation,
	ColSelfEmployed,
	ColPropertyArea,
	ColLoanStatus,
}

// FeatureColumns is the feature order of the standard dataset.
var FeatureColumns = []string{
	ColGender,
	ColMarried,
	ColDependents,
	ColEducation,
	ColSelfEmployed,
	ColApplicantIncome,
	ColCoapplicantIncome,
	ColLoanAmount,
	ColLoanAmountTerm,
	ColCreditHistory,
	ColPropertyArea,
}

// IsCategorical reports whether column is label-encoded.
func IsCategorical(column string) bool {
	return slices.Contains(CategoricalColumns, column)
}

// FeatureColumnsOf returns header without the id and target columns, in order.
func FeatureColumnsOf(header []string) []string {
	out := make([]string, 0, len(header))
	for _, c := range header {
		if c == IDColumn || c == TargetColumn {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Application is one loan application as submitted by the web form.
// Omitted fields are treated as missing and imputed by the model bundle.
type Application struct {
	Gender            string   `json:"Gender,omitempty" binding:"omitempty,oneof=Male Female"`
	Married           string   `json:"Married,omitempty" binding:"omitempty,oneof=Yes No"`
	Dependents        string   `json:"Dependents,omitempty" binding:"omitempty,oneof=0 1 2 3+"`
	Education         string   `json:"Education,omitempty" binding:"omitempty,oneof=Graduate 'Not Graduate'"`
	SelfEmployed      string   `json:"Self_Employed,omitempty" binding:"omitempty,oneof=Yes No"`
	ApplicantIncome   *float64 `json:"ApplicantIncome,omitempty" binding:"omitempty,gte=0"`
	CoapplicantIncome *float64 `json:"CoapplicantIncome,omitempty" binding:"omitempty,gte=0"`
	LoanAmount        *float64 `json:"LoanAmount,omitempty" binding:"omitempty,gt=0"`
	LoanAmountTerm    *float64 `json:"Loan_Amount_Term,omitempty" binding:"omitempty,gt=0"`
	CreditHistory     *float64 `json:"Credit_History,omitempty" binding:"omitempty,min=0,max=1"`
	PropertyArea      string   `json:"Property_Area,omitempty" binding:"omitempty,oneof=Urban Semiurban Rural"`
}

// Record renders the application as dataset cells keyed by column name.
// Unset fields become the missing marker.
func (a Application) Record() map[string]string {
	num := func(v *float64) string {
		if v == nil || math.IsNaN(*v) {
			return dataset.Missing
		}
		return dataset.FormatFloat(*v)
	}
	return map[string]string{
		ColGender:            a.Gender,
		ColMarried:           a.Married,
		ColDependents:        a.Dependents,
		ColEducation:         a.Education,
		ColSelfEmployed:      a.SelfEmployed,
		ColApplicantIncome:   num(a.ApplicantIncome),
		ColCoapplicantIncome: num(a.CoapplicantIncome),
		ColLoanAmount:        num(a.LoanAmount),
		ColLoanAmountTerm:    num(a.LoanAmountTerm),
		ColCreditHistory:     num(a.CreditHistory),
		ColPropertyArea:      a.PropertyArea,
	}
}

// Prediction is the model's decision for one application.
type Prediction struct {
	// Label is the decoded target value ("Y" or "N").
	Label string `json:"label"`
	// Approved is Label == ApprovedLabel.
	Approved bool `json:"approved"`
	// Probability is the model's probability of approval.
	Probability float64 `json:"probability"`
}

// Rounded returns the prediction with its probability rounded to 2 decimals,
// the precision shown to applicants.
func (p Prediction) Rounded() Prediction {
	p.Probability = math.Round(p.Probability*100) / 100
	return p
}

// Float returns a pointer to v, for building Applications in code.
func Float(v float64) *float64 {
	return &v
}
