package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// WriteModelResult prints one model's evaluation: accuracy, the
// classification report and the confusion matrix.
func WriteModelResult(w io.Writer, name string, accuracy float64, classReport fmt.Stringer, confusion mat.Matrix) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s Results:\n", name)
	fmt.Fprintf(&b, "Accuracy: %.4f\n", accuracy)
	if classReport != nil {
		b.WriteString("\nClassification Report:\n")
		b.WriteString(classReport.String())
		b.WriteString("\n")
	}
	if confusion != nil {
		b.WriteString("\nConfusion Matrix:\n")
		b.WriteString(FormatMatrix(confusion))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteComparison prints every candidate's accuracy in training order and
// the chosen model. best < 0 omits the last line.
func WriteComparison(w io.Writer, entries []Entry, best int) error {
	var b strings.Builder
	b.WriteString("\nFinal Model Comparison:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s: %.4f\n", e.Name, e.Accuracy)
	}
	if best >= 0 && best < len(entries) {
		fmt.Fprintf(&b, "\nBest model: %s (accuracy: %.4f)\n", entries[best].Name, entries[best].Accuracy)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// FormatMatrix renders an integer-valued matrix the way numpy prints it:
//
//	[[18 25]
//	 [ 2 78]]
func FormatMatrix(m mat.Matrix) string {
	r, c := m.Dims()
	cells := make([][]string, r)
	width := 0
	for i := 0; i < r; i++ {
		cells[i] = make([]string, c)
		for j := 0; j < c; j++ {
			s := strconv.FormatFloat(m.At(i, j), 'f', -1, 64)
			cells[i][j] = s
			width = max(width, len(s))
		}
	}

	var b strings.Builder
	b.WriteString("[")
	for i, row := range cells {
		if i > 0 {
			b.WriteString("\n ")
		}
		b.WriteString("[")
		for j, s := range row {
			if j > 0 {
				b.WriteString(" ")
			}
			b.WriteString(strings.Repeat(" ", width-len(s)))
			b.WriteString(s)
		}
		b.WriteString("]")
	}
	b.WriteString("]")
	return b.String()
}
