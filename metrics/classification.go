// Package metrics implements classification metrics on gonum vectors and
// n×1 label matrices.
package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/loanml/pkg/errors"
)

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyScore は n×1 のラベル行列に対して正解率を計算する
func AccuracyScore(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("AccuracyScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

// BinaryLogLoss は二値分類の対数損失を計算する
// yPred は陽性クラスの確率。log(0) は StabilizeLog で有限値に抑える。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		if y != 0 && y != 1 {
			return 0, errors.NewValueError("BinaryLogLoss", "labels must be 0 or 1")
		}
		p := yPred.AtVec(i)
		sum += -(y*errors.StabilizeLog(p) + (1-y)*errors.StabilizeLog(1-p))
	}
	return sum / float64(n), nil
}

// AUC はROC曲線下面積を順位統計量（Mann-Whitney U）で計算する
// 同順位は平均順位として扱う。片方のクラスしか存在しない場合は 0.5 を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
		if y := yTrue.AtVec(i); y != 0 && y != 1 {
			return 0, errors.NewValueError("AUC", "labels must be 0 or 1")
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return yScore.AtVec(order[a]) < yScore.AtVec(order[b])
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yScore.AtVec(order[j+1]) == yScore.AtVec(order[i]) {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var nPos, rankSum float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
			rankSum += ranks[i]
		}
	}
	nNeg := float64(n) - nPos
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// AUCMatrix は行列入力の先頭列に対して AUC を計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	t, s, err := columnPair("AUCMatrix", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	return AUC(t, s)
}

// ConfusionMatrix は混同行列を返す。行が正解、列が予測。
// labels が nil の場合は両方に現れるラベルの昇順を使う。
func ConfusionMatrix(yTrue, yPred mat.Matrix, labels []int) (*mat.Dense, []int, error) {
	t, p, err := columnPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	if labels == nil {
		labels = UniqueLabels(t, p)
	}
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < t.Len(); i++ {
		ti, ok1 := index[int(t.AtVec(i))]
		pi, ok2 := index[int(p.AtVec(i))]
		if !ok1 || !ok2 {
			continue
		}
		cm.Set(ti, pi, cm.At(ti, pi)+1)
	}
	return cm, labels, nil
}

// PrecisionScore は posLabel を陽性とした適合率を計算する
func PrecisionScore(yTrue, yPred mat.Matrix, posLabel int) (float64, error) {
	s, err := binaryScores("PrecisionScore", yTrue, yPred, posLabel)
	if err != nil {
		return 0, err
	}
	return s.precision(true), nil
}

// RecallScore は posLabel を陽性とした再現率を計算する
func RecallScore(yTrue, yPred mat.Matrix, posLabel int) (float64, error) {
	s, err := binaryScores("RecallScore", yTrue, yPred, posLabel)
	if err != nil {
		return 0, err
	}
	return s.recall(true), nil
}

// F1Score は posLabel を陽性としたF1スコアを計算する
func F1Score(yTrue, yPred mat.Matrix, posLabel int) (float64, error) {
	s, err := binaryScores("F1Score", yTrue, yPred, posLabel)
	if err != nil {
		return 0, err
	}
	return s.f1(true), nil
}

// ClassMetrics はクラスごとの評価指標
type ClassMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report は sklearn の classification_report に相当する
type Report struct {
	Classes     []ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
	Support     int
}

// ClassificationReport はクラスごとの precision / recall / f1 / support と
// 正解率、マクロ平均、重み付き平均を計算する。
// targetNames が nil の場合はラベルの数値を名前として使う。
func ClassificationReport(yTrue, yPred mat.Matrix, labels []int, targetNames []string) (*Report, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}
	if targetNames != nil && len(targetNames) != len(labels) {
		return nil, errors.NewDimensionError("ClassificationReport", len(labels), len(targetNames), 0)
	}

	k := len(labels)
	report := &Report{Classes: make([]ClassMetrics, k)}
	var correct int
	warnedPrecision, warnedRecall := false, false
	for i := 0; i < k; i++ {
		var s scores
		for j := 0; j < k; j++ {
			v := int(cm.At(i, j))
			if i == j {
				s.tp += v
			} else {
				s.fn += v
			}
			if j != i {
				s.fp += int(cm.At(j, i))
			}
		}
		correct += s.tp

		name := strconv.Itoa(labels[i])
		if targetNames != nil {
			name = targetNames[i]
		}
		report.Classes[i] = ClassMetrics{
			Label:     name,
			Precision: s.precision(!warnedPrecision),
			Recall:    s.recall(!warnedRecall),
			F1:        s.f1(false),
			Support:   s.tp + s.fn,
		}
		warnedPrecision = warnedPrecision || s.tp+s.fp == 0
		warnedRecall = warnedRecall || s.tp+s.fn == 0
		report.Support += s.tp + s.fn
	}

	if report.Support > 0 {
		report.Accuracy = float64(correct) / float64(report.Support)
	}
	report.MacroAvg = ClassMetrics{Label: "macro avg", Support: report.Support}
	report.WeightedAvg = ClassMetrics{Label: "weighted avg", Support: report.Support}
	for _, c := range report.Classes {
		report.MacroAvg.Precision += c.Precision / float64(k)
		report.MacroAvg.Recall += c.Recall / float64(k)
		report.MacroAvg.F1 += c.F1 / float64(k)
		if report.Support > 0 {
			w := float64(c.Support) / float64(report.Support)
			report.WeightedAvg.Precision += c.Precision * w
			report.WeightedAvg.Recall += c.Recall * w
			report.WeightedAvg.F1 += c.F1 * w
		}
	}
	return report, nil
}

// String は sklearn と同じレイアウトで2桁精度のテキストを返す
func (r *Report) String() string {
	const digits = 2
	width := len("weighted avg")
	for _, c := range r.Classes {
		if len(c.Label) > width {
			width = len(c.Label)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	row := func(c ClassMetrics) {
		fmt.Fprintf(&b, "%*s  %9.*f %9.*f %9.*f %9d\n", width, c.Label,
			digits, c.Precision, digits, c.Recall, digits, c.F1, c.Support)
	}
	for _, c := range r.Classes {
		row(c)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.*f %9d\n", width, "accuracy", "", "", digits, r.Accuracy, r.Support)
	row(r.MacroAvg)
	row(r.WeightedAvg)
	return b.String()
}

// UniqueLabels returns the sorted distinct integer labels of the vectors.
func UniqueLabels(vs ...*mat.VecDense) []int {
	seen := make(map[int]struct{})
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			seen[int(v.AtVec(i))] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

type scores struct {
	tp, fp, fn int
}

func (s scores) precision(warn bool) float64 {
	if s.tp+s.fp == 0 {
		if warn {
			errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))
		}
		return 0
	}
	return float64(s.tp) / float64(s.tp+s.fp)
}

func (s scores) recall(warn bool) float64 {
	if s.tp+s.fn == 0 {
		if warn {
			errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
		}
		return 0
	}
	return float64(s.tp) / float64(s.tp+s.fn)
}

func (s scores) f1(warn bool) float64 {
	p, r := s.precision(warn), s.recall(warn)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func binaryScores(op string, yTrue, yPred mat.Matrix, posLabel int) (scores, error) {
	t, p, err := columnPair(op, yTrue, yPred)
	if err != nil {
		return scores{}, err
	}
	var s scores
	pos := float64(posLabel)
	for i := 0; i < t.Len(); i++ {
		truePos, predPos := t.AtVec(i) == pos, p.AtVec(i) == pos
		switch {
		case truePos && predPos:
			s.tp++
		case !truePos && predPos:
			s.fp++
		case truePos && !predPos:
			s.fn++
		}
	}
	return s, nil
}

func checkPair(op string, a, b *mat.VecDense) (int, error) {
	if a == nil || b == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := a.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if b.Len() != n {
		return 0, errors.NewDimensionError(op, n, b.Len(), 0)
	}
	return n, nil
}

// columnPair extracts the first column of two matrices as vectors.
func columnPair(op string, a, b mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if a == nil || b == nil {
		return nil, nil, errors.NewValueError(op, "nil matrix")
	}
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra == 0 || ca == 0 || cb == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if ra != rb {
		return nil, nil, errors.NewDimensionError(op, ra, rb, 0)
	}
	return mat.VecDenseCopyOf(colView(a)), mat.VecDenseCopyOf(colView(b)), nil
}

func colView(m mat.Matrix) mat.Vector {
	if cv, ok := m.(interface{ ColView(int) mat.Vector }); ok {
		return cv.ColView(0)
	}
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
