package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Average selects how per-class scores are combined.
type Average string

const (
	// Macro は各クラスの単純平均
	Macro Average = "macro"
	// Weighted はクラスのサポート数で重み付けした平均
	Weighted Average = "weighted"
)

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range t {
		if t[i] == p[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(t)), nil
}

func requireBinary(op string, labels []float64) error {
	for _, v := range labels {
		if v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// AUC はROC曲線下面積を順位統計量で計算する。同順位は平均順位を使う。
// 片方のクラスしか存在しない場合は定義できないため 0.5 を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	t, s, err := pair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := requireBinary("AUC", t); err != nil {
		return 0, err
	}
	return rankAUC(t, s), nil
}

// rankAUC computes the Mann-Whitney statistic normalised to [0, 1].
func rankAUC(labels, scores []float64) float64 {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	var nPos, rankSum float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if labels[idx[k]] == 1 {
				rankSum += avg
				nPos++
			}
		}
		i = j + 1
	}
	nNeg := float64(n) - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in yTrue", 0.5))
		return 0.5
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// MulticlassAUC is the one-vs-rest macro AUC over the columns of proba.
// Classes absent from yTrue (or covering all of it) are skipped.
func MulticlassAUC(yTrue *mat.VecDense, proba mat.Matrix) (float64, error) {
	const op = "MulticlassAUC"
	if yTrue == nil || yTrue.Len() == 0 || proba == nil {
		return 0, errors.NewValueError(op, "empty input")
	}
	r, k := proba.Dims()
	if r != yTrue.Len() {
		return 0, errors.NewDimensionError(op, yTrue.Len(), r, 0)
	}
	labels := make([]float64, r)
	scores := make([]float64, r)
	var sum float64
	valid := 0
	for c := 0; c < k; c++ {
		pos := 0
		for i := 0; i < r; i++ {
			labels[i] = 0
			if int(yTrue.AtVec(i)) == c {
				labels[i] = 1
				pos++
			}
			scores[i] = proba.At(i, c)
		}
		if pos == 0 || pos == r {
			continue
		}
		sum += rankAUC(labels, scores)
		valid++
	}
	if valid == 0 {
		return 0, errors.NewValueError(op, "need at least two classes in yTrue")
	}
	return sum / float64(valid), nil
}

// ConfusionMatrix counts (true, predicted) pairs over class codes 0..nClasses-1.
// Row is the true class, column the predicted class.
func ConfusionMatrix(yTrue, yPred *mat.VecDense, nClasses int) ([][]int, error) {
	t, p, err := pair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	cm := make([][]int, nClasses)
	for i := range cm {
		cm[i] = make([]int, nClasses)
	}
	for i := range t {
		a, b := int(t[i]), int(p[i])
		if a < 0 || a >= nClasses || b < 0 || b >= nClasses {
			return nil, errors.NewValueError("ConfusionMatrix", "class code out of range")
		}
		cm[a][b]++
	}
	return cm, nil
}

// PrecisionRecallF1 computes averaged precision, recall and F1 over the
// classes present in either vector. A class never predicted has precision 0
// and raises an UndefinedMetricWarning.
func PrecisionRecallF1(yTrue, yPred *mat.VecDense, average Average) (precision, recall, f1 float64, err error) {
	t, p, err := pair("PrecisionRecallF1", yTrue, yPred)
	if err != nil {
		return 0, 0, 0, err
	}
	if average != Macro && average != Weighted {
		return 0, 0, 0, errors.NewValidationError("average", "must be macro or weighted", average)
	}
	classes := make(map[float64]struct{})
	for i := range t {
		classes[t[i]] = struct{}{}
		classes[p[i]] = struct{}{}
	}
	labels := make([]float64, 0, len(classes))
	for c := range classes {
		labels = append(labels, c)
	}
	sort.Float64s(labels)

	ps := make([]float64, len(labels))
	rs := make([]float64, len(labels))
	fs := make([]float64, len(labels))
	support := make([]float64, len(labels))
	for li, c := range labels {
		var tp, fp, fn float64
		for i := range t {
			switch {
			case t[i] == c && p[i] == c:
				tp++
			case t[i] != c && p[i] == c:
				fp++
			case t[i] == c && p[i] != c:
				fn++
			}
		}
		support[li] = tp + fn
		if tp+fp == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples for a label", 0))
		} else {
			ps[li] = tp / (tp + fp)
		}
		if tp+fn > 0 {
			rs[li] = tp / (tp + fn)
		}
		if ps[li]+rs[li] > 0 {
			fs[li] = 2 * ps[li] * rs[li] / (ps[li] + rs[li])
		}
	}

	weights := support
	if average == Macro {
		weights = make([]float64, len(labels))
		floats.AddConst(1, weights)
	}
	total := floats.Sum(weights)
	if total == 0 {
		return 0, 0, 0, nil
	}
	return floats.Dot(ps, weights) / total, floats.Dot(rs, weights) / total, floats.Dot(fs, weights) / total, nil
}

// ROC is a receiver operating characteristic curve. Thresholds are the
// distinct scores in decreasing order, preceded by +Inf.
type ROC struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
}

// ROCCurve computes the binary ROC curve of scores against 0/1 labels.
func ROCCurve(yTrue, yScore *mat.VecDense) (*ROC, error) {
	t, s, err := pair("ROCCurve", yTrue, yScore)
	if err != nil {
		return nil, err
	}
	if err := requireBinary("ROCCurve", t); err != nil {
		return nil, err
	}
	idx := make([]int, len(s))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s[idx[a]] > s[idx[b]] })

	pos := floats.Sum(t)
	neg := float64(len(t)) - pos
	roc := &ROC{FPR: []float64{0}, TPR: []float64{0}, Thresholds: []float64{math.Inf(1)}}
	var tp, fp float64
	for k, i := range idx {
		if t[i] == 1 {
			tp++
		} else {
			fp++
		}
		if k+1 < len(idx) && s[idx[k+1]] == s[i] {
			continue
		}
		roc.FPR = append(roc.FPR, rate(fp, neg))
		roc.TPR = append(roc.TPR, rate(tp, pos))
		roc.Thresholds = append(roc.Thresholds, s[i])
	}
	return roc, nil
}

func rate(n, d float64) float64 {
	if d == 0 {
		return math.NaN()
	}
	return n / d
}
