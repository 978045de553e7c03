package trainer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/metrics"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Metric names of the bundles.
const (
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1"
	MetricAUC       = "auc"
	MetricR2        = "r2"
	MetricMAE       = "mae"
	MetricMSE       = "mse"
	MetricRMSE      = "rmse"
)

// classificationBundle scores class-index predictions. proba may be nil;
// AUC and the ROC curve are only computed when it is present and the test
// split holds more than one class.
func classificationBundle(yTrue, yPred *mat.VecDense, proba *mat.Dense, labels []string) (map[string]float64, *ConfusionMatrix, *ROCCurve, error) {
	acc, err := metrics.Accuracy(yTrue, yPred)
	if err != nil {
		return nil, nil, nil, err
	}
	p, r, f1, err := metrics.PrecisionRecallF1(yTrue, yPred, metrics.Weighted)
	if err != nil {
		return nil, nil, nil, err
	}
	bundle := map[string]float64{
		MetricAccuracy:  acc,
		MetricPrecision: p,
		MetricRecall:    r,
		MetricF1:        f1,
	}

	var cm *ConfusionMatrix
	if len(labels) > 0 {
		counts, err := metrics.ConfusionMatrix(yTrue, yPred, len(labels))
		if err != nil {
			return nil, nil, nil, err
		}
		cm = &ConfusionMatrix{Labels: append([]string(nil), labels...), Matrix: counts}
	}

	var roc *ROCCurve
	if proba != nil {
		_, k := proba.Dims()
		if k == 2 {
			score := mat.VecDenseCopyOf(proba.ColView(1))
			if auc, err := metrics.AUC(yTrue, score); err == nil {
				bundle[MetricAUC] = auc
				if curve, err := metrics.ROCCurve(yTrue, score); err == nil {
					roc = &ROCCurve{FPR: curve.FPR, TPR: curve.TPR, Thresholds: curve.Thresholds}
				}
			}
		} else if auc, err := metrics.MulticlassAUC(yTrue, proba); err == nil {
			bundle[MetricAUC] = auc
		}
	}
	return bundle, cm, roc, nil
}

// regressionBundle scores value predictions. r2 of a constant test target
// is 0.
func regressionBundle(yTrue, yPred *mat.VecDense) (map[string]float64, error) {
	r2, err := metrics.R2Score(yTrue, yPred)
	if errors.Is(err, metrics.ErrNoVariance) {
		r2, err = 0, nil
	}
	if err != nil {
		return nil, err
	}
	mae, err := metrics.MAE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	mse, err := metrics.MSE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	rmse, err := metrics.RMSE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return map[string]float64{MetricR2: r2, MetricMAE: mae, MetricMSE: mse, MetricRMSE: rmse}, nil
}
