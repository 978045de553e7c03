package family

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/preprocessing"
)

// Trained is the explicit handle to one fitted candidate.
type Trained struct {
	Family      Family
	ModelID     ModelID
	DisplayName string
	Task        Task
	Estimator   model.Tunable
	CVMean      float64
	CVStd       float64
	CVScores    []float64
	NumFeatures int
	NumSamples  int
	NumClasses  int
	Params      map[string]interface{}
	Tuned       bool
}

// Predict returns one prediction per row: a class index for classifiers, a
// value for regressors.
func (t *Trained) Predict(X mat.Matrix) (mat.Matrix, error) {
	if t == nil || t.Estimator == nil {
		return nil, errors.NewStateError("family.Predict", "model", "", errors.ErrNoTrainedModel)
	}
	return t.Estimator.Predict(X)
}

// PredictProba returns an n×NumClasses probability matrix whose column j is
// class index j. Classes absent from the training rows get probability 0.
// ok is false for regressors and estimators without probabilities.
func (t *Trained) PredictProba(X mat.Matrix) (proba *mat.Dense, ok bool, err error) {
	if t == nil || t.Estimator == nil {
		return nil, false, errors.NewStateError("family.PredictProba", "model", "", errors.ErrNoTrainedModel)
	}
	clf, isClf := t.Estimator.(model.Classifier)
	if !isClf || t.Task != preprocessing.Classification {
		return nil, false, nil
	}
	p, err := clf.PredictProba(X)
	if err != nil {
		return nil, false, err
	}
	n, _ := p.Dims()
	k := t.NumClasses
	for _, c := range clf.Classes() {
		k = max(k, c+1)
	}
	out := mat.NewDense(n, k, nil)
	for j, c := range clf.Classes() {
		for i := 0; i < n; i++ {
			out.Set(i, c, p.At(i, j))
		}
	}
	return out, true, nil
}

// FeatureImportance returns native importances: tree impurity or boosting
// gain, otherwise absolute linear coefficients (averaged over classes for
// one-vs-rest models). ok is false when the estimator has neither.
func (t *Trained) FeatureImportance() ([]float64, bool) {
	if t == nil || t.Estimator == nil {
		return nil, false
	}
	return NativeImportance(t.Estimator)
}

// NativeImportance reads importances an estimator carries itself: tree
// impurity or boosting gain, else absolute coefficients.
func NativeImportance(est model.Estimator) ([]float64, bool) {
	if fi, ok := est.(model.FeatureImporter); ok {
		imp := fi.FeatureImportances()
		return imp, len(imp) > 0
	}
	cm, ok := est.(model.CoefficientModel)
	if !ok {
		return nil, false
	}
	coef := cm.Coefficients()
	if coef == nil {
		return nil, false
	}
	r, c := coef.Dims()
	imp := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			imp[j] += math.Abs(coef.At(i, j)) / float64(r)
		}
	}
	return imp, true
}
