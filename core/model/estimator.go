// Package model defines the estimator contracts shared by every model family
// and the gob persistence used by exported bundles.
package model

import (
	"encoding/gob"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Estimator is a supervised model. y is n×1; Predict returns n×1, with
// class codes as float64 for classifiers.
type Estimator interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier is an estimator that outputs class probabilities.
type Classifier interface {
	Estimator
	// PredictProba returns n×k probabilities, columns ordered as Classes.
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	// Classes returns the class codes seen during Fit.
	Classes() []int
}

// Tunable is an estimator whose hyperparameters can be searched.
// SetParams rejects unknown keys.
type Tunable interface {
	Estimator
	GetParams() map[string]interface{}
	SetParams(params map[string]interface{}) error
}

// FeatureImporter is implemented by estimators with native importances.
type FeatureImporter interface {
	FeatureImportances() []float64
}

// CoefficientModel is implemented by linear estimators; multiclass models
// return one row per class.
type CoefficientModel interface {
	Coefficients() *mat.Dense
}

// BaseEstimator tracks whether Fit has run. The field is exported for gob.
type BaseEstimator struct {
	Trained bool
}

func (e *BaseEstimator) IsFitted() bool { return e.Trained }

func (e *BaseEstimator) SetFitted() { e.Trained = true }

// Register makes concrete estimator types gob-encodable behind the
// Estimator interface.
func Register(values ...Estimator) {
	for _, v := range values {
		gob.Register(v)
	}
}

// SaveModelToWriter gob-encodes m. Interface-typed fields need their
// concrete types registered first.
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "model: encode")
	}
	return nil
}

// LoadModelFromReader decodes into the pointer m.
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "model: decode")
	}
	return nil
}
