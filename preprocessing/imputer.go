package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// MeanImputer replaces NaN with per-column means learned at Fit time.
// A column with no present values is filled with 0.
type MeanImputer struct {
	model.BaseEstimator

	Means     []float64
	NFeatures int
}

// NewMeanImputer creates an unfitted imputer.
func NewMeanImputer() *MeanImputer {
	return &MeanImputer{}
}

// ColumnMeans returns the NaN-skipping mean of every column and whether the
// column had any present value.
func ColumnMeans(X mat.Matrix) ([]float64, []bool) {
	r, c := X.Dims()
	means := make([]float64, c)
	present := make([]bool, c)
	for j := 0; j < c; j++ {
		sum, n := 0.0, 0
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n > 0 {
			means[j] = sum / float64(n)
			present[j] = true
		}
	}
	return means, present
}

// Fit learns the column means.
func (m *MeanImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MeanImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	m.Means, _ = ColumnMeans(X)
	m.NFeatures = c
	m.SetFitted()
	return nil
}

// Transform fills NaN with the learned means.
func (m *MeanImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MeanImputer", "Transform")
	}
	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MeanImputer.Transform", m.NFeatures, c, 1)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return m.Means[j]
		}
		return v
	}, X)
	return out, nil
}

// FitTransform はFitとTransformを同時に実行する
func (m *MeanImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}
