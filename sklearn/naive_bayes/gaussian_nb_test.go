package naive_bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

func TestGaussianNBFitPredict(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		-1, -1,
		-2, -1,
		-3, -2,
		1, 1,
		2, 1,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{1, 1, 1, 2, 2, 2})
	nb := NewGaussianNB()
	require.NoError(t, nb.Fit(X, y))

	assert.Equal(t, []int{1, 2}, nb.Classes())
	assert.InDeltaSlice(t, []float64{-2, -4.0 / 3}, nb.Theta[0], 1e-12)

	pred, err := nb.Predict(mat.NewDense(1, 2, []float64{-0.8, -1}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))

	proba, err := nb.PredictProba(mat.NewDense(1, 2, []float64{2.5, 1.5}))
	require.NoError(t, err)
	assert.Greater(t, proba.At(0, 1), 0.99)
	assert.InDelta(t, 1, proba.At(0, 0)+proba.At(0, 1), 1e-12)
}

func TestGaussianNBPriors(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 0.1, 0.2, 5})
	y := mat.NewDense(4, 1, []float64{0, 0, 0, 1})
	nb := NewGaussianNB()
	require.NoError(t, nb.Fit(X, y))
	assert.InDelta(t, -0.2876820724517809, nb.LogPrior[0], 1e-12)
	assert.Greater(t, nb.Var[1][0], 0.0, "single-sample class gets smoothed variance")
}

func TestGaussianNBErrors(t *testing.T) {
	_, err := NewGaussianNB().Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	nb := NewGaussianNB()
	require.NoError(t, nb.SetParams(map[string]interface{}{"var_smoothing": 1e-6}))
	assert.Equal(t, 1e-6, nb.VarSmoothing)
	assert.Error(t, nb.SetParams(map[string]interface{}{"alpha": 1.0}))
}
