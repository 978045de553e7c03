package boosting

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/metrics"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/sklearn/tree"
)

var variants = []Variant{XGBoost, LightGBM, CatBoost, GradientBoosting}

func regressionData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := float64(i%10) / 10
		b := float64(i%7) / 7
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, float64(i%3))
		y.Set(i, 0, 4*a+math.Sin(3*b))
	}
	return X, y
}

func classData(n, k int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := i % k
		X.Set(i, 0, float64(c)*3+float64(i%5)*0.2)
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(c))
	}
	return X, y
}

func TestGBMRegressorVariants(t *testing.T) {
	X, y := regressionData(120)
	for _, v := range variants {
		t.Run(string(v), func(t *testing.T) {
			gbm := NewGBMRegressor(v, WithNEstimators(200), WithLearningRate(0.2), WithMinChildSamples(2))
			require.NoError(t, gbm.Fit(X, y))
			pred, err := gbm.Predict(X)
			require.NoError(t, err)
			r2, err := metrics.R2Score(mat.NewVecDense(120, y.RawMatrix().Data), mat.NewVecDense(120, mat.DenseCopyOf(pred).RawMatrix().Data))
			require.NoError(t, err)
			assert.Greater(t, r2, 0.95)

			imp := gbm.FeatureImportances()
			assert.InDelta(t, 1, floats.Sum(imp), 1e-9)
			assert.Greater(t, imp[0], imp[2])
		})
	}
}

func TestLeafWiseRespectsNumLeaves(t *testing.T) {
	X, y := regressionData(200)
	gbm := NewGBMRegressor(LightGBM, WithNEstimators(5), WithNumLeaves(4), WithMinChildSamples(1))
	require.NoError(t, gbm.Fit(X, y))
	for _, round := range gbm.Trees {
		assert.LessOrEqual(t, round[0].NumLeaves(), 4)
	}

	depth := NewGBMRegressor(XGBoost, WithNEstimators(5), WithMaxDepth(2))
	require.NoError(t, depth.Fit(X, y))
	for _, round := range depth.Trees {
		assert.LessOrEqual(t, round[0].Depth(), 2)
	}
}

func TestFirstTreeLeafValues(t *testing.T) {
	// One split on x separates targets 0 and 10; L2 gradients make the
	// leaf values lr·(mean residual)·H/(H+λ).
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 10, 10})
	gbm := NewGBMRegressor(XGBoost, WithNEstimators(1), WithLearningRate(1), WithLambda(0), WithMaxDepth(1))
	require.NoError(t, gbm.Fit(X, y))
	assert.Equal(t, []float64{5}, gbm.InitScore)
	pred, err := gbm.Predict(mat.NewDense(2, 1, []float64{0.5, 2.5}))
	require.NoError(t, err)
	assert.InDelta(t, 0, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 10, pred.At(1, 0), 1e-12)

	ridge := NewGBMRegressor(CatBoost, WithNEstimators(1), WithLearningRate(1), WithMaxDepth(1))
	require.NoError(t, ridge.Fit(X, y))
	pred, err = ridge.Predict(mat.NewDense(1, 1, []float64{3}))
	require.NoError(t, err)
	assert.InDelta(t, 5+5*2.0/5, pred.At(0, 0), 1e-12)
}

func TestGBMClassifierBinary(t *testing.T) {
	X, y := classData(60, 2)
	gbm := NewGBMClassifier(XGBoost, WithNEstimators(30))
	require.NoError(t, gbm.Fit(X, y))
	assert.Equal(t, []int{0, 1}, gbm.Classes())
	assert.Equal(t, 1, gbm.NumOutputs())

	pred, err := gbm.Predict(X)
	require.NoError(t, err)
	acc, err := metrics.Accuracy(mat.NewVecDense(60, y.RawMatrix().Data), mat.NewVecDense(60, mat.DenseCopyOf(pred).RawMatrix().Data))
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)

	proba, err := gbm.PredictProba(X)
	require.NoError(t, err)
	for i := 0; i < 60; i++ {
		assert.InDelta(t, 1, proba.At(i, 0)+proba.At(i, 1), 1e-12)
	}
}

func TestGBMClassifierMulticlass(t *testing.T) {
	X, y := classData(90, 3)
	for i := 0; i < 90; i++ {
		y.Set(i, 0, y.At(i, 0)+4)
	}
	gbm := NewGBMClassifier(LightGBM, WithNEstimators(30), WithMinChildSamples(3))
	require.NoError(t, gbm.Fit(X, y))
	assert.Equal(t, []int{4, 5, 6}, gbm.Classes())
	assert.Equal(t, 3, gbm.NumOutputs())

	pred, err := gbm.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 90; i++ {
		assert.Equal(t, y.At(i, 0), pred.At(i, 0))
	}
	proba, err := gbm.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 3, c)
}

func TestGBMClassifierSingleClass(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 2, 2})
	gbm := NewGBMClassifier(GradientBoosting)
	require.NoError(t, gbm.Fit(X, y))
	pred, err := gbm.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 2.0, pred.At(0, 0))
	assert.Equal(t, []float64{0}, gbm.FeatureImportances())
}

func TestGBMSHAPMatchesMargin(t *testing.T) {
	X, y := classData(60, 3)
	gbm := NewGBMClassifier(XGBoost, WithNEstimators(10), WithMaxDepth(3))
	require.NoError(t, gbm.Fit(X, y))
	margins, err := gbm.DecisionFunction(X)
	require.NoError(t, err)
	for i := 0; i < 60; i += 7 {
		for out := 0; out < 3; out++ {
			phi, base := tree.SHAPValues(gbm, X.RawRowView(i), out)
			assert.InDelta(t, margins.At(i, out), base+floats.Sum(phi), 1e-9)
		}
	}
}

func TestGBMParamsAndValidation(t *testing.T) {
	gbm := NewGBMRegressor(LightGBM)
	params := gbm.GetParams()
	assert.Equal(t, "lightgbm", params["variant"])
	assert.Equal(t, 31, params["num_leaves"])
	assert.Equal(t, 3.0, NewGBMRegressor(CatBoost).GetParams()["reg_lambda"])
	assert.Equal(t, 3, NewGBMRegressor(GradientBoosting).GetParams()["max_depth"])

	require.NoError(t, gbm.SetParams(map[string]interface{}{"learning_rate": 0.05, "num_leaves": 8.0}))
	assert.Equal(t, 0.05, gbm.LearningRate)
	assert.Equal(t, 8, gbm.NumLeaves)
	assert.Error(t, gbm.SetParams(map[string]interface{}{"criterion": "gini"}))

	X, y := regressionData(10)
	var verr *errors.ValidationError
	assert.True(t, errors.As(NewGBMRegressor("adaboost").Fit(X, y), &verr))
	assert.Error(t, NewGBMRegressor(XGBoost, WithSubsample(0)).Fit(X, y))

	_, err := NewGBMClassifier(XGBoost).Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestGBMSubsamplingDeterministic(t *testing.T) {
	X, y := regressionData(80)
	fit := func() mat.Matrix {
		gbm := NewGBMRegressor(XGBoost, WithNEstimators(20), WithSubsample(0.7), WithColSample(0.67), WithRandomState(9))
		require.NoError(t, gbm.Fit(X, y))
		pred, err := gbm.Predict(X)
		require.NoError(t, err)
		return pred
	}
	assert.True(t, mat.Equal(fit(), fit()))
}

func TestGBMGob(t *testing.T) {
	model.Register(&GBMClassifier{})
	X, y := classData(30, 2)
	gbm := NewGBMClassifier(CatBoost, WithNEstimators(5))
	require.NoError(t, gbm.Fit(X, y))

	var est model.Estimator = gbm
	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(&est, &buf))
	var back model.Estimator
	require.NoError(t, model.LoadModelFromReader(&back, &buf))
	want, err := gbm.PredictProba(X)
	require.NoError(t, err)
	got, err := back.(model.Classifier).PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
