package tree

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func accuracy(t *testing.T, est model.Estimator, X, y mat.Matrix) float64 {
	t.Helper()
	pred, err := est.Predict(X)
	require.NoError(t, err)
	r, _ := y.Dims()
	correct := 0
	for i := 0; i < r; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(r)
}

func TestDecisionTreeClassifierBinary(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithCriterion(Gini), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1.0, accuracy(t, dt, X, y))

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{0.5, 0.5, 3.5, 3.5}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
}

func TestDecisionTreeClassifierMulticlass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0, 1, 1, 0,
		3, 3, 3, 4, 4, 3,
		6, 6, 6, 7, 7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, []int{0, 1, 2}, dt.Classes())
	assert.Equal(t, 1.0, accuracy(t, dt, X, y))

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	require.Equal(t, 3, c)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, proba)
		assert.InDelta(t, 1, floats.Sum(row), 1e-12)
		assert.Equal(t, int(y.At(i, 0)), floats.MaxIdx(row))
	}
}

func TestDecisionTreeClassifierNonContiguousCodes(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 5, 6})
	y := mat.NewDense(4, 1, []float64{2, 2, 7, 7})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, []int{2, 7}, dt.Classes())
	assert.Equal(t, 1.0, accuracy(t, dt, X, y))
}

func TestDecisionTreeClassifierEntropy(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{0, 0, 0, 1, 1, 0, 2, 2, 2, 3, 3, 2})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	dt := NewDecisionTreeClassifier(WithCriterion(Entropy), WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1.0, accuracy(t, dt, X, y))
}

func TestDecisionTreeFeatureImportance(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	imp := dt.FeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1, floats.Sum(imp), 1e-12)
	assert.Greater(t, imp[0], imp[1])
	assert.Greater(t, imp[0], imp[2])
}

func TestDecisionTreeGrowthLimits(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	shallow := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, shallow.Fit(X, y))
	assert.LessOrEqual(t, shallow.GetDepth(), 2)

	leafy := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(2))
	require.NoError(t, leafy.Fit(X.Slice(0, 10, 0, 2), y.Slice(0, 10, 0, 1)))
	assert.LessOrEqual(t, leafy.GetNLeaves(), 5)
}

func TestDecisionTreeParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])
	assert.NotContains(t, params, "n_estimators")

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2.0,
	}))
	assert.Equal(t, Entropy, dt.Criterion)
	assert.Equal(t, 5, dt.MaxDepth)
	assert.Equal(t, 4, dt.MinSamplesSplit)
	assert.Equal(t, 2, dt.MinSamplesLeaf)

	assert.Error(t, dt.SetParams(map[string]interface{}{"n_estimators": 10}))
	assert.Equal(t, SquaredError, NewDecisionTreeRegressor().GetParams()["criterion"])
}

func TestDecisionTreeValidation(t *testing.T) {
	X, y := separable()
	err := NewDecisionTreeRegressor(WithCriterion(Gini)).Fit(X, y)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	assert.Error(t, NewDecisionTreeClassifier(WithMaxFeatures("half")).Fit(X, y))
	assert.Error(t, NewDecisionTreeClassifier().Fit(X, mat.NewDense(8, 1, []float64{0, 0.5, 0, 0, 1, 1, 1, 1})))

	_, err = NewDecisionTreeClassifier().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	var derr *errors.DimensionError
	assert.True(t, errors.As(err, &derr))
}

func TestDecisionTreeRegressorStep(t *testing.T) {
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		if i >= 5 {
			y.Set(i, 0, 10)
		}
	}
	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, dt.Fit(X, y))
	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{2, 8}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 10.0, pred.At(1, 0))
	assert.InDelta(t, 4.5, dt.Tree.Threshold[0], 1e-12)
	assert.Equal(t, []float64{1}, dt.FeatureImportances())
}

func blobs(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := i % 2
		X.Set(i, 0, float64(c)*4+float64(i%5)*0.3)
		X.Set(i, 1, float64(i%7))
		X.Set(i, 2, float64(c)*2-float64(i%3)*0.2)
		y.Set(i, 0, float64(c))
	}
	return X, y
}

func TestRandomForestClassifier(t *testing.T) {
	X, y := blobs(60)
	rf := NewRandomForestClassifier(WithNEstimators(15), WithRandomState(7))
	require.NoError(t, rf.Fit(X, y))
	require.Len(t, rf.Trees, 15)
	assert.Equal(t, 1.0, accuracy(t, rf, X, y))

	imp := rf.FeatureImportances()
	assert.InDelta(t, 1, floats.Sum(imp), 1e-12)
	assert.Less(t, imp[1], imp[0])

	again := NewRandomForestClassifier(WithNEstimators(15), WithRandomState(7))
	require.NoError(t, again.Fit(X, y))
	p1, err := rf.PredictProba(X)
	require.NoError(t, err)
	p2, err := again.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))
}

func TestForestParams(t *testing.T) {
	rf := NewRandomForestRegressor()
	params := rf.GetParams()
	assert.Equal(t, 100, params["n_estimators"])
	assert.Equal(t, true, params["bootstrap"])
	assert.Equal(t, false, NewExtraTreesClassifier().GetParams()["bootstrap"])
	assert.Equal(t, SqrtFeatures, NewRandomForestClassifier().GetParams()["max_features"])

	require.NoError(t, rf.SetParams(map[string]interface{}{"n_estimators": 3, "max_depth": 2}))
	assert.Equal(t, 3, rf.NEstimators)
	assert.Error(t, rf.SetParams(map[string]interface{}{"learning_rate": 0.1}))

	bad := NewRandomForestRegressor(WithNEstimators(0))
	X, y := blobs(10)
	assert.Error(t, bad.Fit(X, y))
}

func TestExtraTreesRegressor(t *testing.T) {
	n := 80
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / 10
		X.Set(i, 0, x)
		X.Set(i, 1, float64(i%3))
		y.Set(i, 0, 3*x)
	}
	et := NewExtraTreesRegressor(WithNEstimators(20), WithRandomState(1))
	require.NoError(t, et.Fit(X, y))
	pred, err := et.Predict(X)
	require.NoError(t, err)
	for i := 0; i < n; i += 10 {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-9)
	}
	imp := et.FeatureImportances()
	assert.Greater(t, imp[0], imp[1])
}

func TestTreeSHAPStump(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode([]float64{5}, 4)
	l := tr.AddNode([]float64{0}, 2)
	r := tr.AddNode([]float64{10}, 2)
	tr.Split(root, 0, 0.5, l, r)

	phi := make([]float64, 2)
	tr.SHAP([]float64{1, 7}, 0, 1, phi)
	assert.InDeltaSlice(t, []float64{5, 0}, phi, 1e-12)
	assert.InDelta(t, 5, tr.ExpectedValue(0), 1e-12)
}

func TestTreeSHAPAdditive(t *testing.T) {
	X, y := blobs(40)
	rf := NewRandomForestClassifier(WithNEstimators(5), WithRandomState(3), WithMaxDepth(4))
	require.NoError(t, rf.Fit(X, y))
	proba, err := rf.PredictProba(X)
	require.NoError(t, err)

	reg := NewDecisionTreeRegressor()
	target := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		target.Set(i, 0, X.At(i, 0)*X.At(i, 1))
	}
	require.NoError(t, reg.Fit(X, target))
	regPred, err := reg.Predict(X)
	require.NoError(t, err)

	for i := 0; i < 40; i += 3 {
		x := X.RawRowView(i)
		phi, base := SHAPValues(rf, x, 1)
		assert.InDelta(t, proba.At(i, 1), base+floats.Sum(phi), 1e-9)

		phi, base = SHAPValues(reg, x, 0)
		assert.InDelta(t, regPred.At(i, 0), base+floats.Sum(phi), 1e-9)
	}
}

func TestTreeSHAPRepeatedFeature(t *testing.T) {
	// x0 is split twice on one path.
	tr := &Tree{}
	root := tr.AddNode([]float64{0}, 8)
	a := tr.AddNode([]float64{0}, 4)
	b := tr.AddNode([]float64{0}, 4)
	tr.Split(root, 0, 0.5, a, b)
	a1 := tr.AddNode([]float64{1}, 2)
	a2 := tr.AddNode([]float64{2}, 2)
	tr.Split(a, 1, 0.5, a1, a2)
	b1 := tr.AddNode([]float64{3}, 2)
	b2 := tr.AddNode([]float64{6}, 2)
	tr.Split(b, 0, 1.5, b1, b2)

	for _, x := range [][]float64{{0, 0}, {0, 1}, {1, 0}, {2, 1}} {
		phi := make([]float64, 2)
		tr.SHAP(x, 0, 1, phi)
		assert.InDelta(t, tr.Predict(x)[0], tr.ExpectedValue(0)+floats.Sum(phi), 1e-12)
	}
	phi := make([]float64, 2)
	tr.SHAP([]float64{2, 1}, 0, 1, phi)
	assert.InDelta(t, 0, phi[1], 1e-12)
}

func TestForestGobThroughInterface(t *testing.T) {
	model.Register(&RandomForestClassifier{})
	X, y := blobs(20)
	rf := NewRandomForestClassifier(WithNEstimators(3))
	require.NoError(t, rf.Fit(X, y))

	var est model.Estimator = rf
	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(&est, &buf))
	var back model.Estimator
	require.NoError(t, model.LoadModelFromReader(&back, &buf))

	want, err := rf.Predict(X)
	require.NoError(t, err)
	got, err := back.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
