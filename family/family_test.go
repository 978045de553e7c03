package family

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/preprocessing"
)

const (
	clf = preprocessing.Classification
	reg = preprocessing.Regression
)

// blobs returns three well separated 2-d clusters labelled 0, 1, 2.
func blobs(perClass int) (*mat.Dense, *mat.VecDense) {
	centers := [][2]float64{{0, 0}, {6, 6}, {0, 8}}
	n := perClass * len(centers)
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for c, ctr := range centers {
		for i := 0; i < perClass; i++ {
			r := c*perClass + i
			off := float64(i%5)*0.2 - 0.4
			X.Set(r, 0, ctr[0]+off)
			X.Set(r, 1, ctr[1]-off)
			y.SetVec(r, float64(c))
		}
	}
	return X, y
}

func line(n int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a, b := float64(i), float64((i*7)%5)
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		y.SetVec(i, 3*a-2*b+1)
	}
	return X, y
}

func TestParseFamily(t *testing.T) {
	for _, f := range Families() {
		got, err := ParseFamily(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFamily("neural")
	var derr *errors.DataError
	require.True(t, errors.As(err, &derr))
	assert.Contains(t, derr.Available, "boosting")
}

func TestEveryModelBuildsForItsTasks(t *testing.T) {
	for _, f := range Families() {
		for _, id := range Models(f) {
			for _, task := range []Task{clf, reg} {
				if !id.Supports(task) {
					_, err := New(id, task, 1)
					assert.Error(t, err, "%s/%s", id, task)
					continue
				}
				est, err := New(id, task, 1)
				require.NoError(t, err, "%s/%s", id, task)
				assert.NotNil(t, est)
				assert.NotEmpty(t, id.DisplayName(task))
				fam, ok := id.Family()
				require.True(t, ok)
				assert.Equal(t, f, fam)
			}
		}
	}
	assert.False(t, LogisticRegression.Supports(reg))
	assert.False(t, LinearRegression.Supports(clf))
}

func TestResolveIdentifier(t *testing.T) {
	cases := []struct {
		ident    string
		task     Task
		family   Family
		model    ModelID
		fallback bool
	}{
		{"xgboost", clf, Boosting, XGBoost, false},
		{"tree", reg, Tree, RandomForest, false},
		{"linear_ridge", reg, Linear, Ridge, false},
		{"boosting_auto", clf, Boosting, XGBoost, false},
		{"tree_lightgbm", clf, Tree, RandomForest, true},
		{"linear_bogus", clf, Linear, LogisticRegression, true},
		{"logistic_regression", reg, Linear, LinearRegression, true},
		{" Linear ", clf, Linear, LogisticRegression, false},
	}
	for _, tc := range cases {
		res, err := ResolveIdentifier(tc.ident, tc.task)
		require.NoError(t, err, tc.ident)
		assert.Equal(t, tc.family, res.Family, tc.ident)
		assert.Equal(t, tc.model, res.Model, tc.ident)
		assert.Equal(t, tc.fallback, res.Fallback, tc.ident)
	}

	_, err := ResolveIdentifier("quantum_forest", clf)
	var derr *errors.DataError
	assert.True(t, errors.As(err, &derr))
}

func TestAdapterPredictBeforeTrain(t *testing.T) {
	for _, f := range Families() {
		a := NewAdapter(f)
		assert.Equal(t, f, a.Family())
		_, err := a.Predict(mat.NewDense(1, 2, nil))
		var serr *errors.StateError
		require.True(t, errors.As(err, &serr), f.String())
		assert.True(t, errors.Is(err, errors.ErrNoTrainedModel))
		_, ok := a.FeatureImportance()
		assert.False(t, ok)
	}
}

func TestAdaptersClassify(t *testing.T) {
	X, y := blobs(20)
	for _, f := range Families() {
		a := NewAdapter(f)
		tr, err := a.Train(context.Background(), X, y, clf, "", TrainOptions{CVFolds: 3, Seed: 7, NumClasses: 3})
		require.NoError(t, err, f.String())
		assert.Equal(t, Default(f, clf), tr.ModelID)
		assert.Len(t, tr.CVScores, 3)
		assert.GreaterOrEqual(t, tr.CVMean, 0.9, f.String())
		assert.Equal(t, 60, tr.NumSamples)
		assert.Equal(t, 2, tr.NumFeatures)

		pred, err := a.Predict(X)
		require.NoError(t, err)
		r, c := pred.Dims()
		assert.Equal(t, 60, r)
		assert.Equal(t, 1, c)

		proba, ok, err := tr.PredictProba(X)
		require.NoError(t, err)
		require.True(t, ok)
		_, k := proba.Dims()
		assert.Equal(t, 3, k)
		sum := proba.At(0, 0) + proba.At(0, 1) + proba.At(0, 2)
		assert.InDelta(t, 1, sum, 1e-9)

		imp, ok := a.FeatureImportance()
		require.True(t, ok, f.String())
		assert.Len(t, imp, 2)
	}
}

func TestAdaptersRegress(t *testing.T) {
	X, y := line(40)
	for _, f := range Families() {
		tr, err := NewAdapter(f).Train(context.Background(), X, y, reg, "auto", TrainOptions{CVFolds: 4, Seed: 3})
		require.NoError(t, err, f.String())
		assert.Len(t, tr.CVScores, 4)
		_, ok, err := tr.PredictProba(X)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	tr, err := NewLinearAdapter().Train(context.Background(), X, y, reg, string(LinearRegression), TrainOptions{CVFolds: 4, Seed: 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tr.CVMean, 1e-9)
}

func TestAdapterFallsBackToFamilyDefault(t *testing.T) {
	X, y := line(20)
	tr, err := NewTreeAdapter().Train(context.Background(), X, y, reg, string(Ridge), TrainOptions{})
	require.NoError(t, err)
	assert.Equal(t, RandomForest, tr.ModelID)
	assert.Nil(t, tr.CVScores)
}

func TestProbaExpandsMissingClasses(t *testing.T) {
	X, y := blobs(10)
	// train on classes 0 and 2 only
	rows := []int{}
	for i := 0; i < y.Len(); i++ {
		if y.AtVec(i) != 1 {
			rows = append(rows, i)
		}
	}
	Xs := mat.NewDense(len(rows), 2, nil)
	ys := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		Xs.SetRow(i, X.RawRowView(r))
		ys.SetVec(i, y.AtVec(r))
	}
	tr, err := NewTreeAdapter().Train(context.Background(), Xs, ys, clf, string(DecisionTree), TrainOptions{NumClasses: 3})
	require.NoError(t, err)
	proba, ok, err := tr.PredictProba(Xs)
	require.NoError(t, err)
	require.True(t, ok)
	for i := 0; i < len(rows); i++ {
		assert.Equal(t, 0.0, proba.At(i, 1))
	}
}

func TestTuningSelectsFromGrid(t *testing.T) {
	X, y := blobs(15)
	tr, err := NewLinearAdapter().Train(context.Background(), X, y, clf, string(KNN),
		TrainOptions{CVFolds: 3, EnableTuning: true, TuningTrials: 4, Seed: 11, NumClasses: 3})
	require.NoError(t, err)
	assert.True(t, tr.Tuned)
	assert.Contains(t, tr.Params, "n_neighbors")
	assert.False(t, math.IsNaN(tr.CVMean))
}

func TestLinearImportanceFromCoefficients(t *testing.T) {
	X, y := line(30)
	tr, err := NewLinearAdapter().Train(context.Background(), X, y, reg, string(LinearRegression), TrainOptions{})
	require.NoError(t, err)
	imp, ok := tr.FeatureImportance()
	require.True(t, ok)
	assert.InDelta(t, 3, imp[0], 1e-6)
	assert.InDelta(t, 2, imp[1], 1e-6)
}
