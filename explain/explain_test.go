package explain

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/linear"
	"github.com/YuminosukeSato/intelliml/pkg/config"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/sklearn/linear_model"
	"github.com/YuminosukeSato/intelliml/sklearn/tree"
)

func newExplainer(plots bool) *Explainer {
	cfg := config.Default().Explain
	cfg.Plots = plots
	return New(cfg)
}

// weighted returns rows whose target depends on feature j with weight w[j].
func weighted(n int, w []float64) (*mat.Dense, *mat.Dense) {
	p := len(w)
	X := mat.NewDense(n, p, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < p; j++ {
			v := float64((i*(j+3)+j)%11) - 5
			X.Set(i, j, v)
			s += w[j] * v
		}
		y.Set(i, 0, s)
	}
	return X, y
}

func names(p int) []string {
	out := make([]string, p)
	for j := range out {
		out[j] = string(rune('a' + j))
	}
	return out
}

func TestPermutationSHAPIsExactForLinearModels(t *testing.T) {
	X, y := weighted(40, []float64{3, -2})
	lr := linear.NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	bg := []float64{1, -1}
	exp, err := newExplainer(false).WithBackground(bg).Explain(context.Background(), lr, X, names(2))
	require.NoError(t, err)
	assert.Equal(t, MethodPermutationSHAP, exp.Method)
	assert.False(t, exp.Fallback)
	require.Len(t, exp.Values, 40)
	for i, phi := range exp.Values {
		assert.InDelta(t, 3*(X.At(i, 0)-bg[0]), phi[0], 1e-6)
		assert.InDelta(t, -2*(X.At(i, 1)-bg[1]), phi[1], 1e-6)
	}
	assert.InDelta(t, 3*bg[0]-2*bg[1], exp.BaseValue, 1e-6)
	assert.Equal(t, []string{"a", "b"}, exp.Top(5))
}

func TestTreeSHAPSumsToPrediction(t *testing.T) {
	X, y := weighted(60, []float64{4, 0.5, 0})
	rf := tree.NewRandomForestRegressor(tree.WithNEstimators(10), tree.WithRandomState(3))
	require.NoError(t, rf.Fit(X, y))

	exp, err := newExplainer(false).Explain(context.Background(), rf, X, names(3))
	require.NoError(t, err)
	assert.Equal(t, MethodTreeSHAP, exp.Method)
	pred, err := rf.Predict(X)
	require.NoError(t, err)
	for i, phi := range exp.Values {
		sum := exp.BaseValue
		for _, v := range phi {
			sum += v
		}
		assert.InDelta(t, pred.At(i, 0), sum, 1e-9)
	}
	assert.Equal(t, "a", exp.Top(1)[0])
}

func TestExplainStableRanking(t *testing.T) {
	X, y := weighted(80, []float64{5, 0.2, 3, 0, 1, 2})
	labels := mat.NewDense(80, 1, nil)
	for i := 0; i < 80; i++ {
		if y.At(i, 0) > 0 {
			labels.Set(i, 0, 1)
		}
	}
	clf := linear_model.NewLogisticRegression()
	require.NoError(t, clf.Fit(X, labels))

	e := newExplainer(false)
	first, err := e.Explain(context.Background(), clf, X, names(6))
	require.NoError(t, err)
	second, err := e.Explain(context.Background(), clf, X, names(6))
	require.NoError(t, err)
	assert.Equal(t, first.Top(5), second.Top(5))
}

func TestPermutationBatchingKeepsValues(t *testing.T) {
	X, y := weighted(30, []float64{5, 0.2, 3, 0, 1, 2})
	labels := mat.NewDense(30, 1, nil)
	for i := 0; i < 30; i++ {
		if y.At(i, 0) > 0 {
			labels.Set(i, 0, 1)
		}
	}
	clf := linear_model.NewLogisticRegression()
	require.NoError(t, clf.Fit(X, labels))

	whole := newExplainer(false)
	want, err := whole.Explain(context.Background(), clf, X, names(6))
	require.NoError(t, err)

	// one permutation block per predict call
	narrow := newExplainer(false)
	narrow.batchCells = 1
	got, err := narrow.Explain(context.Background(), clf, X, names(6))
	require.NoError(t, err)

	require.Len(t, got.Values, len(want.Values))
	for i := range want.Values {
		assert.InDeltaSlice(t, want.Values[i], got.Values[i], 1e-12)
	}
	assert.InDelta(t, want.BaseValue, got.BaseValue, 1e-12)
}

func TestSampleCap(t *testing.T) {
	X, y := weighted(150, []float64{1, 1})
	lr := linear.NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	exp, err := newExplainer(false).Explain(context.Background(), lr, X, names(2))
	require.NoError(t, err)
	assert.Equal(t, 100, exp.SampleSize)
	assert.Len(t, exp.Values, 100)
}

func TestPlotsArePNG(t *testing.T) {
	X, y := weighted(30, []float64{2, 1, 0.5})
	dt := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))
	exp, err := newExplainer(true).Explain(context.Background(), dt, X, names(3))
	require.NoError(t, err)
	for _, name := range []string{PlotBar, PlotSummary} {
		png, ok := exp.Plots[name]
		require.True(t, ok, name)
		assert.Equal(t, "\x89PNG", string(png[:4]))
	}
}

// brokenModel predicts NaN; importances optionally stand in.
type brokenModel struct{ importances []float64 }

func (brokenModel) Fit(X, y mat.Matrix) error { return nil }

func (brokenModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, math.NaN())
	}
	return out, nil
}

type brokenWithImportance struct{ brokenModel }

func (b brokenWithImportance) FeatureImportances() []float64 { return b.importances }

func TestFallbackToNativeImportance(t *testing.T) {
	X, _ := weighted(10, []float64{1, 1, 1})
	est := brokenWithImportance{brokenModel{importances: []float64{0.2, 0.5, 0.3}}}
	exp, err := newExplainer(true).Explain(context.Background(), est, X, names(3))
	require.NoError(t, err)
	assert.True(t, exp.Fallback)
	assert.Equal(t, MethodFeatureImportance, exp.Method)
	assert.Equal(t, []string{"b", "c", "a"}, exp.Top(3))
	assert.Nil(t, exp.Values)
	assert.Nil(t, exp.Plots)
}

func TestExplanationErrorWhenBothPathsFail(t *testing.T) {
	X, _ := weighted(10, []float64{1, 1})
	_, err := newExplainer(false).Explain(context.Background(), brokenModel{}, X, names(2))
	var eerr *errors.ExplanationError
	require.True(t, errors.As(err, &eerr))
	var nerr *errors.NumericalInstabilityError
	assert.True(t, errors.As(eerr.Primary, &nerr))
}

func TestRankTiesKeepFeatureOrder(t *testing.T) {
	got := rank([]float64{1, 2, 1, 2}, []string{"w", "x", "y", "z"})
	order := make([]string, len(got))
	for i, a := range got {
		order[i] = a.Feature
	}
	assert.Equal(t, []string{"x", "z", "w", "y"}, order)
}

func TestFeatureNameMismatch(t *testing.T) {
	X, y := weighted(10, []float64{1, 1})
	lr := linear.NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	_, err := newExplainer(false).Explain(context.Background(), lr, X, names(3))
	var derr *errors.DimensionError
	assert.True(t, errors.As(err, &derr))
}
