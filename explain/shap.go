package explain

import (
	"context"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/core/parallel"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/sklearn/tree"
)

type treeModel interface {
	model.Estimator
	tree.Additive
}

// predictedColumn returns, for every row, the probability column of the
// predicted class; nil for regressors.
func predictedColumn(est model.Estimator, X mat.Matrix) ([]int, error) {
	clf, ok := est.(model.Classifier)
	if !ok {
		return nil, nil
	}
	proba, err := clf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := make([]int, n)
	for i := range out {
		out[i] = floats.MaxIdx(mat.Row(nil, i, proba))
	}
	return out, nil
}

// treeSHAP computes exact path-dependent attributions. Classifiers are
// explained on the output of their predicted class; a single-output
// classifier (binary boosting) on its margin.
func treeSHAP(est model.Estimator, X *mat.Dense) ([][]float64, float64, error) {
	m := est.(treeModel)
	if m.NumOutputs() == 0 {
		return nil, 0, errors.NewValueError("explain.treeSHAP", "model has no outputs")
	}
	cols, err := predictedColumn(est, X)
	if err != nil {
		return nil, 0, err
	}
	n, _ := X.Dims()
	values := make([][]float64, n)
	var base float64
	for i := 0; i < n; i++ {
		out := 0
		if cols != nil && m.NumOutputs() > 1 {
			out = cols[i]
		}
		phi, b := tree.SHAPValues(m, X.RawRowView(i), out)
		values[i] = phi
		base += b / float64(n)
	}
	return values, base, nil
}

// permutationSHAP estimates Shapley values by averaging marginal
// contributions over random feature orderings, starting from the background
// row. Each sampled row gets its own seeded stream.
func (e *Explainer) permutationSHAP(ctx context.Context, est model.Estimator, X *mat.Dense) ([][]float64, float64, error) {
	n, p := X.Dims()
	bg := e.background
	if len(bg) != p {
		bg = make([]float64, p)
		for j := 0; j < p; j++ {
			bg[j] = floats.Sum(mat.Col(nil, j, X)) / float64(n)
		}
	}
	cols, err := predictedColumn(est, X)
	if err != nil {
		return nil, 0, err
	}
	f := func(Z *mat.Dense, col int) ([]float64, error) {
		if cols == nil {
			out, err := est.Predict(Z)
			if err != nil {
				return nil, err
			}
			return mat.Col(nil, 0, out), nil
		}
		proba, err := est.(model.Classifier).PredictProba(Z)
		if err != nil {
			return nil, err
		}
		return mat.Col(nil, col, proba), nil
	}

	values := make([][]float64, n)
	bases := make([]float64, n)
	P := e.permutations
	err = parallel.ForEach(n, 0, func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng := rand.New(rand.NewPCG(e.seed, uint64(i)+1))
		x := X.RawRowView(i)
		col := 0
		if cols != nil {
			col = cols[i]
		}
		// Blocks of p+1 rows: the background, then one more feature of x
		// switched on per row in permutation order. At most e.batchCells
		// matrix cells are evaluated per predict call.
		per := P
		if cells := (p + 1) * p; cells > 0 {
			per = max(1, min(e.batchCells/cells, P))
		}
		buf := mat.NewDense(per*(p+1), p, nil)
		perms := make([][]int, per)
		z := make([]float64, p)
		phi := make([]float64, p)
		for done := 0; done < P; done += per {
			m := min(per, P-done)
			Z := buf.Slice(0, m*(p+1), 0, p).(*mat.Dense)
			for k := 0; k < m; k++ {
				perms[k] = rng.Perm(p)
				copy(z, bg)
				Z.SetRow(k*(p+1), z)
				for s, j := range perms[k] {
					z[j] = x[j]
					Z.SetRow(k*(p+1)+s+1, z)
				}
			}
			out, err := f(Z, col)
			if err != nil {
				return err
			}
			if done == 0 {
				bases[i] = out[0]
			}
			for k := 0; k < m; k++ {
				for s, j := range perms[k] {
					r := k*(p+1) + s
					phi[j] += (out[r+1] - out[r]) / float64(P)
				}
			}
		}
		values[i] = phi
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return values, floats.Sum(bases) / float64(n), nil
}
