package tree

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/core/parallel"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Forest is a fitted set of trees sharing one output layout.
type Forest struct {
	Trees       []*Tree
	Importances []float64
	NFeatures   int
}

// fit grows p.NEstimators trees in parallel. Each tree draws from its own
// PCG stream so results do not depend on scheduling.
func (f *Forest) fit(p Params, X *mat.Dense, y []float64, nOut int, classify, random bool) error {
	if p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NEstimators)
	}
	n, nf := X.Dims()
	trees := make([]*Tree, p.NEstimators)
	imps := make([][]float64, p.NEstimators)
	err := parallel.ForEach(p.NEstimators, 0, func(i int) error {
		rng := rand.New(rand.NewPCG(p.RandomState, uint64(i)+1))
		rows := allRows(n)
		if p.Bootstrap {
			for j := range rows {
				rows[j] = rng.IntN(n)
			}
		}
		trees[i], imps[i] = newGrower(p, X, y, nOut, classify, random, rng).grow(rows)
		return nil
	})
	if err != nil {
		return err
	}
	f.Trees = trees
	f.Importances = make([]float64, nf)
	for _, imp := range imps {
		floats.Add(f.Importances, imp)
	}
	if s := floats.Sum(f.Importances); s > 0 {
		floats.Scale(1/s, f.Importances)
	}
	f.NFeatures = nf
	return nil
}

// FeatureImportances returns the mean impurity importance across trees,
// normalised to sum 1.
func (f *Forest) FeatureImportances() []float64 {
	return append([]float64(nil), f.Importances...)
}

func (f *Forest) components(output int) ([]Component, float64) {
	parts := make([]Component, len(f.Trees))
	w := 1 / float64(len(f.Trees))
	for i, t := range f.Trees {
		parts[i] = Component{Tree: t, Output: output, Weight: w}
	}
	return parts, 0
}

// ForestClassifier is the classifier shared by random forests and extra
// trees; Random selects random thresholds.
type ForestClassifier struct {
	model.BaseEstimator
	Params
	Forest
	ClassCodes []int
	Random     bool
	Name       string
}

// Fit grows the trees.
func (c *ForestClassifier) Fit(X, y mat.Matrix) error {
	op := c.Name + ".Fit"
	if err := c.validate(true); err != nil {
		return err
	}
	if _, _, err := model.CheckFitInput(op, X, y); err != nil {
		return err
	}
	target, classes, err := model.ClassIndices(op, y)
	if err != nil {
		return err
	}
	if err := c.fit(c.Params, mat.DenseCopyOf(X), target, len(classes), true, c.Random); err != nil {
		return errors.Wrap(err, op)
	}
	c.ClassCodes = classes
	c.SetFitted()
	return nil
}

// PredictProba averages the leaf class distributions of all trees.
func (c *ForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError(c.Name, "PredictProba")
	}
	return average(c.Name+".PredictProba", X, c.NFeatures, c.Trees, len(c.ClassCodes))
}

// Predict returns the class with the highest averaged probability.
func (c *ForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxClasses(proba, c.ClassCodes), nil
}

// Classes returns the encoded class labels seen during fitting.
func (c *ForestClassifier) Classes() []int { return append([]int(nil), c.ClassCodes...) }

// NumOutputs returns one output per class.
func (c *ForestClassifier) NumOutputs() int { return len(c.ClassCodes) }

// Components exposes every tree for TreeSHAP.
func (c *ForestClassifier) Components(output int) ([]Component, float64) {
	return c.components(output)
}

func (c *ForestClassifier) GetParams() map[string]interface{} { return c.forestParams() }

func (c *ForestClassifier) SetParams(params map[string]interface{}) error {
	return c.set(c.Name, params, true)
}

// ForestRegressor is the regressor shared by random forests and extra trees.
type ForestRegressor struct {
	model.BaseEstimator
	Params
	Forest
	Random bool
	Name   string
}

// Fit grows the trees.
func (r *ForestRegressor) Fit(X, y mat.Matrix) error {
	op := r.Name + ".Fit"
	if err := r.validate(false); err != nil {
		return err
	}
	if _, _, err := model.CheckFitInput(op, X, y); err != nil {
		return err
	}
	if err := r.fit(r.Params, mat.DenseCopyOf(X), model.Column(y, 0), 1, false, r.Random); err != nil {
		return errors.Wrap(err, op)
	}
	r.SetFitted()
	return nil
}

// Predict averages the tree predictions.
func (r *ForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError(r.Name, "Predict")
	}
	return average(r.Name+".Predict", X, r.NFeatures, r.Trees, 1)
}

// NumOutputs returns 1.
func (r *ForestRegressor) NumOutputs() int { return 1 }

// Components exposes every tree for TreeSHAP.
func (r *ForestRegressor) Components(int) ([]Component, float64) { return r.components(0) }

func (r *ForestRegressor) GetParams() map[string]interface{} { return r.forestParams() }

func (r *ForestRegressor) SetParams(params map[string]interface{}) error {
	return r.set(r.Name, params, true)
}

// RandomForestClassifier averages bootstrapped gini trees that examine
// sqrt(p) features per split.
type RandomForestClassifier struct{ ForestClassifier }

// NewRandomForestClassifier creates a forest of 100 trees.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	return &RandomForestClassifier{ForestClassifier{
		Params: newParams(Gini, SqrtFeatures, true, opts),
		Name:   "RandomForestClassifier",
	}}
}

// RandomForestRegressor averages bootstrapped regression trees.
type RandomForestRegressor struct{ ForestRegressor }

// NewRandomForestRegressor creates a forest of 100 trees using all features.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	return &RandomForestRegressor{ForestRegressor{
		Params: newParams(SquaredError, AllFeatures, true, opts),
		Name:   "RandomForestRegressor",
	}}
}

// ExtraTreesClassifier averages trees whose thresholds are drawn at random.
type ExtraTreesClassifier struct{ ForestClassifier }

// NewExtraTreesClassifier creates 100 extremely randomised trees without bootstrapping.
func NewExtraTreesClassifier(opts ...Option) *ExtraTreesClassifier {
	return &ExtraTreesClassifier{ForestClassifier{
		Params: newParams(Gini, SqrtFeatures, false, opts),
		Random: true,
		Name:   "ExtraTreesClassifier",
	}}
}

// ExtraTreesRegressor averages regression trees with random thresholds.
type ExtraTreesRegressor struct{ ForestRegressor }

// NewExtraTreesRegressor creates 100 extremely randomised trees without bootstrapping.
func NewExtraTreesRegressor(opts ...Option) *ExtraTreesRegressor {
	return &ExtraTreesRegressor{ForestRegressor{
		Params: newParams(SquaredError, AllFeatures, false, opts),
		Random: true,
		Name:   "ExtraTreesRegressor",
	}}
}
