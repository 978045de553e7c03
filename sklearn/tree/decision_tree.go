package tree

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// DecisionTreeClassifier is a CART classifier.
type DecisionTreeClassifier struct {
	model.BaseEstimator
	Params
	Tree        *Tree
	ClassCodes  []int
	Importances []float64
	NFeatures   int
}

// NewDecisionTreeClassifier creates a classifier using gini impurity and all
// features at every split.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{Params: newParams(Gini, AllFeatures, false, opts)}
}

// Fit grows the tree.
func (c *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	const op = "DecisionTreeClassifier.Fit"
	if err := c.validate(true); err != nil {
		return err
	}
	n, p, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	target, classes, err := model.ClassIndices(op, y)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(c.RandomState, 0))
	g := newGrower(c.Params, mat.DenseCopyOf(X), target, len(classes), true, false, rng)
	c.Tree, c.Importances = g.grow(allRows(n))
	c.ClassCodes = classes
	c.NFeatures = p
	c.SetFitted()
	return nil
}

// PredictProba returns the class distribution of the leaf each row reaches.
func (c *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}
	return average("DecisionTreeClassifier.PredictProba", X, c.NFeatures, []*Tree{c.Tree}, len(c.ClassCodes))
}

// Predict returns the most frequent class of each row's leaf.
func (c *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxClasses(proba, c.ClassCodes), nil
}

// Classes returns the encoded class labels seen during fitting.
func (c *DecisionTreeClassifier) Classes() []int { return append([]int(nil), c.ClassCodes...) }

// FeatureImportances returns impurity decrease per feature, summing to 1.
func (c *DecisionTreeClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), c.Importances...)
}

// GetDepth returns the depth of the fitted tree.
func (c *DecisionTreeClassifier) GetDepth() int { return c.Tree.Depth() }

// GetNLeaves returns the number of leaves of the fitted tree.
func (c *DecisionTreeClassifier) GetNLeaves() int { return c.Tree.NumLeaves() }

// NumOutputs returns one output per class.
func (c *DecisionTreeClassifier) NumOutputs() int { return len(c.ClassCodes) }

// Components exposes the tree for TreeSHAP.
func (c *DecisionTreeClassifier) Components(output int) ([]Component, float64) {
	return []Component{{Tree: c.Tree, Output: output, Weight: 1}}, 0
}

// GetParams returns the hyperparameters.
func (c *DecisionTreeClassifier) GetParams() map[string]interface{} { return c.treeParams() }

// SetParams sets the hyperparameters.
func (c *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return c.set("DecisionTreeClassifier", params, false)
}

// DecisionTreeRegressor is a CART regressor minimising squared error.
type DecisionTreeRegressor struct {
	model.BaseEstimator
	Params
	Tree        *Tree
	Importances []float64
	NFeatures   int
}

// NewDecisionTreeRegressor creates a regressor using all features at every split.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{Params: newParams(SquaredError, AllFeatures, false, opts)}
}

// Fit grows the tree.
func (r *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	if err := r.validate(false); err != nil {
		return err
	}
	n, p, err := model.CheckFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(r.RandomState, 0))
	g := newGrower(r.Params, mat.DenseCopyOf(X), model.Column(y, 0), 1, false, false, rng)
	r.Tree, r.Importances = g.grow(allRows(n))
	r.NFeatures = p
	r.SetFitted()
	return nil
}

// Predict returns the mean target of each row's leaf.
func (r *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	return average("DecisionTreeRegressor.Predict", X, r.NFeatures, []*Tree{r.Tree}, 1)
}

// FeatureImportances returns impurity decrease per feature, summing to 1.
func (r *DecisionTreeRegressor) FeatureImportances() []float64 {
	return append([]float64(nil), r.Importances...)
}

// GetDepth returns the depth of the fitted tree.
func (r *DecisionTreeRegressor) GetDepth() int { return r.Tree.Depth() }

// GetNLeaves returns the number of leaves of the fitted tree.
func (r *DecisionTreeRegressor) GetNLeaves() int { return r.Tree.NumLeaves() }

// NumOutputs returns 1.
func (r *DecisionTreeRegressor) NumOutputs() int { return 1 }

// Components exposes the tree for TreeSHAP.
func (r *DecisionTreeRegressor) Components(int) ([]Component, float64) {
	return []Component{{Tree: r.Tree, Output: 0, Weight: 1}}, 0
}

// GetParams returns the hyperparameters.
func (r *DecisionTreeRegressor) GetParams() map[string]interface{} { return r.treeParams() }

// SetParams sets the hyperparameters.
func (r *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return r.set("DecisionTreeRegressor", params, false)
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// average returns the mean leaf value vector of trees for every row of X.
func average(op string, X mat.Matrix, nFeatures int, trees []*Tree, nOut int) (*mat.Dense, error) {
	n, err := model.CheckPredictInput(op, X, nFeatures)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(n, nOut, nil)
	row := make([]float64, nFeatures)
	scale := 1 / float64(len(trees))
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		dst := out.RawRowView(i)
		for _, t := range trees {
			floats.AddScaled(dst, scale, t.Predict(row))
		}
	}
	return out, nil
}

func argmaxClasses(proba mat.Matrix, classes []int) *mat.Dense {
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, proba)
		out.Set(i, 0, float64(classes[floats.MaxIdx(row)]))
	}
	return out
}
