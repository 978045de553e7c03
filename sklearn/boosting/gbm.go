package boosting

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/core/parallel"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/sklearn/tree"
)

// Ensemble is a fitted boosted model. Trees[r][j] is the tree added for
// output j in round r; leaf values already include the learning rate.
type Ensemble struct {
	Trees      [][]*tree.Tree
	InitScore  []float64
	Gain       []float64
	SplitCount []float64
	NFeatures  int
}

func (e *Ensemble) fit(op string, p *Params, X *mat.Dense, y []float64, obj objective) error {
	n, nf := X.Dims()
	k := obj.outputs()
	e.NFeatures = nf
	e.InitScore = obj.initScore(y)
	e.Gain = make([]float64, nf)
	e.SplitCount = make([]float64, nf)
	e.Trees = make([][]*tree.Tree, 0, p.NEstimators)

	scores := make([]float64, n*k)
	for i := 0; i < n; i++ {
		copy(scores[i*k:(i+1)*k], e.InitScore)
	}
	grad := make([]float64, n*k)
	hess := make([]float64, n*k)
	rng := rand.New(rand.NewPCG(p.RandomState, 0x9e3779b97f4a7c15))

	for round := 0; round < p.NEstimators; round++ {
		obj.gradients(y, scores, grad, hess)
		rows := sample(rng, n, p.Subsample)
		features := sample(rng, nf, p.ColSample)

		trees := make([]*tree.Tree, k)
		builders := make([]*treeBuilder, k)
		err := parallel.ForEach(k, 0, func(j int) error {
			g := make([]float64, n)
			h := make([]float64, n)
			for i := 0; i < n; i++ {
				g[i] = grad[i*k+j]
				h[i] = hess[i*k+j]
			}
			builders[j] = newTreeBuilder(p, X, g, h, features)
			trees[j] = builders[j].build(rows)
			return nil
		})
		if err != nil {
			return errors.Wrap(err, op)
		}
		for _, b := range builders {
			floats.Add(e.Gain, b.gain)
			floats.Add(e.SplitCount, b.splits)
		}
		for i := 0; i < n; i++ {
			x := X.RawRowView(i)
			for j, t := range trees {
				scores[i*k+j] += t.Predict(x)[0]
			}
		}
		if err := errors.CheckNumericalStability(op, scores, round); err != nil {
			return err
		}
		e.Trees = append(e.Trees, trees)
	}
	return nil
}

// sample draws round(frac·n) distinct indices in ascending order, or all of
// them when frac is 1.
func sample(rng *rand.Rand, n int, frac float64) []int {
	m := max(int(frac*float64(n)+0.5), 1)
	if m >= n {
		m = n
	}
	idx := rng.Perm(n)[:m]
	if m == n {
		for i := range idx {
			idx[i] = i
		}
	}
	sort.Ints(idx)
	return idx
}

// raw returns the margin scores, one column per output.
func (e *Ensemble) raw(op string, X mat.Matrix) (*mat.Dense, error) {
	n, err := model.CheckPredictInput(op, X, e.NFeatures)
	if err != nil {
		return nil, err
	}
	k := len(e.InitScore)
	out := mat.NewDense(n, k, nil)
	x := make([]float64, e.NFeatures)
	for i := 0; i < n; i++ {
		mat.Row(x, i, X)
		row := out.RawRowView(i)
		copy(row, e.InitScore)
		for _, round := range e.Trees {
			for j, t := range round {
				row[j] += t.Predict(x)[0]
			}
		}
	}
	return out, nil
}

// FeatureImportances returns total split gain per feature, summing to 1.
// All zeros when no split was made.
func (e *Ensemble) FeatureImportances() []float64 {
	return normalised(e.Gain)
}

// SplitImportances returns the share of splits made on each feature.
func (e *Ensemble) SplitImportances() []float64 {
	return normalised(e.SplitCount)
}

func normalised(v []float64) []float64 {
	out := append([]float64(nil), v...)
	if s := floats.Sum(out); s > 0 {
		floats.Scale(1/s, out)
	}
	return out
}

// NumOutputs returns the number of margin outputs.
func (e *Ensemble) NumOutputs() int { return len(e.InitScore) }

// Components exposes the trees of one output for TreeSHAP. Attributions are
// in margin space.
func (e *Ensemble) Components(output int) ([]tree.Component, float64) {
	parts := make([]tree.Component, 0, len(e.Trees))
	for _, round := range e.Trees {
		parts = append(parts, tree.Component{Tree: round[output], Output: 0, Weight: 1})
	}
	return parts, e.InitScore[output]
}

// GBMRegressor boosts trees on squared error.
type GBMRegressor struct {
	model.BaseEstimator
	Params
	Ensemble
}

// NewGBMRegressor creates a regressor with the defaults of variant.
func NewGBMRegressor(variant Variant, opts ...Option) *GBMRegressor {
	return &GBMRegressor{Params: newParams(variant, opts)}
}

// Fit runs NEstimators boosting rounds.
func (r *GBMRegressor) Fit(X, y mat.Matrix) error {
	const op = "GBMRegressor.Fit"
	if err := r.validate(); err != nil {
		return err
	}
	if _, _, err := model.CheckFitInput(op, X, y); err != nil {
		return err
	}
	if err := r.fit(op, &r.Params, mat.DenseCopyOf(X), model.Column(y, 0), squaredError{}); err != nil {
		return err
	}
	r.SetFitted()
	return nil
}

// Predict returns the boosted sum.
func (r *GBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("GBMRegressor", "Predict")
	}
	return r.raw("GBMRegressor.Predict", X)
}

// GBMClassifier boosts trees on log loss: one margin for two classes and
// one per class (softmax) otherwise.
type GBMClassifier struct {
	model.BaseEstimator
	Params
	Ensemble
	ClassCodes []int
}

// NewGBMClassifier creates a classifier with the defaults of variant.
func NewGBMClassifier(variant Variant, opts ...Option) *GBMClassifier {
	return &GBMClassifier{Params: newParams(variant, opts)}
}

// Fit runs NEstimators boosting rounds. A single training class yields a
// model that always predicts it.
func (c *GBMClassifier) Fit(X, y mat.Matrix) error {
	const op = "GBMClassifier.Fit"
	if err := c.validate(); err != nil {
		return err
	}
	_, p, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	target, classes, err := model.ClassIndices(op, y)
	if err != nil {
		return err
	}
	c.ClassCodes = classes
	switch len(classes) {
	case 1:
		c.Ensemble = Ensemble{InitScore: []float64{0}, Gain: make([]float64, p), SplitCount: make([]float64, p), NFeatures: p}
	case 2:
		err = c.fit(op, &c.Params, mat.DenseCopyOf(X), target, binaryLogLoss{})
	default:
		err = c.fit(op, &c.Params, mat.DenseCopyOf(X), target, softmaxLoss{k: len(classes)})
	}
	if err != nil {
		return err
	}
	c.SetFitted()
	return nil
}

// DecisionFunction returns the raw margins.
func (c *GBMClassifier) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("GBMClassifier", "DecisionFunction")
	}
	return c.raw("GBMClassifier.DecisionFunction", X)
}

// PredictProba returns class probabilities ordered as Classes.
func (c *GBMClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("GBMClassifier", "PredictProba")
	}
	scores, err := c.raw("GBMClassifier.PredictProba", X)
	if err != nil {
		return nil, err
	}
	n, _ := scores.Dims()
	k := len(c.ClassCodes)
	out := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		switch k {
		case 1:
			row[0] = 1
		case 2:
			p := errors.Sigmoid(scores.At(i, 0))
			row[0], row[1] = 1-p, p
		default:
			errors.Softmax(row, scores.RawRowView(i))
		}
	}
	return out, nil
}

// Predict returns the most probable class code.
func (c *GBMClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		mat.Row(row, i, proba)
		out.Set(i, 0, float64(c.ClassCodes[floats.MaxIdx(row)]))
	}
	return out, nil
}

// Classes returns the encoded class labels seen during fitting.
func (c *GBMClassifier) Classes() []int { return append([]int(nil), c.ClassCodes...) }
