// Package neighbors provides k-nearest-neighbour classification and regression.
package neighbors

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/core/parallel"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Weighting selects how neighbour votes are weighted.
type Weighting string

const (
	Uniform  Weighting = "uniform"
	Distance Weighting = "distance"
)

// parallelThreshold is the query row count above which distance computation
// is spread across cores.
const parallelThreshold = 64

// Params are shared by both neighbour estimators.
type Params struct {
	K       int
	Weights Weighting
}

// Option configures a neighbours estimator.
type Option func(*Params)

// WithK sets the number of neighbours.
func WithK(k int) Option {
	return func(p *Params) { p.K = k }
}

// WithWeights sets uniform or distance weighting.
func WithWeights(w Weighting) Option {
	return func(p *Params) { p.Weights = w }
}

func newParams(opts []Option) Params {
	p := Params{K: 5, Weights: Uniform}
	for _, o := range opts {
		o(&p)
	}
	return p
}

// GetParams returns the hyperparameters.
func (p *Params) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_neighbors": p.K, "weights": string(p.Weights)}
}

// SetParams sets the hyperparameters.
func (p *Params) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "n_neighbors":
			n, err := model.ParamInt(k, v)
			if err != nil {
				return err
			}
			p.K = n
		case "weights":
			s, err := model.ParamString(k, v)
			if err != nil {
				return err
			}
			if Weighting(s) != Uniform && Weighting(s) != Distance {
				return errors.NewValidationError(k, "must be uniform or distance", s)
			}
			p.Weights = Weighting(s)
		default:
			return model.UnknownParam("neighbors", k)
		}
	}
	return nil
}

// Memory is the stored training set.
type Memory struct {
	Train     *mat.Dense
	Target    []float64
	NFeatures int
}

func (m *Memory) store(op string, X, y mat.Matrix, k int) error {
	_, p, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	if k < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", k)
	}
	m.Train = mat.DenseCopyOf(X)
	m.Target = model.Column(y, 0)
	m.NFeatures = p
	return nil
}

type neighbour struct {
	idx  int
	dist float64
}

// visit finds the k nearest training rows of every query row and passes
// them, nearest first, to fn. fn may run concurrently for different rows.
func (m *Memory) visit(op string, X mat.Matrix, k int, fn func(i int, nb []neighbour)) error {
	r, err := model.CheckPredictInput(op, X, m.NFeatures)
	if err != nil {
		return err
	}
	n, _ := m.Train.Dims()
	k = min(k, n)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		query := make([]float64, m.NFeatures)
		all := make([]neighbour, n)
		for i := start; i < end; i++ {
			mat.Row(query, i, X)
			for j := 0; j < n; j++ {
				all[j] = neighbour{j, floats.Distance(query, m.Train.RawRowView(j), 2)}
			}
			sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
			fn(i, all[:k])
		}
	})
	return nil
}

// weightsFor returns vote weights. With distance weighting an exact match
// takes all the weight, as in scikit-learn.
func weightsFor(w Weighting, nb []neighbour) []float64 {
	out := make([]float64, len(nb))
	if w != Distance {
		floats.AddConst(1, out)
		return out
	}
	exact := false
	for i, v := range nb {
		if v.dist == 0 {
			out[i] = 1
			exact = true
		}
	}
	if exact {
		return out
	}
	for i, v := range nb {
		out[i] = 1 / v.dist
	}
	return out
}

// KNeighborsClassifier votes among the k nearest training rows.
type KNeighborsClassifier struct {
	model.BaseEstimator
	Memory
	Params
	ClassCodes []int
}

// NewKNeighborsClassifier creates a classifier with k=5, uniform weights.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	return &KNeighborsClassifier{Params: newParams(opts)}
}

// Fit stores the training data.
func (c *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if err := c.store("KNeighborsClassifier.Fit", X, y, c.K); err != nil {
		return err
	}
	_, classes, err := model.ClassCodes("KNeighborsClassifier.Fit", y)
	if err != nil {
		return err
	}
	c.ClassCodes = classes
	c.SetFitted()
	return nil
}

// Classes returns the encoded class labels seen during fitting.
func (c *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), c.ClassCodes...)
}

// PredictProba returns the weighted vote share of each class.
func (c *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("KNeighborsClassifier", "PredictProba")
	}
	col := make(map[int]int, len(c.ClassCodes))
	for j, code := range c.ClassCodes {
		col[code] = j
	}
	r, err := model.CheckPredictInput("KNeighborsClassifier.PredictProba", X, c.NFeatures)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, len(c.ClassCodes), nil)
	err = c.visit("KNeighborsClassifier.PredictProba", X, c.K, func(i int, nb []neighbour) {
		w := weightsFor(c.Weights, nb)
		total := floats.Sum(w)
		for t, v := range nb {
			j := col[int(c.Target[v.idx])]
			out.Set(i, j, out.At(i, j)+w[t]/total)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Predict returns the class with the highest vote share; ties go to the
// smaller class code.
func (c *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, len(c.ClassCodes))
	for i := 0; i < r; i++ {
		mat.Row(row, i, proba)
		out.Set(i, 0, float64(c.ClassCodes[floats.MaxIdx(row)]))
	}
	return out, nil
}

// KNeighborsRegressor averages the targets of the k nearest training rows.
type KNeighborsRegressor struct {
	model.BaseEstimator
	Memory
	Params
}

// NewKNeighborsRegressor creates a regressor with k=5, uniform weights.
func NewKNeighborsRegressor(opts ...Option) *KNeighborsRegressor {
	return &KNeighborsRegressor{Params: newParams(opts)}
}

// Fit stores the training data.
func (r *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	if err := r.store("KNeighborsRegressor.Fit", X, y, r.K); err != nil {
		return err
	}
	r.SetFitted()
	return nil
}

// Predict returns the weighted mean neighbour target.
func (r *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("KNeighborsRegressor", "Predict")
	}
	n, err := model.CheckPredictInput("KNeighborsRegressor.Predict", X, r.NFeatures)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(n, 1, nil)
	err = r.visit("KNeighborsRegressor.Predict", X, r.K, func(i int, nb []neighbour) {
		w := weightsFor(r.Weights, nb)
		sum := 0.0
		for t, v := range nb {
			sum += w[t] * r.Target[v.idx]
		}
		out.Set(i, 0, sum/floats.Sum(w))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
