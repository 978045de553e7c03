// Package naive_bayes implements naive Bayes classifiers.
package naive_bayes

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// GaussianNB models each feature as an independent normal distribution per
// class. VarSmoothing times the largest feature variance is added to every
// class variance for stability.
type GaussianNB struct {
	model.BaseEstimator

	VarSmoothing float64

	ClassCodes []int
	Theta      [][]float64 // per-class feature means
	Var        [][]float64 // per-class feature variances
	LogPrior   []float64
	Epsilon    float64
	NFeatures  int
}

// Option configures GaussianNB.
type Option func(*GaussianNB)

// WithVarSmoothing sets the variance smoothing fraction.
func WithVarSmoothing(v float64) Option {
	return func(nb *GaussianNB) { nb.VarSmoothing = v }
}

// NewGaussianNB creates a GaussianNB with var_smoothing 1e-9.
func NewGaussianNB(opts ...Option) *GaussianNB {
	nb := &GaussianNB{VarSmoothing: 1e-9}
	for _, o := range opts {
		o(nb)
	}
	return nb
}

// Fit estimates class priors, means and variances.
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	const op = "GaussianNB.Fit"
	n, p, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	codes, classes, err := model.ClassCodes(op, y)
	if err != nil {
		return err
	}

	col := make([]float64, n)
	maxVar := 0.0
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	nb.Epsilon = nb.VarSmoothing * maxVar
	if nb.Epsilon == 0 {
		nb.Epsilon = 1e-12
	}

	index := make(map[int]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	groups := make([][]int, len(classes))
	for i, c := range codes {
		groups[index[c]] = append(groups[index[c]], i)
	}

	nb.ClassCodes = classes
	nb.NFeatures = p
	nb.Theta = make([][]float64, len(classes))
	nb.Var = make([][]float64, len(classes))
	nb.LogPrior = make([]float64, len(classes))
	vals := make([]float64, 0, n)
	for k, rows := range groups {
		nb.Theta[k] = make([]float64, p)
		nb.Var[k] = make([]float64, p)
		for j := 0; j < p; j++ {
			vals = vals[:0]
			for _, i := range rows {
				vals = append(vals, X.At(i, j))
			}
			m, v := stat.PopMeanVariance(vals, nil)
			nb.Theta[k][j] = m
			nb.Var[k][j] = v + nb.Epsilon
		}
		nb.LogPrior[k] = math.Log(float64(len(rows)) / float64(n))
	}
	nb.SetFitted()
	return nil
}

// Classes returns the encoded class labels seen during fitting.
func (nb *GaussianNB) Classes() []int {
	return append([]int(nil), nb.ClassCodes...)
}

// jointLogLikelihood returns log P(c) + Σ log N(x_j | θ_cj, σ²_cj) per class.
func (nb *GaussianNB) jointLogLikelihood(method string, X mat.Matrix) (*mat.Dense, error) {
	if !nb.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", method)
	}
	n, err := model.CheckPredictInput("GaussianNB."+method, X, nb.NFeatures)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(n, len(nb.ClassCodes), nil)
	row := make([]float64, nb.NFeatures)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		for k := range nb.ClassCodes {
			ll := nb.LogPrior[k]
			for j, x := range row {
				v := nb.Var[k][j]
				d := x - nb.Theta[k][j]
				ll -= 0.5 * (math.Log(2*math.Pi*v) + d*d/v)
			}
			out.Set(i, k, ll)
		}
	}
	return out, nil
}

// PredictProba returns normalised posteriors.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictProba", X)
	if err != nil {
		return nil, err
	}
	n, k := jll.Dims()
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		mat.Row(row, i, jll)
		jll.SetRow(i, errors.Softmax(row, row))
	}
	return jll, nil
}

// Predict returns the maximum a posteriori class.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("Predict", X)
	if err != nil {
		return nil, err
	}
	n, _ := jll.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, float64(nb.ClassCodes[floats.MaxIdx(jll.RawRowView(i))]))
	}
	return out, nil
}

// GetParams returns the hyperparameters.
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{"var_smoothing": nb.VarSmoothing}
}

// SetParams sets the hyperparameters.
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k != "var_smoothing" {
			return model.UnknownParam("GaussianNB", k)
		}
		f, err := model.ParamFloat(k, v)
		if err != nil {
			return err
		}
		nb.VarSmoothing = f
	}
	return nil
}
