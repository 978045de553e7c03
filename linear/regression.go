package linear

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/core/parallel"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Solution is the fitted state shared by all linear regressors.
type Solution struct {
	Coef      []float64
	Bias      float64
	NFeatures int
}

// Weights は学習された重み（係数）を返す
func (s *Solution) Weights() []float64 {
	return append([]float64(nil), s.Coef...)
}

// Intercept は学習された切片を返す
func (s *Solution) Intercept() float64 {
	return s.Bias
}

// Coefficients returns the weights as a 1×p matrix.
func (s *Solution) Coefficients() *mat.Dense {
	if len(s.Coef) == 0 {
		return nil
	}
	return mat.NewDense(1, len(s.Coef), s.Weights())
}

func (s *Solution) predict(op string, X mat.Matrix) (mat.Matrix, error) {
	r, err := model.CheckPredictInput(op, X, s.NFeatures)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, s.NFeatures)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, floats.Dot(row, s.Coef)+s.Bias)
	}
	return out, nil
}

// centered returns X and y with column means removed when fitIntercept is
// set, plus the means needed to recover the intercept.
func centered(X, y mat.Matrix, fitIntercept bool) (*mat.Dense, []float64, []float64, float64) {
	n, p := X.Dims()
	Xc := mat.DenseCopyOf(X)
	yc := model.Column(y, 0)
	xMean := make([]float64, p)
	yMean := 0.0
	if !fitIntercept {
		return Xc, yc, xMean, yMean
	}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, Xc)
		xMean[j] = stat.Mean(col, nil)
	}
	yMean = stat.Mean(yc, nil)
	parallel.ParallelizeWithThreshold(n, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < p; j++ {
				Xc.Set(i, j, Xc.At(i, j)-xMean[j])
			}
		}
	})
	floats.AddConst(-yMean, yc)
	return Xc, yc, xMean, yMean
}

func (s *Solution) setIntercept(xMean []float64, yMean float64) {
	s.Bias = yMean - floats.Dot(xMean, s.Coef)
}

// LinearRegression は最小二乗法による線形回帰モデル
type LinearRegression struct {
	model.BaseEstimator
	Solution
	Params
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	return &LinearRegression{Params: newParams(opts)}
}

// Fit solves least squares through an SVD of the centred design so that
// rank-deficient inputs, such as constant columns, yield the minimum-norm
// solution instead of failing.
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	const op = "LinearRegression.Fit"
	_, p, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	Xc, yc, xMean, yMean := centered(X, y, lr.FitIntercept)

	var svd mat.SVD
	if !svd.Factorize(Xc, mat.SVDThin) {
		return errors.NewModelError(op, "singular matrix", errors.ErrSingularMatrix)
	}
	values := svd.Values(nil)
	rank := 0
	for _, v := range values {
		if v > 1e-10*values[0] {
			rank++
		}
	}
	if rank == 0 {
		lr.Coef = make([]float64, p)
	} else {
		var w mat.Dense
		svd.SolveTo(&w, mat.NewDense(len(yc), 1, yc), rank)
		lr.Coef = model.Column(&w, 0)
	}
	lr.NFeatures = p
	lr.setIntercept(xMean, yMean)
	lr.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	return lr.predict("LinearRegression.Predict", X)
}

// Ridge is least squares with an L2 penalty alpha·‖w‖², solved in closed form.
type Ridge struct {
	model.BaseEstimator
	Solution
	Params
}

// NewRidge creates a Ridge regressor (alpha defaults to 1).
func NewRidge(opts ...Option) *Ridge {
	return &Ridge{Params: newParams(opts)}
}

// Fit solves (XᵀX + αI) w = Xᵀy on the centred data.
func (r *Ridge) Fit(X, y mat.Matrix) error {
	const op = "Ridge.Fit"
	_, p, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	Xc, yc, xMean, yMean := centered(X, y, r.FitIntercept)

	var gram mat.Dense
	gram.Mul(Xc.T(), Xc)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+r.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(Xc.T(), mat.NewVecDense(len(yc), yc))

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); err != nil {
		return errors.NewModelError(op, "singular matrix", errors.ErrSingularMatrix)
	}
	r.Coef = append([]float64(nil), w.RawVector().Data...)
	r.NFeatures = p
	r.setIntercept(xMean, yMean)
	r.SetFitted()
	return nil
}

// Predict returns X·w + b.
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("Ridge", "Predict")
	}
	return r.predict("Ridge.Predict", X)
}
