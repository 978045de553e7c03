package linear

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// ElasticNet minimises
//
//	1/(2n)·‖y − Xw‖² + α·ρ·‖w‖₁ + α·(1−ρ)/2·‖w‖²
//
// by cyclic coordinate descent, where ρ is L1Ratio.
type ElasticNet struct {
	model.BaseEstimator
	Solution
	Params

	NIter int
}

// NewElasticNet creates an ElasticNet regressor.
func NewElasticNet(opts ...Option) *ElasticNet {
	return &ElasticNet{Params: newParams(opts)}
}

// Lasso is ElasticNet with L1Ratio fixed at 1.
type Lasso struct {
	ElasticNet
}

// NewLasso creates a Lasso regressor.
func NewLasso(opts ...Option) *Lasso {
	l := &Lasso{ElasticNet: ElasticNet{Params: newParams(opts)}}
	l.L1Ratio = 1
	return l
}

// SetParams ignores l1_ratio so a Lasso stays a lasso.
func (l *Lasso) SetParams(params map[string]interface{}) error {
	if err := l.Params.SetParams(params); err != nil {
		return err
	}
	l.L1Ratio = 1
	return nil
}

// Fit runs coordinate descent until the largest coefficient update is below
// Tol times the largest coefficient, or MaxIter sweeps have run.
func (e *ElasticNet) Fit(X, y mat.Matrix) error {
	const op = "ElasticNet.Fit"
	n, p, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	if e.Alpha < 0 || e.L1Ratio < 0 || e.L1Ratio > 1 {
		return errors.NewValidationError("alpha/l1_ratio", "alpha must be >= 0 and l1_ratio in [0, 1]", e.GetParams())
	}
	Xc, resid, xMean, yMean := centered(X, y, e.FitIntercept)

	nf := float64(n)
	l1 := e.Alpha * e.L1Ratio * nf
	l2 := e.Alpha * (1 - e.L1Ratio) * nf

	cols := make([][]float64, p)
	norms := make([]float64, p)
	for j := range cols {
		cols[j] = mat.Col(nil, j, Xc)
		norms[j] = floats.Dot(cols[j], cols[j])
	}

	w := make([]float64, p)
	converged := false
	iter := 0
	for iter = 1; iter <= e.MaxIter; iter++ {
		maxDelta, maxW := 0.0, 0.0
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			if old != 0 {
				floats.AddScaled(resid, old, cols[j])
			}
			rho := floats.Dot(cols[j], resid)
			w[j] = softThreshold(rho, l1) / (norms[j] + l2)
			if w[j] != 0 {
				floats.AddScaled(resid, -w[j], cols[j])
			}
			maxDelta = math.Max(maxDelta, math.Abs(w[j]-old))
			maxW = math.Max(maxW, math.Abs(w[j]))
		}
		if maxW == 0 || maxDelta/maxW < e.Tol {
			converged = true
			break
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("ElasticNet", e.MaxIter,
			"coordinate descent did not converge; consider raising max_iter"))
		iter = e.MaxIter
	}

	e.Coef = w
	e.NFeatures = p
	e.NIter = iter
	e.setIntercept(xMean, yMean)
	e.SetFitted()
	return nil
}

func softThreshold(x, lambda float64) float64 {
	switch {
	case x > lambda:
		return x - lambda
	case x < -lambda:
		return x + lambda
	}
	return 0
}

// Predict returns X·w + b.
func (e *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("ElasticNet", "Predict")
	}
	return e.predict("ElasticNet.Predict", X)
}
