package linear

import "github.com/YuminosukeSato/intelliml/core/model"

// Params holds the hyperparameters shared by the linear regressors. Not every
// estimator reads every field: Alpha is ignored by LinearRegression and
// L1Ratio only matters to ElasticNet.
type Params struct {
	FitIntercept bool
	Alpha        float64
	L1Ratio      float64
	MaxIter      int
	Tol          float64
}

func defaultParams() Params {
	return Params{FitIntercept: true, Alpha: 1.0, L1Ratio: 0.5, MaxIter: 1000, Tol: 1e-4}
}

// Option configures a linear regressor.
type Option func(*Params)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(p *Params) { p.FitIntercept = fit }
}

// WithAlpha sets the regularization strength.
func WithAlpha(alpha float64) Option {
	return func(p *Params) { p.Alpha = alpha }
}

// WithL1Ratio sets the ElasticNet mixing parameter; 1 is lasso, 0 is ridge.
func WithL1Ratio(r float64) Option {
	return func(p *Params) { p.L1Ratio = r }
}

// WithMaxIter bounds coordinate descent sweeps.
func WithMaxIter(n int) Option {
	return func(p *Params) { p.MaxIter = n }
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) Option {
	return func(p *Params) { p.Tol = tol }
}

func newParams(opts []Option) Params {
	p := defaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// GetParams returns the parameters of the model
func (p *Params) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": p.FitIntercept,
		"alpha":         p.Alpha,
		"l1_ratio":      p.L1Ratio,
		"max_iter":      p.MaxIter,
		"tol":           p.Tol,
	}
}

// SetParams sets the parameters of the model
func (p *Params) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "fit_intercept":
			p.FitIntercept, err = model.ParamBool(k, v)
		case "alpha":
			p.Alpha, err = model.ParamFloat(k, v)
		case "l1_ratio":
			p.L1Ratio, err = model.ParamFloat(k, v)
		case "max_iter":
			p.MaxIter, err = model.ParamInt(k, v)
		case "tol":
			p.Tol, err = model.ParamFloat(k, v)
		default:
			err = model.UnknownParam("linear", k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
