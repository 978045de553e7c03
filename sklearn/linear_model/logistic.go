package linear_model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// LogisticRegression implements L2-regularised logistic regression for
// classification. Multiclass problems are fitted one-vs-rest.
type LogisticRegression struct {
	model.BaseEstimator
	OvRState

	// Hyperparameters
	C            float64 // Inverse regularization strength (1/alpha)
	FitIntercept bool
	MaxIter      int
	Tol          float64
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		C:            1.0,
		FitIntercept: true,
		MaxIter:      300,
		Tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.FitIntercept = fit }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.MaxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.Tol = tol }
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	cfg := gdConfig{
		lambda:       1 / lr.C,
		fitIntercept: lr.FitIntercept,
		maxIter:      lr.MaxIter,
		tol:          lr.Tol,
		lr0:          1.0,
		decay: func(lr0 float64, iter int) float64 {
			return lr0 / (1.0 + 0.01*float64(iter))
		},
	}
	// mean loss + ‖w‖²/(2Cn): sklearn's objective divided by C·n
	n, _ := X.Dims()
	if n > 0 {
		cfg.lambda /= float64(n)
	}
	if err := lr.fitOvR("LogisticRegression.Fit", X, y, logisticGrad, cfg); err != nil {
		return err
	}
	lr.SetFitted()
	return nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	p, err := lr.predictProba("Predict", X)
	if err != nil {
		return nil, err
	}
	return lr.argmax(p), nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return lr.predictProba("PredictProba", X)
}

func (lr *LogisticRegression) predictProba(method string, X mat.Matrix) (*mat.Dense, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", method)
	}
	scores, err := lr.decision("LogisticRegression."+method, X)
	if err != nil {
		return nil, err
	}
	return lr.proba(scores, errors.Sigmoid), nil
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "C":
			lr.C, err = model.ParamFloat(key, value)
		case "fit_intercept":
			lr.FitIntercept, err = model.ParamBool(key, value)
		case "max_iter":
			lr.MaxIter, err = model.ParamInt(key, value)
		case "tol":
			lr.Tol, err = model.ParamFloat(key, value)
		default:
			err = model.UnknownParam("LogisticRegression", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
