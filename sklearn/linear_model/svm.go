package linear_model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// LinearSVC is a linear support vector classifier trained by subgradient
// descent on the L2-regularised hinge loss, one-vs-rest for multiclass.
// PredictProba maps margins through a sigmoid of slope PlattScale; the
// values rank well but are not calibrated.
type LinearSVC struct {
	model.BaseEstimator
	OvRState

	C            float64
	FitIntercept bool
	MaxIter      int
	Tol          float64
	PlattScale   float64
}

// LinearSVCOption is a functional option for LinearSVC.
type LinearSVCOption func(*LinearSVC)

// NewLinearSVC creates a LinearSVC with C=1.
func NewLinearSVC(opts ...LinearSVCOption) *LinearSVC {
	s := &LinearSVC{C: 1, FitIntercept: true, MaxIter: 500, Tol: 1e-4, PlattScale: 2}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithSVCC sets the inverse regularization strength.
func WithSVCC(c float64) LinearSVCOption {
	return func(s *LinearSVC) { s.C = c }
}

// WithSVCMaxIter sets the number of descent steps.
func WithSVCMaxIter(n int) LinearSVCOption {
	return func(s *LinearSVC) { s.MaxIter = n }
}

// Fit trains one hinge-loss separator per class.
func (s *LinearSVC) Fit(X, y mat.Matrix) error {
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	n, _ := X.Dims()
	cfg := gdConfig{
		lambda:       1 / (s.C * math.Max(float64(n), 1)),
		fitIntercept: s.FitIntercept,
		maxIter:      s.MaxIter,
		tol:          s.Tol,
		lr0:          0.5,
		decay: func(lr0 float64, iter int) float64 {
			return lr0 / math.Sqrt(float64(iter))
		},
		// the hinge subgradient rarely vanishes; hitting the cap is normal
		quiet: true,
	}
	if err := s.fitOvR("LinearSVC.Fit", X, y, hingeGrad, cfg); err != nil {
		return err
	}
	s.SetFitted()
	return nil
}

// DecisionFunction returns raw margins, one column per scored class.
func (s *LinearSVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVC", "DecisionFunction")
	}
	return s.decision("LinearSVC.DecisionFunction", X)
}

// Predict returns the class with the largest margin.
func (s *LinearSVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	p, err := s.predictProba("Predict", X)
	if err != nil {
		return nil, err
	}
	return s.argmax(p), nil
}

// PredictProba returns sigmoid-scaled margins normalised per row.
func (s *LinearSVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return s.predictProba("PredictProba", X)
}

func (s *LinearSVC) predictProba(method string, X mat.Matrix) (*mat.Dense, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVC", method)
	}
	scores, err := s.decision("LinearSVC."+method, X)
	if err != nil {
		return nil, err
	}
	return s.proba(scores, func(z float64) float64 { return errors.Sigmoid(s.PlattScale * z) }), nil
}

// GetParams returns the model hyperparameters.
func (s *LinearSVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             s.C,
		"fit_intercept": s.FitIntercept,
		"max_iter":      s.MaxIter,
		"tol":           s.Tol,
	}
}

// SetParams sets the model hyperparameters.
func (s *LinearSVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "C":
			s.C, err = model.ParamFloat(key, value)
		case "fit_intercept":
			s.FitIntercept, err = model.ParamBool(key, value)
		case "max_iter":
			s.MaxIter, err = model.ParamInt(key, value)
		case "tol":
			s.Tol, err = model.ParamFloat(key, value)
		default:
			err = model.UnknownParam("LinearSVC", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
