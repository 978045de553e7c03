// Package boosting implements second-order gradient boosted decision trees
// with presets that mirror XGBoost, LightGBM, CatBoost and scikit-learn's
// GradientBoosting defaults.
package boosting

import (
	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Variant selects a preset of defaults and a tree growth policy.
type Variant string

const (
	XGBoost          Variant = "xgboost"
	LightGBM         Variant = "lightgbm"
	CatBoost         Variant = "catboost"
	GradientBoosting Variant = "gradient_boosting"
)

// Params are the boosting hyperparameters.
type Params struct {
	Variant         Variant
	NEstimators     int
	LearningRate    float64
	MaxDepth        int // 0 means unlimited
	NumLeaves       int // leaf-wise growth only
	MinChildSamples int
	Lambda          float64 // L2 penalty on leaf values
	MinGain         float64
	Subsample       float64
	ColSample       float64
	RandomState     uint64
}

// Option configures a boosting estimator.
type Option func(*Params)

// WithNEstimators sets the number of boosting rounds.
func WithNEstimators(n int) Option { return func(p *Params) { p.NEstimators = n } }

// WithLearningRate sets the shrinkage applied to every tree.
func WithLearningRate(lr float64) Option { return func(p *Params) { p.LearningRate = lr } }

// WithMaxDepth limits tree depth; 0 means unlimited.
func WithMaxDepth(d int) Option { return func(p *Params) { p.MaxDepth = d } }

// WithNumLeaves caps the leaves of a leaf-wise tree.
func WithNumLeaves(n int) Option { return func(p *Params) { p.NumLeaves = n } }

// WithMinChildSamples sets the smallest allowed leaf.
func WithMinChildSamples(n int) Option { return func(p *Params) { p.MinChildSamples = n } }

// WithLambda sets the L2 regularisation of leaf values.
func WithLambda(l float64) Option { return func(p *Params) { p.Lambda = l } }

// WithSubsample sets the fraction of rows drawn per round.
func WithSubsample(f float64) Option { return func(p *Params) { p.Subsample = f } }

// WithColSample sets the fraction of features available to each tree.
func WithColSample(f float64) Option { return func(p *Params) { p.ColSample = f } }

// WithRandomState seeds row and column subsampling.
func WithRandomState(seed uint64) Option { return func(p *Params) { p.RandomState = seed } }

// DefaultParams returns the preset of v.
func DefaultParams(v Variant) Params {
	p := Params{
		Variant:         v,
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        6,
		MinChildSamples: 1,
		Lambda:          1,
		Subsample:       1,
		ColSample:       1,
	}
	switch v {
	case LightGBM:
		p.MaxDepth = 0
		p.NumLeaves = 31
		p.MinChildSamples = 20
		p.Lambda = 0
	case CatBoost:
		p.LearningRate = 0.03
		p.Lambda = 3
	case GradientBoosting:
		p.MaxDepth = 3
		p.Lambda = 0
	}
	return p
}

func newParams(v Variant, opts []Option) Params {
	p := DefaultParams(v)
	for _, o := range opts {
		o(&p)
	}
	return p
}

func (p *Params) leafWise() bool { return p.Variant == LightGBM }

func (p *Params) validate() error {
	switch p.Variant {
	case XGBoost, LightGBM, CatBoost, GradientBoosting:
	default:
		return errors.NewValidationError("variant", "unknown boosting variant", p.Variant)
	}
	switch {
	case p.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NEstimators)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", p.LearningRate)
	case p.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", p.MaxDepth)
	case p.leafWise() && p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be >= 2", p.NumLeaves)
	case p.MinChildSamples < 1:
		return errors.NewValidationError("min_child_samples", "must be >= 1", p.MinChildSamples)
	case p.Lambda < 0:
		return errors.NewValidationError("reg_lambda", "must be >= 0", p.Lambda)
	case p.Subsample <= 0 || p.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	case p.ColSample <= 0 || p.ColSample > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", p.ColSample)
	}
	return nil
}

// GetParams returns the hyperparameters.
func (p *Params) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"variant":           string(p.Variant),
		"n_estimators":      p.NEstimators,
		"learning_rate":     p.LearningRate,
		"max_depth":         p.MaxDepth,
		"num_leaves":        p.NumLeaves,
		"min_child_samples": p.MinChildSamples,
		"reg_lambda":        p.Lambda,
		"subsample":         p.Subsample,
		"colsample_bytree":  p.ColSample,
		"random_state":      int(p.RandomState),
	}
}

// SetParams sets the hyperparameters. Unknown keys are an error.
func (p *Params) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "variant":
			var s string
			s, err = model.ParamString(k, v)
			p.Variant = Variant(s)
		case "n_estimators":
			p.NEstimators, err = model.ParamInt(k, v)
		case "learning_rate":
			p.LearningRate, err = model.ParamFloat(k, v)
		case "max_depth":
			p.MaxDepth, err = model.ParamInt(k, v)
		case "num_leaves":
			p.NumLeaves, err = model.ParamInt(k, v)
		case "min_child_samples":
			p.MinChildSamples, err = model.ParamInt(k, v)
		case "reg_lambda":
			p.Lambda, err = model.ParamFloat(k, v)
		case "subsample":
			p.Subsample, err = model.ParamFloat(k, v)
		case "colsample_bytree":
			p.ColSample, err = model.ParamFloat(k, v)
		case "random_state":
			var s int
			s, err = model.ParamInt(k, v)
			p.RandomState = uint64(s)
		default:
			return model.UnknownParam("boosting", k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
