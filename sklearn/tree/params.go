package tree

import (
	"math"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Impurity criteria.
const (
	Gini         = "gini"
	Entropy      = "entropy"
	SquaredError = "squared_error"
)

// Feature subsampling strategies for MaxFeatures.
const (
	AllFeatures  = "all"
	SqrtFeatures = "sqrt"
	Log2Features = "log2"
)

// Params holds the growth hyperparameters. NEstimators and Bootstrap are
// only read by the ensembles.
type Params struct {
	Criterion       string
	MaxDepth        int // 0 grows until leaves are pure
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	RandomState     uint64
	NEstimators     int
	Bootstrap       bool
}

// Option configures a tree or an ensemble of trees.
type Option func(*Params)

// WithCriterion sets the impurity criterion.
func WithCriterion(c string) Option { return func(p *Params) { p.Criterion = c } }

// WithMaxDepth limits the depth; 0 means unlimited.
func WithMaxDepth(d int) Option { return func(p *Params) { p.MaxDepth = d } }

// WithMinSamplesSplit sets the smallest node that may be split.
func WithMinSamplesSplit(n int) Option { return func(p *Params) { p.MinSamplesSplit = n } }

// WithMinSamplesLeaf sets the smallest allowed leaf.
func WithMinSamplesLeaf(n int) Option { return func(p *Params) { p.MinSamplesLeaf = n } }

// WithMaxFeatures sets the number of features examined per split:
// "all", "sqrt" or "log2".
func WithMaxFeatures(s string) Option { return func(p *Params) { p.MaxFeatures = s } }

// WithRandomState seeds feature subsampling, bootstrapping and random thresholds.
func WithRandomState(seed uint64) Option { return func(p *Params) { p.RandomState = seed } }

// WithNEstimators sets the number of trees in an ensemble.
func WithNEstimators(n int) Option { return func(p *Params) { p.NEstimators = n } }

// WithBootstrap toggles sampling rows with replacement per tree.
func WithBootstrap(b bool) Option { return func(p *Params) { p.Bootstrap = b } }

func newParams(criterion, maxFeatures string, bootstrap bool, opts []Option) Params {
	p := Params{
		Criterion:       criterion,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     maxFeatures,
		NEstimators:     100,
		Bootstrap:       bootstrap,
	}
	for _, o := range opts {
		o(&p)
	}
	return p
}

func (p *Params) validate(classify bool) error {
	switch p.Criterion {
	case Gini, Entropy:
		if !classify {
			return errors.NewValidationError("criterion", "classification criterion on a regressor", p.Criterion)
		}
	case SquaredError:
		if classify {
			return errors.NewValidationError("criterion", "regression criterion on a classifier", p.Criterion)
		}
	default:
		return errors.NewValidationError("criterion", "unknown criterion", p.Criterion)
	}
	switch {
	case p.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.MinSamplesLeaf)
	}
	switch p.MaxFeatures {
	case "", AllFeatures, SqrtFeatures, Log2Features:
	default:
		return errors.NewValidationError("max_features", "must be all, sqrt or log2", p.MaxFeatures)
	}
	return nil
}

// featuresPerSplit resolves MaxFeatures for p input features.
func (p *Params) featuresPerSplit(n int) int {
	var k int
	switch p.MaxFeatures {
	case SqrtFeatures:
		k = int(math.Sqrt(float64(n)))
	case Log2Features:
		k = int(math.Log2(float64(n)))
	default:
		k = n
	}
	return min(max(k, 1), n)
}

func (p *Params) treeParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.Criterion,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_features":      p.MaxFeatures,
		"random_state":      int(p.RandomState),
	}
}

func (p *Params) forestParams() map[string]interface{} {
	m := p.treeParams()
	m["n_estimators"] = p.NEstimators
	m["bootstrap"] = p.Bootstrap
	return m
}

func (p *Params) set(name string, params map[string]interface{}, ensemble bool) error {
	for k, v := range params {
		var err error
		switch k {
		case "criterion":
			p.Criterion, err = model.ParamString(k, v)
		case "max_depth":
			p.MaxDepth, err = model.ParamInt(k, v)
		case "min_samples_split":
			p.MinSamplesSplit, err = model.ParamInt(k, v)
		case "min_samples_leaf":
			p.MinSamplesLeaf, err = model.ParamInt(k, v)
		case "max_features":
			p.MaxFeatures, err = model.ParamString(k, v)
		case "random_state":
			var s int
			s, err = model.ParamInt(k, v)
			p.RandomState = uint64(s)
		case "n_estimators":
			if !ensemble {
				return model.UnknownParam(name, k)
			}
			p.NEstimators, err = model.ParamInt(k, v)
		case "bootstrap":
			if !ensemble {
				return model.UnknownParam(name, k)
			}
			p.Bootstrap, err = model.ParamBool(k, v)
		default:
			return model.UnknownParam(name, k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
