// Package explain computes per-feature attributions for a trained estimator,
// falling back to the estimator's native importances when attribution fails.
package explain

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/family"
	"github.com/YuminosukeSato/intelliml/pkg/config"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
)

// Attribution methods.
const (
	MethodTreeSHAP          = "tree_shap"
	MethodPermutationSHAP   = "permutation_shap"
	MethodFeatureImportance = "feature_importance"
)

// FeatureAttribution is the mean absolute attribution of one feature.
type FeatureAttribution struct {
	Feature    string
	Importance float64
}

// Explanation is the outcome of Explain. Values and BaseValue are empty when
// Fallback is set.
type Explanation struct {
	Importance []FeatureAttribution
	Values     [][]float64
	BaseValue  float64
	Method     string
	Fallback   bool
	SampleSize int
	Plots      map[string][]byte
}

// Top returns the names of the n most important features.
func (e *Explanation) Top(n int) []string {
	n = min(n, len(e.Importance))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = e.Importance[i].Feature
	}
	return out
}

// Explainer computes explanations.
type Explainer struct {
	maxSamples   int
	permutations int
	plots        bool
	seed         uint64
	batchCells   int
	background   []float64
	logger       log.Logger
}

// defaultBatchCells bounds the perturbation matrix of one permutation
// sampling predict call to 512KiB per worker.
const defaultBatchCells = 1 << 16

// Option configures an Explainer.
type Option func(*Explainer)

// WithSeed fixes the seed of sample selection and permutation sampling.
func WithSeed(seed uint64) Option {
	return func(e *Explainer) { e.seed = seed }
}

// New creates an Explainer from cfg.
func New(cfg config.ExplainConfig, opts ...Option) *Explainer {
	e := &Explainer{
		maxSamples:   cfg.MaxSamples,
		permutations: cfg.Permutations,
		plots:        cfg.Plots,
		seed:         42,
		batchCells:   defaultBatchCells,
		logger:       log.GetLoggerWithName("explain"),
	}
	if e.maxSamples < 1 {
		e.maxSamples = 100
	}
	if e.permutations < 1 {
		e.permutations = 32
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithBackground returns a copy of e that replaces absent features with bg
// during permutation sampling. Without one the sample column means are used.
func (e *Explainer) WithBackground(bg []float64) *Explainer {
	c := *e
	c.background = append([]float64(nil), bg...)
	return &c
}

// Explain attributes the predictions of est on the rows of X to the features
// named by featureNames. Tree models get exact TreeSHAP; other estimators
// get sampled Shapley values.
func (e *Explainer) Explain(ctx context.Context, est model.Estimator, X mat.Matrix, featureNames []string) (*Explanation, error) {
	const op = "explain.Explain"
	if est == nil || X == nil {
		return nil, errors.NewStateError(op, "estimator", "", errors.ErrNoTrainedModel)
	}
	_, p := X.Dims()
	if p != len(featureNames) {
		return nil, errors.NewDimensionError(op, len(featureNames), p, 1)
	}
	sample := e.sample(X)

	values, base, method, primary := e.attribute(ctx, est, sample)
	if primary == nil {
		exp := &Explanation{
			Importance: rank(meanAbs(values, p), featureNames),
			Values:     values,
			BaseValue:  base,
			Method:     method,
			SampleSize: len(values),
		}
		e.attachPlots(exp, featureNames)
		e.logger.Debug("explanation computed", log.MethodKey, method, log.SamplesKey, len(values))
		return exp, nil
	}

	e.logger.Warn("attribution failed, using native importance", log.MethodKey, method, log.ErrAttr(primary))
	imp, ok := family.NativeImportance(est)
	var fallback error
	switch {
	case !ok:
		fallback = errors.NewValueError(op, "estimator exposes no native importance")
	case len(imp) != p:
		fallback = errors.NewDimensionError(op, p, len(imp), 1)
	}
	if fallback != nil {
		return nil, errors.NewExplanationError(op, primary, fallback)
	}
	n, _ := sample.Dims()
	return &Explanation{
		Importance: rank(imp, featureNames),
		Method:     MethodFeatureImportance,
		Fallback:   true,
		SampleSize: n,
	}, nil
}

// sample caps X at maxSamples rows with a seeded choice, keeping row order.
func (e *Explainer) sample(X mat.Matrix) *mat.Dense {
	n, _ := X.Dims()
	if n <= e.maxSamples {
		return mat.DenseCopyOf(X)
	}
	rows := rand.New(rand.NewPCG(e.seed, e.seed)).Perm(n)[:e.maxSamples]
	sort.Ints(rows)
	_, p := X.Dims()
	out := mat.NewDense(len(rows), p, nil)
	for i, r := range rows {
		for j := 0; j < p; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

func (e *Explainer) attribute(ctx context.Context, est model.Estimator, X *mat.Dense) (values [][]float64, base float64, method string, err error) {
	defer errors.Recover(&err, "explain.attribute")
	if err := ctx.Err(); err != nil {
		return nil, 0, "", err
	}
	if _, ok := est.(treeModel); ok {
		method = MethodTreeSHAP
		values, base, err = treeSHAP(est, X)
	} else {
		method = MethodPermutationSHAP
		values, base, err = e.permutationSHAP(ctx, est, X)
	}
	if err != nil {
		return nil, 0, method, err
	}
	for _, row := range values {
		if err := errors.CheckNumericalStability(method, row, 0); err != nil {
			return nil, 0, method, err
		}
	}
	return values, base, method, nil
}

func meanAbs(values [][]float64, p int) []float64 {
	out := make([]float64, p)
	if len(values) == 0 {
		return out
	}
	for _, row := range values {
		for j, v := range row {
			out[j] += math.Abs(v)
		}
	}
	for j := range out {
		out[j] /= float64(len(values))
	}
	return out
}

// rank orders features by importance, descending; equal values keep the
// feature order.
func rank(imp []float64, names []string) []FeatureAttribution {
	out := make([]FeatureAttribution, len(names))
	for j, name := range names {
		out[j] = FeatureAttribution{Feature: name, Importance: imp[j]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}
