package family

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/model_selection"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
	"github.com/YuminosukeSato/intelliml/preprocessing"
)

// TrainOptions control cross-validation and tuning of one candidate.
type TrainOptions struct {
	CVFolds      int // < 2 disables cross-validation
	EnableTuning bool
	TuningTrials int
	Seed         uint64
	NumClasses   int
}

// Adapter trains and serves the models of one family.
type Adapter interface {
	Family() Family
	// Train fits the model named by name (a ModelID, "auto" or "") on the
	// training split.
	Train(ctx context.Context, X *mat.Dense, y *mat.VecDense, task Task, name string, opts TrainOptions) (*Trained, error)
	// Predict uses the most recently trained model.
	Predict(X mat.Matrix) (mat.Matrix, error)
	// FeatureImportance of the most recently trained model.
	FeatureImportance() ([]float64, bool)
}

// baseAdapter holds the most recent Trained handle of an adapter.
type baseAdapter struct {
	family Family
	state  *model.StateManager
	last   *Trained
	logger log.Logger
}

func newBase(f Family) baseAdapter {
	return baseAdapter{
		family: f,
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("family." + f.String()),
	}
}

// Family returns the adapter's family.
func (b *baseAdapter) Family() Family { return b.family }

// resolve picks the model to train inside this family.
func (b *baseAdapter) resolve(name string, task Task) ModelID {
	id := ModelID(name)
	if f, ok := id.Family(); ok && f == b.family && id.Supports(task) {
		return id
	}
	def := Default(b.family, task)
	if name != "" && name != "auto" {
		b.logger.Info("model not applicable, using family default",
			log.ModelIDKey, name, "default", string(def), log.TaskKey, string(task))
	}
	return def
}

// Train implements Adapter.
func (b *baseAdapter) Train(ctx context.Context, X *mat.Dense, y *mat.VecDense, task Task, name string, opts TrainOptions) (*Trained, error) {
	id := b.resolve(name, task)
	op := "family." + string(id) + ".Train"
	n, p := X.Dims()
	Y := mat.NewDense(n, 1, mat.Col(nil, 0, y))
	logger := b.logger.With(log.ModelIDKey, string(id), log.TaskKey, string(task))
	start := time.Now()

	factory := func() (model.Tunable, error) { return New(id, task, opts.Seed) }
	t := &Trained{
		Family:      b.family,
		ModelID:     id,
		DisplayName: id.DisplayName(task),
		Task:        task,
		NumFeatures: p,
		NumSamples:  n,
		NumClasses:  opts.NumClasses,
	}

	folds := min(opts.CVFolds, n)
	dists := Grid(id, task)
	switch {
	case opts.EnableTuning && len(dists) > 0 && folds >= 2:
		trials := opts.TuningTrials
		if trials < 1 {
			trials = 8
		}
		search := model_selection.NewRandomizedSearchCV(factory, dists, trials, splitter(task, folds, opts.Seed), scorer(task), opts.Seed)
		if err := search.Fit(ctx, X, Y); err != nil {
			return nil, errors.Wrap(err, op)
		}
		t.Estimator = search.BestEstimator
		t.CVMean, t.CVStd = search.BestScore, search.BestStd
		t.Tuned = true
	default:
		est, err := factory()
		if err != nil {
			return nil, err
		}
		if folds >= 2 {
			res, err := model_selection.CrossValScore(ctx, func() (model.Estimator, error) { return factory() }, X, Y, splitter(task, folds, opts.Seed), scorer(task))
			if err != nil {
				return nil, errors.Wrap(err, op)
			}
			t.CVMean, t.CVStd, t.CVScores = res.Mean, res.Std, res.Scores
		}
		if err := est.Fit(X, Y); err != nil {
			return nil, errors.Wrap(err, op)
		}
		t.Estimator = est
	}
	t.Params = t.Estimator.GetParams()

	if err := b.state.WithStateMut(func() error {
		b.last = t
		return nil
	}); err != nil {
		return nil, err
	}
	b.state.SetFitted(p, n)
	logger.Debug("model trained",
		log.CVMeanKey, t.CVMean, log.CVStdKey, t.CVStd,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return t, nil
}

func splitter(task Task, folds int, seed uint64) model_selection.Splitter {
	if task == preprocessing.Classification {
		return model_selection.NewStratifiedKFold(folds, true, seed)
	}
	return model_selection.NewKFold(folds, true, seed)
}

func scorer(task Task) model_selection.Scorer {
	if task == preprocessing.Classification {
		return model_selection.AccuracyScorer
	}
	return model_selection.R2Scorer
}

func (b *baseAdapter) current(op string) (*Trained, error) {
	var t *Trained
	_ = b.state.WithState(func() error {
		t = b.last
		return nil
	})
	if t == nil {
		return nil, errors.NewStateError(op, b.family.String()+" adapter", "", errors.ErrNoTrainedModel)
	}
	return t, nil
}

// Predict implements Adapter.
func (b *baseAdapter) Predict(X mat.Matrix) (mat.Matrix, error) {
	t, err := b.current("family.Predict")
	if err != nil {
		return nil, err
	}
	return t.Predict(X)
}

// FeatureImportance implements Adapter.
func (b *baseAdapter) FeatureImportance() ([]float64, bool) {
	t, err := b.current("family.FeatureImportance")
	if err != nil {
		return nil, false
	}
	return t.FeatureImportance()
}

// LinearAdapter trains the linear family, which also hosts the
// distance-based and probabilistic baselines.
type LinearAdapter struct{ baseAdapter }

// NewLinearAdapter creates an adapter with no trained model.
func NewLinearAdapter() *LinearAdapter { return &LinearAdapter{newBase(Linear)} }

// TreeAdapter trains single trees and tree ensembles.
type TreeAdapter struct{ baseAdapter }

// NewTreeAdapter creates an adapter with no trained model.
func NewTreeAdapter() *TreeAdapter { return &TreeAdapter{newBase(Tree)} }

// BoostingAdapter trains gradient boosted trees.
type BoostingAdapter struct{ baseAdapter }

// NewBoostingAdapter creates an adapter with no trained model.
func NewBoostingAdapter() *BoostingAdapter { return &BoostingAdapter{newBase(Boosting)} }

// NewAdapter returns a fresh adapter for f.
func NewAdapter(f Family) Adapter {
	switch f {
	case Tree:
		return NewTreeAdapter()
	case Boosting:
		return NewBoostingAdapter()
	}
	return NewLinearAdapter()
}
