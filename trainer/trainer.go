// Package trainer runs a panel of candidate models against one prepared
// dataset and ranks them on a held-out split.
package trainer

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/dataset"
	"github.com/YuminosukeSato/intelliml/family"
	"github.com/YuminosukeSato/intelliml/pkg/config"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
	"github.com/YuminosukeSato/intelliml/preprocessing"
)

// DefaultPanel returns the candidates trained when no model types are given.
func DefaultPanel(task preprocessing.Task) []family.ModelID {
	if task == preprocessing.Classification {
		return []family.ModelID{
			family.LogisticRegression, family.SVM, family.KNN, family.NaiveBayes,
			family.RandomForest, family.DecisionTree,
			family.XGBoost, family.LightGBM, family.GradientBoosting,
		}
	}
	return []family.ModelID{
		family.LinearRegression, family.Ridge, family.Lasso,
		family.RandomForest, family.DecisionTree,
		family.XGBoost, family.LightGBM, family.GradientBoosting,
	}
}

// Options configure one TrainAll call. Zero values take the trainer's
// configured defaults; CVFolds of 1 disables cross-validation and a negative
// MaxTrainingTime disables the time limit.
type Options struct {
	ModelTypes      []string
	TestSize        float64
	CVFolds         int
	EnableTuning    bool
	TuningTrials    int
	Seed            uint64
	MaxTrainingTime time.Duration
}

// Trainer is the training orchestrator.
type Trainer struct {
	cfg        config.TrainingConfig
	metrics    *Metrics
	newAdapter func(family.Family) family.Adapter
	logger     log.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(t *Trainer) { t.metrics = m }
}

// WithAdapterFactory replaces the function that creates a fresh adapter for
// each candidate.
func WithAdapterFactory(fn func(family.Family) family.Adapter) Option {
	return func(t *Trainer) { t.newAdapter = fn }
}

// New creates a Trainer with defaults taken from cfg.
func New(cfg config.TrainingConfig, opts ...Option) *Trainer {
	t := &Trainer{
		cfg:        cfg,
		newAdapter: family.NewAdapter,
		logger:     log.GetLoggerWithName("trainer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = NewMetrics("intelliml", nil)
	}
	return t
}

// Metrics returns the collectors the trainer updates.
func (t *Trainer) Metrics() *Metrics { return t.metrics }

func (t *Trainer) withDefaults(o Options) Options {
	if o.TestSize == 0 {
		o.TestSize = t.cfg.TestSize
	}
	if o.CVFolds == 0 {
		o.CVFolds = t.cfg.CVFolds
	}
	if o.TuningTrials == 0 {
		o.TuningTrials = t.cfg.TuningTrials
	}
	if o.Seed == 0 {
		o.Seed = t.cfg.Seed
	}
	if o.MaxTrainingTime == 0 {
		o.MaxTrainingTime = t.cfg.MaxTrainingTime
	}
	return o
}

type candidate struct {
	family family.Family
	model  family.ModelID
}

// panel resolves requested identifiers in order, dropping duplicates.
func (t *Trainer) panel(task preprocessing.Task, requested []string) ([]candidate, error) {
	var out []candidate
	seen := make(map[family.ModelID]bool)
	add := func(f family.Family, id family.ModelID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, candidate{family: f, model: id})
		}
	}
	if len(requested) == 0 {
		for _, id := range DefaultPanel(task) {
			f, _ := id.Family()
			add(f, id)
		}
		return out, nil
	}
	for _, ident := range requested {
		res, err := family.ResolveIdentifier(ident, task)
		if err != nil {
			return nil, err
		}
		if res.Fallback {
			t.logger.Info("model identifier resolved to family default",
				"requested", ident, log.ModelIDKey, string(res.Model), log.TaskKey, string(task))
		}
		add(res.Family, res.Model)
	}
	return out, nil
}

// TrainAll prepares f once, splits it, trains every candidate of the panel
// and ranks the survivors by test score. A candidate that errors or panics
// is dropped; the run fails only when none survive or the time limit passes.
func (t *Trainer) TrainAll(ctx context.Context, f *dataset.Frame, target string, opts Options) (*Result, error) {
	const op = "trainer.TrainAll"
	o := t.withDefaults(opts)
	start := time.Now()
	expired := func() bool {
		return o.MaxTrainingTime > 0 && time.Since(start) > o.MaxTrainingTime
	}

	prep, err := preprocessing.Prepare(f, target)
	if err != nil {
		return nil, err
	}
	split, err := prep.Split(o.TestSize, o.Seed)
	if err != nil {
		return nil, err
	}
	panel, err := t.panel(prep.Task, o.ModelTypes)
	if err != nil {
		return nil, err
	}
	task := string(prep.Task)
	logger := t.logger.With(log.TargetKey, target, log.TaskKey, task)
	logger.Info("training started",
		log.CandidatesKey, len(panel),
		log.SamplesKey, prep.X.RawMatrix().Rows,
		log.FeaturesKey, len(prep.FeatureNames))

	res := &Result{
		Task:         prep.Task,
		Target:       target,
		FeatureNames: append([]string(nil), prep.FeatureNames...),
		NumFeatures:  len(prep.FeatureNames),
		NumSamples:   prep.X.RawMatrix().Rows,
		TestIndex:    split.TestIndex,
		State:        prep.State,
		Split:        split,
	}
	timeout := func() error {
		t.metrics.Runs.WithLabelValues(task, runTimeout).Inc()
		logger.Error("training time limit exceeded",
			log.DurationMsKey, time.Since(start).Milliseconds(),
			log.CandidatesKey, len(res.Results))
		return errors.NewTrainingError(op, errors.ErrTrainingTimeout, res.Failures)
	}

	for _, c := range panel {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, op)
		}
		if expired() {
			return nil, timeout()
		}
		cr, err := t.evaluate(ctx, c, prep, split, o)
		if err != nil {
			res.Failures = append(res.Failures, errors.CandidateFailure{Model: string(c.model), Err: err})
			t.metrics.CandidatesFailed.WithLabelValues(c.family.String(), string(c.model)).Inc()
			logger.Warn("candidate failed",
				log.FamilyKey, c.family.String(), log.ModelIDKey, string(c.model), log.ErrAttr(err))
			continue
		}
		t.metrics.CandidatesTrained.WithLabelValues(c.family.String(), string(c.model)).Inc()
		res.Results = append(res.Results, cr)
	}
	if expired() {
		return nil, timeout()
	}
	if len(res.Results) == 0 {
		t.metrics.Runs.WithLabelValues(task, runFailed).Inc()
		logger.Error("all candidates failed", log.FailuresKey, len(res.Failures))
		return nil, errors.NewTrainingError(op, errors.ErrAllCandidatesFailed, res.Failures)
	}

	sort.SliceStable(res.Results, func(i, j int) bool {
		return res.Results[i].Score > res.Results[j].Score
	})
	res.Best = res.Results[0]
	t.metrics.Runs.WithLabelValues(task, runSucceeded).Inc()
	logger.Info("training finished",
		log.ModelIDKey, string(res.Best.ModelID),
		log.MetricNameKey, res.Best.MetricName,
		log.ScoreKey, res.Best.Score,
		log.FailuresKey, len(res.Failures),
		log.DurationMsKey, time.Since(start).Milliseconds())
	return res, nil
}

// evaluate trains one candidate on a fresh adapter and scores it on the test
// split. Panics inside estimator code come back as errors.
func (t *Trainer) evaluate(ctx context.Context, c candidate, prep *preprocessing.Prepared, s *preprocessing.Split, o Options) (*CandidateResult, error) {
	op := "trainer.evaluate." + string(c.model)
	var cr *CandidateResult
	start := time.Now()
	err := errors.SafeExecute(op, func() error {
		classes := prep.State.Classes()
		adapter := t.newAdapter(c.family)
		tr, err := adapter.Train(ctx, s.XTrain, s.YTrain, prep.Task, string(c.model), family.TrainOptions{
			CVFolds:      o.CVFolds,
			EnableTuning: o.EnableTuning,
			TuningTrials: o.TuningTrials,
			Seed:         o.Seed,
			NumClasses:   len(classes),
		})
		if err != nil {
			return err
		}
		out, err := adapter.Predict(s.XTest)
		if err != nil {
			return err
		}
		pred := mat.NewVecDense(s.YTest.Len(), mat.Col(nil, 0, out))
		if err := errors.CheckNumericalStability(op, pred.RawVector().Data, 0); err != nil {
			return err
		}

		cr = &CandidateResult{
			Family:          tr.Family,
			ModelID:         tr.ModelID,
			ModelName:       tr.DisplayName,
			CVMean:          tr.CVMean,
			CVStd:           tr.CVStd,
			NumFeatures:     tr.NumFeatures,
			TrainingSamples: tr.NumSamples,
			Tuned:           tr.Tuned,
			Params:          tr.Params,
			trained:         tr,
		}
		if prep.Task == preprocessing.Classification {
			proba, ok, err := tr.PredictProba(s.XTest)
			if err != nil {
				return err
			}
			if !ok {
				proba = nil
			}
			cr.Metrics, cr.ConfusionMatrix, cr.ROC, err = classificationBundle(s.YTest, pred, proba, classes)
			if err != nil {
				return err
			}
			cr.MetricName = MetricAccuracy
		} else {
			cr.Metrics, err = regressionBundle(s.YTest, pred)
			if err != nil {
				return err
			}
			cr.MetricName = MetricR2
		}
		cr.Score = cr.Metrics[cr.MetricName]

		if imp, ok := adapter.FeatureImportance(); ok {
			if len(imp) == len(prep.FeatureNames) {
				cr.FeatureImportance = imp
			} else {
				t.logger.Warn("feature importance length mismatch, dropped",
					log.ModelIDKey, string(c.model), "got", len(imp), log.FeaturesKey, len(prep.FeatureNames))
			}
		}
		return nil
	})
	elapsed := time.Since(start)
	t.metrics.FitSeconds.WithLabelValues(c.family.String()).Observe(elapsed.Seconds())
	if err != nil {
		return nil, err
	}
	cr.DurationMs = elapsed.Milliseconds()
	return cr, nil
}
