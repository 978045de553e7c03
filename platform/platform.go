// Package platform is the operation surface of the AutoML core: it owns the
// dataset store and job registry and drives training, serving, explanation
// and export against them.
package platform

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/dataset"
	"github.com/YuminosukeSato/intelliml/explain"
	"github.com/YuminosukeSato/intelliml/leaderboard"
	"github.com/YuminosukeSato/intelliml/narrative"
	"github.com/YuminosukeSato/intelliml/pkg/config"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
	"github.com/YuminosukeSato/intelliml/preprocessing"
	"github.com/YuminosukeSato/intelliml/registry"
	"github.com/YuminosukeSato/intelliml/serving"
	"github.com/YuminosukeSato/intelliml/trainer"
)

// Platform wires the core components together. All state lives in the
// injected store and registry.
type Platform struct {
	cfg       *config.Config
	data      *dataset.Store
	jobs      *registry.Registry
	trainer   *trainer.Trainer
	explainer *explain.Explainer
	serving   *serving.Service
	narrator  narrative.Generator
	board     *leaderboard.Store
	reg       prometheus.Registerer
	logger    log.Logger
}

// Option configures a Platform.
type Option func(*Platform)

// WithTrainer replaces the training orchestrator.
func WithTrainer(t *trainer.Trainer) Option { return func(p *Platform) { p.trainer = t } }

// WithExplainer replaces the explanation engine.
func WithExplainer(e *explain.Explainer) Option { return func(p *Platform) { p.explainer = e } }

// WithNarrator sets the summary generator. It is always wrapped by
// narrative.Safe.
func WithNarrator(g narrative.Generator) Option { return func(p *Platform) { p.narrator = g } }

// WithLeaderboard records every completed job in b.
func WithLeaderboard(b *leaderboard.Store) Option { return func(p *Platform) { p.board = b } }

// WithRegisterer registers the training metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option { return func(p *Platform) { p.reg = reg } }

// New creates a Platform over store and jobs. Components not supplied by
// options are built from cfg.
func New(cfg *config.Config, store *dataset.Store, jobs *registry.Registry, opts ...Option) (*Platform, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	strategy, err := preprocessing.ParseImputeStrategy(cfg.Serving.BatchImpute)
	if err != nil {
		return nil, err
	}
	p := &Platform{
		cfg:      cfg,
		data:     store,
		jobs:     jobs,
		serving:  serving.New(strategy),
		narrator: narrative.TemplateGenerator{},
		logger:   log.GetLoggerWithName("platform"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.trainer == nil {
		p.trainer = trainer.New(cfg.Training,
			trainer.WithMetrics(trainer.NewMetrics(cfg.Metrics.Namespace, p.reg)))
	}
	if p.explainer == nil {
		p.explainer = explain.New(cfg.Explain, explain.WithSeed(cfg.Training.Seed))
	}
	p.narrator = narrative.Safe(p.narrator)
	return p, nil
}

// Data returns the dataset store.
func (p *Platform) Data() *dataset.Store { return p.data }

// TrainRequest are the per-call training options.
type TrainRequest struct {
	ModelTypes   []string
	TestSize     float64
	CVFolds      int
	EnableTuning bool
}

// Train trains the candidate panel on the active dataset, narrates the
// outcome and registers the job. Nothing is registered when training fails.
func (p *Platform) Train(ctx context.Context, target string, req TrainRequest) (*registry.Job, error) {
	const op = "platform.Train"
	f, _, err := p.data.Current()
	if err != nil {
		return nil, err
	}
	if !f.Has(target) {
		return nil, errors.NewColumnError(op, "target column not found", target, f.Names())
	}

	res, err := p.trainer.TrainAll(ctx, f, target, trainer.Options{
		ModelTypes:   req.ModelTypes,
		TestSize:     req.TestSize,
		CVFolds:      req.CVFolds,
		EnableTuning: req.EnableTuning || p.cfg.Training.EnableTuning,
	})
	if err != nil {
		p.logger.Error("training failed", log.TargetKey, target, log.ErrAttr(err))
		return nil, err
	}

	summary, _ := p.narrator.Summarize(ctx, narrative.FromResult(res))
	id, err := p.jobs.Put(&registry.Job{Target: target, Task: res.Task, Result: res, Summary: summary})
	if err != nil {
		return nil, err
	}
	p.trainer.Metrics().Jobs.Set(float64(p.jobs.Len()))
	job, err := p.jobs.Get(id)
	if err != nil {
		return nil, err
	}
	if p.board != nil {
		if err := p.board.Record(ctx, job); err != nil {
			p.logger.Warn("leaderboard record failed", log.JobIDKey, id, log.ErrAttr(err))
		}
	}
	return job, nil
}

// Status summarises a job.
func (p *Platform) Status(jobID string) (registry.StatusSummary, error) {
	return p.jobs.Status(jobID)
}

// Results returns the complete job.
func (p *Platform) Results(jobID string) (*registry.Job, error) {
	return p.jobs.Get(jobID)
}

// Predict serves one row given in the job's feature order.
func (p *Platform) Predict(jobID string, row []any) (*serving.Prediction, error) {
	job, err := p.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	return p.serving.Predict(job, row)
}

// PredictRecord serves one row given by feature name. Absent features are
// missing values; unknown names are a DataError.
func (p *Platform) PredictRecord(jobID string, record map[string]any) (*serving.Prediction, error) {
	job, err := p.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	names := job.Result.FeatureNames
	index := make(map[string]int, len(names))
	for j, n := range names {
		index[n] = j
	}
	row := make([]any, len(names))
	for k, v := range record {
		j, ok := index[k]
		if !ok {
			return nil, errors.NewColumnError("platform.PredictRecord", "unknown feature", k, names)
		}
		row[j] = v
	}
	return p.serving.Predict(job, row)
}

// PredictBatch serves every row of f with the configured imputation.
func (p *Platform) PredictBatch(jobID string, f *dataset.Frame) (*serving.BatchResult, error) {
	job, err := p.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	return p.serving.PredictBatch(job, f, "")
}

// Explain attributes the job's best model on rows, given in feature order.
// With no rows the held-out test split is explained.
func (p *Platform) Explain(ctx context.Context, jobID string, rows [][]any) (*explain.Explanation, error) {
	const op = "platform.Explain"
	job, err := p.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	res := job.Result
	best, err := res.BestModel()
	if err != nil {
		return nil, err
	}

	var X *mat.Dense
	if len(rows) == 0 {
		X = res.Split.XTest
	} else {
		X = mat.NewDense(len(rows), res.NumFeatures, nil)
		for i, row := range rows {
			x, err := res.State.TransformRow(row)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: row %d", op, i)
			}
			X.SetRow(i, x)
		}
	}

	// training rows are standardised, so their means are the background
	n, cols := res.Split.XTrain.Dims()
	bg := make([]float64, cols)
	for j := range bg {
		bg[j] = floats.Sum(mat.Col(nil, j, res.Split.XTrain)) / float64(n)
	}
	exp, err := p.explainer.WithBackground(bg).Explain(ctx, best.Estimator, X, res.FeatureNames)
	if err != nil {
		return nil, err
	}
	p.logger.Info("job explained", log.JobIDKey, jobID, log.MethodKey, exp.Method, log.FallbackKey, exp.Fallback)
	return exp, nil
}

// Export serialises the job's best model.
func (p *Platform) Export(jobID string) (*serving.Artifact, error) {
	job, err := p.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	return p.serving.Export(job)
}

// Analyze runs exploratory analysis on the active dataset.
func (p *Platform) Analyze() (*dataset.Analysis, error) {
	return p.data.Analyze()
}
