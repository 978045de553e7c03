// Package serving replays a job's preprocessing on new input and runs its
// winning estimator: single-row prediction, batch prediction and export.
package serving

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/dataset"
	"github.com/YuminosukeSato/intelliml/family"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
	"github.com/YuminosukeSato/intelliml/preprocessing"
	"github.com/YuminosukeSato/intelliml/registry"
)

// Output column names appended by PredictBatch.
const (
	PredictionColumn = "prediction"
	ConfidenceColumn = "confidence"
)

// Prediction is one served prediction. Index is the class index for
// classification and -1 for regression; Probabilities is keyed by the
// original class label and nil when the estimator has none.
type Prediction struct {
	Label         any
	Index         int
	Value         float64
	Probabilities map[string]float64
}

// BatchResult is the input batch with the prediction columns appended.
// Missing lists expected feature columns the batch did not contain.
type BatchResult struct {
	Frame   *dataset.Frame
	Missing []string
}

// Service serves completed jobs.
type Service struct {
	strategy preprocessing.ImputeStrategy
	logger   log.Logger
}

// New creates a Service whose batch predictions impute with strategy unless
// a call overrides it.
func New(strategy preprocessing.ImputeStrategy) *Service {
	if strategy == "" {
		strategy = preprocessing.ImputeTraining
	}
	return &Service{strategy: strategy, logger: log.GetLoggerWithName("serving")}
}

func jobModel(op string, job *registry.Job) (*family.Trained, *preprocessing.State, error) {
	if job == nil || job.Result == nil {
		return nil, nil, errors.NewStateError(op, "job", "", errors.ErrNoTrainedModel)
	}
	best, err := job.Result.BestModel()
	if err != nil || job.Result.State == nil {
		return nil, nil, errors.NewStateError(op, "job", job.ID, errors.ErrNoTrainedModel)
	}
	return best, job.Result.State, nil
}

// Predict preprocesses row, given in training feature order, with the job's
// fitted encoders, imputer and scaler, then predicts and decodes the label.
func (s *Service) Predict(job *registry.Job, row []any) (*Prediction, error) {
	tr, st, err := jobModel("serving.Predict", job)
	if err != nil {
		return nil, err
	}
	return predictRow(tr, st, row)
}

func predictRow(tr *family.Trained, st *preprocessing.State, row []any) (*Prediction, error) {
	const op = "serving.Predict"
	x, err := st.TransformRow(row)
	if err != nil {
		return nil, err
	}
	X := mat.NewDense(1, len(x), x)
	out, err := tr.Predict(X)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	v := out.At(0, 0)
	if tr.Task != preprocessing.Classification {
		return &Prediction{Label: v, Index: -1, Value: v}, nil
	}

	idx := int(v)
	label, err := st.DecodeLabel(idx)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	p := &Prediction{Label: label, Index: idx, Value: v}
	proba, ok, err := tr.PredictProba(X)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if ok {
		classes := st.Classes()
		p.Probabilities = make(map[string]float64, len(classes))
		for j, c := range classes {
			if j < proba.RawMatrix().Cols {
				p.Probabilities[c] = proba.At(0, j)
			}
		}
	}
	return p, nil
}

// PredictBatch predicts every row of f. Columns are matched by name; expected
// columns the batch lacks are imputed and reported through a
// MissingFeatureWarning. An empty strategy uses the service default.
func (s *Service) PredictBatch(job *registry.Job, f *dataset.Frame, strategy preprocessing.ImputeStrategy) (*BatchResult, error) {
	const op = "serving.PredictBatch"
	tr, st, err := jobModel(op, job)
	if err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = s.strategy
	}
	X, missing, err := st.TransformFrame(f, strategy)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		errors.Warn(errors.NewMissingFeatureWarning(op, missing, string(strategy)))
		s.logger.Warn("batch is missing expected feature columns",
			log.JobIDKey, job.ID, log.ColumnsKey, missing, "strategy", string(strategy))
	}

	out, err := tr.Predict(X)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	n := f.NumRows()
	pred, err := predictionColumn(st, tr.Task, mat.Col(nil, 0, out))
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	res, err := f.WithColumn(pred)
	if err != nil {
		return nil, err
	}

	proba, ok, err := tr.PredictProba(X)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if ok {
		conf := make([]float64, n)
		for i := range conf {
			conf[i] = floats.Max(proba.RawRowView(i))
		}
		if res, err = res.WithColumn(dataset.NumericColumn(ConfidenceColumn, conf)); err != nil {
			return nil, err
		}
	}
	s.logger.Debug("batch predicted", log.JobIDKey, job.ID, log.SamplesKey, n)
	return &BatchResult{Frame: res, Missing: missing}, nil
}

// predictionColumn decodes class indices back to the target's own type.
func predictionColumn(st *preprocessing.State, task preprocessing.Task, raw []float64) (*dataset.Column, error) {
	if task != preprocessing.Classification {
		return dataset.NumericColumn(PredictionColumn, raw), nil
	}
	numeric := st.TargetEncoder != nil && st.TargetEncoder.Numeric
	nums := make([]float64, len(raw))
	strs := make([]string, len(raw))
	for i, v := range raw {
		label, err := st.DecodeLabel(int(v))
		if err != nil {
			return nil, err
		}
		switch l := label.(type) {
		case float64:
			nums[i] = l
		case string:
			strs[i] = l
		}
	}
	if numeric {
		return dataset.NumericColumn(PredictionColumn, nums), nil
	}
	return dataset.TextColumn(PredictionColumn, strs), nil
}
