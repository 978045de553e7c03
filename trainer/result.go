package trainer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/family"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/preprocessing"
)

// ConfusionMatrix counts test rows by true class (row) and predicted class
// (column). Labels are the original target values in code order.
type ConfusionMatrix struct {
	Labels []string
	Matrix [][]int
}

// ROCCurve holds the sample points of a binary ROC curve.
type ROCCurve struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
}

// CandidateResult is the scored outcome of one candidate.
type CandidateResult struct {
	Family            family.Family
	ModelID           family.ModelID
	ModelName         string
	Score             float64
	MetricName        string
	CVMean            float64
	CVStd             float64
	Metrics           map[string]float64
	ConfusionMatrix   *ConfusionMatrix
	ROC               *ROCCurve
	FeatureImportance []float64
	NumFeatures       int
	TrainingSamples   int
	Tuned             bool
	Params            map[string]interface{}
	DurationMs        int64

	trained *family.Trained
}

// Model returns the fitted handle behind the result.
func (c *CandidateResult) Model() *family.Trained { return c.trained }

// Result is a completed training run.
type Result struct {
	Task         preprocessing.Task
	Target       string
	Results      []*CandidateResult
	Best         *CandidateResult
	FeatureNames []string
	NumFeatures  int
	NumSamples   int
	TestIndex    []int
	State        *preprocessing.State
	Split        *preprocessing.Split
	Failures     []errors.CandidateFailure
}

// BestModel returns the winning fitted handle.
func (r *Result) BestModel() (*family.Trained, error) {
	if r == nil || r.Best == nil || r.Best.trained == nil {
		return nil, errors.NewStateError("trainer.BestModel", "result", "", errors.ErrNoTrainedModel)
	}
	return r.Best.trained, nil
}

// Predict runs the best model on already preprocessed rows.
func (r *Result) Predict(X mat.Matrix) (mat.Matrix, error) {
	best, err := r.BestModel()
	if err != nil {
		return nil, err
	}
	return best.Predict(X)
}

// Candidate returns the result for id, if it survived.
func (r *Result) Candidate(id family.ModelID) (*CandidateResult, bool) {
	for _, c := range r.Results {
		if c.ModelID == id {
			return c, true
		}
	}
	return nil, false
}
