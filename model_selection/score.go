package model_selection

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/core/parallel"
	"github.com/YuminosukeSato/intelliml/metrics"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// Scorer rates predictions; higher is better.
type Scorer func(yTrue, yPred mat.Matrix) (float64, error)

// AccuracyScorer scores classifiers.
func AccuracyScorer(yTrue, yPred mat.Matrix) (float64, error) {
	return metrics.Accuracy(vec(yTrue), vec(yPred))
}

// R2Scorer scores regressors. A fold whose targets are constant scores 0.
func R2Scorer(yTrue, yPred mat.Matrix) (float64, error) {
	s, err := metrics.R2Score(vec(yTrue), vec(yPred))
	if errors.Is(err, metrics.ErrNoVariance) {
		return 0, nil
	}
	return s, err
}

func vec(m mat.Matrix) *mat.VecDense {
	c := model.Column(m, 0)
	return mat.NewVecDense(len(c), c)
}

// Factory returns a fresh, unfitted estimator.
type Factory func() (model.Estimator, error)

// CVResult holds the per-fold test scores.
type CVResult struct {
	Scores []float64
	Mean   float64
	Std    float64 // population standard deviation
}

func newCVResult(scores []float64) *CVResult {
	mean, variance := stat.PopMeanVariance(scores, nil)
	return &CVResult{Scores: scores, Mean: mean, Std: math.Sqrt(variance)}
}

// CrossValScore fits a fresh estimator per fold and scores it on the held
// out rows. Folds run concurrently; the first failing fold's error is returned.
func CrossValScore(ctx context.Context, factory Factory, X, y mat.Matrix, cv Splitter, scorer Scorer) (*CVResult, error) {
	folds, err := cv.Split(X, y)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(folds))
	err = parallel.ForEach(len(folds), 0, func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		xTrain, yTrain := Subset(X, y, folds[i].TrainIndices)
		xTest, yTest := Subset(X, y, folds[i].TestIndices)
		est, err := factory()
		if err != nil {
			return err
		}
		if err := est.Fit(xTrain, yTrain); err != nil {
			return errors.Wrapf(err, "fold %d", i)
		}
		pred, err := est.Predict(xTest)
		if err != nil {
			return errors.Wrapf(err, "fold %d", i)
		}
		scores[i], err = scorer(yTest, pred)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newCVResult(scores), nil
}
