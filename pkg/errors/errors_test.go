package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "intelliml: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "intelliml: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 4, 3, 1)
	assert.Equal(t, "intelliml: Predict: expected 4 features, got 3", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearRegression", "Predict")
	assert.Equal(t, "intelliml: LinearRegression: not fitted; call Fit before Predict", err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestDataErrorListsAvailableColumns(t *testing.T) {
	err := NewColumnError("prepare", "target column not found", "price", []string{"age", "city"})

	assert.Equal(t, `intelliml: prepare: target column not found (column "price"); available columns: age, city`, err.Error())

	var dataErr *DataError
	require.True(t, As(err, &dataErr))
	assert.Equal(t, []string{"age", "city"}, dataErr.Available)
	assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")
}

func TestStateErrorNotFound(t *testing.T) {
	err := NewNotFoundError("registry.Get", "job", "abc")

	assert.True(t, IsNotFound(err))
	assert.True(t, Is(err, ErrNotFound))

	var stateErr *StateError
	require.True(t, As(err, &stateErr))
	assert.True(t, stateErr.IsNotFound())
	assert.Equal(t, `intelliml: registry.Get: job "abc": not found`, err.Error())

	noModel := NewStateError("serving.Export", "job", "abc", ErrNoTrainedModel)
	assert.False(t, IsNotFound(noModel))
	assert.True(t, Is(noModel, ErrNoTrainedModel))
}

func TestTrainingErrorWrapsCause(t *testing.T) {
	failures := []CandidateFailure{
		{Model: "svm", Err: New("boom")},
		{Model: "knn", Err: New("bad k")},
	}
	err := NewTrainingError("TrainAll", ErrAllCandidatesFailed, failures)

	assert.True(t, Is(err, ErrAllCandidatesFailed))
	assert.Contains(t, err.Error(), "no models were successfully trained")
	assert.Contains(t, err.Error(), "svm: boom")

	var trainErr *TrainingError
	require.True(t, As(err, &trainErr))
	assert.Len(t, trainErr.Failures, 2)
}

func TestExplanationError(t *testing.T) {
	err := NewExplanationError("Explain", New("attribution diverged"), New("no importance"))

	var explErr *ExplanationError
	require.True(t, As(err, &explErr))
	assert.Contains(t, err.Error(), "attribution diverged")
	assert.Contains(t, err.Error(), "no importance")
}

func TestWarnUsesZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	t.Cleanup(func() { SetZerologWarnFunc(nil) })

	Warn(NewMissingFeatureWarning("PredictBatch", []string{"age"}, "training"))

	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "missing 1 feature(s) [age]")
}

func TestWarnFallsBackToHandler(t *testing.T) {
	var got []string
	SetWarningHandler(func(w error) { got = append(got, w.Error()) })

	Warn(NewConvergenceWarning("Lasso", 1000, ""))

	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "Lasso did not converge after 1000 iterations"))
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in Predict: expected 10, got 5")
}

func TestNumericalHelpers(t *testing.T) {
	assert.Error(t, CheckScalar("loss", nan(), 3))
	assert.NoError(t, CheckNumericalStability("grad", []float64{1, 2}, 0))
	assert.Equal(t, 0.0, SafeDivide(1, 0))
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)

	p := Softmax(nil, []float64{1, 1, 1})
	for _, v := range p {
		assert.InDelta(t, 1.0/3.0, v, 1e-12)
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
