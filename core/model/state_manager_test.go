package model

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()

	err := s.RequireFitted("LinearAdapter", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	s.SetFitted(4, 80)
	assert.NoError(t, s.RequireFitted("LinearAdapter", "Predict"))
	f, n := s.GetDimensions()
	assert.Equal(t, 4, f)
	assert.Equal(t, 80, n)

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestStateManagerConcurrent(t *testing.T) {
	s := NewStateManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.SetFitted(i, i)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.IsFitted()
		}()
	}
	wg.Wait()
	assert.True(t, s.IsFitted())
}

type constEstimator struct {
	BaseEstimator
	Value float64
}

func (c *constEstimator) Fit(X, y mat.Matrix) error {
	c.Value = mat.Sum(y) / float64(y.(*mat.VecDense).Len())
	c.SetFitted()
	return nil
}

func (c *constEstimator) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, c.Value)
	}
	return out, nil
}

func TestPersistenceThroughInterface(t *testing.T) {
	Register(&constEstimator{})

	var est Estimator = &constEstimator{}
	require.NoError(t, est.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewVecDense(2, []float64{2, 4})))

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(&est, &buf))

	var loaded Estimator
	require.NoError(t, LoadModelFromReader(&loaded, &buf))

	c, ok := loaded.(*constEstimator)
	require.True(t, ok)
	assert.True(t, c.IsFitted())
	assert.Equal(t, 3.0, c.Value)
}
