package preprocessing

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/dataset"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

func numericRange(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")
	assert.InDelta(t, 0, out.At(0, 1), 1e-12)
	assert.InDelta(t, -1.3416407865, out.At(0, 0), 1e-9)

	_, err = NewStandardScalerDefault().Transform(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestLabelEncoderNumericOrder(t *testing.T) {
	enc := &LabelEncoder{}
	require.NoError(t, enc.FitFloats([]float64{10, 2, 1, 2, math.NaN()}))
	assert.Equal(t, []string{"1", "2", "10"}, enc.Classes)

	code, err := enc.Encode(10)
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	v, err := enc.Decode(2)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	_, err = enc.Encode(7.0)
	var de *errors.DataError
	assert.True(t, errors.As(err, &de))
}

func TestLabelEncoderAfterGobDecode(t *testing.T) {
	for _, fit := range []func(*LabelEncoder) error{
		func(e *LabelEncoder) error { return e.FitStrings([]string{"pear", "apple", "fig"}) },
		func(e *LabelEncoder) error { return e.FitFloats([]float64{10, 2, 1}) },
	} {
		enc := &LabelEncoder{}
		require.NoError(t, fit(enc))
		var buf bytes.Buffer
		require.NoError(t, gob.NewEncoder(&buf).Encode(enc))
		var dec LabelEncoder
		require.NoError(t, gob.NewDecoder(&buf).Decode(&dec))

		for code, c := range enc.Classes {
			got, err := dec.Encode(c)
			require.NoError(t, err)
			assert.Equal(t, code, got, c)
		}
		_, err := dec.Encode("plum")
		assert.Error(t, err)
	}
}

func TestLabelEncoderText(t *testing.T) {
	enc := &LabelEncoder{}
	require.NoError(t, enc.FitStrings([]string{"pear", "apple", "", "apple"}))
	assert.Equal(t, 2, enc.NumClasses())

	v, err := enc.Decode(0)
	require.NoError(t, err)
	assert.Equal(t, "apple", v)

	_, err = enc.Decode(5)
	assert.Error(t, err)
}

func TestMeanImputerAllMissingColumnFillsZero(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(3, 2, []float64{
		1, nan,
		nan, nan,
		5, nan,
	})
	imp := NewMeanImputer()
	out, err := imp.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0}, imp.Means)
	assert.Equal(t, 3.0, out.At(1, 0))
	assert.Equal(t, 0.0, out.At(2, 1))
}

func TestTaskInferenceTextTarget(t *testing.T) {
	c := dataset.TextColumn("y", []string{"a", "b", "a"})
	assert.Equal(t, Classification, InferTask(c))
}

func TestTaskInferenceLowCardinalityNumeric(t *testing.T) {
	c := dataset.NumericColumn("y", numericRange(100, func(i int) float64 { return float64(i % 9) }))
	assert.Equal(t, Classification, InferTask(c))
}

func TestTaskInferenceHighCardinalityNumeric(t *testing.T) {
	c := dataset.NumericColumn("y", numericRange(100, func(i int) float64 { return float64(i % 10) }))
	assert.Equal(t, Regression, InferTask(c))
}

func TestPrepareMissingTargetListsColumns(t *testing.T) {
	f := dataset.MustFrame(
		dataset.NumericColumn("a", []float64{1, 2}),
		dataset.NumericColumn("b", []float64{3, 4}),
	)
	_, err := Prepare(f, "price")
	var de *errors.DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "price", de.Column)
	assert.Equal(t, []string{"a", "b"}, de.Available)
}

func TestPrepareRequiresFeatures(t *testing.T) {
	f := dataset.MustFrame(dataset.NumericColumn("y", []float64{1, 2}))
	_, err := Prepare(f, "y")
	var de *errors.DataError
	assert.True(t, errors.As(err, &de))
}

func TestPrepareEncodesFeaturesAndTarget(t *testing.T) {
	f := dataset.MustFrame(
		dataset.NumericColumn("x", []float64{1, 2, math.NaN(), 4}),
		dataset.TextColumn("color", []string{"red", "blue", "", "red"}),
		dataset.TextColumn("label", []string{"yes", "no", "yes", ""}),
	)
	p, err := Prepare(f, "label")
	require.NoError(t, err)

	assert.Equal(t, Classification, p.Task)
	assert.Equal(t, []string{"x", "color"}, p.FeatureNames)
	rows, cols := p.X.Dims()
	assert.Equal(t, 3, rows, "row with missing target is dropped")
	assert.Equal(t, 2, cols)

	assert.Equal(t, 1.0, p.X.At(0, 1), "red sorts after blue")
	assert.True(t, math.IsNaN(p.X.At(2, 0)))
	assert.True(t, math.IsNaN(p.X.At(2, 1)))
	assert.Equal(t, []float64{1, 0, 1}, p.Y)
	assert.Equal(t, []string{"no", "yes"}, p.State.Classes())
}

func regressionFrame(n int) *dataset.Frame {
	return dataset.MustFrame(
		dataset.NumericColumn("x1", numericRange(n, func(i int) float64 { return float64(i) })),
		dataset.NumericColumn("x2", numericRange(n, func(i int) float64 { return float64(i%7) * 2 })),
		dataset.TextColumn("zone", func() []string {
			out := make([]string, n)
			for i := range out {
				out[i] = []string{"north", "south", "east"}[i%3]
			}
			return out
		}()),
		dataset.NumericColumn("y", numericRange(n, func(i int) float64 { return float64(i) * 1.5 })),
	)
}

func TestSplitFitsOnTrainingRowsOnly(t *testing.T) {
	p, err := Prepare(regressionFrame(50), "y")
	require.NoError(t, err)
	require.Equal(t, Regression, p.Task)

	s, err := p.Split(0.2, 42)
	require.NoError(t, err)
	assert.Len(t, s.TestIndex, 10)
	assert.Len(t, s.TrainIndex, 40)

	sum := 0.0
	for _, i := range s.TrainIndex {
		sum += p.X.At(i, 0)
	}
	assert.InDelta(t, sum/40, p.State.Imputer.Means[0], 1e-9)
	assert.InDelta(t, sum/40, p.State.Scaler.Mean[0], 1e-9)

	again, err := p.Split(0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, s.TestIndex, again.TestIndex, "fixed seed gives the same partition")
}

func TestSplitRejectsBadSize(t *testing.T) {
	p, err := Prepare(regressionFrame(10), "y")
	require.NoError(t, err)
	_, err = p.Split(1.5, 1)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestTransformRowReplay(t *testing.T) {
	p, err := Prepare(regressionFrame(30), "y")
	require.NoError(t, err)
	_, err = p.Split(0.2, 7)
	require.NoError(t, err)

	row, err := p.State.TransformRow([]any{nil, 4, "south"})
	require.NoError(t, err)
	assert.InDelta(t, 0, row[0], 1e-12, "nil becomes the training mean")

	_, err = p.State.TransformRow([]any{1.0, 2.0, "west"})
	var de *errors.DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "zone", de.Column)

	_, err = p.State.TransformRow([]any{1.0})
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestTransformFrameMissingColumnAndStrategy(t *testing.T) {
	p, err := Prepare(regressionFrame(30), "y")
	require.NoError(t, err)
	_, err = p.Split(0.2, 7)
	require.NoError(t, err)

	batch := dataset.MustFrame(
		dataset.NumericColumn("x1", []float64{100, math.NaN(), 300}),
		dataset.TextColumn("zone", []string{"north", "west", "east"}),
		dataset.NumericColumn("extra", []float64{1, 2, 3}),
	)

	X, missing, err := p.State.TransformFrame(batch, ImputeTraining)
	require.NoError(t, err)
	assert.Equal(t, []string{"x2"}, missing)
	assert.InDelta(t, 0, X.At(1, 0), 1e-12)
	assert.InDelta(t, 0, X.At(0, 1), 1e-12)
	assert.InDelta(t, 0, X.At(1, 2), 1e-12, "unseen category imputed")

	Xb, _, err := p.State.TransformFrame(batch, ImputeBatch)
	require.NoError(t, err)
	want := (200 - p.State.Scaler.Mean[0]) / p.State.Scaler.Scale[0]
	assert.InDelta(t, want, Xb.At(1, 0), 1e-9)
	assert.InDelta(t, 0, Xb.At(0, 1), 1e-12, "absent column falls back to training mean")
}

func TestDecodeLabelRegression(t *testing.T) {
	p, err := Prepare(regressionFrame(20), "y")
	require.NoError(t, err)
	_, err = p.State.DecodeLabel(0)
	assert.Error(t, err)
	assert.Nil(t, p.State.Classes())
}

func TestParseImputeStrategy(t *testing.T) {
	s, err := ParseImputeStrategy("")
	require.NoError(t, err)
	assert.Equal(t, ImputeTraining, s)
	_, err = ParseImputeStrategy("median")
	assert.Error(t, err)
}
