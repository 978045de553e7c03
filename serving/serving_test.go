package serving

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/intelliml/dataset"
	"github.com/YuminosukeSato/intelliml/pkg/config"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/preprocessing"
	"github.com/YuminosukeSato/intelliml/registry"
	"github.com/YuminosukeSato/intelliml/trainer"
)

func shopFrame(n int) *dataset.Frame {
	age := make([]float64, n)
	city := make([]string, n)
	bought := make([]string, n)
	cities := []string{"paris", "lyon", "nice", "lille"}
	for i := 0; i < n; i++ {
		age[i] = float64(18 + (i*7)%50)
		city[i] = cities[i%4]
		bought[i] = "no"
		if age[i] > 40 {
			bought[i] = "yes"
		}
	}
	return dataset.MustFrame(
		dataset.NumericColumn("age", age),
		dataset.TextColumn("city", city),
		dataset.TextColumn("bought", bought),
	)
}

func trainedJob(t *testing.T, f *dataset.Frame, target string, models ...string) *registry.Job {
	t.Helper()
	tr := trainer.New(config.Default().Training)
	res, err := tr.TrainAll(context.Background(), f, target, trainer.Options{ModelTypes: models, CVFolds: 1})
	require.NoError(t, err)
	reg := registry.New()
	id, err := reg.Put(&registry.Job{Result: res})
	require.NoError(t, err)
	job, err := reg.Get(id)
	require.NoError(t, err)
	return job
}

func TestPredictDecodesLabel(t *testing.T) {
	job := trainedJob(t, shopFrame(80), "bought", "random_forest")
	s := New("")

	p, err := s.Predict(job, []any{60, "paris"})
	require.NoError(t, err)
	assert.Equal(t, "yes", p.Label)
	assert.Equal(t, 1, p.Index)
	require.Len(t, p.Probabilities, 2)
	assert.InDelta(t, 1, p.Probabilities["yes"]+p.Probabilities["no"], 1e-9)
	assert.Greater(t, p.Probabilities["yes"], 0.5)

	p, err = s.Predict(job, []any{20.0, "lyon"})
	require.NoError(t, err)
	assert.Equal(t, "no", p.Label)

	_, err = s.Predict(job, []any{nil, nil})
	assert.NoError(t, err)
}

func TestPredictRejectsBadRows(t *testing.T) {
	job := trainedJob(t, shopFrame(60), "bought", "logistic_regression")
	s := New("")

	_, err := s.Predict(job, []any{30})
	var derr *errors.DimensionError
	assert.True(t, errors.As(err, &derr))

	_, err = s.Predict(job, []any{30, "berlin"})
	var data *errors.DataError
	require.True(t, errors.As(err, &data))
	assert.Equal(t, "city", data.Column)
	assert.Contains(t, data.Available, "paris")
}

func TestPredictRegression(t *testing.T) {
	job := trainedJob(t, shopFrame(60), "age", "linear_regression")
	p, err := New("").Predict(job, []any{"paris", "yes"})
	require.NoError(t, err)
	assert.Equal(t, -1, p.Index)
	assert.Nil(t, p.Probabilities)
	assert.IsType(t, 0.0, p.Label)
}

func TestPredictBatchMissingColumn(t *testing.T) {
	job := trainedJob(t, shopFrame(80), "bought", "decision_tree")
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(nil)

	batch := dataset.MustFrame(dataset.TextColumn("city", []string{"paris", "berlin", ""}))
	for _, strategy := range []preprocessing.ImputeStrategy{"", preprocessing.ImputeTraining, preprocessing.ImputeBatch} {
		res, err := New(preprocessing.ImputeTraining).PredictBatch(job, batch, strategy)
		require.NoError(t, err)
		assert.Equal(t, []string{"age"}, res.Missing)
		assert.Equal(t, 3, res.Frame.NumRows())
		pred, ok := res.Frame.Column(PredictionColumn)
		require.True(t, ok)
		assert.Equal(t, dataset.Text, pred.Kind)
		for i := 0; i < 3; i++ {
			assert.Contains(t, []string{"yes", "no"}, pred.Value(i))
		}
		conf, ok := res.Frame.Column(ConfidenceColumn)
		require.True(t, ok)
		for i := 0; i < 3; i++ {
			assert.GreaterOrEqual(t, conf.Float(i), 0.5)
		}
	}
	require.NotEmpty(t, warned)
	var mfw *errors.MissingFeatureWarning
	assert.True(t, errors.As(warned[0], &mfw))
}

func TestPredictBatchMatchesPredict(t *testing.T) {
	f := shopFrame(80)
	job := trainedJob(t, f, "bought", "logistic_regression")
	s := New("")
	res, err := s.PredictBatch(job, f.Head(10), "")
	require.NoError(t, err)
	pred, _ := res.Frame.Column(PredictionColumn)
	for i := 0; i < 10; i++ {
		p, err := s.Predict(job, f.Row(i, job.Result.FeatureNames))
		require.NoError(t, err)
		assert.Equal(t, p.Label, pred.Value(i))
	}
}

func TestExportRoundTrip(t *testing.T) {
	job := trainedJob(t, shopFrame(80), "bought", "xgboost")
	s := New("")
	art, err := s.Export(job)
	require.NoError(t, err)
	assert.Contains(t, art.Filename, "xgboost_")
	assert.NotEmpty(t, art.Blob)

	var m Manifest
	require.NoError(t, yaml.Unmarshal(art.Manifest, &m))
	assert.Equal(t, "xgboost", m.ModelID)
	assert.Equal(t, "boosting", m.Family)
	assert.Equal(t, []string{"age", "city"}, m.Features)
	assert.Equal(t, []string{"no", "yes"}, m.Classes)
	assert.Equal(t, BundleFormat, m.Format)

	b, err := LoadBundle(bytes.NewReader(art.Blob))
	require.NoError(t, err)
	assert.Equal(t, job.Result.FeatureNames, b.FeatureNames)
	for _, row := range [][]any{{25, "nice"}, {55, "lille"}, {nil, "paris"}} {
		want, err := s.Predict(job, row)
		require.NoError(t, err)
		got, err := b.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, want.Label, got.Label)
		assert.InDeltaMapValues(t, want.Probabilities, got.Probabilities, 1e-12)
	}
}

func TestLoadedBundleConcurrentPredict(t *testing.T) {
	job := trainedJob(t, shopFrame(80), "bought", "logistic_regression")
	s := New("")
	art, err := s.Export(job)
	require.NoError(t, err)
	b, err := LoadBundle(bytes.NewReader(art.Blob))
	require.NoError(t, err)

	want, err := s.Predict(job, []any{30, "nice"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	labels := make([]any, 16)
	errs := make([]error, 16)
	for i := range labels {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := b.Predict([]any{30, "nice"})
			errs[i] = err
			if err == nil {
				labels[i] = p.Label
			}
		}(i)
	}
	wg.Wait()
	for i := range labels {
		require.NoError(t, errs[i])
		assert.Equal(t, want.Label, labels[i])
	}
}

func TestExportWithoutModel(t *testing.T) {
	_, err := New("").Export(&registry.Job{ID: "x"})
	var serr *errors.StateError
	require.True(t, errors.As(err, &serr))
	assert.True(t, errors.Is(err, errors.ErrNoTrainedModel))

	_, err = LoadBundle(bytes.NewReader([]byte("not xz")))
	assert.Error(t, err)
}
