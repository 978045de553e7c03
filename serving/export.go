package serving

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/family"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
	"github.com/YuminosukeSato/intelliml/preprocessing"
	"github.com/YuminosukeSato/intelliml/registry"
)

// BundleFormat names the encoding of Artifact.Blob.
const BundleFormat = "gob+xz"

// Bundle is everything needed to serve a job's winning model offline.
type Bundle struct {
	ModelID      family.ModelID
	Family       family.Family
	DisplayName  string
	Task         preprocessing.Task
	Target       string
	FeatureNames []string
	State        *preprocessing.State
	Model        *family.Trained
}

// Predict serves one row exactly as Service.Predict would for the job the
// bundle was exported from.
func (b *Bundle) Predict(row []any) (*Prediction, error) {
	if b == nil || b.Model == nil || b.State == nil {
		return nil, errors.NewStateError("Bundle.Predict", "bundle", "", errors.ErrNoTrainedModel)
	}
	return predictRow(b.Model, b.State, row)
}

// Manifest describes a bundle in human-readable YAML.
type Manifest struct {
	JobID       string                 `yaml:"job_id"`
	ModelID     string                 `yaml:"model_id"`
	Family      string                 `yaml:"family"`
	DisplayName string                 `yaml:"display_name"`
	Task        string                 `yaml:"task"`
	Target      string                 `yaml:"target"`
	Features    []string               `yaml:"features"`
	Classes     []string               `yaml:"classes,omitempty"`
	Metric      string                 `yaml:"metric"`
	Score       float64                `yaml:"score"`
	CVMean      float64                `yaml:"cv_mean"`
	CVStd       float64                `yaml:"cv_std"`
	Params      map[string]interface{} `yaml:"params,omitempty"`
	Format      string                 `yaml:"format"`
	ExportedAt  time.Time              `yaml:"exported_at"`
}

// Artifact is an exported job: the compressed bundle and its manifest.
type Artifact struct {
	Blob     []byte
	Manifest []byte
	Filename string
}

// Export serialises the job's winning model and preprocessing state.
func (s *Service) Export(job *registry.Job) (*Artifact, error) {
	const op = "serving.Export"
	tr, st, err := jobModel(op, job)
	if err != nil {
		return nil, err
	}
	b := &Bundle{
		ModelID:      tr.ModelID,
		Family:       tr.Family,
		DisplayName:  tr.DisplayName,
		Task:         tr.Task,
		Target:       job.Target,
		FeatureNames: job.Result.FeatureNames,
		State:        st,
		Model:        tr,
	}

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := model.SaveModelToWriter(b, w); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, op)
	}

	best := job.Result.Best
	m := Manifest{
		JobID:       job.ID,
		ModelID:     string(tr.ModelID),
		Family:      tr.Family.String(),
		DisplayName: tr.DisplayName,
		Task:        string(tr.Task),
		Target:      job.Target,
		Features:    b.FeatureNames,
		Classes:     st.Classes(),
		Metric:      best.MetricName,
		Score:       best.Score,
		CVMean:      tr.CVMean,
		CVStd:       tr.CVStd,
		Params:      tr.Params,
		Format:      BundleFormat,
		ExportedAt:  time.Now().UTC(),
	}
	manifest, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	id := job.ID
	if len(id) > 8 {
		id = id[:8]
	}
	s.logger.Info("model exported", log.JobIDKey, job.ID, log.ModelIDKey, string(tr.ModelID), "bytes", buf.Len())
	return &Artifact{
		Blob:     buf.Bytes(),
		Manifest: manifest,
		Filename: fmt.Sprintf("%s_%s.gob.xz", tr.ModelID, id),
	}, nil
}

// LoadBundle decodes a blob written by Export.
func LoadBundle(r io.Reader) (*Bundle, error) {
	const op = "serving.LoadBundle"
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	var b Bundle
	if err := model.LoadModelFromReader(&b, xr); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &b, nil
}
