package preprocessing

import (
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/dataset"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// ImputeStrategy selects which means fill missing values at batch time.
type ImputeStrategy string

const (
	// ImputeTraining fills with the training-split means.
	ImputeTraining ImputeStrategy = "training"
	// ImputeBatch fills with the batch's own column means, falling back to
	// the training mean for columns that are entirely missing.
	ImputeBatch ImputeStrategy = "batch"
)

// ParseImputeStrategy maps a config value to a strategy; empty means training.
func ParseImputeStrategy(s string) (ImputeStrategy, error) {
	switch ImputeStrategy(s) {
	case "", ImputeTraining:
		return ImputeTraining, nil
	case ImputeBatch:
		return ImputeBatch, nil
	}
	return "", errors.NewValidationError("batch_impute", "must be training or batch", s)
}

// State is every fitted transform needed to replay training preprocessing on
// new rows. It is gob-encodable and travels inside exported bundles.
type State struct {
	Target        string
	Task          Task
	FeatureNames  []string
	FeatureKinds  []dataset.Kind
	Encoders      map[string]*LabelEncoder
	TargetEncoder *LabelEncoder
	Imputer       *MeanImputer
	Scaler        *StandardScaler
}

// Classes returns the target class labels in code order; nil for regression.
func (s *State) Classes() []string {
	if s.TargetEncoder == nil {
		return nil
	}
	return s.TargetEncoder.Classes
}

// DecodeLabel maps a class code back to the original target value.
func (s *State) DecodeLabel(code int) (any, error) {
	if s.TargetEncoder == nil {
		return nil, errors.NewValueError("State.DecodeLabel", "regression target has no labels")
	}
	return s.TargetEncoder.Decode(code)
}

func (s *State) requireFitted(method string) error {
	if s.Imputer == nil || s.Scaler == nil {
		return errors.NewNotFittedError("preprocessing.State", method)
	}
	return nil
}

// encodeCell converts one raw value of feature j to its numeric encoding.
// Missing values and text the encoder has never seen become NaN.
func (s *State) encodeCell(j int, v any) float64 {
	if v == nil {
		return math.NaN()
	}
	if s.FeatureKinds[j] == dataset.Text {
		enc := s.Encoders[s.FeatureNames[j]]
		if str, ok := v.(string); ok && str == "" {
			return math.NaN()
		}
		code, err := enc.Encode(v)
		if err != nil {
			return math.NaN()
		}
		return float64(code)
	}
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		if x.IsZero() {
			return math.NaN()
		}
		return float64(x.Unix())
	case string:
		return parseCell(x)
	}
	return math.NaN()
}

func parseCell(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	for _, layout := range dataset.DatetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.Unix())
		}
	}
	return math.NaN()
}

// TransformRow encodes, imputes and scales one row given in FeatureNames
// order. Nil means missing and is filled with the training mean; a text value
// outside the training vocabulary is a DataError.
func (s *State) TransformRow(row []any) ([]float64, error) {
	const op = "State.TransformRow"
	if err := s.requireFitted("TransformRow"); err != nil {
		return nil, err
	}
	if len(row) != len(s.FeatureNames) {
		return nil, errors.NewDimensionError(op, len(s.FeatureNames), len(row), 1)
	}
	out := make([]float64, len(row))
	for j, v := range row {
		if s.FeatureKinds[j] == dataset.Text && v != nil {
			if str, ok := v.(string); !ok || str != "" {
				enc := s.Encoders[s.FeatureNames[j]]
				code, err := enc.Encode(v)
				if err != nil {
					return nil, errors.NewColumnError(op, "unseen category", s.FeatureNames[j], enc.Classes)
				}
				out[j] = float64(code)
				continue
			}
		}
		out[j] = s.encodeCell(j, v)
		if math.IsNaN(out[j]) {
			if v != nil && s.FeatureKinds[j] == dataset.Numeric {
				if str, ok := v.(string); !ok || str != "" {
					return nil, errors.NewColumnError(op, "value is not numeric", s.FeatureNames[j], nil)
				}
			}
			out[j] = s.Imputer.Means[j]
		}
	}
	if err := s.Scaler.TransformRow(out, out); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return out, nil
}

// TransformFrame encodes, imputes and scales a batch. Expected columns absent
// from f are reported in missing and filled entirely by imputation; extra
// columns are ignored. Unseen categories are treated as missing.
func (s *State) TransformFrame(f *dataset.Frame, strategy ImputeStrategy) (X *mat.Dense, missing []string, err error) {
	const op = "State.TransformFrame"
	if err := s.requireFitted("TransformFrame"); err != nil {
		return nil, nil, err
	}
	if f == nil || f.NumRows() == 0 {
		return nil, nil, errors.NewDataError(op, "batch is empty")
	}
	n, p := f.NumRows(), len(s.FeatureNames)
	X = mat.NewDense(n, p, nil)
	for j, name := range s.FeatureNames {
		col, ok := f.Column(name)
		if !ok {
			missing = append(missing, name)
		}
		for i := 0; i < n; i++ {
			v := math.NaN()
			if ok {
				v = s.encodeCell(j, col.Value(i))
			}
			X.Set(i, j, v)
		}
	}

	fill := s.Imputer.Means
	if strategy == ImputeBatch {
		means, present := ColumnMeans(X)
		fill = make([]float64, p)
		for j := range fill {
			if present[j] {
				fill[j] = means[j]
			} else {
				fill[j] = s.Imputer.Means[j]
			}
		}
	}
	X.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return fill[j]
		}
		return v
	}, X)

	scaled, err := s.Scaler.Transform(X)
	if err != nil {
		return nil, nil, errors.Wrap(err, op)
	}
	return mat.DenseCopyOf(scaled), missing, nil
}
