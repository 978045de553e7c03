package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// ParamFloat converts a hyperparameter value to float64. Integers are accepted.
func ParamFloat(key string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(key, fmt.Sprintf("expected a number, got %T", v), v)
}

// ParamInt converts a hyperparameter value to int. Whole floats are accepted
// since YAML and JSON decode numbers as float64.
func ParamInt(key string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x == float64(int(x)) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(key, fmt.Sprintf("expected an integer, got %v", v), v)
}

// ParamBool converts a hyperparameter value to bool.
func ParamBool(key string, v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, errors.NewValidationError(key, fmt.Sprintf("expected a bool, got %T", v), v)
}

// ParamString converts a hyperparameter value to string.
func ParamString(key string, v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.NewValidationError(key, fmt.Sprintf("expected a string, got %T", v), v)
}

// UnknownParam is returned by SetParams for a key the model does not have.
func UnknownParam(model, key string) error {
	return errors.NewValidationError(key, "unknown parameter for "+model, nil)
}

// CheckFitInput validates a training pair and returns its shape.
func CheckFitInput(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	if X == nil || y == nil {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	return nSamples, nFeatures, nil
}

// CheckPredictInput validates the feature count of a prediction matrix.
func CheckPredictInput(op string, X mat.Matrix, nFeatures int) (nSamples int, err error) {
	if X == nil {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	if r == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if c != nFeatures {
		return 0, errors.NewDimensionError(op, nFeatures, c, 1)
	}
	return r, nil
}

// Column copies column j of y (usually the only one) into a slice.
func Column(y mat.Matrix, j int) []float64 {
	r, _ := y.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = y.At(i, j)
	}
	return out
}

// ClassCodes reads a target column of encoded class labels and returns the
// sorted distinct codes. Labels must be non-negative integers.
func ClassCodes(op string, y mat.Matrix) ([]int, []int, error) {
	vals := Column(y, 0)
	codes := make([]int, len(vals))
	maxCode := -1
	for i, v := range vals {
		c := int(v)
		if float64(c) != v || c < 0 {
			return nil, nil, errors.NewValueError(op, fmt.Sprintf("class label %v is not a non-negative integer", v))
		}
		codes[i] = c
		if c > maxCode {
			maxCode = c
		}
	}
	seen := make([]bool, maxCode+1)
	for _, c := range codes {
		seen[c] = true
	}
	classes := make([]int, 0, len(seen))
	for c, ok := range seen {
		if ok {
			classes = append(classes, c)
		}
	}
	return codes, classes, nil
}

// ClassIndices maps each label of y to the position of its code in the
// sorted class list, so a model can index per-class arrays directly.
func ClassIndices(op string, y mat.Matrix) ([]float64, []int, error) {
	codes, classes, err := ClassCodes(op, y)
	if err != nil {
		return nil, nil, err
	}
	col := make(map[int]int, len(classes))
	for j, c := range classes {
		col[c] = j
	}
	idx := make([]float64, len(codes))
	for i, c := range codes {
		idx[i] = float64(col[c])
	}
	return idx, classes, nil
}
