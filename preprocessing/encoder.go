package preprocessing

import (
	"math"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// LabelEncoder maps distinct labels to contiguous integers 0..k-1 in sorted
// order. Text labels sort lexically; numeric labels sort numerically and
// decode back to float64.
type LabelEncoder struct {
	Classes []string
	Numeric bool
	Values  []float64 // numeric classes, aligned with Classes
}

// FitStrings fits the encoder on text values; "" is missing and ignored.
func (e *LabelEncoder) FitStrings(values []string) error {
	seen := make(map[string]bool)
	for _, v := range values {
		if v != "" {
			seen[v] = true
		}
	}
	if len(seen) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Classes = make([]string, 0, len(seen))
	for v := range seen {
		e.Classes = append(e.Classes, v)
	}
	sort.Strings(e.Classes)
	e.Numeric = false
	e.Values = nil
	return nil
}

// FitFloats fits the encoder on numeric values; NaN is missing and ignored.
func (e *LabelEncoder) FitFloats(values []float64) error {
	seen := make(map[float64]bool)
	for _, v := range values {
		if !math.IsNaN(v) {
			seen[v] = true
		}
	}
	if len(seen) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Values = make([]float64, 0, len(seen))
	for v := range seen {
		e.Values = append(e.Values, v)
	}
	sort.Float64s(e.Values)
	e.Classes = make([]string, len(e.Values))
	for i, v := range e.Values {
		e.Classes[i] = formatLabel(v)
	}
	e.Numeric = true
	return nil
}

func formatLabel(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// NumClasses returns the number of fitted classes.
func (e *LabelEncoder) NumClasses() int {
	return len(e.Classes)
}

// find is read-only so a fitted or decoded encoder is safe for concurrent use.
func (e *LabelEncoder) find(key string) (int, bool) {
	if e.Numeric {
		f, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return 0, false
		}
		i := sort.SearchFloat64s(e.Values, f)
		return i, i < len(e.Values) && e.Values[i] == f
	}
	i := sort.SearchStrings(e.Classes, key)
	return i, i < len(e.Classes) && e.Classes[i] == key
}

// Encode maps one raw value (string, float64, int or bool) to its code.
// Unknown values return a DataError.
func (e *LabelEncoder) Encode(v any) (int, error) {
	if len(e.Classes) == 0 {
		return 0, errors.NewNotFittedError("LabelEncoder", "Encode")
	}
	key, ok := labelKey(v, e.Numeric)
	if ok {
		if code, found := e.find(key); found {
			return code, nil
		}
	}
	return 0, errors.NewColumnError("LabelEncoder.Encode", "unseen label "+strconv.Quote(key), "", e.Classes)
}

// Decode maps a code back to the original label: float64 for numeric
// encoders, string otherwise.
func (e *LabelEncoder) Decode(code int) (any, error) {
	if code < 0 || code >= len(e.Classes) {
		return nil, errors.NewValueError("LabelEncoder.Decode", "code "+strconv.Itoa(code)+" out of range")
	}
	if e.Numeric {
		return e.Values[code], nil
	}
	return e.Classes[code], nil
}

func labelKey(v any, numeric bool) (string, bool) {
	switch x := v.(type) {
	case string:
		if numeric {
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return x, true
			}
			return formatLabel(f), true
		}
		return x, true
	case float64:
		return formatLabel(x), true
	case float32:
		return formatLabel(float64(x)), true
	case int:
		return formatLabel(float64(x)), true
	case int64:
		return formatLabel(float64(x)), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
