package errors

import "math"

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// CheckNumericalStability returns a NumericalInstabilityError when any value
// is NaN or Inf.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if !finite(v) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar is CheckNumericalStability for one value.
func CheckScalar(operation string, value float64, iteration int) error {
	if !finite(value) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// SafeDivide returns 0 for a denominator within 1e-10 of zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

func ClipValue(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}

// Sigmoid is the logistic function, evaluated without overflow for large |z|.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Softmax writes the softmax of scores into dst (allocated when nil) and
// returns it. dst may alias scores.
func Softmax(dst, scores []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(scores))
	}
	if len(scores) == 0 {
		return dst
	}
	hi := scores[0]
	for _, s := range scores[1:] {
		hi = math.Max(hi, s)
	}
	var sum float64
	for i, s := range scores {
		dst[i] = math.Exp(s - hi)
		sum += dst[i]
	}
	for i := range dst[:len(scores)] {
		dst[i] /= sum
	}
	return dst
}
