package linear_model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// OvRState is the fitted state of a one-vs-rest linear classifier. Binary
// problems keep a single row scoring the second class.
type OvRState struct {
	Coef       [][]float64
	Intercepts []float64
	ClassCodes []int
	NFeatures  int
	NIter      []int
}

// Classes returns the encoded class labels seen during fitting.
func (s *OvRState) Classes() []int {
	return append([]int(nil), s.ClassCodes...)
}

// Coefficients returns one row of weights per scored class.
func (s *OvRState) Coefficients() *mat.Dense {
	if len(s.Coef) == 0 {
		return nil
	}
	out := mat.NewDense(len(s.Coef), s.NFeatures, nil)
	for i, row := range s.Coef {
		out.SetRow(i, row)
	}
	return out
}

// binaryLoss returns the derivative of the per-sample loss with respect to
// the margin score for target t in {0, 1}.
type binaryLoss func(score, t float64) float64

func logisticGrad(score, t float64) float64 {
	return errors.Sigmoid(score) - t
}

// hingeGrad is a subgradient of max(0, 1 − s·z) with s = 2t − 1.
func hingeGrad(score, t float64) float64 {
	s := 2*t - 1
	if s*score < 1 {
		return -s
	}
	return 0
}

type gdConfig struct {
	lambda       float64
	fitIntercept bool
	maxIter      int
	tol          float64
	lr0          float64
	decay        func(lr0 float64, iter int) float64
	quiet        bool
}

// fitBinaryGD runs full-batch gradient descent on the mean loss plus
// lambda/2·‖w‖². It returns the weights, intercept and iterations used.
func fitBinaryGD(X *mat.Dense, target []float64, loss binaryLoss, cfg gdConfig) ([]float64, float64, int, bool) {
	n, p := X.Dims()
	w := make([]float64, p)
	b := 0.0
	scores := make([]float64, n)
	resid := make([]float64, n)
	grad := make([]float64, p)
	row := make([]float64, p)
	nf := float64(n)

	for iter := 1; iter <= cfg.maxIter; iter++ {
		for i := 0; i < n; i++ {
			mat.Row(row, i, X)
			scores[i] = floats.Dot(row, w) + b
			resid[i] = loss(scores[i], target[i])
		}
		for j := range grad {
			grad[j] = 0
		}
		gb := 0.0
		for i := 0; i < n; i++ {
			if resid[i] == 0 {
				continue
			}
			mat.Row(row, i, X)
			floats.AddScaled(grad, resid[i], row)
			gb += resid[i]
		}
		floats.Scale(1/nf, grad)
		gb /= nf
		floats.AddScaled(grad, cfg.lambda, w)

		step := cfg.decay(cfg.lr0, iter)
		floats.AddScaled(w, -step, grad)
		if cfg.fitIntercept {
			b -= step * gb
		}

		maxGrad := floats.Norm(grad, math.Inf(1))
		if cfg.fitIntercept {
			maxGrad = math.Max(maxGrad, math.Abs(gb))
		}
		if maxGrad < cfg.tol {
			return w, b, iter, true
		}
	}
	return w, b, cfg.maxIter, false
}

// fitOvR fits one binary problem per class (a single one for two classes).
func (s *OvRState) fitOvR(op string, X, y mat.Matrix, loss binaryLoss, cfg gdConfig) error {
	n, p, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	codes, classes, err := model.ClassCodes(op, y)
	if err != nil {
		return err
	}
	Xd := mat.DenseCopyOf(X)
	s.ClassCodes = classes
	s.NFeatures = p

	var positives []int
	switch len(classes) {
	case 1:
		s.Coef, s.Intercepts, s.NIter = nil, nil, nil
		return nil
	case 2:
		positives = classes[1:]
	default:
		positives = classes
	}
	s.Coef = make([][]float64, len(positives))
	s.Intercepts = make([]float64, len(positives))
	s.NIter = make([]int, len(positives))
	target := make([]float64, n)
	for k, pos := range positives {
		for i, c := range codes {
			target[i] = 0
			if c == pos {
				target[i] = 1
			}
		}
		w, b, iters, ok := fitBinaryGD(Xd, target, loss, cfg)
		if !ok && !cfg.quiet {
			errors.Warn(errors.NewConvergenceWarning(op, iters, "gradient descent did not reach tolerance"))
		}
		s.Coef[k], s.Intercepts[k], s.NIter[k] = w, b, iters
	}
	return nil
}

// decision returns the n×m matrix of raw margin scores.
func (s *OvRState) decision(op string, X mat.Matrix) (*mat.Dense, error) {
	n, err := model.CheckPredictInput(op, X, s.NFeatures)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(n, max(len(s.Coef), 1), nil)
	if len(s.Coef) == 0 {
		return out, nil
	}
	row := make([]float64, s.NFeatures)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		for k, w := range s.Coef {
			out.Set(i, k, floats.Dot(row, w)+s.Intercepts[k])
		}
	}
	return out, nil
}

// proba turns margin scores into class probabilities with the given link:
// binary uses [1−σ, σ]; multiclass normalises per-class σ as in sklearn's OvR.
func (s *OvRState) proba(scores *mat.Dense, link func(float64) float64) *mat.Dense {
	n, _ := scores.Dims()
	k := len(s.ClassCodes)
	out := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		switch k {
		case 1:
			out.Set(i, 0, 1)
		case 2:
			p1 := link(scores.At(i, 0))
			out.Set(i, 0, 1-p1)
			out.Set(i, 1, p1)
		default:
			sum := 0.0
			for c := 0; c < k; c++ {
				v := link(scores.At(i, c))
				out.Set(i, c, v)
				sum += v
			}
			for c := 0; c < k; c++ {
				out.Set(i, c, errors.SafeDivide(out.At(i, c), sum))
			}
		}
	}
	return out
}

// argmax maps probability rows to class codes.
func (s *OvRState) argmax(proba *mat.Dense) *mat.Dense {
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, float64(s.ClassCodes[floats.MaxIdx(proba.RawRowView(i))]))
	}
	return out
}
