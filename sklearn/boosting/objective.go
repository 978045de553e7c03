package boosting

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// objective supplies per-row first and second derivatives of the loss with
// respect to the raw scores. scores and grad/hess are laid out row-major with
// one entry per output.
type objective interface {
	outputs() int
	initScore(y []float64) []float64
	gradients(y, scores, grad, hess []float64)
}

// squaredError is the L2 regression loss 0.5·(f − y)².
type squaredError struct{}

func (squaredError) outputs() int { return 1 }

func (squaredError) initScore(y []float64) []float64 {
	return []float64{floats.Sum(y) / float64(len(y))}
}

func (squaredError) gradients(y, scores, grad, hess []float64) {
	for i, t := range y {
		grad[i] = scores[i] - t
		hess[i] = 1
	}
}

// binaryLogLoss models log-odds of class index 1.
type binaryLogLoss struct{}

func (binaryLogLoss) outputs() int { return 1 }

func (binaryLogLoss) initScore(y []float64) []float64 {
	p := errors.ClipValue(floats.Sum(y)/float64(len(y)), 1e-15, 1-1e-15)
	return []float64{math.Log(p / (1 - p))}
}

func (binaryLogLoss) gradients(y, scores, grad, hess []float64) {
	for i, t := range y {
		p := errors.Sigmoid(scores[i])
		grad[i] = p - t
		hess[i] = math.Max(p*(1-p), 1e-16)
	}
}

// softmaxLoss is multinomial log loss over k class indices.
type softmaxLoss struct{ k int }

func (s softmaxLoss) outputs() int { return s.k }

func (s softmaxLoss) initScore(y []float64) []float64 {
	prior := make([]float64, s.k)
	for _, t := range y {
		prior[int(t)]++
	}
	for j := range prior {
		prior[j] = math.Log(math.Max(prior[j]/float64(len(y)), 1e-15))
	}
	return prior
}

func (s softmaxLoss) gradients(y, scores, grad, hess []float64) {
	p := make([]float64, s.k)
	for i, t := range y {
		row := scores[i*s.k : (i+1)*s.k]
		errors.Softmax(p, row)
		for j, pj := range p {
			g := pj
			if j == int(t) {
				g--
			}
			grad[i*s.k+j] = g
			hess[i*s.k+j] = math.Max(pj*(1-pj), 1e-16)
		}
	}
}
