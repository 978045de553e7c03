package model_selection

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/intelliml/core/model"
	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
)

// Distribution draws one hyperparameter value.
type Distribution interface {
	Sample(src rand.Source) interface{}
}

// Choice samples uniformly from a fixed list.
type Choice []interface{}

// Sample implements Distribution.
func (c Choice) Sample(src rand.Source) interface{} {
	return c[rand.New(src).IntN(len(c))]
}

// Uniform samples a float in [Low, High).
type Uniform struct{ Low, High float64 }

// Sample implements Distribution.
func (u Uniform) Sample(src rand.Source) interface{} {
	return distuv.Uniform{Min: u.Low, Max: u.High, Src: src}.Rand()
}

// LogUniform samples a float whose logarithm is uniform in [log Low, log High).
type LogUniform struct{ Low, High float64 }

// Sample implements Distribution.
func (u LogUniform) Sample(src rand.Source) interface{} {
	return math.Exp(distuv.Uniform{Min: math.Log(u.Low), Max: math.Log(u.High), Src: src}.Rand())
}

// IntRange samples an integer in [Low, High].
type IntRange struct{ Low, High int }

// Sample implements Distribution.
func (r IntRange) Sample(src rand.Source) interface{} {
	return r.Low + rand.New(src).IntN(r.High-r.Low+1)
}

// TunableFactory returns a fresh estimator whose parameters can be set.
type TunableFactory func() (model.Tunable, error)

// Candidate is one evaluated parameter setting.
type Candidate struct {
	Params map[string]interface{}
	Mean   float64
	Std    float64
	Err    error
}

// RandomizedSearchCV evaluates NIter random parameter settings by cross
// validation and refits the best one on all of the data.
type RandomizedSearchCV struct {
	Factory       TunableFactory
	Distributions map[string]Distribution
	NIter         int
	Seed          uint64
	CV            Splitter
	Scoring       Scorer

	Candidates    []Candidate
	BestParams    map[string]interface{}
	BestScore     float64
	BestStd       float64
	BestEstimator model.Tunable

	logger log.Logger
}

// NewRandomizedSearchCV creates a search.
func NewRandomizedSearchCV(factory TunableFactory, dists map[string]Distribution, nIter int, cv Splitter, scoring Scorer, seed uint64) *RandomizedSearchCV {
	return &RandomizedSearchCV{
		Factory:       factory,
		Distributions: dists,
		NIter:         nIter,
		Seed:          seed,
		CV:            cv,
		Scoring:       scoring,
		logger:        log.GetLoggerWithName("model_selection"),
	}
}

// sampleParams draws one setting; keys are visited in sorted order so a
// seed always yields the same sequence.
func (s *RandomizedSearchCV) sampleParams(src rand.Source) map[string]interface{} {
	keys := make([]string, 0, len(s.Distributions))
	for k := range s.Distributions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		params[k] = s.Distributions[k].Sample(src)
	}
	return params
}

// Fit runs the search. A setting that fails to apply or to cross-validate is
// recorded and skipped; the search fails only when every setting fails.
func (s *RandomizedSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	const op = "RandomizedSearchCV.Fit"
	if s.NIter < 1 {
		return errors.NewValidationError("n_iter", "must be >= 1", s.NIter)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("model_selection")
	}
	src := rand.NewPCG(s.Seed, s.Seed^0x5851f42d4c957f2d)
	s.Candidates = s.Candidates[:0]
	best := -1
	for i := 0; i < s.NIter; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		params := s.sampleParams(src)
		factory := func() (model.Estimator, error) {
			est, err := s.Factory()
			if err != nil {
				return nil, err
			}
			return est, est.SetParams(params)
		}
		res, err := CrossValScore(ctx, factory, X, y, s.CV, s.Scoring)
		c := Candidate{Params: params, Err: err}
		if err != nil {
			s.logger.Debug("search candidate failed", log.OperationKey, op, "params", params, log.ErrAttr(err))
		} else {
			c.Mean, c.Std = res.Mean, res.Std
			if best < 0 || c.Mean > s.Candidates[best].Mean {
				best = len(s.Candidates)
			}
		}
		s.Candidates = append(s.Candidates, c)
	}
	if best < 0 {
		return errors.NewModelError(op, "every parameter setting failed", s.Candidates[0].Err)
	}

	win := s.Candidates[best]
	est, err := s.Factory()
	if err != nil {
		return err
	}
	if err := est.SetParams(win.Params); err != nil {
		return err
	}
	if err := est.Fit(X, y); err != nil {
		return errors.Wrap(err, op)
	}
	s.BestParams = win.Params
	s.BestScore = win.Mean
	s.BestStd = win.Std
	s.BestEstimator = est
	s.logger.Debug("search finished", log.OperationKey, op, log.CVMeanKey, win.Mean, log.CVStdKey, win.Std)
	return nil
}
