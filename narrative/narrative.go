// Package narrative turns a training result into a short plain-language
// summary. Generation is best effort: Safe never lets a failure reach the
// caller.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
	"github.com/YuminosukeSato/intelliml/trainer"
)

// Placeholder is returned by Safe when generation fails.
const Placeholder = "Model training completed. Unable to generate explanation at this time."

// Score is one candidate's line in a Summary.
type Score struct {
	Model string
	Score float64
}

// Summary is the structured input of a Generator.
type Summary struct {
	Target      string
	Task        string
	BestModel   string
	MetricName  string
	BestScore   float64
	NumFeatures int
	NumSamples  int
	Candidates  []Score
	Failures    int
}

// FromResult builds the Summary of a training result.
func FromResult(res *trainer.Result) Summary {
	s := Summary{
		Target:      res.Target,
		Task:        string(res.Task),
		NumFeatures: res.NumFeatures,
		NumSamples:  res.NumSamples,
		Failures:    len(res.Failures),
	}
	if res.Best != nil {
		s.BestModel = res.Best.ModelName
		s.MetricName = res.Best.MetricName
		s.BestScore = res.Best.Score
	}
	for _, c := range res.Results {
		s.Candidates = append(s.Candidates, Score{Model: c.ModelName, Score: c.Score})
	}
	return s
}

// Generator writes the narrative for a Summary.
type Generator interface {
	Summarize(ctx context.Context, s Summary) (string, error)
}

// TemplateGenerator produces deterministic text from a fixed template.
type TemplateGenerator struct{}

// Summarize implements Generator.
func (TemplateGenerator) Summarize(ctx context.Context, s Summary) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.BestModel == "" {
		return "", errors.NewValueError("narrative.Summarize", "summary has no best model")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s performed best at predicting %q with a %s of %.3f. ",
		s.BestModel, s.Target, s.MetricName, s.BestScore)
	fmt.Fprintf(&b, "This is a %s problem with %d features and %d samples; %d models were compared",
		s.Task, s.NumFeatures, s.NumSamples, len(s.Candidates))
	if s.Failures > 0 {
		fmt.Fprintf(&b, " and %d could not be trained", s.Failures)
	}
	b.WriteString(". ")
	if len(s.Candidates) > 1 {
		runner := s.Candidates[1]
		fmt.Fprintf(&b, "The runner-up was %s at %.3f. ", runner.Model, runner.Score)
	}
	b.WriteString(quality(s.MetricName, s.BestScore))
	return b.String(), nil
}

func quality(metric string, score float64) string {
	switch {
	case score >= 0.9:
		return fmt.Sprintf("A %s this high suggests the model is ready to use.", metric)
	case score >= 0.7:
		return "The result is solid, though more data or feature work could improve it."
	default:
		return "The score is modest; consider cleaning the data or adding informative features."
	}
}

type safeGenerator struct {
	gen    Generator
	logger log.Logger
}

// Safe wraps gen so that an error, a panic or an empty result yields
// Placeholder instead.
func Safe(gen Generator) Generator {
	return &safeGenerator{gen: gen, logger: log.GetLoggerWithName("narrative")}
}

// Summarize implements Generator and never returns an error.
func (s *safeGenerator) Summarize(ctx context.Context, sum Summary) (string, error) {
	var text string
	err := errors.SafeExecute("narrative.Summarize", func() error {
		var err error
		text, err = s.gen.Summarize(ctx, sum)
		return err
	})
	if err != nil || strings.TrimSpace(text) == "" {
		s.logger.Warn("narrative generation failed, using placeholder", log.ErrAttr(err))
		return Placeholder, nil
	}
	return text, nil
}
