package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

var (
	warnMu      sync.Mutex
	warnHandler = func(w error) { log.Printf("intelliml-warning: %v\n", w) }
	// set by pkg/log; a func avoids the import cycle
	zerologWarn func(warning error)
)

// SetWarningHandler replaces the fallback handler used when no zerolog
// function is installed.
func SetWarningHandler(handler func(w error)) {
	warnMu.Lock()
	defer warnMu.Unlock()
	warnHandler = handler
}

// SetZerologWarnFunc installs the structured warning sink. nil restores the
// fallback handler.
func SetZerologWarnFunc(fn func(warning error)) {
	warnMu.Lock()
	defer warnMu.Unlock()
	zerologWarn = fn
}

// Warn reports a non-fatal condition.
func Warn(w error) {
	warnMu.Lock()
	defer warnMu.Unlock()
	switch {
	case zerologWarn != nil:
		zerologWarn(w)
	case warnHandler != nil:
		warnHandler(w)
	}
}

// ConvergenceWarning is raised when an iterative solver stops at its
// iteration cap.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	msg := w.Message
	if msg == "" {
		msg = "consider increasing max_iter"
	}
	return fmt.Sprintf("%s did not converge after %d iterations: %s", w.Algorithm, w.Iterations, msg)
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UndefinedMetricWarning is raised when a metric is ill-defined for the
// given labels and Result is returned in its place.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("%s is ill-defined (%s); using %g", w.Metric, w.Condition, w.Result)
}

func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// MissingFeatureWarning is raised when a prediction batch lacks columns the
// model was trained on. The columns are imputed per Strategy.
type MissingFeatureWarning struct {
	Op       string
	Missing  []string
	Strategy string
}

func (w *MissingFeatureWarning) Error() string {
	return fmt.Sprintf("%s: batch is missing %d feature(s) %v; imputed with %s means", w.Op, len(w.Missing), w.Missing, w.Strategy)
}

func (w *MissingFeatureWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Op).
		Strs("missing", w.Missing).
		Str("strategy", w.Strategy).
		Str("type", "MissingFeatureWarning")
}

func NewMissingFeatureWarning(op string, missing []string, strategy string) *MissingFeatureWarning {
	return &MissingFeatureWarning{Op: op, Missing: missing, Strategy: strategy}
}
