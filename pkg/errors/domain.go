package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Sentinel errors of the AutoML core. Typed errors below wrap them so callers
// can branch with Is.
var (
	// ErrNotFound is wrapped by StateError when a job id is unknown.
	ErrNotFound = New("not found")

	// ErrNoDataset is returned when no dataset has been loaded.
	ErrNoDataset = New("no dataset loaded")

	// ErrNoTrainedModel is returned when a job or adapter holds no fitted estimator.
	ErrNoTrainedModel = New("no trained model")

	// ErrAllCandidatesFailed is wrapped by TrainingError when every candidate failed.
	ErrAllCandidatesFailed = New("no models were successfully trained")

	// ErrTrainingTimeout is wrapped by TrainingError when the run exceeds its budget.
	ErrTrainingTimeout = New("training time limit exceeded")
)

// DataError reports malformed or missing caller input: an absent target column,
// an empty dataset, or an unsupported file shape.
type DataError struct {
	Op        string
	Reason    string
	Column    string
	Available []string
}

func (e *DataError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "intelliml: %s: %s", e.Op, e.Reason)
	if e.Column != "" {
		fmt.Fprintf(&b, " (column %q)", e.Column)
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, "; available columns: %s", strings.Join(e.Available, ", "))
	}
	return b.String()
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *DataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("column", e.Column).
		Strs("available", e.Available).
		Str("type", "DataError")
}

// NewDataError creates a DataError with a stack trace.
func NewDataError(op, reason string) error {
	return errors.WithStack(&DataError{Op: op, Reason: reason})
}

// NewColumnError creates a DataError about a column, listing the valid names so
// the caller can self-correct.
func NewColumnError(op, reason, column string, available []string) error {
	return errors.WithStack(&DataError{Op: op, Reason: reason, Column: column, Available: available})
}

// StateError reports an operation against a job or adapter that does not exist
// or holds no trained estimator.
type StateError struct {
	Op       string
	Resource string
	ID       string
	Err      error
}

func (e *StateError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("intelliml: %s: %s %q: %v", e.Op, e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("intelliml: %s: %s: %v", e.Op, e.Resource, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the state error is a missing resource.
func (e *StateError) IsNotFound() bool {
	return errors.Is(e.Err, ErrNotFound)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *StateError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("resource", e.Resource).
		Str("id", e.ID).
		Bool("not_found", e.IsNotFound()).
		Str("type", "StateError")
}

// NewNotFoundError creates a StateError wrapping ErrNotFound.
func NewNotFoundError(op, resource, id string) error {
	return errors.WithStack(&StateError{Op: op, Resource: resource, ID: id, Err: ErrNotFound})
}

// NewStateError creates a StateError wrapping cause.
func NewStateError(op, resource, id string, cause error) error {
	return errors.WithStack(&StateError{Op: op, Resource: resource, ID: id, Err: cause})
}

// IsNotFound reports whether err is, or wraps, a not-found state error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// CandidateFailure describes one candidate dropped from a training run.
type CandidateFailure struct {
	Model string
	Err   error
}

// TrainingError reports a training run that produced no usable result.
type TrainingError struct {
	Op       string
	Err      error
	Failures []CandidateFailure
}

func (e *TrainingError) Error() string {
	msg := fmt.Sprintf("intelliml: %s: %v", e.Op, e.Err)
	if len(e.Failures) > 0 {
		parts := make([]string, 0, len(e.Failures))
		for _, f := range e.Failures {
			parts = append(parts, fmt.Sprintf("%s: %v", f.Model, f.Err))
		}
		msg += " [" + strings.Join(parts, "; ") + "]"
	}
	return msg
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *TrainingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("failures", len(e.Failures)).
		Str("type", "TrainingError")
}

// NewTrainingError creates a TrainingError wrapping cause.
func NewTrainingError(op string, cause error, failures []CandidateFailure) error {
	return errors.WithStack(&TrainingError{Op: op, Err: cause, Failures: failures})
}

// ExplanationError reports that both the attribution path and the native
// importance fallback failed.
type ExplanationError struct {
	Op       string
	Primary  error
	Fallback error
}

func (e *ExplanationError) Error() string {
	return fmt.Sprintf("intelliml: %s: attribution failed (%v); fallback failed (%v)", e.Op, e.Primary, e.Fallback)
}

func (e *ExplanationError) Unwrap() error {
	return e.Primary
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *ExplanationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		AnErr("primary", e.Primary).
		AnErr("fallback", e.Fallback).
		Str("type", "ExplanationError")
}

// NewExplanationError creates an ExplanationError with a stack trace.
func NewExplanationError(op string, primary, fallback error) error {
	return errors.WithStack(&ExplanationError{Op: op, Primary: primary, Fallback: fallback})
}
