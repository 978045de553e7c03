package model

import (
	"sync"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

// StateManager guards the fitted flag and training shape of a component that
// may be trained and queried from different goroutines. Family adapters hold
// one per adapter.
type StateManager struct {
	mu sync.RWMutex

	Fitted    bool
	NFeatures int
	NSamples  int
}

func NewStateManager() *StateManager { return &StateManager{} }

func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted records a completed fit on nSamples rows of nFeatures columns.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	s.Fitted, s.NFeatures, s.NSamples = true, nFeatures, nSamples
	s.mu.Unlock()
}

func (s *StateManager) Reset() {
	s.mu.Lock()
	s.Fitted, s.NFeatures, s.NSamples = false, 0, 0
	s.mu.Unlock()
}

// GetDimensions returns the training shape.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a NotFittedError naming name.method before any fit.
func (s *StateManager) RequireFitted(name, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(name, method)
	}
	return nil
}

// WithState runs fn under the read lock.
func (s *StateManager) WithState(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// WithStateMut runs fn under the write lock. fn must not call SetFitted or
// Reset.
func (s *StateManager) WithStateMut(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
