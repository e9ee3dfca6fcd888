// Package model provides the core abstractions shared by every estimator
// in airsift:
//
//   - StateManager: thread-safe fitted-state and dimension tracking,
//     composed into estimators instead of embedded
//   - Estimator interfaces: the contracts the selection, pipeline, and
//     reporting layers program against
//   - Model persistence: save and load trained estimators with encoding/gob
//
// Estimators keep a *StateManager field (exported, so gob round-trips it)
// and consult it at the top of every method that requires a trained model.
package model

import (
	"bytes"
	"encoding/gob"
	"sync"
)

// StateManager tracks whether an estimator has been fitted and the
// dimensions it was fitted with. All methods are safe for concurrent use.
type StateManager struct {
	mu        sync.RWMutex
	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether SetFitted has been called since the last Reset.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the estimator as trained. Called by estimator
// implementations at the end of a successful Fit.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset returns the estimator to its untrained state and clears dimensions.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// SetDimensions records the training-data shape for later validation.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// NFeatures returns the feature count recorded at fit time.
func (s *StateManager) NFeatures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures
}

// NSamples returns the sample count recorded at fit time.
func (s *StateManager) NSamples() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nSamples
}

// stateSnapshot is the gob wire form of StateManager. The mutex is not
// serialized; a decoded StateManager starts with a fresh lock.
type stateSnapshot struct {
	Fitted    bool
	NFeatures int
	NSamples  int
}

// GobEncode implements gob.GobEncoder.
func (s *StateManager) GobEncode() ([]byte, error) {
	s.mu.RLock()
	snap := stateSnapshot{Fitted: s.fitted, NFeatures: s.nFeatures, NSamples: s.nSamples}
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (s *StateManager) GobDecode(data []byte) error {
	var snap stateSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = snap.Fitted
	s.nFeatures = snap.NFeatures
	s.nSamples = snap.NSamples
	return nil
}
