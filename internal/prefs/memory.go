package prefs

import (
	"context"
	"sync"
)

// MemoryStore keeps preferences in process memory. Used in tests and
// when no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]Preference
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]Preference)}
}

// Get returns the stored preference, or Defaults() if the user never
// saved one.
func (s *MemoryStore) Get(_ context.Context, userID string) (Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.prefs[userID]
	if !ok {
		return Defaults(), nil
	}
	return pref, nil
}

// Put writes the preference, replacing any prior record for the user.
func (s *MemoryStore) Put(_ context.Context, userID string, pref Preference) error {
	if err := pref.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = pref
	return nil
}
