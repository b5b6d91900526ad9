package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in memory. Used by tests and local
// development; it honors the same upsert-in-place semantics as the durable
// stores.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		creds: make(map[string]Credential),
	}
}

// Upsert replaces the whole record for the user.
func (s *MemoryStore) Upsert(_ context.Context, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.UserID] = cred
	return nil
}

// Get returns the credential for a user, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, userID string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[userID]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}
