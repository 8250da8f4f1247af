// Package tokenstore holds the bearer credential between proxmon runs.
//
// The store is the single source of truth for "is there a session". Only the
// API client's termination path and the session manager's explicit flows
// write to it.
package tokenstore

import "sync"

// Store is a durable holder for at most one credential.
type Store interface {
	// Set replaces the stored credential.
	Set(token string) error
	// Get returns the stored credential, or ok=false when there is none.
	Get() (token string, ok bool)
	// Clear removes the credential. Clearing an empty store is not an error.
	Clear() error
	// ClearIf removes the credential only if it still equals token, and
	// reports whether it did. A failure observed with an older credential
	// never wipes a newer login.
	ClearIf(token string) (bool, error)
}

// MemoryStore keeps the credential in process memory only.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

func (s *MemoryStore) ClearIf(token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.token != token {
		return false, nil
	}
	s.token = ""
	return true, nil
}
