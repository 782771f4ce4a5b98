// Package storage abstracts the named key/value slots the portal keeps
// session state in. In a browser embedding these map onto web storage; tests
// and non-browser hosts use the in-memory implementation.
package storage

import "sync"

// Store provides access to named string slots. Implementations must treat
// read failures as "not found" so credential resolution can degrade
// gracefully.
type Store interface {
	// Get returns the value for key and whether it was present and non-empty.
	Get(key string) (string, bool)
	// Set stores value under key.
	Set(key, value string)
	// Remove deletes key. Removing an absent key is a no-op.
	Remove(key string)
}

// MemoryStore is a concurrency-safe in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

// Get returns the value for key if present and non-empty.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.slots[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[key] = value
}

// Remove deletes key.
func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, key)
}
