package kvstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It is safe for concurrent use and is
// the default backend in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	return value, ok
}

func (s *MemoryStore) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

// GetString retrieves a string value
func (s *MemoryStore) GetString(_ context.Context, key string) (string, bool, error) {
	value, ok := s.get(key)
	return value, ok, nil
}

// SetString stores a string value
func (s *MemoryStore) SetString(_ context.Context, key, value string) error {
	s.set(key, value)
	return nil
}

// GetBool retrieves a boolean value
func (s *MemoryStore) GetBool(_ context.Context, key string) (bool, bool, error) {
	value, ok := s.get(key)
	if !ok {
		return false, false, nil
	}
	return value == boolTrue, true, nil
}

// SetBool stores a boolean value
func (s *MemoryStore) SetBool(_ context.Context, key string, value bool) error {
	v := boolFalse
	if value {
		v = boolTrue
	}
	s.set(key, v)
	return nil
}

// GetTime retrieves a timestamp value
func (s *MemoryStore) GetTime(_ context.Context, key string) (time.Time, bool, error) {
	value, ok := s.get(key)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(timeFormat, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse timestamp for key %s: %w", key, err)
	}
	return t, true, nil
}

// SetTime stores a timestamp value
func (s *MemoryStore) SetTime(_ context.Context, key string, value time.Time) error {
	s.set(key, value.UTC().Format(timeFormat))
	return nil
}

// Delete removes a key
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored entries, for tests
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
