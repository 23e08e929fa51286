package userstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store, used in tests
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*UserRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*UserRecord)}
}

func copyRecord(r *UserRecord) *UserRecord {
	cp := *r
	if r.NotificationPreferences != nil {
		cp.NotificationPreferences = make(map[string]bool, len(r.NotificationPreferences))
		for k, v := range r.NotificationPreferences {
			cp.NotificationPreferences[k] = v
		}
	}
	return &cp
}

// Get retrieves a record by provider user id
func (s *MemoryStore) Get(_ context.Context, id string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[id]; ok {
		return copyRecord(record), nil
	}
	return nil, nil
}

// GetAll returns every stored record ordered by creation time
func (s *MemoryStore) GetAll(_ context.Context) ([]*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*UserRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, copyRecord(record))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// FindByEmail retrieves a record by lower-cased email
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*UserRecord, error) {
	needle := strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.Email == needle {
			return copyRecord(record), nil
		}
	}
	return nil, nil
}

// FindByUsername retrieves a record by case-insensitive username match
func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.MatchesUsername(strings.TrimSpace(username)) {
			return copyRecord(record), nil
		}
	}
	return nil, nil
}

// Put inserts or replaces a record keyed by its ID
func (s *MemoryStore) Put(_ context.Context, record *UserRecord) error {
	record.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = copyRecord(record)
	return nil
}

// Delete removes a record
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
