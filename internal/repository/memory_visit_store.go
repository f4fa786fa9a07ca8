package repository

import (
	"context"
	"sync"

	"github.com/abdosalm555/visit-pass/internal/model"
)

// memoryEntry pairs a record with its own mutex so updates on different
// tokens never block each other; the outer map lock is only held long
// enough to locate the entry.
type memoryEntry struct {
	mu  sync.Mutex
	rec model.VisitRecord
}

// MemoryVisitStore is an in-process VisitStore used for development
// deployments and tests.  It holds many tokens concurrently, each
// independently lifecycled.
type MemoryVisitStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

// NewMemoryVisitStore returns an empty in-memory store.
func NewMemoryVisitStore() *MemoryVisitStore {
	return &MemoryVisitStore{entries: make(map[string]*memoryEntry)}
}

// Put inserts a new record, refusing to overwrite an existing token.
func (s *MemoryVisitStore) Put(_ context.Context, rec model.VisitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[rec.Token]; ok {
		return ErrTokenExists
	}
	s.entries[rec.Token] = &memoryEntry{rec: rec}
	return nil
}

// Get returns a copy of the record for the token.
func (s *MemoryVisitStore) Get(_ context.Context, token string) (model.VisitRecord, error) {
	s.mu.RLock()
	e, ok := s.entries[token]
	s.mu.RUnlock()
	if !ok {
		return model.VisitRecord{}, ErrVisitNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, nil
}

// Update applies mutate under the entry's lock.  Mutation runs on a copy;
// the stored record only changes when mutate returns nil, so a failed
// transition leaves the record exactly as it was.
func (s *MemoryVisitStore) Update(_ context.Context, token string, mutate func(*model.VisitRecord) error) (model.VisitRecord, error) {
	s.mu.RLock()
	e, ok := s.entries[token]
	s.mu.RUnlock()
	if !ok {
		return model.VisitRecord{}, ErrVisitNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.rec
	if err := mutate(&next); err != nil {
		return model.VisitRecord{}, err
	}
	e.rec = next
	return next, nil
}
