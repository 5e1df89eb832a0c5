package storage

import (
	"context"
	"errors"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	snapshots   []SnapshotRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.snapshots = nil
	return nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, rec SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.snapshots = append(s.snapshots, rec)
	return nil
}

func (s *MemoryStore) LatestSnapshot(_ context.Context) (SnapshotRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return SnapshotRecord{}, false, nil
	}
	return s.snapshots[len(s.snapshots)-1], true, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, limit int) ([]SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.snapshots)
	if limit > 0 && limit < n {
		n = limit
	}
	// Newest first, matching the sqlite backend's ordering.
	out := make([]SnapshotRecord, 0, n)
	for i := len(s.snapshots) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.snapshots[i])
	}
	return out, nil
}

func (s *MemoryStore) Prune(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	if len(s.snapshots) > keep {
		s.snapshots = append([]SnapshotRecord(nil), s.snapshots[len(s.snapshots)-keep:]...)
	}
	return nil
}
