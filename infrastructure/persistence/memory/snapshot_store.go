// Package memory keeps canvas snapshots in process memory, for development
// and tests.
package memory

import (
	"context"
	"sync"
)

// SnapshotStore is an in-memory ports.SnapshotStore
type SnapshotStore struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	saves map[string]int
}

// NewSnapshotStore creates an empty store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		docs:  make(map[string][]byte),
		saves: make(map[string]int),
	}
}

// Load implements ports.SnapshotStore
func (s *SnapshotStore) Load(ctx context.Context, chatID string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[chatID]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), doc...), true, nil
}

// Save implements ports.SnapshotStore
func (s *SnapshotStore) Save(ctx context.Context, chatID string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[chatID] = append([]byte(nil), doc...)
	s.saves[chatID]++
	return nil
}

// Saves reports how many times chatID was written
func (s *SnapshotStore) Saves(chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves[chatID]
}
