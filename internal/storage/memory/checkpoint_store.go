package memory

import (
	"context"
	"sync"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/storage"
)

// CheckpointStore keeps the latest checkpoint in memory.
type CheckpointStore struct {
	mu   sync.RWMutex
	best *domain.BestCheckpoint
}

// NewCheckpointStore creates an empty checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Save replaces the checkpoint.
func (s *CheckpointStore) Save(_ context.Context, c *domain.BestCheckpoint) error {
	if c == nil || len(c.Params) == 0 {
		return storage.ErrInvalidInput
	}
	cp := *c
	cp.Params = c.Params.Clone()

	s.mu.Lock()
	s.best = &cp
	s.mu.Unlock()
	return nil
}

// Load returns the checkpoint or ErrNotFound.
func (s *CheckpointStore) Load(_ context.Context) (*domain.BestCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.best == nil {
		return nil, storage.ErrNotFound
	}
	cp := *s.best
	cp.Params = s.best.Params.Clone()
	return &cp, nil
}
