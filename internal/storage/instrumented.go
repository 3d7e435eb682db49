package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/observability"
)

// InstrumentedResultStore records latency and errors of every call under
// the given backend label.
type InstrumentedResultStore struct {
	backend string
	next    ResultStore
}

// NewInstrumentedResultStore wraps next.
func NewInstrumentedResultStore(backend string, next ResultStore) *InstrumentedResultStore {
	return &InstrumentedResultStore{backend: backend, next: next}
}

var _ ResultStore = (*InstrumentedResultStore)(nil)

// Append implements ResultStore. Duplicates are not counted as errors.
func (s *InstrumentedResultStore) Append(ctx context.Context, r *domain.ResultRecord) error {
	start := time.Now()
	err := s.next.Append(ctx, r)
	observed := err
	if errors.Is(err, ErrDuplicateKey) {
		observed = nil
	}
	observability.RecordStoreOp(s.backend, "append", time.Since(start).Seconds(), observed)
	return err
}

// LoadAll implements ResultStore.
func (s *InstrumentedResultStore) LoadAll(ctx context.Context) ([]*domain.ResultRecord, error) {
	start := time.Now()
	out, err := s.next.LoadAll(ctx)
	observability.RecordStoreOp(s.backend, "load_all", time.Since(start).Seconds(), err)
	return out, err
}

// Top implements ResultStore.
func (s *InstrumentedResultStore) Top(ctx context.Context, n int) ([]*domain.ResultRecord, error) {
	start := time.Now()
	out, err := s.next.Top(ctx, n)
	observability.RecordStoreOp(s.backend, "top", time.Since(start).Seconds(), err)
	return out, err
}

// InstrumentedCheckpointStore is the CheckpointStore counterpart.
type InstrumentedCheckpointStore struct {
	backend string
	next    CheckpointStore
}

// NewInstrumentedCheckpointStore wraps next.
func NewInstrumentedCheckpointStore(backend string, next CheckpointStore) *InstrumentedCheckpointStore {
	return &InstrumentedCheckpointStore{backend: backend, next: next}
}

var _ CheckpointStore = (*InstrumentedCheckpointStore)(nil)

// Save implements CheckpointStore.
func (s *InstrumentedCheckpointStore) Save(ctx context.Context, c *domain.BestCheckpoint) error {
	start := time.Now()
	err := s.next.Save(ctx, c)
	observability.RecordStoreOp(s.backend, "checkpoint_save", time.Since(start).Seconds(), err)
	return err
}

// Load implements CheckpointStore. A missing checkpoint is not an error.
func (s *InstrumentedCheckpointStore) Load(ctx context.Context) (*domain.BestCheckpoint, error) {
	start := time.Now()
	c, err := s.next.Load(ctx)
	observed := err
	if errors.Is(err, ErrNotFound) {
		observed = nil
	}
	observability.RecordStoreOp(s.backend, "checkpoint_load", time.Since(start).Seconds(), observed)
	return c, err
}
