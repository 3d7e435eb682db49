package memory

import (
	"context"
	"sync"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu    sync.RWMutex
	order []string                        // config ids in insertion order
	data  map[string]*domain.ResultRecord // keyed by config_id
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		data: make(map[string]*domain.ResultRecord),
	}
}

var _ storage.ResultStore = (*ResultStore)(nil)

// Append adds a record. Returns ErrDuplicateKey if config_id exists.
func (s *ResultStore) Append(_ context.Context, r *domain.ResultRecord) error {
	if err := storage.Validate(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ConfigID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.ConfigID] = copyRecord(r)
	s.order = append(s.order, r.ConfigID)
	return nil
}

// LoadAll returns every record in insertion order.
func (s *ResultStore) LoadAll(_ context.Context) ([]*domain.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ResultRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyRecord(s.data[id]))
	}
	return out, nil
}

// Top returns the n best records by total pnl.
func (s *ResultStore) Top(ctx context.Context, n int) ([]*domain.ResultRecord, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return storage.RankByPnL(all, n), nil
}

func copyRecord(r *domain.ResultRecord) *domain.ResultRecord {
	c := *r
	c.Params = r.Params.Clone()
	if r.Metrics.TotalROI != nil {
		roi := *r.Metrics.TotalROI
		c.Metrics.TotalROI = &roi
	}
	return &c
}
