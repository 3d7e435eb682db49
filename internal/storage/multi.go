package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cchevrot/backtest/internal/domain"
)

// MultiResultStore writes to a primary store and mirrors to secondaries.
// Reads are served by the primary.
type MultiResultStore struct {
	primary ResultStore
	mirrors []ResultStore
}

// NewMultiResultStore creates a fan-out store.
func NewMultiResultStore(primary ResultStore, mirrors ...ResultStore) *MultiResultStore {
	return &MultiResultStore{primary: primary, mirrors: mirrors}
}

var _ ResultStore = (*MultiResultStore)(nil)

// Append writes to the primary first. Mirror duplicates are ignored so a
// mirror that already holds the record does not fail the write.
func (m *MultiResultStore) Append(ctx context.Context, r *domain.ResultRecord) error {
	if err := m.primary.Append(ctx, r); err != nil {
		return err
	}
	var errs []error
	for i, s := range m.mirrors {
		if err := s.Append(ctx, r); err != nil && !errors.Is(err, ErrDuplicateKey) {
			errs = append(errs, fmt.Errorf("mirror %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// LoadAll reads from the primary.
func (m *MultiResultStore) LoadAll(ctx context.Context) ([]*domain.ResultRecord, error) {
	return m.primary.LoadAll(ctx)
}

// Top reads from the primary.
func (m *MultiResultStore) Top(ctx context.Context, n int) ([]*domain.ResultRecord, error) {
	return m.primary.Top(ctx, n)
}
