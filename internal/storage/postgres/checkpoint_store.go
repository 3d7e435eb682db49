package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
// Every save appends a row; the latest row is the checkpoint.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Save appends a checkpoint row.
func (s *CheckpointStore) Save(ctx context.Context, c *domain.BestCheckpoint) error {
	if c == nil || len(c.Params) == 0 {
		return storage.ErrInvalidInput
	}
	params, err := json.Marshal(c.Params)
	if err != nil {
		return fmt.Errorf("encode checkpoint params: %w", err)
	}

	query := `INSERT INTO best_checkpoints (saved_at, pnl, params) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, c.Timestamp, c.PnL, params); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the latest checkpoint. Returns ErrNotFound if none exists.
func (s *CheckpointStore) Load(ctx context.Context) (*domain.BestCheckpoint, error) {
	query := `
		SELECT saved_at, pnl, params
		FROM best_checkpoints
		ORDER BY id DESC
		LIMIT 1
	`

	var (
		c      domain.BestCheckpoint
		params []byte
	)
	err := s.pool.QueryRow(ctx, query).Scan(&c.Timestamp, &c.PnL, &params)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	if err := json.Unmarshal(params, &c.Params); err != nil {
		return nil, fmt.Errorf("decode checkpoint params: %w", err)
	}
	return &c, nil
}
