package storage

import (
	"context"

	"github.com/cchevrot/backtest/internal/domain"
)

// ResultStore is the append-only log of evaluated configurations.
type ResultStore interface {
	// Append adds a record. Returns ErrDuplicateKey if ConfigID exists.
	Append(ctx context.Context, r *domain.ResultRecord) error

	// LoadAll returns every record in insertion order.
	LoadAll(ctx context.Context) ([]*domain.ResultRecord, error)

	// Top returns the n records with the highest total pnl, ties by ConfigID.
	Top(ctx context.Context, n int) ([]*domain.ResultRecord, error)
}

// CheckpointStore persists the best configuration found so far.
type CheckpointStore interface {
	// Save replaces the current checkpoint atomically.
	Save(ctx context.Context, c *domain.BestCheckpoint) error

	// Load returns the latest checkpoint. Returns ErrNotFound if none exists.
	Load(ctx context.Context) (*domain.BestCheckpoint, error)
}

// Reporter publishes a ranked view of the results.
type Reporter interface {
	WriteTop(ctx context.Context, records []*domain.ResultRecord) error
}
