package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/storage"
)

// CheckpointStore keeps the best configuration in a JSON file that is
// replaced atomically on every save.
type CheckpointStore struct {
	path string
}

// NewCheckpointStore creates a checkpoint store at path.
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Save replaces the checkpoint file.
func (s *CheckpointStore) Save(_ context.Context, c *domain.BestCheckpoint) error {
	if c == nil || len(c.Params) == 0 {
		return storage.ErrInvalidInput
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return writeFileAtomic(s.path, append(data, '\n'))
}

// Load reads the checkpoint file. Returns ErrNotFound if it does not exist.
func (s *CheckpointStore) Load(_ context.Context) (*domain.BestCheckpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var c domain.BestCheckpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	if len(c.Params) == 0 {
		return nil, fmt.Errorf("decode checkpoint %s: %w", s.path, storage.ErrInvalidInput)
	}
	return &c, nil
}
