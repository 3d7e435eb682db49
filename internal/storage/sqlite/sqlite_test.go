package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/idhash"
	"github.com/cchevrot/backtest/internal/storage"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func newRecord(t *testing.T, escape, pnl float64) *domain.ResultRecord {
	t.Helper()
	p := domain.Params{
		"min_escape_time":  domain.Number(escape),
		"trade_start_hour": domain.Clock(9*60 + 30),
	}
	id, key, err := idhash.ConfigID(p)
	require.NoError(t, err)
	return &domain.ResultRecord{
		ConfigID:  id,
		Key:       key,
		Params:    p,
		Metrics:   domain.AggregateMetrics{TotalPnL: pnl, TotalInvestedCapital: 50, TotalROI: domain.ROI(pnl, 50), Days: 2},
		CreatedAt: time.Date(2024, 3, 4, 5, 6, 7, 8, time.UTC),
	}
}

func TestStore_Results(t *testing.T) {
	ctx := context.Background()
	s, path := openStore(t)

	r1 := newRecord(t, 83, 10)
	r2 := newRecord(t, 90, 20)
	require.NoError(t, s.Append(ctx, r1))
	require.NoError(t, s.Append(ctx, r2))

	err := s.Append(ctx, newRecord(t, 83, 99))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r1.ConfigID, all[0].ConfigID)
	assert.True(t, r1.Params.Equal(all[0].Params))
	require.NotNil(t, all[0].Metrics.TotalROI)
	assert.InDelta(t, 20.0, *all[0].Metrics.TotalROI, 1e-9)
	assert.True(t, r1.CreatedAt.Equal(all[0].CreatedAt))

	top, err := s.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, r2.ConfigID, top[0].ConfigID)

	// Schema application is idempotent and data survives reopen.
	require.NoError(t, s.Close())
	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	all, err = reopened.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_Checkpoint(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ts := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, s.Save(ctx, &domain.BestCheckpoint{Timestamp: ts, PnL: 1, Params: domain.Params{"x": domain.Number(1)}}))
	require.NoError(t, s.Save(ctx, &domain.BestCheckpoint{Timestamp: ts.Add(time.Minute), PnL: 2, Params: domain.Params{"x": domain.Number(2)}}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.PnL)
	assert.Equal(t, 2.0, got.Params["x"].Float())
	assert.True(t, ts.Add(time.Minute).Equal(got.Timestamp))

	assert.ErrorIs(t, s.Save(ctx, &domain.BestCheckpoint{}), storage.ErrInvalidInput)
}
