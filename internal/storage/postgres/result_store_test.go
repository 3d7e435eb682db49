package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/idhash"
	"github.com/cchevrot/backtest/internal/storage"
)

func newRecord(t *testing.T, escape float64, pnl float64, roi *float64) *domain.ResultRecord {
	t.Helper()
	p := domain.Params{
		"min_escape_time":   domain.Number(escape),
		"trade_cutoff_hour": domain.Clock(13*60 + 45),
	}
	id, key, err := idhash.ConfigID(p)
	require.NoError(t, err)
	return &domain.ResultRecord{
		ConfigID: id,
		Key:      key,
		Params:   p,
		Metrics: domain.AggregateMetrics{
			TotalPnL:             pnl,
			TotalInvestedCapital: 400,
			TotalROI:             roi,
			NegativePnLDays:      1,
			Days:                 4,
			WinRate:              75,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestResultStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewResultStore(pool)

	roi := 2.5
	r1 := newRecord(t, 83, 10, &roi)
	r2 := newRecord(t, 90, 30, nil)
	r3 := newRecord(t, 60, -5, nil)

	for _, r := range []*domain.ResultRecord{r1, r2, r3} {
		require.NoError(t, store.Append(ctx, r))
	}

	t.Run("duplicate rejected", func(t *testing.T) {
		err := store.Append(ctx, newRecord(t, 83, 99, nil))
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("load in insertion order", func(t *testing.T) {
		all, err := store.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, r1.ConfigID, all[0].ConfigID)
		assert.Equal(t, r3.ConfigID, all[2].ConfigID)
		assert.True(t, r1.Params.Equal(all[0].Params))
		require.NotNil(t, all[0].Metrics.TotalROI)
		assert.Equal(t, 2.5, *all[0].Metrics.TotalROI)
		assert.Nil(t, all[1].Metrics.TotalROI)
		assert.Equal(t, 4, all[0].Metrics.Days)
		assert.True(t, r1.CreatedAt.Equal(all[0].CreatedAt))
	})

	t.Run("top by pnl", func(t *testing.T) {
		top, err := store.Top(ctx, 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, r2.ConfigID, top[0].ConfigID)
		assert.Equal(t, r1.ConfigID, top[1].ConfigID)
	})
}

func TestCheckpointStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCheckpointStore(pool)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	first := &domain.BestCheckpoint{
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		PnL:       10,
		Params:    domain.Params{"take_profit_pnl": domain.Number(70)},
	}
	second := &domain.BestCheckpoint{
		Timestamp: first.Timestamp.Add(time.Minute),
		PnL:       20,
		Params:    domain.Params{"take_profit_pnl": domain.Number(80), "trade_start_hour": domain.Clock(570)},
	}
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.PnL)
	assert.True(t, second.Params.Equal(got.Params))
	assert.True(t, second.Timestamp.Equal(got.Timestamp))
}
