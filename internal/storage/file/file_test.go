package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/idhash"
	"github.com/cchevrot/backtest/internal/storage"
)

func record(t *testing.T, tp float64, pnl float64) *domain.ResultRecord {
	t.Helper()
	p := domain.Params{
		"take_profit_pnl":  domain.Number(tp),
		"trade_start_hour": domain.Clock(9*60 + 30),
	}
	id, key, err := idhash.ConfigID(p)
	require.NoError(t, err)
	roi := pnl / 100 * 100
	return &domain.ResultRecord{
		ConfigID:  id,
		Key:       key,
		Params:    p,
		Metrics:   domain.AggregateMetrics{TotalPnL: pnl, TotalInvestedCapital: 100, TotalROI: &roi, Days: 3, TotalTrades: 2},
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestResultStore_RoundTripThroughFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.csv")

	store, err := NewResultStore(path)
	require.NoError(t, err)

	r1 := record(t, 70, 12.5)
	r2 := record(t, 80, -3)
	require.NoError(t, store.Append(ctx, r1))
	require.NoError(t, store.Append(ctx, r2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "pnl,"))
	assert.True(t, strings.HasSuffix(lines[0], ",take_profit_pnl,trade_start_hour"))
	assert.True(t, strings.HasSuffix(lines[1], ",70,09:30"))

	reopened, err := NewResultStore(path)
	require.NoError(t, err)
	all, err := reopened.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, r1.ConfigID, all[0].ConfigID)
	assert.Equal(t, r1.Key, all[0].Key)
	assert.True(t, r1.Params.Equal(all[0].Params))
	assert.Equal(t, 12.5, all[0].Metrics.TotalPnL)
	require.NotNil(t, all[0].Metrics.TotalROI)
	assert.Equal(t, 12.5, *all[0].Metrics.TotalROI)
	assert.Equal(t, 3, all[0].Metrics.Days)
	assert.True(t, r1.CreatedAt.Equal(all[0].CreatedAt))

	// Duplicates are detected across reopen.
	err = reopened.Append(ctx, record(t, 70, 99))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	top, err := reopened.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, r1.ConfigID, top[0].ConfigID)
}

func TestResultStore_SchemaMismatch(t *testing.T) {
	ctx := context.Background()
	store, err := NewResultStore(filepath.Join(t.TempDir(), "results.csv"))
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, record(t, 70, 1)))

	p := domain.Params{"take_profit_pnl": domain.Number(90)}
	id, key, err := idhash.ConfigID(p)
	require.NoError(t, err)
	err = store.Append(ctx, &domain.ResultRecord{ConfigID: id, Key: key, Params: p})
	assert.ErrorIs(t, err, storage.ErrSchemaMismatch)
}

func TestResultStore_PnLOnlyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	content := "pnl,min_escape_time,trade_cutoff_hour\n42.5,83,13:45\n-1,90,14:00\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store, err := NewResultStore(path)
	require.NoError(t, err)
	all, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, 42.5, all[0].Metrics.TotalPnL)
	assert.Nil(t, all[0].Metrics.TotalROI)
	assert.True(t, all[0].Params["trade_cutoff_hour"].IsClock())
	assert.Equal(t, 13*60+45, all[0].Params["trade_cutoff_hour"].Minutes())
	assert.Len(t, all[0].ConfigID, 64)
}

func TestCheckpointStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "best_config.json")
	store := NewCheckpointStore(path)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	cp := &domain.BestCheckpoint{
		Timestamp: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		PnL:       33,
		Params:    domain.Params{"trade_start_hour": domain.Clock(570), "stop_multiplier": domain.Number(1.5)},
	}
	require.NoError(t, store.Save(ctx, cp))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"trade_start_hour": "09:30"`)
	assert.Contains(t, string(data), `"config"`)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 33.0, got.PnL)
	assert.True(t, cp.Timestamp.Equal(got.Timestamp))
	assert.True(t, cp.Params.Equal(got.Params))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBestResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best_results.csv")
	rep := NewBestResults(path)
	require.NoError(t, rep.WriteTop(context.Background(), []*domain.ResultRecord{record(t, 70, 5)}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "rank,config_id,pnl"))
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}
