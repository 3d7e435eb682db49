package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/storage"
	"github.com/cchevrot/backtest/internal/storage/memory"
)

func record(id string, pnl float64) *domain.ResultRecord {
	return &domain.ResultRecord{
		ConfigID:  id,
		Key:       `{"x":1}`,
		Params:    domain.Params{"x": domain.Number(1)},
		Metrics:   domain.AggregateMetrics{TotalPnL: pnl},
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestRankByPnL(t *testing.T) {
	in := []*domain.ResultRecord{record("c", 1), record("b", 5), record("a", 5), record("d", -2)}

	top := storage.RankByPnL(in, 3)
	got := []string{top[0].ConfigID, top[1].ConfigID, top[2].ConfigID}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank = %v, want %v", got, want)
		}
	}
	if in[0].ConfigID != "c" {
		t.Error("input reordered")
	}
	if n := len(storage.RankByPnL(in, 0)); n != 4 {
		t.Errorf("n=0 returned %d records, want 4", n)
	}
}

func TestValidate(t *testing.T) {
	if err := storage.Validate(record("a", 1)); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
	bad := record("a", 1)
	bad.Params = nil
	if !errors.Is(storage.Validate(bad), storage.ErrInvalidInput) {
		t.Error("record without params accepted")
	}
	if !errors.Is(storage.Validate(nil), storage.ErrInvalidInput) {
		t.Error("nil record accepted")
	}
}

func TestMultiResultStore_MirrorsWrites(t *testing.T) {
	ctx := context.Background()
	primary := memory.NewResultStore()
	mirror := memory.NewResultStore()
	multi := storage.NewMultiResultStore(primary, mirror)

	// The mirror already holds "a": its duplicate must not fail the write.
	if err := mirror.Append(ctx, record("a", 1)); err != nil {
		t.Fatal(err)
	}
	if err := multi.Append(ctx, record("a", 1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := multi.Append(ctx, record("b", 2)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := multi.Append(ctx, record("a", 1)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("primary duplicate: got %v, want ErrDuplicateKey", err)
	}

	mirrored, _ := mirror.LoadAll(ctx)
	if len(mirrored) != 2 {
		t.Errorf("mirror holds %d records, want 2", len(mirrored))
	}
	top, err := multi.Top(ctx, 1)
	if err != nil || len(top) != 1 || top[0].ConfigID != "b" {
		t.Errorf("Top = %v, %v", top, err)
	}
}

func TestInstrumentedStores_PassThrough(t *testing.T) {
	ctx := context.Background()
	results := storage.NewInstrumentedResultStore("memory", memory.NewResultStore())
	checkpoints := storage.NewInstrumentedCheckpointStore("memory", memory.NewCheckpointStore())

	if err := results.Append(ctx, record("a", 3)); err != nil {
		t.Fatal(err)
	}
	if err := results.Append(ctx, record("a", 3)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("got %v, want ErrDuplicateKey", err)
	}
	all, err := results.LoadAll(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("LoadAll = %v, %v", all, err)
	}

	if _, err := checkpoints.Load(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("empty Load: got %v, want ErrNotFound", err)
	}
	cp := &domain.BestCheckpoint{Timestamp: time.Unix(1700000000, 0).UTC(), PnL: 3, Params: domain.Params{"x": domain.Number(1)}}
	if err := checkpoints.Save(ctx, cp); err != nil {
		t.Fatal(err)
	}
	got, err := checkpoints.Load(ctx)
	if err != nil || got.PnL != 3 {
		t.Errorf("Load = %v, %v", got, err)
	}
}
