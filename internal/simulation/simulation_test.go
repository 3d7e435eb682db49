package simulation

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/strategy"
	"github.com/cchevrot/backtest/internal/ticks"
)

// 2024-01-02 10:00:00 UTC
const t0 int64 = 1704189600

func testConfig() domain.Params {
	return domain.Params{
		strategy.ParamTakeProfitPnL:           domain.Number(5),
		strategy.ParamTrailStopPnL:            domain.Number(3),
		strategy.ParamMaxPnLTimeoutMinutes:    domain.Number(30),
		strategy.ParamMaxTradeDurationMinutes: domain.Number(10),
		strategy.ParamStopMultiplier:          domain.Number(1),
		strategy.ParamStartMultiplier:         domain.Number(1),
		strategy.ParamMinEscapeTime:           domain.Number(30),
		strategy.ParamTopNThreshold:           domain.Number(2),
		strategy.ParamMinMarketPnL:            domain.Number(1),
		strategy.ParamTradeValue:              domain.Number(100),
		strategy.ParamTradeIntervalMinutes:    domain.Number(5),
		strategy.ParamMaxTradesPerDay:         domain.Number(20),
		strategy.ParamTradeStartHour:          domain.Clock(0),
		strategy.ParamTradeCutoffHour:         domain.Clock(23*60 + 59),
		strategy.ParamUTCOffsetHours:          domain.Number(0),
	}
}

// syntheticDay builds a deterministic multi-symbol day that varies with seed.
func syntheticDay(seed int) []domain.Tick {
	var out []domain.Tick
	for i := 0; i < 600; i++ {
		for s := 0; s < 6; s++ {
			phase := float64(seed+1) * 0.3
			price := 10 + float64(s) + 3*math.Sin(float64(i)*0.05*float64(s+1)+phase) + float64(i*s)*0.002
			out = append(out, domain.Tick{
				Timestamp: t0 + int64(i*10),
				Symbol:    fmt.Sprintf("S%d", s),
				Price:     math.Round(price*100) / 100,
			})
		}
	}
	return out
}

func writeDays(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i := 0; i < n; i++ {
		ext := ".csv.lz4"
		if i%2 == 1 {
			ext = ".parquet"
		}
		path := filepath.Join(dir, fmt.Sprintf("2024-01-%02d%s", i+2, ext))
		if err := ticks.Write(path, syntheticDay(i)); err != nil {
			t.Fatalf("write day: %v", err)
		}
		paths = append(paths, path)
	}
	return paths
}

func TestDayRunner_MissingFileYieldsZeroDay(t *testing.T) {
	r := NewDayRunner(DayRunnerOptions{})
	p, err := strategy.FromParams(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	m, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "2024-01-02.csv.lz4"), p)
	if err != nil {
		t.Fatalf("missing file must not fail the run: %v", err)
	}
	if !m.Failed || m.PnL != 0 || m.InvestedCapital != 0 || m.DistinctTickersTraded != 0 || m.ROI != nil {
		t.Errorf("unexpected metrics: %+v", m)
	}
	if m.Day != "2024-01-02" {
		t.Errorf("day = %q", m.Day)
	}
}

func TestDayRunner_BreakoutTradeEndToEnd(t *testing.T) {
	day := []domain.Tick{
		{Timestamp: t0, Symbol: "A", Price: 10},
		{Timestamp: t0, Symbol: "B", Price: 10},
		{Timestamp: t0, Symbol: "C", Price: 10},
		{Timestamp: t0 + 10, Symbol: "A", Price: 12},
		{Timestamp: t0 + 40, Symbol: "A", Price: 12},
		{Timestamp: t0 + 70, Symbol: "A", Price: 12},
		{Timestamp: t0 + 100, Symbol: "A", Price: 15},
		{Timestamp: t0 + 130, Symbol: "B", Price: 0}, // invalid, skipped
	}
	path := filepath.Join(t.TempDir(), "2024-01-02.csv")
	if err := ticks.Write(path, day); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg = cfg.With(strategy.ParamTakeProfitPnL, domain.Number(50))
	cfg = cfg.With(strategy.ParamTrailStopPnL, domain.Number(1000))
	cfg = cfg.With(strategy.ParamMaxPnLTimeoutMinutes, domain.Number(100000))
	cfg = cfg.With(strategy.ParamMinEscapeTime, domain.Number(60))
	cfg = cfg.With(strategy.ParamTopNThreshold, domain.Number(1))
	cfg = cfg.With(strategy.ParamMinMarketPnL, domain.Number(10))
	cfg = cfg.With(strategy.ParamTradeIntervalMinutes, domain.Number(150000))
	p, err := strategy.FromParams(cfg)
	if err != nil {
		t.Fatal(err)
	}

	r := NewDayRunner(DayRunnerOptions{ResortEvery: 1})
	m, err := r.Run(context.Background(), path, p)
	if err != nil {
		t.Fatal(err)
	}

	// 8 shares at 12, sold at 15.
	if m.Failed || m.Trades != 1 || m.DistinctTickersTraded != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if m.PnL != 24 || m.InvestedCapital != 96 {
		t.Errorf("pnl/invested = %v/%v, want 24/96", m.PnL, m.InvestedCapital)
	}
	if m.ROI == nil || *m.ROI != 25 {
		t.Errorf("ROI = %v, want 25", m.ROI)
	}
}

func TestBatch_ParallelismInvariance(t *testing.T) {
	days := writeDays(t, 6)
	days = append(days, filepath.Join(filepath.Dir(days[0]), "2024-01-31.csv.lz4")) // missing
	runner := NewDayRunner(DayRunnerOptions{ResortEvery: 6})

	var reports []*Report
	for _, workers := range []int{1, 3, 8} {
		b := NewBatch(BatchOptions{Days: days, Workers: workers, Runner: runner})
		rep, err := b.Run(context.Background(), testConfig())
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		reports = append(reports, rep)
	}

	base := reports[0]
	if base.Aggregate.TotalTrades == 0 {
		t.Fatal("synthetic days produced no trades")
	}
	if !base.Days[len(days)-1].Failed {
		t.Error("missing day not marked failed")
	}

	sum := 0.0
	for _, d := range base.Days {
		sum += d.PnL
	}
	if math.Abs(sum-base.Aggregate.TotalPnL) > 1e-9 {
		t.Errorf("total pnl %v != sum of days %v", base.Aggregate.TotalPnL, sum)
	}

	for i, rep := range reports[1:] {
		if rep.Aggregate.TotalPnL != base.Aggregate.TotalPnL ||
			rep.Aggregate.TotalInvestedCapital != base.Aggregate.TotalInvestedCapital ||
			rep.Aggregate.Drawdown != base.Aggregate.Drawdown {
			t.Errorf("run %d differs: %+v vs %+v", i+1, rep.Aggregate, base.Aggregate)
		}
		for d := range rep.Days {
			if rep.Days[d].Day != base.Days[d].Day {
				t.Errorf("day order changed at %d", d)
			}
		}
	}
}

func TestBatch_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	delete(cfg, strategy.ParamTakeProfitPnL)

	b := NewBatch(BatchOptions{Days: []string{"unused.csv"}})
	if _, err := b.Evaluate(context.Background(), cfg); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestDayName(t *testing.T) {
	tests := map[string]string{
		"/data/2024-01-02.csv.lz4": "2024-01-02",
		"2024-01-03.parquet":       "2024-01-03",
		"day.csv":                  "day",
	}
	for in, want := range tests {
		if got := DayName(in); got != want {
			t.Errorf("DayName(%q) = %q, want %q", in, got, want)
		}
	}
}
