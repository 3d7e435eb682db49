// Package simulation replays trading days through the strategy and
// aggregates their results.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/ledger"
	"github.com/cchevrot/backtest/internal/observability"
	"github.com/cchevrot/backtest/internal/ranking"
	"github.com/cchevrot/backtest/internal/replay"
	"github.com/cchevrot/backtest/internal/strategy"
	"github.com/cchevrot/backtest/internal/ticks"
)

// DayRunner simulates a single day. It holds no per-day state and may be
// shared by concurrent workers.
type DayRunner struct {
	resortEvery int
	initialCash float64
	open        func(path string) (ticks.Source, error)
	logger      zerolog.Logger
	record      bool
}

// DayRunnerOptions configures a DayRunner.
type DayRunnerOptions struct {
	ResortEvery int     // default ranking.DefaultResortEvery
	InitialCash float64 // default ledger.DefaultInitialCash
	Logger      *zerolog.Logger
	// OpenSource overrides how day files are opened. Defaults to ticks.Open.
	OpenSource func(path string) (ticks.Source, error)
	// RecordMetrics exports per-day Prometheus metrics.
	RecordMetrics bool
}

// NewDayRunner creates a day runner.
func NewDayRunner(opts DayRunnerOptions) *DayRunner {
	r := &DayRunner{
		resortEvery: opts.ResortEvery,
		initialCash: opts.InitialCash,
		open:        opts.OpenSource,
		logger:      zerolog.Nop(),
		record:      opts.RecordMetrics,
	}
	if r.resortEvery <= 0 {
		r.resortEvery = ranking.DefaultResortEvery
	}
	if r.initialCash <= 0 {
		r.initialCash = ledger.DefaultInitialCash
	}
	if r.open == nil {
		r.open = func(path string) (ticks.Source, error) { return ticks.Open(path) }
	}
	if opts.Logger != nil {
		r.logger = opts.Logger.With().Str("component", "day").Logger()
	}
	return r
}

// Run simulates the day stored at path. A missing or unreadable file
// yields zero metrics marked Failed; only context cancellation is returned
// as an error.
func (r *DayRunner) Run(ctx context.Context, path string, params strategy.Params) (domain.DayMetrics, error) {
	day := DayName(path)

	src, err := r.open(path)
	if err != nil {
		r.logger.Warn().Err(err).Str("day", day).Msg("day file unavailable, counting as zero")
		return r.failed(day), nil
	}
	defer src.Close()

	m, err := r.RunSource(ctx, day, src, params)
	if err != nil {
		if ctx.Err() != nil {
			return domain.DayMetrics{}, err
		}
		r.logger.Warn().Err(err).Str("day", day).Msg("day file unreadable, counting as zero")
		return r.failed(day), nil
	}
	return m, nil
}

// RunSource simulates one day from an already opened source.
func (r *DayRunner) RunSource(ctx context.Context, day string, src ticks.Source, params strategy.Params) (domain.DayMetrics, error) {
	start := time.Now()
	table := ranking.NewTable()
	book := ledger.New(r.initialCash)
	logger := r.logger.With().Str("day", day).Logger()
	engine := strategy.NewEngine(strategy.EngineOptions{
		Params: params,
		Table:  table,
		Ledger: book,
		Logger: &logger,
	})

	h := &dayHandler{table: table, ledger: book, engine: engine, resortEvery: r.resortEvery}
	st, err := replay.NewRunner(logger).Run(ctx, src, h)
	if err != nil {
		return domain.DayMetrics{}, fmt.Errorf("replay %s: %w", day, err)
	}

	if unpriced := book.CloseAll(table, st.LastTime); len(unpriced) > 0 {
		logger.Warn().Strs("symbols", unpriced).Msg("positions left open without a price")
	}

	invested, trades, tickers := book.ClosedSummary()
	pnl := book.TotalRealizedPnL()
	m := domain.DayMetrics{
		Day:                   day,
		PnL:                   pnl,
		InvestedCapital:       invested,
		DistinctTickersTraded: tickers,
		ROI:                   domain.ROI(pnl, invested),
		Trades:                trades,
	}

	if st.Malformed > 0 || st.Skipped > 0 || st.OutOfOrder > 0 {
		logger.Warn().
			Int("malformed", st.Malformed).
			Int("invalid_price", st.Skipped).
			Int("out_of_order", st.OutOfOrder).
			Msg("ticks skipped or out of order")
	}
	logger.Debug().
		Int("ticks", st.Ticks).
		Int("trades", trades).
		Float64("pnl", pnl).
		Dur("elapsed", time.Since(start)).
		Msg("day simulated")

	if r.record {
		observability.RecordDay(false, time.Since(start).Seconds(), st.Ticks, st.Malformed, st.Skipped, trades)
	}
	return m, nil
}

// dayHandler wires one day's table, ledger and engine to the tick stream.
type dayHandler struct {
	table       *ranking.Table
	ledger      *ledger.Ledger
	engine      *strategy.Engine
	resortEvery int
}

func (h *dayHandler) OnTick(_ context.Context, t domain.Tick) error {
	if err := h.table.Update(t.Symbol, t.Price, t.Timestamp); err != nil {
		if errors.Is(err, ranking.ErrInvalidPrice) {
			return fmt.Errorf("%w: %v", replay.ErrSkipTick, err)
		}
		return err
	}
	h.ledger.RefreshPrices(h.table)
	if h.table.ShouldResort(h.resortEvery) {
		h.table.Resort()
		h.engine.Evaluate(t.Timestamp)
	}
	return nil
}

func (r *DayRunner) failed(day string) domain.DayMetrics {
	if r.record {
		observability.RecordDay(true, 0, 0, 0, 0, 0)
	}
	return domain.DayMetrics{Day: day, Failed: true}
}

// DayName strips directory and tick-file extensions from a path.
func DayName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".lz4", ".csv", ".parquet"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
