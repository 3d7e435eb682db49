package simulation

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/metrics"
	"github.com/cchevrot/backtest/internal/observability"
	"github.com/cchevrot/backtest/internal/strategy"
)

// Batch runs one configuration over a fixed list of day files.
type Batch struct {
	days    []string
	workers int
	runner  *DayRunner
	logger  zerolog.Logger
	record  bool
}

// BatchOptions configures a Batch.
type BatchOptions struct {
	Days          []string // day files, aggregated in this order
	Workers       int      // default runtime.NumCPU()
	Runner        *DayRunner
	Logger        *zerolog.Logger
	RecordMetrics bool
}

// Report holds per-day and aggregate results of one batch.
type Report struct {
	Days      []domain.DayMetrics     `json:"days"`
	Aggregate domain.AggregateMetrics `json:"aggregate"`
}

// NewBatch creates a batch simulator.
func NewBatch(opts BatchOptions) *Batch {
	b := &Batch{
		days:    opts.Days,
		workers: opts.Workers,
		runner:  opts.Runner,
		logger:  zerolog.Nop(),
		record:  opts.RecordMetrics,
	}
	if b.workers <= 0 {
		b.workers = runtime.NumCPU()
	}
	if b.runner == nil {
		b.runner = NewDayRunner(DayRunnerOptions{Logger: opts.Logger, RecordMetrics: opts.RecordMetrics})
	}
	if opts.Logger != nil {
		b.logger = opts.Logger.With().Str("component", "batch").Logger()
	}
	return b
}

// Days returns the day files of the batch.
func (b *Batch) Days() []string {
	return b.days
}

// Evaluate runs the batch and returns only the aggregate.
func (b *Batch) Evaluate(ctx context.Context, cfg domain.Params) (*domain.AggregateMetrics, error) {
	rep, err := b.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &rep.Aggregate, nil
}

// Run simulates every day independently on a bounded worker pool and
// aggregates once all days finished. Invalid configurations are rejected
// before any day starts.
func (b *Batch) Run(ctx context.Context, cfg domain.Params) (*Report, error) {
	params, err := strategy.FromParams(cfg)
	if err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	start := time.Now()
	results := make([]domain.DayMetrics, len(b.days))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, path := range b.days {
		g.Go(func() error {
			m, err := b.runner.Run(gctx, path, params)
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := metrics.Aggregate(results)
	failed := 0
	for _, d := range results {
		if d.Failed {
			failed++
		}
	}

	b.logger.Debug().
		Int("days", len(results)).
		Int("failed", failed).
		Float64("total_pnl", agg.TotalPnL).
		Dur("elapsed", time.Since(start)).
		Msg("batch complete")
	if b.record {
		observability.RecordBatch(time.Since(start).Seconds())
	}

	return &Report{Days: results, Aggregate: agg}, nil
}
