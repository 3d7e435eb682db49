// Package orchestrator runs a complete parameter search session.
// It coordinates: cache warm-up → stored result verification → search →
// reporting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/idhash"
	"github.com/cchevrot/backtest/internal/reporting"
	"github.com/cchevrot/backtest/internal/search"
	"github.com/cchevrot/backtest/internal/simulation"
	"github.com/cchevrot/backtest/internal/storage"
	"github.com/cchevrot/backtest/internal/verification"
)

// ErrDivergentResults is returned when stored results no longer match a
// replay of their configuration.
var ErrDivergentResults = errors.New("stored results diverge from replay")

// Simulator evaluates configurations over a fixed batch of days.
// *simulation.Batch implements it.
type Simulator interface {
	search.Evaluator
	Run(ctx context.Context, cfg domain.Params) (*simulation.Report, error)
	Days() []string
}

// Options configures an Orchestrator.
type Options struct {
	// Required
	Simulator Simulator
	Space     domain.SearchSpace

	// Stores
	Results     storage.ResultStore     // nil keeps results in memory only
	Checkpoints storage.CheckpointStore // nil disables checkpointing
	Reporter    storage.Reporter        // best results report, optional

	// Search
	Start            domain.Params
	Policy           search.Policy
	Explore          search.Policy
	MaxIterations    int
	CandidateWorkers int
	Resume           bool
	TopN             int

	// Phases
	VerifyTop   int  // replay the N best stored results before searching
	BuildReport bool // replay the best configuration for per-day metrics

	Logger        *zerolog.Logger
	RecordMetrics bool
}

// Orchestrator coordinates one search session.
type Orchestrator struct {
	opts   Options
	logger zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.TopN <= 0 {
		opts.TopN = search.DefaultTopN
	}
	o := &Orchestrator{opts: opts, logger: zerolog.Nop()}
	if opts.Logger != nil {
		o.logger = opts.Logger.With().Str("component", "orchestrator").Logger()
	}
	return o
}

// RunResult contains results from one session.
type RunResult struct {
	Warmed       int
	Verification *verification.Report // nil when skipped
	Search       *search.Result
	Stats        search.Stats
	Report       *reporting.Report // nil unless BuildReport
	Interrupted  bool              // ctx was cancelled; Search holds the best so far
	Elapsed      time.Duration
}

// Run executes the session.
// Phases:
//  1. Warm the cache from the results store
//  2. Verify the best stored results (optional)
//  3. Search
//  4. Build the report (optional)
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{}

	cache := search.NewCache(search.CacheOptions{
		Evaluator:     o.opts.Simulator,
		Store:         o.opts.Results,
		Logger:        o.opts.Logger,
		RecordMetrics: o.opts.RecordMetrics,
	})

	// Phase 1: Warm-up
	warmed, err := cache.Warm(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (warm cache) failed: %w", err)
	}
	result.Warmed = warmed

	// Phase 2: Verification
	if o.opts.VerifyTop > 0 && warmed > 0 {
		verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			Store:     o.opts.Results,
			Evaluator: o.opts.Simulator,
			Logger:    o.opts.Logger,
		})
		report, err := verifier.VerifyTop(ctx, o.opts.VerifyTop)
		if err != nil {
			return nil, fmt.Errorf("phase 2 (verify) failed: %w", err)
		}
		result.Verification = report
		o.logger.Info().
			Int("verified", report.Total).
			Int("matched", report.Matched).
			Int("divergent", report.Divergent).
			Msg("stored results verified")
		if report.Divergent > 0 {
			return result, fmt.Errorf("phase 2 (verify): %w: %d of %d", ErrDivergentResults, report.Divergent, report.Total)
		}
	}

	// Phase 3: Search
	opt := search.NewOptimizer(search.Options{
		Space:            o.opts.Space,
		Cache:            cache,
		Policy:           o.opts.Policy,
		Explore:          o.opts.Explore,
		MaxIterations:    o.opts.MaxIterations,
		CandidateWorkers: o.opts.CandidateWorkers,
		Start:            o.opts.Start,
		Checkpoint:       o.opts.Checkpoints,
		Resume:           o.opts.Resume,
		Reporter:         o.opts.Reporter,
		TopN:             o.opts.TopN,
		Logger:           o.opts.Logger,
		RecordMetrics:    o.opts.RecordMetrics,
	})
	res, err := opt.Run(ctx)
	if err != nil {
		if res == nil || !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("phase 3 (search) failed: %w", err)
		}
		result.Interrupted = true
		o.logger.Warn().Int("iterations", res.Iterations).Msg("search interrupted, keeping best so far")
	}
	result.Search = res
	result.Stats = cache.Stats()

	// Phase 4: Report
	if o.opts.BuildReport {
		// Runs after an interrupt too, so it must outlive ctx.
		rep, err := o.buildReport(context.WithoutCancel(ctx), cache, res)
		if err != nil {
			return result, fmt.Errorf("phase 4 (report) failed: %w", err)
		}
		result.Report = rep
	}

	result.Elapsed = time.Since(started)
	o.logger.Info().
		Str("config_id", res.BestID).
		Float64("pnl", res.BestMetrics.TotalPnL).
		Int("iterations", res.Iterations).
		Bool("converged", res.Converged).
		Bool("resumed", res.Resumed).
		Int64("simulated", result.Stats.Simulated).
		Int64("cache_hits", result.Stats.Hits).
		Dur("elapsed", result.Elapsed).
		Msg("session finished")
	return result, nil
}

// buildReport replays the best configuration to collect its per-day
// metrics.
func (o *Orchestrator) buildReport(ctx context.Context, cache *search.Cache, res *search.Result) (*reporting.Report, error) {
	days, err := o.opts.Simulator.Run(ctx, res.Best)
	if err != nil {
		return nil, fmt.Errorf("replay best configuration: %w", err)
	}
	id, key, err := idhash.ConfigID(res.Best)
	if err != nil {
		return nil, err
	}
	stats := cache.Stats()
	return &reporting.Report{
		GeneratedAt: time.Now().UTC(),
		DayCount:    len(o.opts.Simulator.Days()),
		Iterations:  res.Iterations,
		Evaluations: int(stats.Simulated),
		CacheHits:   int(stats.Hits),
		Converged:   res.Converged,
		Best: &domain.ResultRecord{
			ConfigID: id,
			Key:      key,
			Params:   res.Best,
			Metrics:  res.BestMetrics,
		},
		History: res.History,
		Top:     cache.Top(o.opts.TopN),
		Days:    days.Days,
	}, nil
}
