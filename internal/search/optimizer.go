package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/observability"
	"github.com/cchevrot/backtest/internal/storage"
)

// Defaults.
const (
	DefaultMaxIterations = 50
	DefaultMaxTests      = 3
	DefaultTopN          = 10

	// improvementEpsilon is the smallest pnl gain that moves the center.
	improvementEpsilon = 1e-6
)

// ErrEmptySpace is returned when no parameter is enabled for search.
var ErrEmptySpace = errors.New("search space has no enabled parameter")

// Options configures an Optimizer.
type Options struct {
	Space domain.SearchSpace
	Cache *Cache

	Policy           Policy // default LocalPolicy{MaxTests: DefaultMaxTests}
	Explore          Policy // fallback after a non-improving iteration; nil disables it
	MaxIterations    int    // default DefaultMaxIterations
	CandidateWorkers int    // candidates evaluated concurrently, default 1

	Start      domain.Params           // default Space.InitialParams()
	Checkpoint storage.CheckpointStore // written on every new global best
	Resume     bool                    // start from the stored checkpoint when present
	Reporter   storage.Reporter        // rewritten after every new simulation
	TopN       int                     // results passed to Reporter, default DefaultTopN

	Logger        *zerolog.Logger
	RecordMetrics bool
	Now           func() time.Time
}

// Result is the outcome of a search.
type Result struct {
	Best        domain.Params
	BestID      string
	BestMetrics domain.AggregateMetrics
	Iterations  int
	Converged   bool      // false when the iteration cap or cancellation stopped the search
	History     []float64 // best pnl before the first iteration and after each one
	Resumed     bool
}

// Optimizer runs a coordinate hill-climb over the enabled parameters.
type Optimizer struct {
	opts   Options
	logger zerolog.Logger

	reportMu sync.Mutex
}

// NewOptimizer creates an optimizer.
func NewOptimizer(opts Options) *Optimizer {
	if opts.Policy == nil {
		opts.Policy = LocalPolicy{MaxTests: DefaultMaxTests}
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.CandidateWorkers <= 0 {
		opts.CandidateWorkers = 1
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	o := &Optimizer{opts: opts, logger: zerolog.Nop()}
	if opts.Logger != nil {
		o.logger = opts.Logger.With().Str("component", "search").Logger()
	}
	return o
}

// Run searches until an iteration brings no improvement (after the
// exploration fallback, when configured), the iteration cap is reached or
// ctx is cancelled. The best pnl never decreases across iterations.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	params := o.opts.Space.Ordered()
	if len(params) == 0 {
		return nil, ErrEmptySpace
	}

	start, resumed, err := o.startParams(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := o.evaluate(ctx, start)
	if err != nil {
		return nil, err
	}
	res := &Result{Resumed: resumed, History: []float64{cur.Metrics.TotalPnL}}
	if err := o.newBest(ctx, cur, 0); err != nil {
		return nil, err
	}

	exploring := false
	for iter := 1; iter <= o.opts.MaxIterations; iter++ {
		policy := o.opts.Policy
		if exploring {
			policy = o.opts.Explore
		}

		improved := false
		for _, r := range params {
			if err := ctx.Err(); err != nil {
				return o.finish(res, cur), err
			}

			cands := policy.Propose(cur.Params, r, o.opts.Cache)
			if len(cands) == 0 {
				continue
			}
			evals, err := o.evaluateAll(ctx, cands)
			if err != nil {
				return o.finish(res, cur), err
			}

			best := evals[0]
			for _, ev := range evals[1:] {
				if ev.Metrics.TotalPnL > best.Metrics.TotalPnL {
					best = ev
				}
			}

			o.logger.Debug().
				Int("iteration", iter).
				Str("param", r.Name).
				Str("policy", policy.Name()).
				Int("candidates", len(cands)).
				Str("best_value", best.Params[r.Name].String()).
				Float64("best_candidate_pnl", best.Metrics.TotalPnL).
				Float64("current_pnl", cur.Metrics.TotalPnL).
				Msg("parameter visited")

			// The center only moves on a strict gain, so it always holds the
			// best pnl tested so far.
			if best.Metrics.TotalPnL > cur.Metrics.TotalPnL+improvementEpsilon {
				cur = best
				improved = true
				if err := o.newBest(ctx, cur, iter); err != nil {
					return o.finish(res, cur), err
				}
			}
		}

		res.Iterations = iter
		res.History = append(res.History, cur.Metrics.TotalPnL)
		if o.opts.RecordMetrics {
			observability.RecordSearchProgress(iter, cur.Metrics.TotalPnL)
		}
		stats := o.opts.Cache.Stats()
		o.logger.Info().
			Int("iteration", iter).
			Str("policy", policy.Name()).
			Bool("improved", improved).
			Float64("best_pnl", cur.Metrics.TotalPnL).
			Int64("simulated", stats.Simulated).
			Int64("cache_hits", stats.Hits).
			Msg("iteration complete")

		switch {
		case improved:
			exploring = false
		case !exploring && o.opts.Explore != nil:
			exploring = true
		default:
			res.Converged = true
			return o.finish(res, cur), nil
		}
	}
	return o.finish(res, cur), nil
}

func (o *Optimizer) finish(res *Result, cur Evaluation) *Result {
	res.Best = cur.Params
	res.BestID = cur.ConfigID
	res.BestMetrics = cur.Metrics
	return res
}

// startParams returns the configuration of the first evaluation: the
// checkpoint when resuming, otherwise Start or the initial values. Enabled
// or disabled parameters missing from it take their initial value.
func (o *Optimizer) startParams(ctx context.Context) (domain.Params, bool, error) {
	var start domain.Params
	resumed := false

	if o.opts.Resume && o.opts.Checkpoint != nil {
		cp, err := o.opts.Checkpoint.Load(ctx)
		switch {
		case err == nil:
			start = cp.Params.Clone()
			resumed = true
			o.logger.Info().
				Float64("pnl", cp.PnL).
				Time("saved_at", cp.Timestamp).
				Msg("resuming from checkpoint")
		case errors.Is(err, storage.ErrNotFound):
			o.logger.Info().Msg("no checkpoint, starting from initial values")
		default:
			return nil, false, fmt.Errorf("load checkpoint: %w", err)
		}
	}
	if start == nil && o.opts.Start != nil {
		start = o.opts.Start.Clone()
	}
	if start == nil {
		start = make(domain.Params)
	}
	for _, r := range o.opts.Space {
		if _, ok := start[r.Name]; !ok {
			start[r.Name] = r.Initial
		}
	}
	return start, resumed, nil
}

// evaluateAll evaluates candidates on up to CandidateWorkers goroutines and
// returns the evaluations in proposal order.
func (o *Optimizer) evaluateAll(ctx context.Context, cands []domain.Params) ([]Evaluation, error) {
	out := make([]Evaluation, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.CandidateWorkers)
	for i, p := range cands {
		g.Go(func() error {
			ev, err := o.evaluate(gctx, p)
			if err != nil {
				return err
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Optimizer) evaluate(ctx context.Context, p domain.Params) (Evaluation, error) {
	ev, err := o.opts.Cache.Evaluate(ctx, p)
	if err != nil {
		return Evaluation{}, err
	}
	if !ev.Cached && o.opts.Reporter != nil {
		o.reportMu.Lock()
		err = o.opts.Reporter.WriteTop(ctx, o.opts.Cache.Top(o.opts.TopN))
		o.reportMu.Unlock()
		if err != nil {
			return Evaluation{}, fmt.Errorf("write best results: %w", err)
		}
	}
	return ev, nil
}

// newBest checkpoints a new global best.
func (o *Optimizer) newBest(ctx context.Context, ev Evaluation, iter int) error {
	o.logger.Info().
		Int("iteration", iter).
		Str("config_id", ev.ConfigID).
		Float64("pnl", ev.Metrics.TotalPnL).
		Str("config", ev.Key).
		Msg("new best configuration")

	if o.opts.Checkpoint == nil {
		return nil
	}
	err := o.opts.Checkpoint.Save(ctx, &domain.BestCheckpoint{
		Timestamp: o.opts.Now().UTC(),
		PnL:       ev.Metrics.TotalPnL,
		Params:    ev.Params.Clone(),
	})
	if o.opts.RecordMetrics {
		observability.RecordCheckpoint(err)
	}
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
