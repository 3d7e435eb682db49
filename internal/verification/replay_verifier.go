package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/search"
	"github.com/cchevrot/backtest/internal/storage"
)

// ErrResultNotFound is returned when a config ID is not in the store.
var ErrResultNotFound = errors.New("result not found")

// ReplayVerifier re-simulates stored configurations.
type ReplayVerifier struct {
	store  storage.ResultStore
	eval   search.Evaluator
	logger zerolog.Logger
}

// ReplayVerifierOptions configures a ReplayVerifier.
type ReplayVerifierOptions struct {
	Store     storage.ResultStore
	Evaluator search.Evaluator // must not be a cache, or nothing is replayed
	Logger    *zerolog.Logger
}

// NewReplayVerifier creates a verifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	v := &ReplayVerifier{store: opts.Store, eval: opts.Evaluator, logger: zerolog.Nop()}
	if opts.Logger != nil {
		v.logger = opts.Logger.With().Str("component", "verify").Logger()
	}
	return v
}

// Verify replays one stored record.
func (v *ReplayVerifier) Verify(ctx context.Context, stored *domain.ResultRecord) (*Result, error) {
	replayed, err := v.eval.Evaluate(ctx, stored.Params)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", stored.ConfigID, err)
	}
	div := CompareMetrics(stored.Metrics, *replayed)
	return &Result{
		ConfigID:    stored.ConfigID,
		Match:       len(div) == 0,
		Divergences: div,
		StoredPnL:   stored.Metrics.TotalPnL,
		ReplayedPnL: replayed.TotalPnL,
	}, nil
}

// VerifyID replays the record stored under configID.
func (v *ReplayVerifier) VerifyID(ctx context.Context, configID string) (*Result, error) {
	all, err := v.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if r.ConfigID == configID {
			return v.Verify(ctx, r)
		}
	}
	return nil, ErrResultNotFound
}

// VerifyTop replays the n best stored records (all when n <= 0).
// Replay failures are reported as divergences; only cancellation aborts.
func (v *ReplayVerifier) VerifyTop(ctx context.Context, n int) (*Report, error) {
	records, err := v.store.Top(ctx, n)
	if err != nil {
		return nil, err
	}

	report := &Report{Total: len(records), Results: make([]Result, 0, len(records))}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := v.Verify(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			res = &Result{
				ConfigID:    r.ConfigID,
				StoredPnL:   r.Metrics.TotalPnL,
				Divergences: []FieldDivergence{{Field: "error", Actual: err.Error()}},
			}
		}

		report.Results = append(report.Results, *res)
		if res.Match {
			report.Matched++
			continue
		}
		report.Divergent++
		v.logger.Warn().
			Str("config_id", res.ConfigID).
			Float64("stored_pnl", res.StoredPnL).
			Float64("replayed_pnl", res.ReplayedPnL).
			Int("fields", len(res.Divergences)).
			Msg("stored result diverges from replay")
	}
	return report, nil
}
