// Package verification replays stored results and reports where the
// re-simulated metrics diverge from the stored ones. A divergence means the
// day files or the engine changed since the result was recorded, and the
// memoized result can no longer be trusted.
package verification

import (
	"math"

	"github.com/cchevrot/backtest/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
// Stored results go through 6-decimal text columns in the file store.
const FloatTolerance = 1e-6

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string
	Expected any // stored value
	Actual   any // replayed value
}

// Result is the verification of one stored configuration.
type Result struct {
	ConfigID    string
	Match       bool
	Divergences []FieldDivergence
	StoredPnL   float64
	ReplayedPnL float64
}

// Report contains results for batch verification.
type Report struct {
	Total     int
	Matched   int
	Divergent int
	Results   []Result
}

// CompareMetrics compares two aggregates field by field.
func CompareMetrics(stored, replayed domain.AggregateMetrics) []FieldDivergence {
	var out []FieldDivergence
	float := func(field string, a, b float64) {
		if !floatEquals(a, b) {
			out = append(out, FieldDivergence{Field: field, Expected: a, Actual: b})
		}
	}
	count := func(field string, a, b int) {
		if a != b {
			out = append(out, FieldDivergence{Field: field, Expected: a, Actual: b})
		}
	}

	float("total_pnl", stored.TotalPnL, replayed.TotalPnL)
	float("total_invested_capital", stored.TotalInvestedCapital, replayed.TotalInvestedCapital)
	if !floatPtrEquals(stored.TotalROI, replayed.TotalROI) {
		out = append(out, FieldDivergence{Field: "total_roi", Expected: stored.TotalROI, Actual: replayed.TotalROI})
	}
	float("daily_pnl_std", stored.DailyPnLStd, replayed.DailyPnLStd)
	count("positive_or_zero_pnl_days", stored.PositiveOrZeroPnLDays, replayed.PositiveOrZeroPnLDays)
	count("negative_pnl_days", stored.NegativePnLDays, replayed.NegativePnLDays)
	float("drawdown", stored.Drawdown, replayed.Drawdown)

	// Records loaded from a pnl-only results log carry no trade or day counts.
	if stored.Days != 0 {
		count("total_trades", stored.TotalTrades, replayed.TotalTrades)
		count("days", stored.Days, replayed.Days)
	}
	return out
}

// floatEquals compares within FloatTolerance, relative for large values.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// floatPtrEquals returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}
