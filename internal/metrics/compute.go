// Package metrics aggregates per-day simulation results.
package metrics

import (
	"math"

	"github.com/cchevrot/backtest/internal/domain"
)

// Aggregate combines day results in file order. Failed days are expected
// to carry zero metrics and count as zero-pnl days.
func Aggregate(days []domain.DayMetrics) domain.AggregateMetrics {
	agg := domain.AggregateMetrics{Days: len(days)}
	if len(days) == 0 {
		return agg
	}

	pnls := make([]float64, len(days))
	for i, d := range days {
		pnls[i] = d.PnL
		agg.TotalPnL += d.PnL
		agg.TotalInvestedCapital += d.InvestedCapital
		agg.TotalTrades += d.Trades
		if d.PnL >= 0 {
			agg.PositiveOrZeroPnLDays++
		} else {
			agg.NegativePnLDays++
		}
	}

	agg.TotalROI = domain.ROI(agg.TotalPnL, agg.TotalInvestedCapital)
	agg.DailyPnLStd = computeStddev(pnls, computeMean(pnls))
	agg.Drawdown = computeMaxDrawdown(pnls)
	agg.WinRate = computeWinRate(agg.PositiveOrZeroPnLDays, len(days))
	return agg
}

func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev returns the population standard deviation, 0 for fewer
// than two values.
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n))
}

// computeMaxDrawdown returns the largest drop of the running sum below its
// previous peak. The running sum starts at 0.
func computeMaxDrawdown(values []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range values {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}
