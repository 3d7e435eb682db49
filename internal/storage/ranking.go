package storage

import (
	"sort"

	"github.com/cchevrot/backtest/internal/domain"
)

// RankByPnL sorts records by descending total pnl, ties by ConfigID, and
// returns at most n of them (all when n <= 0). The input is not modified.
func RankByPnL(records []*domain.ResultRecord, n int) []*domain.ResultRecord {
	out := make([]*domain.ResultRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Metrics.TotalPnL != out[j].Metrics.TotalPnL {
			return out[i].Metrics.TotalPnL > out[j].Metrics.TotalPnL
		}
		return out[i].ConfigID < out[j].ConfigID
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Validate checks the fields every store relies on.
func Validate(r *domain.ResultRecord) error {
	if r == nil || r.ConfigID == "" || r.Key == "" || len(r.Params) == 0 {
		return ErrInvalidInput
	}
	return nil
}
