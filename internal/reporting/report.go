package reporting

import (
	"time"

	"github.com/cchevrot/backtest/internal/domain"
)

// Report summarizes one parameter search.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	DayCount    int
	Iterations  int
	Evaluations int // configurations simulated
	CacheHits   int
	Converged   bool // stopped on a non-improving iteration rather than the cap

	// Best configuration
	Best *domain.ResultRecord

	// Best pnl after each iteration, starting with the initial configuration
	History []float64

	// Top results sorted by pnl
	Top []*domain.ResultRecord

	// Per-day metrics of the best configuration, in file order
	Days []domain.DayMetrics
}
