package domain

// DayMetrics summarizes one simulated trading day.
type DayMetrics struct {
	Day                   string   `json:"day"`
	PnL                   float64  `json:"pnl"`
	InvestedCapital       float64  `json:"invested_capital"`
	DistinctTickersTraded int      `json:"distinct_tickers_traded"`
	ROI                   *float64 `json:"roi"` // nil when no capital was invested
	Trades                int      `json:"trades"`
	Failed                bool     `json:"failed,omitempty"` // day file could not be read
}

// AggregateMetrics summarizes a configuration over a batch of days.
//
// TotalROI is TotalPnL / TotalInvestedCapital * 100 and is nil when no
// capital was invested over the whole batch.
type AggregateMetrics struct {
	TotalPnL              float64  `json:"total_pnl"`
	TotalInvestedCapital  float64  `json:"total_invested_capital"`
	TotalROI              *float64 `json:"total_roi"`
	DailyPnLStd           float64  `json:"daily_pnl_std"` // population stddev, 0 for fewer than 2 days
	PositiveOrZeroPnLDays int      `json:"positive_or_zero_pnl_days"`
	NegativePnLDays       int      `json:"negative_pnl_days"`
	Drawdown              float64  `json:"drawdown"` // max drop of cumulative daily pnl, file order
	TotalTrades           int      `json:"total_trades"`
	Days                  int      `json:"days"`
	WinRate               float64  `json:"win_rate"` // percent of non-negative days
}

// ROI returns pnl/invested*100, or nil when invested is zero.
func ROI(pnl, invested float64) *float64 {
	if invested == 0 {
		return nil
	}
	roi := pnl / invested * 100
	return &roi
}
