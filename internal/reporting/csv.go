package reporting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cchevrot/backtest/internal/domain"
)

// RenderCSV renders ranked results as CSV string. Parameter columns are the
// sorted union of all records' parameter names.
func RenderCSV(records []*domain.ResultRecord) string {
	var sb strings.Builder
	names := paramNames(records)

	// Header
	sb.WriteString("rank,config_id,pnl,total_invested_capital,total_roi,daily_pnl_std,")
	sb.WriteString("positive_or_zero_pnl_days,negative_pnl_days,drawdown,total_trades,days,win_rate")
	for _, n := range names {
		sb.WriteString(",")
		sb.WriteString(n)
	}
	sb.WriteString("\n")

	// Rows
	for i, r := range records {
		m := r.Metrics
		sb.WriteString(fmt.Sprintf("%d,%s,%.6f,%.6f,%s,%.6f,%d,%d,%.6f,%d,%d,%.4f",
			i+1,
			r.ConfigID,
			m.TotalPnL,
			m.TotalInvestedCapital,
			formatROI(m.TotalROI),
			m.DailyPnLStd,
			m.PositiveOrZeroPnLDays,
			m.NegativePnLDays,
			m.Drawdown,
			m.TotalTrades,
			m.Days,
			m.WinRate,
		))
		for _, n := range names {
			sb.WriteString(",")
			if v, ok := r.Params[n]; ok {
				sb.WriteString(v.String())
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderDaysCSV renders per-day metrics as CSV string.
func RenderDaysCSV(days []domain.DayMetrics) string {
	var sb strings.Builder

	sb.WriteString("day,pnl,invested_capital,distinct_tickers_traded,roi,trades,failed\n")
	for _, d := range days {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%d,%s,%d,%t\n",
			d.Day,
			d.PnL,
			d.InvestedCapital,
			d.DistinctTickersTraded,
			formatROI(d.ROI),
			d.Trades,
			d.Failed,
		))
	}
	return sb.String()
}

// formatROI renders an undefined ROI as an empty cell.
func formatROI(roi *float64) string {
	if roi == nil {
		return ""
	}
	return strconv.FormatFloat(*roi, 'f', 6, 64)
}

func paramNames(records []*domain.ResultRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for n := range r.Params {
			seen[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
