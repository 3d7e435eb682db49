package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Parameter Search Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	status := "iteration cap reached"
	if r.Converged {
		status = "converged"
	}
	sb.WriteString(fmt.Sprintf("Days: %d | Iterations: %d | Simulated: %d | Cache hits: %d | Status: %s\n\n",
		r.DayCount, r.Iterations, r.Evaluations, r.CacheHits, status))

	// Best configuration
	sb.WriteString("## Best Configuration\n\n")
	if r.Best != nil {
		m := r.Best.Metrics
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Total PnL | %.2f |\n", m.TotalPnL))
		sb.WriteString(fmt.Sprintf("| Invested Capital | %.2f |\n", m.TotalInvestedCapital))
		roi := formatROI(m.TotalROI)
		if roi == "" {
			roi = "n/a"
		}
		sb.WriteString(fmt.Sprintf("| Total ROI %% | %s |\n", roi))
		sb.WriteString(fmt.Sprintf("| Daily PnL Std | %.4f |\n", m.DailyPnLStd))
		sb.WriteString(fmt.Sprintf("| Days >= 0 / < 0 | %d / %d |\n", m.PositiveOrZeroPnLDays, m.NegativePnLDays))
		sb.WriteString(fmt.Sprintf("| Drawdown | %.2f |\n", m.Drawdown))
		sb.WriteString(fmt.Sprintf("| Trades | %d |\n", m.TotalTrades))
		sb.WriteString("\n")

		sb.WriteString("| Parameter | Value |\n")
		sb.WriteString("|-----------|-------|\n")
		for _, name := range r.Best.Params.Names() {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", name, r.Best.Params[name]))
		}
	} else {
		sb.WriteString("No configuration evaluated.\n")
	}
	sb.WriteString("\n")

	// Progress
	sb.WriteString("## Progress\n\n")
	if len(r.History) > 0 {
		sb.WriteString("| Iteration | Best PnL |\n")
		sb.WriteString("|-----------|----------|\n")
		for i, pnl := range r.History {
			sb.WriteString(fmt.Sprintf("| %d | %.2f |\n", i, pnl))
		}
	} else {
		sb.WriteString("No iterations recorded.\n")
	}
	sb.WriteString("\n")

	// Top results
	sb.WriteString("## Top Results\n\n")
	if len(r.Top) > 0 {
		sb.WriteString("| Rank | Config | PnL | Invested | Trades | Negative Days |\n")
		sb.WriteString("|------|--------|-----|----------|--------|---------------|\n")
		for i, rec := range r.Top {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.2f | %.2f | %d | %d |\n",
				i+1, shortID(rec.ConfigID), rec.Metrics.TotalPnL, rec.Metrics.TotalInvestedCapital,
				rec.Metrics.TotalTrades, rec.Metrics.NegativePnLDays))
		}
	} else {
		sb.WriteString("No results available.\n")
	}
	sb.WriteString("\n")

	// Per-day breakdown
	if len(r.Days) > 0 {
		sb.WriteString("## Days\n\n")
		sb.WriteString("| Day | PnL | Invested | Tickers | Status |\n")
		sb.WriteString("|-----|-----|----------|---------|--------|\n")
		for _, d := range r.Days {
			st := "ok"
			if d.Failed {
				st = "FAILED"
			}
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.2f | %d | %s |\n",
				d.Day, d.PnL, d.InvestedCapital, d.DistinctTickersTraded, st))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
