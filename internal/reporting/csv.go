package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders ranked rows as CSV string.
func RenderCSV(rows []RankedRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("rank,mode,low_threshold,high_threshold,extreme_low,extreme_high,leverage,window_index,")
	sb.WriteString("total_return_pct,sharpe_ratio,max_drawdown_pct,win_rate_pct,")
	sb.WriteString("num_trades,liquidation_count\n")

	// Rows
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%d,%d,%d,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%d,%d\n",
			row.Rank,
			row.Mode,
			row.LowThreshold,
			row.HighThreshold,
			row.ExtremeLow,
			row.ExtremeHigh,
			row.Leverage,
			row.WindowIndex,
			row.TotalReturnPct,
			row.SharpeRatio,
			row.MaxDrawdownPct,
			row.WinRatePct,
			row.NumTrades,
			row.LiquidationCount,
		))
	}

	return sb.String()
}
