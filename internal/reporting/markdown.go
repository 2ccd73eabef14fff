package reporting

import (
	"fmt"
	"strings"
	"time"

	"fgi-strategy-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Sweep Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	}
	sb.WriteString(fmt.Sprintf("Objective: %s\n\n", r.Objective))

	// Sweep Summary
	sb.WriteString("## Sweep Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Asset | %s |\n", orDash(r.Summary.Asset)))
	sb.WriteString(fmt.Sprintf("| Timeframe | %s |\n", orDash(r.Summary.Timeframe)))
	sb.WriteString(fmt.Sprintf("| Mode | %s |\n", orDash(r.Summary.Mode)))
	sb.WriteString(fmt.Sprintf("| Runs | %d |\n", r.Summary.Runs))
	if r.Summary.Combinations > 0 {
		sb.WriteString(fmt.Sprintf("| Combinations | %d |\n", r.Summary.Combinations))
	}
	if r.Summary.Windows > 0 {
		sb.WriteString(fmt.Sprintf("| Windows | %d |\n", r.Summary.Windows))
	}
	if r.Summary.SeriesStart != 0 || r.Summary.SeriesEnd != 0 {
		sb.WriteString(fmt.Sprintf("| Series Span | %s to %s |\n",
			formatDay(r.Summary.SeriesStart), formatDay(r.Summary.SeriesEnd)))
	}
	sb.WriteString(fmt.Sprintf("| Avg Return %% | %.4f |\n", r.Summary.AvgReturnPct))
	sb.WriteString(fmt.Sprintf("| Median Return %% | %.4f |\n", r.Summary.MedianReturnPct))
	sb.WriteString(fmt.Sprintf("| Avg Sharpe | %.4f |\n", r.Summary.AvgSharpe))
	sb.WriteString(fmt.Sprintf("| Best Return %% | %.4f |\n", r.Summary.BestReturnPct))
	sb.WriteString(fmt.Sprintf("| Worst Return %% | %.4f |\n", r.Summary.WorstReturnPct))
	sb.WriteString(fmt.Sprintf("| Avg Max Drawdown %% | %.4f |\n", r.Summary.AvgMaxDrawdownPct))
	sb.WriteString(fmt.Sprintf("| Liquidations | %d |\n", r.Summary.TotalLiquidations))
	sb.WriteString("\n")

	// Ranked Results
	sb.WriteString(fmt.Sprintf("## Top Results by %s\n\n", r.Objective))
	if len(r.Ranked) > 0 {
		sb.WriteString("| # | Mode | Low | High | ExtLow | ExtHigh | Lev | Window | Return% | Sharpe | MaxDD% | WinRate% | Trades | Liqs |\n")
		sb.WriteString("|---|------|-----|------|--------|---------|-----|--------|---------|--------|--------|----------|--------|------|\n")
		for _, row := range r.Ranked {
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %d | %d | %d | %d | %s | %.4f | %.4f | %.4f | %.2f | %d | %d |\n",
				row.Rank, row.Mode, row.LowThreshold, row.HighThreshold,
				row.ExtremeLow, row.ExtremeHigh, row.Leverage, windowLabel(row.WindowIndex),
				row.TotalReturnPct, row.SharpeRatio, row.MaxDrawdownPct, row.WinRatePct,
				row.NumTrades, row.LiquidationCount))
		}
	} else {
		sb.WriteString("No results available.\n")
	}
	sb.WriteString("\n")

	// Per-Leverage Aggregates
	sb.WriteString("## Per-Leverage Aggregates\n\n")
	if len(r.LeverageAggregates) > 0 {
		sb.WriteString("| Lev | Runs | Avg Return% | Avg Sharpe | Best Return% | Avg MaxDD% | Liqs |\n")
		sb.WriteString("|-----|------|-------------|------------|--------------|------------|------|\n")
		for _, agg := range r.LeverageAggregates {
			sb.WriteString(fmt.Sprintf("| %d | %d | %.4f | %.4f | %.4f | %.4f | %d |\n",
				agg.Leverage, agg.Runs, agg.AvgReturnPct, agg.AvgSharpe,
				agg.BestReturnPct, agg.AvgMaxDrawdownPct, agg.Liquidations))
		}
	} else {
		sb.WriteString("No aggregates available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// windowLabel renders a window index, "full" for whole-series runs.
func windowLabel(idx int) string {
	if idx == domain.WholeSeriesWindow {
		return "full"
	}
	return fmt.Sprintf("%d", idx)
}

func formatDay(unixMs int64) string {
	return time.UnixMilli(unixMs).UTC().Format("2006-01-02")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
