// Package reporting renders ranked sweep results as markdown and CSV.
package reporting

import "time"

// Report is the rendered view of one sweep: what space was searched,
// which parameter sets came out on top, and how each leverage tier did.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Objective   string

	// Sweep Summary
	Summary SweepSummary

	// Ranked results, best first by the objective
	Ranked []RankedRow

	// Per-leverage aggregates across everything matching the report scope
	LeverageAggregates []LeverageAggregateRow
}

// SweepSummary describes the searched space and its aggregate outcome.
type SweepSummary struct {
	Asset     string
	Timeframe string
	Mode      string

	// Shape of the sweep. Combinations and Windows are zero when the
	// report is built from stored rows, where the grid shape is unknown.
	Runs         int
	Combinations int
	Windows      int

	// Span covered by the listed rows, Unix ms.
	SeriesStart int64
	SeriesEnd   int64

	AvgReturnPct      float64
	MedianReturnPct   float64
	AvgSharpe         float64
	BestReturnPct     float64
	WorstReturnPct    float64
	AvgMaxDrawdownPct float64
	TotalLiquidations int
}

// RankedRow is one line of the ranked results table.
type RankedRow struct {
	Rank          int
	Mode          string
	LowThreshold  int
	HighThreshold int
	ExtremeLow    int
	ExtremeHigh   int
	Leverage      int

	// WindowIndex is -1 for whole-series runs.
	WindowIndex int

	TotalReturnPct   float64
	SharpeRatio      float64
	MaxDrawdownPct   float64
	WinRatePct       float64
	NumTrades        int
	LiquidationCount int
}

// LeverageAggregateRow aggregates results sharing one leverage.
type LeverageAggregateRow struct {
	Leverage          int
	Runs              int
	AvgReturnPct      float64
	AvgSharpe         float64
	BestReturnPct     float64
	AvgMaxDrawdownPct float64
	Liquidations      int
}
