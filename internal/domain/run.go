package domain

import "github.com/shopspring/decimal"

// PersistedRun is one append-only result row. Rows are inserted once
// per (sweep run, window, parameter combination) and never updated.
type PersistedRun struct {
	ID        string // deterministic sha256 row identity
	RunID     string // sweep batch identity (uuid), shared by all rows of one persist call
	CreatedAt int64  // Unix ms at persist time

	// Dimensions
	Asset         string
	Timeframe     string
	Mode          StrategyMode
	LowThreshold  int
	HighThreshold int
	ExtremeLow    int // normalized, 0 when disabled
	ExtremeHigh   int // normalized, 100 when disabled
	Leverage      int

	// Window identity. WholeSeriesWindow when the run covered the
	// full series; WindowStart/WindowEnd are the simulated span.
	WindowIndex int
	WindowStart int64
	WindowEnd   int64

	// Metrics
	TotalReturnPct   float64
	SharpeRatio      float64
	MaxDrawdownPct   float64
	WinRatePct       float64
	NumTrades        int
	LiquidationCount int
	SampleCount      int
	FeesPaid         decimal.Decimal
	FundingPaid      decimal.Decimal
}

// RunStats aggregates persisted runs matching a filter.
type RunStats struct {
	Runs              int
	AvgReturnPct      float64
	MedianReturnPct   float64
	AvgSharpe         float64
	BestReturnPct     float64
	WorstReturnPct    float64
	AvgMaxDrawdownPct float64
	TotalLiquidations int
}

// RunFromResult builds a persisted row from a simulation result.
// Params are normalized so stored extremes are always concrete.
func RunFromResult(id, runID string, createdAt int64, windowIndex int, res *SimulationResult) *PersistedRun {
	p := res.Params.Normalized()
	return &PersistedRun{
		ID:               id,
		RunID:            runID,
		CreatedAt:        createdAt,
		Asset:            p.Asset,
		Timeframe:        p.Timeframe,
		Mode:             p.Mode,
		LowThreshold:     p.LowThreshold,
		HighThreshold:    p.HighThreshold,
		ExtremeLow:       *p.ExtremeLow,
		ExtremeHigh:      *p.ExtremeHigh,
		Leverage:         p.Leverage,
		WindowIndex:      windowIndex,
		WindowStart:      res.StartTimestamp,
		WindowEnd:        res.EndTimestamp,
		TotalReturnPct:   res.TotalReturnPct,
		SharpeRatio:      res.SharpeRatio,
		MaxDrawdownPct:   res.MaxDrawdownPct,
		WinRatePct:       res.WinRatePct,
		NumTrades:        res.NumTrades,
		LiquidationCount: res.LiquidationCount,
		SampleCount:      res.SampleCount,
		FeesPaid:         res.FeesPaid,
		FundingPaid:      res.FundingPaid,
	}
}
