package domain

import "github.com/shopspring/decimal"

// SimulationResult is the immutable aggregate output of one simulation.
type SimulationResult struct {
	Params SimulationParams `json:"params"`

	// Performance
	TotalReturnPct float64 `json:"total_return_pct"` // realized price PnL over initial capital, gross of fees/funding
	SharpeRatio    float64 `json:"sharpe_ratio"`     // annualized mean/stddev of per-bar equity returns
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // worst decline from the running equity peak
	WinRatePct     float64 `json:"win_rate_pct"`     // closed trades with PnL net of fees > 0, in percent

	// Activity
	NumTrades        int `json:"num_trades"` // closed trades (close_long, close_short, liquidation)
	LiquidationCount int `json:"liquidation_count"`
	ExtremeOverrides int `json:"extreme_overrides"` // contrarian extreme-zone override transitions

	// Costs (tracked separately from TotalReturnPct)
	FeesPaid    decimal.Decimal `json:"fees_paid"`    // sum of all open/close fees
	FundingPaid decimal.Decimal `json:"funding_paid"` // net funding paid; negative when net received

	// Exposure
	TimeInLongPct    float64 `json:"time_in_long_pct"`
	TimeInShortPct   float64 `json:"time_in_short_pct"`
	TimeInNeutralPct float64 `json:"time_in_neutral_pct"`

	// Input span
	SampleCount    int   `json:"sample_count"`
	StartTimestamp int64 `json:"start_timestamp"` // Unix ms of the first bar
	EndTimestamp   int64 `json:"end_timestamp"`   // Unix ms of the last bar

	// Trades is populated only when the engine records the trade log.
	Trades []TradeRecord `json:"trades,omitempty"`
}

// Objective metric names accepted by ranking and top-K queries.
const (
	MetricTotalReturn = "total_return_pct"
	MetricSharpe      = "sharpe_ratio"
)

// ObjectiveValue returns the named ranking metric.
// Unknown names fall back to total return.
func (r *SimulationResult) ObjectiveValue(metric string) float64 {
	if metric == MetricSharpe {
		return r.SharpeRatio
	}
	return r.TotalReturnPct
}
