// Package verification replays persisted simulation runs against a
// source series and checks that stored metrics match a fresh
// computation. It is the operational form of the determinism property:
// same series, same parameters, same numbers.
package verification

import (
	"context"
	"math"

	"fgi-strategy-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 metric comparisons.
// Decimal money fields are compared exactly.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and recomputed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // recomputed value
}

// RowResult contains the result of verifying a single persisted row.
type RowResult struct {
	RowID       string
	WindowIndex int
	Match       bool
	Divergences []FieldDivergence

	StoredReturnPct     float64
	RecomputedReturnPct float64
}

// Report contains results for verifying one sweep run.
type Report struct {
	RunID         string
	TotalRows     int
	MatchedRows   int
	DivergentRows int
	Results       []RowResult
}

// Verifier replays persisted rows against a source series.
type Verifier interface {
	// VerifyRow verifies a single row by its ID.
	// It loads the stored row, re-runs the simulation on the matching
	// slice of the series, and compares all result fields.
	VerifyRow(ctx context.Context, rowID string, series domain.Series) (*RowResult, error)

	// VerifyRun verifies every row persisted under one sweep run ID.
	// Returns a report with individual results.
	VerifyRun(ctx context.Context, runID string, series domain.Series) (*Report, error)
}

// CompareRun compares a stored row against a recomputed result and
// returns divergences. Float metrics use FloatTolerance; counts,
// timestamps and decimal money fields must match exactly.
func CompareRun(stored *domain.PersistedRun, recomputed *domain.SimulationResult) []FieldDivergence {
	var divergences []FieldDivergence

	if !floatEquals(stored.TotalReturnPct, recomputed.TotalReturnPct) {
		divergences = append(divergences, FieldDivergence{
			Field:    "TotalReturnPct",
			Expected: stored.TotalReturnPct,
			Actual:   recomputed.TotalReturnPct,
		})
	}

	if !floatEquals(stored.SharpeRatio, recomputed.SharpeRatio) {
		divergences = append(divergences, FieldDivergence{
			Field:    "SharpeRatio",
			Expected: stored.SharpeRatio,
			Actual:   recomputed.SharpeRatio,
		})
	}

	if !floatEquals(stored.MaxDrawdownPct, recomputed.MaxDrawdownPct) {
		divergences = append(divergences, FieldDivergence{
			Field:    "MaxDrawdownPct",
			Expected: stored.MaxDrawdownPct,
			Actual:   recomputed.MaxDrawdownPct,
		})
	}

	if !floatEquals(stored.WinRatePct, recomputed.WinRatePct) {
		divergences = append(divergences, FieldDivergence{
			Field:    "WinRatePct",
			Expected: stored.WinRatePct,
			Actual:   recomputed.WinRatePct,
		})
	}

	if stored.NumTrades != recomputed.NumTrades {
		divergences = append(divergences, FieldDivergence{
			Field:    "NumTrades",
			Expected: stored.NumTrades,
			Actual:   recomputed.NumTrades,
		})
	}

	if stored.LiquidationCount != recomputed.LiquidationCount {
		divergences = append(divergences, FieldDivergence{
			Field:    "LiquidationCount",
			Expected: stored.LiquidationCount,
			Actual:   recomputed.LiquidationCount,
		})
	}

	if stored.SampleCount != recomputed.SampleCount {
		divergences = append(divergences, FieldDivergence{
			Field:    "SampleCount",
			Expected: stored.SampleCount,
			Actual:   recomputed.SampleCount,
		})
	}

	// Span mismatches mean the row was replayed against the wrong
	// series or the wrong slice of it.
	if stored.WindowStart != recomputed.StartTimestamp {
		divergences = append(divergences, FieldDivergence{
			Field:    "StartTimestamp",
			Expected: stored.WindowStart,
			Actual:   recomputed.StartTimestamp,
		})
	}

	if stored.WindowEnd != recomputed.EndTimestamp {
		divergences = append(divergences, FieldDivergence{
			Field:    "EndTimestamp",
			Expected: stored.WindowEnd,
			Actual:   recomputed.EndTimestamp,
		})
	}

	// Money fields are decimals and must round-trip exactly.
	if !stored.FeesPaid.Equal(recomputed.FeesPaid) {
		divergences = append(divergences, FieldDivergence{
			Field:    "FeesPaid",
			Expected: stored.FeesPaid.String(),
			Actual:   recomputed.FeesPaid.String(),
		})
	}

	if !stored.FundingPaid.Equal(recomputed.FundingPaid) {
		divergences = append(divergences, FieldDivergence{
			Field:    "FundingPaid",
			Expected: stored.FundingPaid.String(),
			Actual:   recomputed.FundingPaid.String(),
		})
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
