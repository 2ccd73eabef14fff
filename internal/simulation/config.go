package simulation

import "github.com/shopspring/decimal"

// Config holds the account and market mechanics for a simulation run.
// All money values are decimals; rates are fractions, not percentages.
type Config struct {
	// InitialCapital is the starting cash balance.
	InitialCapital decimal.Decimal

	// FeeRate is charged on notional at every open and close.
	FeeRate decimal.Decimal

	// FundingRatePerBar accrues on open notional once per bar.
	FundingRatePerBar decimal.Decimal

	// LongPaysFunding picks the paying side: when true longs pay and
	// shorts receive, when false the flow inverts.
	LongPaysFunding bool

	// LiquidationThreshold switches the liquidation rule. Zero keeps the
	// plain equity <= 0 check; a positive fraction triggers when
	// (notional - equity) / notional reaches it.
	LiquidationThreshold decimal.Decimal

	// LiquidationLossFraction is the share of remaining cash written off
	// when a position is liquidated.
	LiquidationLossFraction decimal.Decimal

	// SettlePlaces is the decimal precision applied at cash events.
	SettlePlaces int32

	// PeriodsPerYear annualizes the Sharpe ratio (365 for daily bars).
	PeriodsPerYear float64

	// RecordTrades keeps the per-trade log on the result. Sweeps turn
	// this off to keep thousands of results small.
	RecordTrades bool
}

// DefaultConfig returns the standard account mechanics: 10k starting
// capital, 5bps fee, 1bp funding per bar paid by longs, full loss on
// liquidation, settlement at 8 decimal places.
func DefaultConfig() Config {
	return Config{
		InitialCapital:          decimal.NewFromInt(10000),
		FeeRate:                 decimal.RequireFromString("0.0005"),
		FundingRatePerBar:       decimal.RequireFromString("0.0001"),
		LongPaysFunding:         true,
		LiquidationThreshold:    decimal.Zero,
		LiquidationLossFraction: decimal.NewFromInt(1),
		SettlePlaces:            8,
		PeriodsPerYear:          365,
		RecordTrades:            true,
	}
}

// settle applies settlement rounding: half away from zero at SettlePlaces.
// Intermediate ratios stay unrounded; only cash-affecting amounts pass
// through here.
func (c Config) settle(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.SettlePlaces)
}
