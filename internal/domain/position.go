package domain

import "github.com/shopspring/decimal"

// PositionState is the per-bar state of the simulated account.
type PositionState string

// Position state constants. Liquidated is terminal: once entered, no
// further trades occur and remaining bars are booked as neutral.
const (
	StateNeutral    PositionState = "NEUTRAL"
	StateLong       PositionState = "LONG"
	StateShort      PositionState = "SHORT"
	StateLiquidated PositionState = "LIQUIDATED"
)

// Position is the open leveraged position of one in-flight simulation.
// It is owned exclusively by a single step loop and never shared
// across runs.
type Position struct {
	State          PositionState   // LONG or SHORT while open
	Notional       decimal.Decimal // margin * leverage, set at open
	EntryPrice     decimal.Decimal // bar price at open
	Leverage       int             // multiplier baked into Notional
	EntryTimestamp int64           // Unix ms of the opening bar
	FundingAccrued decimal.Decimal // signed; negative when the position pays
}

// Open reports whether the position holds exposure.
func (p *Position) Open() bool {
	return p.State == StateLong || p.State == StateShort
}
