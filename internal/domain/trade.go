package domain

import "github.com/shopspring/decimal"

// TradeAction identifies what a trade log entry did.
type TradeAction string

// Trade action constants.
const (
	ActionOpenLong    TradeAction = "open_long"
	ActionOpenShort   TradeAction = "open_short"
	ActionCloseLong   TradeAction = "close_long"
	ActionCloseShort  TradeAction = "close_short"
	ActionLiquidation TradeAction = "liquidation"
)

// Closing reports whether the action closes exposure
// (close_long, close_short, or liquidation).
func (a TradeAction) Closing() bool {
	switch a {
	case ActionCloseLong, ActionCloseShort, ActionLiquidation:
		return true
	}
	return false
}

// Opening reports whether the action opens exposure.
func (a TradeAction) Opening() bool {
	return a == ActionOpenLong || a == ActionOpenShort
}

// TradeRecord is an immutable log entry for one position event.
type TradeRecord struct {
	Timestamp int64       `json:"timestamp"` // Unix ms of the bar that produced the event
	Action    TradeAction `json:"action"`    // open_long | open_short | close_long | close_short | liquidation

	// Bar context
	Price     decimal.Decimal `json:"price"`     // execution price (the bar's price)
	Sentiment float64         `json:"sentiment"` // FGI reading that drove the decision

	// Accounting
	Notional     decimal.Decimal `json:"notional"`      // position notional at the event
	PnL          decimal.Decimal `json:"pnl"`           // realized price PnL (zero on opens)
	Fees         decimal.Decimal `json:"fees"`          // fee charged by this event
	BalanceAfter decimal.Decimal `json:"balance_after"` // cash balance after settlement
}
