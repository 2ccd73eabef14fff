package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/metrics"
	"fgi-strategy-lab/internal/strategy"
)

// Engine errors
var (
	ErrInvalidConfig = errors.New("invalid simulation config")
)

// Engine runs leveraged long/short simulations over sentiment-annotated
// price series. An Engine is stateless between runs and safe for
// concurrent use; all per-run state lives in a ledger.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given account mechanics.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run simulates one parameter set over a series.
// Steps per bar:
//  1. Halted runs only book a NEUTRAL bar with zero equity.
//  2. Mark the open position to the bar's price.
//  3. Accrue funding on the open notional.
//  4. Check liquidation; a trigger closes the book and halts trading.
//  5. On the final bar force-close any open position; never open a new one.
//  6. Otherwise evaluate the strategy and rotate the position when the
//     desired direction changed. HOLD and same-direction decisions keep
//     the position: the band between thresholds holds, it does not flatten.
//  7. Book end-of-bar state and equity.
//
// Liquidation is an outcome, not an error: the returned result is valid
// and carries the liquidation trade record.
func (e *Engine) Run(ctx context.Context, series domain.Series, params domain.SimulationParams) (*domain.SimulationResult, error) {
	if !e.cfg.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("%w: initial capital must be positive", ErrInvalidConfig)
	}
	if e.cfg.FeeRate.IsNegative() {
		return nil, fmt.Errorf("%w: fee rate must not be negative", ErrInvalidConfig)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	strat, err := strategy.FromParams(params)
	if err != nil {
		return nil, err
	}

	led := newLedger(e.cfg, params.Leverage)

	for i := range series {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bar := series[i]
		finalBar := i == len(series)-1

		// 1. Halted: bookkeeping only
		if led.halted {
			led.bookBar(domain.StateNeutral, decimal.Zero)
			continue
		}

		// 2.-3. Mark to market and accrue funding on the open position
		if led.pos.Open() {
			unrealized := led.markToMarket(bar.Price)
			led.accrueFunding()

			// 4. Liquidation check on equity
			equity := led.cash.Add(unrealized).Add(led.pos.FundingAccrued)
			if led.shouldLiquidate(equity) {
				led.liquidate(bar)
				led.bookBar(domain.StateNeutral, decimal.Zero)
				continue
			}
		}

		// 5. Final bar: force-close, never open
		if finalBar {
			if led.pos.Open() {
				led.closePosition(bar)
			}
			led.bookBar(domain.StateNeutral, led.cash)
			continue
		}

		// 6. Evaluate and rotate
		decision := strat.Evaluate(bar.Sentiment)
		led.trackOverride(decision.ExtremeOverride)

		switch decision.Signal {
		case strategy.SignalLong:
			led.rotate(domain.StateLong, bar)
		case strategy.SignalShort:
			led.rotate(domain.StateShort, bar)
		}

		// 7. End-of-bar state and equity
		led.bookBar(led.state(), led.endEquity(bar.Price))
	}

	return led.result(series, params), nil
}

// ledger tracks the cash account, the open position and every counter a
// result needs, bar by bar.
type ledger struct {
	cfg      Config
	leverage int

	cash decimal.Decimal
	pos  domain.Position

	halted         bool
	overrideActive bool

	trades        []domain.TradeRecord
	realizedGross decimal.Decimal
	feesPaid      decimal.Decimal
	fundingPaid   decimal.Decimal

	closedTrades int
	wins         int
	liquidations int
	overrides    int

	barsLong    int
	barsShort   int
	barsNeutral int

	equityCurve []float64
}

func newLedger(cfg Config, leverage int) *ledger {
	return &ledger{
		cfg:           cfg,
		leverage:      leverage,
		cash:          cfg.InitialCapital,
		pos:           domain.Position{State: domain.StateNeutral},
		realizedGross: decimal.Zero,
		feesPaid:      decimal.Zero,
		fundingPaid:   decimal.Zero,
	}
}

// markToMarket returns the unrealized PnL of the open position at price.
// Notional already includes leverage, so no extra scaling is applied.
func (l *ledger) markToMarket(price decimal.Decimal) decimal.Decimal {
	move := price.Sub(l.pos.EntryPrice).Div(l.pos.EntryPrice)
	unrealized := l.pos.Notional.Mul(move)
	if l.pos.State == domain.StateShort {
		unrealized = unrealized.Neg()
	}
	return unrealized
}

// accrueFunding books one bar of funding against the open position.
// Longs pay when LongPaysFunding is set, shorts otherwise; the receiving
// side collects the same amount.
func (l *ledger) accrueFunding() {
	if l.cfg.FundingRatePerBar.IsZero() {
		return
	}

	step := l.cfg.settle(l.pos.Notional.Mul(l.cfg.FundingRatePerBar))
	paying := (l.pos.State == domain.StateLong) == l.cfg.LongPaysFunding
	if paying {
		l.pos.FundingAccrued = l.pos.FundingAccrued.Sub(step)
		l.fundingPaid = l.fundingPaid.Add(step)
	} else {
		l.pos.FundingAccrued = l.pos.FundingAccrued.Add(step)
		l.fundingPaid = l.fundingPaid.Sub(step)
	}
}

// shouldLiquidate applies the configured liquidation rule to equity.
func (l *ledger) shouldLiquidate(equity decimal.Decimal) bool {
	if equity.LessThanOrEqual(decimal.Zero) {
		return true
	}
	if l.cfg.LiquidationThreshold.IsPositive() {
		marginUsed := l.pos.Notional.Sub(equity).Div(l.pos.Notional)
		return marginUsed.GreaterThanOrEqual(l.cfg.LiquidationThreshold)
	}
	return false
}

// liquidate writes off the account: the loss fraction of remaining cash is
// booked as the liquidation PnL, cash drops to zero and trading halts for
// the rest of the series.
func (l *ledger) liquidate(bar domain.Sample) {
	loss := l.cfg.settle(l.cash.Mul(l.cfg.LiquidationLossFraction))
	pnl := loss.Neg()

	l.record(domain.TradeRecord{
		Timestamp:    bar.Timestamp,
		Action:       domain.ActionLiquidation,
		Price:        bar.Price,
		Sentiment:    bar.Sentiment,
		Notional:     l.pos.Notional,
		PnL:          pnl,
		Fees:         decimal.Zero,
		BalanceAfter: decimal.Zero,
	})

	l.cash = decimal.Zero
	l.realizedGross = l.realizedGross.Add(pnl)
	l.closedTrades++
	l.liquidations++
	l.halted = true
	l.pos = domain.Position{State: domain.StateLiquidated}
}

// rotate moves the book to the desired side. Same-direction decisions are
// a no-op; a direction change closes at the bar's price before reopening.
func (l *ledger) rotate(desired domain.PositionState, bar domain.Sample) {
	if l.pos.State == desired {
		return
	}
	if l.pos.Open() {
		l.closePosition(bar)
	}
	l.openPosition(desired, bar)
}

// closePosition realizes the open position at the bar's price: price PnL
// and accrued funding settle into cash, the closing fee is charged on the
// stored notional.
func (l *ledger) closePosition(bar domain.Sample) {
	realized := l.cfg.settle(l.markToMarket(bar.Price))
	closeFee := l.cfg.settle(l.pos.Notional.Mul(l.cfg.FeeRate))

	l.cash = l.cash.Add(realized).Sub(closeFee).Add(l.pos.FundingAccrued)
	l.realizedGross = l.realizedGross.Add(realized)
	l.feesPaid = l.feesPaid.Add(closeFee)

	l.closedTrades++
	if realized.Sub(closeFee).IsPositive() {
		l.wins++
	}

	action := domain.ActionCloseLong
	if l.pos.State == domain.StateShort {
		action = domain.ActionCloseShort
	}

	l.record(domain.TradeRecord{
		Timestamp:    bar.Timestamp,
		Action:       action,
		Price:        bar.Price,
		Sentiment:    bar.Sentiment,
		Notional:     l.pos.Notional,
		PnL:          realized,
		Fees:         closeFee,
		BalanceAfter: l.cash,
	})

	l.pos = domain.Position{State: domain.StateNeutral}
}

// openPosition sizes a new position from current cash: the opening fee on
// the target notional comes out first, the remainder is margined at full
// leverage. Cash stays in the account as margin.
func (l *ledger) openPosition(side domain.PositionState, bar domain.Sample) {
	lev := decimal.NewFromInt(int64(l.leverage))
	openFee := l.cfg.settle(l.cash.Mul(lev).Mul(l.cfg.FeeRate))
	margin := l.cash.Sub(openFee)
	if !margin.IsPositive() {
		return // nothing left to margin, stay flat
	}

	l.cash = margin
	l.feesPaid = l.feesPaid.Add(openFee)

	l.pos = domain.Position{
		State:          side,
		Notional:       l.cfg.settle(margin.Mul(lev)),
		EntryPrice:     bar.Price,
		Leverage:       l.leverage,
		EntryTimestamp: bar.Timestamp,
		FundingAccrued: decimal.Zero,
	}

	action := domain.ActionOpenLong
	if side == domain.StateShort {
		action = domain.ActionOpenShort
	}

	l.record(domain.TradeRecord{
		Timestamp:    bar.Timestamp,
		Action:       action,
		Price:        bar.Price,
		Sentiment:    bar.Sentiment,
		Notional:     l.pos.Notional,
		PnL:          decimal.Zero,
		Fees:         openFee,
		BalanceAfter: l.cash,
	})
}

// trackOverride counts activation and deactivation transitions of the
// contrarian extreme override.
func (l *ledger) trackOverride(active bool) {
	if active != l.overrideActive {
		l.overrides++
		l.overrideActive = active
	}
}

func (l *ledger) state() domain.PositionState {
	if !l.pos.Open() {
		return domain.StateNeutral
	}
	return l.pos.State
}

// endEquity values the book at the bar's close.
func (l *ledger) endEquity(price decimal.Decimal) decimal.Decimal {
	if !l.pos.Open() {
		return l.cash
	}
	return l.cash.Add(l.markToMarket(price)).Add(l.pos.FundingAccrued)
}

func (l *ledger) bookBar(state domain.PositionState, equity decimal.Decimal) {
	switch state {
	case domain.StateLong:
		l.barsLong++
	case domain.StateShort:
		l.barsShort++
	default:
		l.barsNeutral++
	}
	l.equityCurve = append(l.equityCurve, equity.InexactFloat64())
}

func (l *ledger) record(tr domain.TradeRecord) {
	if l.cfg.RecordTrades {
		l.trades = append(l.trades, tr)
	}
}

// result assembles the final metrics from the ledger counters.
// TotalReturnPct is realized price PnL gross of fees and funding; fee and
// funding impact is reported separately in FeesPaid and FundingPaid.
func (l *ledger) result(series domain.Series, params domain.SimulationParams) *domain.SimulationResult {
	n := len(series)
	returns := metrics.Returns(l.equityCurve)

	totalReturnPct := l.realizedGross.
		Div(l.cfg.InitialCapital).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()

	return &domain.SimulationResult{
		Params:           params,
		TotalReturnPct:   totalReturnPct,
		SharpeRatio:      metrics.SharpeRatio(returns, l.cfg.PeriodsPerYear),
		MaxDrawdownPct:   metrics.MaxDrawdownPct(l.equityCurve),
		WinRatePct:       metrics.WinRatePct(l.wins, l.closedTrades),
		NumTrades:        l.closedTrades,
		LiquidationCount: l.liquidations,
		ExtremeOverrides: l.overrides,
		FeesPaid:         l.feesPaid,
		FundingPaid:      l.fundingPaid,
		TimeInLongPct:    sharePct(l.barsLong, n),
		TimeInShortPct:   sharePct(l.barsShort, n),
		TimeInNeutralPct: sharePct(l.barsNeutral, n),
		SampleCount:      n,
		StartTimestamp:   series.Start(),
		EndTimestamp:     series.End(),
		Trades:           l.trades,
	}
}

func sharePct(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
