package strategy

// Signal is the direction a strategy wants to be positioned after a bar.
type Signal string

const (
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
	SignalHold  Signal = "HOLD"
)

// Decision is the outcome of evaluating one sentiment reading.
type Decision struct {
	Signal Signal

	// ExtremeOverride is true when a contrarian strategy deferred to the
	// momentum mapping because sentiment crossed an extreme threshold.
	ExtremeOverride bool
}

// Strategy maps sentiment readings to directional decisions.
type Strategy interface {
	// Evaluate maps one sentiment reading to a decision.
	// Implementations are pure: same input, same output.
	Evaluate(sentiment float64) Decision

	// ID returns strategy identifier (includes parameters).
	ID() string
}
