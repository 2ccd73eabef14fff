package domain

import (
	"errors"
	"fmt"
)

// StrategyMode selects the direction mapping from sentiment to position.
type StrategyMode string

// Strategy mode constants.
const (
	// ModeMomentum goes long on greed and short on fear.
	ModeMomentum StrategyMode = "momentum"

	// ModeContrarian goes long on fear and short on greed, optionally
	// flipping back to momentum beyond the extreme thresholds.
	ModeContrarian StrategyMode = "contrarian"
)

// Leverage bounds accepted by parameter validation.
const (
	MinLeverage = 1
	MaxLeverage = 12
)

// ErrInvalidParams is returned when a parameter set fails validation.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// SimulationParams identifies one simulation configuration. It is the
// unit the sweep expands, the cache keys on, and the store persists.
type SimulationParams struct {
	Asset     string       `json:"asset"`     // e.g. "SOL"
	Timeframe string       `json:"timeframe"` // bar interval label, e.g. "1d"
	Mode      StrategyMode `json:"mode"`      // momentum | contrarian

	LowThreshold  int `json:"low_threshold"`  // sentiment at or below -> fear signal
	HighThreshold int `json:"high_threshold"` // sentiment at or above -> greed signal

	// Extreme thresholds enable the contrarian override zone.
	// Nil means disabled (normalized to 0/100).
	ExtremeLow  *int `json:"extreme_low,omitempty"`
	ExtremeHigh *int `json:"extreme_high,omitempty"`

	Leverage int `json:"leverage"` // position notional multiplier, 1..12
}

// Validate checks threshold ordering and leverage bounds.
// Invalid combinations are rejected before any simulation runs.
func (p SimulationParams) Validate() error {
	switch p.Mode {
	case ModeMomentum, ModeContrarian:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidParams, p.Mode)
	}
	if p.LowThreshold >= p.HighThreshold {
		return fmt.Errorf("%w: lowThreshold %d must be below highThreshold %d",
			ErrInvalidParams, p.LowThreshold, p.HighThreshold)
	}
	if p.LowThreshold < 0 || p.HighThreshold > 100 {
		return fmt.Errorf("%w: thresholds %d/%d out of [0,100]",
			ErrInvalidParams, p.LowThreshold, p.HighThreshold)
	}
	if p.ExtremeLow != nil {
		if *p.ExtremeLow < 0 || *p.ExtremeLow > p.LowThreshold {
			return fmt.Errorf("%w: extremeLow %d must be within [0, lowThreshold %d]",
				ErrInvalidParams, *p.ExtremeLow, p.LowThreshold)
		}
	}
	if p.ExtremeHigh != nil {
		if *p.ExtremeHigh > 100 || *p.ExtremeHigh < p.HighThreshold {
			return fmt.Errorf("%w: extremeHigh %d must be within [highThreshold %d, 100]",
				ErrInvalidParams, *p.ExtremeHigh, p.HighThreshold)
		}
	}
	if p.Leverage < MinLeverage || p.Leverage > MaxLeverage {
		return fmt.Errorf("%w: leverage %d out of [%d,%d]",
			ErrInvalidParams, p.Leverage, MinLeverage, MaxLeverage)
	}
	return nil
}

// Normalized returns a copy with extreme thresholds defaulted to 0/100.
// Cache keys and persisted rows always use the normalized form so that
// "no extremes" and "extremes 0/100" are the same configuration.
func (p SimulationParams) Normalized() SimulationParams {
	out := p
	if out.ExtremeLow == nil {
		v := 0
		out.ExtremeLow = &v
	}
	if out.ExtremeHigh == nil {
		v := 100
		out.ExtremeHigh = &v
	}
	return out
}

// ExtremeLowOrDefault returns the extreme low threshold, 0 when unset.
func (p SimulationParams) ExtremeLowOrDefault() int {
	if p.ExtremeLow == nil {
		return 0
	}
	return *p.ExtremeLow
}

// ExtremeHighOrDefault returns the extreme high threshold, 100 when unset.
func (p SimulationParams) ExtremeHighOrDefault() int {
	if p.ExtremeHigh == nil {
		return 100
	}
	return *p.ExtremeHigh
}
