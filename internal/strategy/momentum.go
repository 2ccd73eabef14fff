package strategy

import "fmt"

// MomentumStrategy follows the crowd: short fear, long greed.
type MomentumStrategy struct {
	LowThreshold  int
	HighThreshold int
}

// NewMomentumStrategy creates a new MomentumStrategy.
func NewMomentumStrategy(lowThreshold, highThreshold int) *MomentumStrategy {
	return &MomentumStrategy{
		LowThreshold:  lowThreshold,
		HighThreshold: highThreshold,
	}
}

// ID returns the strategy identifier including parameters.
func (s *MomentumStrategy) ID() string {
	return fmt.Sprintf("MOMENTUM_%d_%d", s.LowThreshold, s.HighThreshold)
}

// Evaluate maps one sentiment reading to a direction:
//   - sentiment <= lowThreshold  -> SHORT
//   - sentiment >= highThreshold -> LONG
//   - otherwise                  -> HOLD (keep current position)
//
// The band between the thresholds is a no-change zone, not a forced flat.
func (s *MomentumStrategy) Evaluate(sentiment float64) Decision {
	return Decision{Signal: momentumSignal(sentiment, s.LowThreshold, s.HighThreshold)}
}

// momentumSignal is the raw momentum mapping, shared with the contrarian
// extreme-threshold override.
func momentumSignal(sentiment float64, lowThreshold, highThreshold int) Signal {
	switch {
	case sentiment <= float64(lowThreshold):
		return SignalShort
	case sentiment >= float64(highThreshold):
		return SignalLong
	default:
		return SignalHold
	}
}

// Ensure MomentumStrategy implements Strategy
var _ Strategy = (*MomentumStrategy)(nil)
