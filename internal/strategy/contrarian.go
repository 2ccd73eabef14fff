package strategy

import "fmt"

// ContrarianStrategy fades the crowd: long fear, short greed. When sentiment
// crosses an extreme threshold it stops fighting the move and defers to the
// momentum mapping for that bar.
type ContrarianStrategy struct {
	LowThreshold  int
	HighThreshold int
	ExtremeLow    int
	ExtremeHigh   int
}

// NewContrarianStrategy creates a new ContrarianStrategy. Extreme thresholds
// of 0 and 100 leave the override reachable only at the exact ends of the
// sentiment scale.
func NewContrarianStrategy(lowThreshold, highThreshold, extremeLow, extremeHigh int) *ContrarianStrategy {
	return &ContrarianStrategy{
		LowThreshold:  lowThreshold,
		HighThreshold: highThreshold,
		ExtremeLow:    extremeLow,
		ExtremeHigh:   extremeHigh,
	}
}

// ID returns the strategy identifier including parameters. Default extreme
// thresholds are omitted.
func (s *ContrarianStrategy) ID() string {
	if s.ExtremeLow > 0 || s.ExtremeHigh < 100 {
		return fmt.Sprintf("CONTRARIAN_%d_%d_EXT_%d_%d",
			s.LowThreshold, s.HighThreshold, s.ExtremeLow, s.ExtremeHigh)
	}
	return fmt.Sprintf("CONTRARIAN_%d_%d", s.LowThreshold, s.HighThreshold)
}

// Evaluate maps one sentiment reading to a direction:
//   - sentiment <= extremeLow or >= extremeHigh -> momentum mapping, flagged
//     as an extreme override
//   - sentiment <= lowThreshold  -> LONG
//   - sentiment >= highThreshold -> SHORT
//   - otherwise                  -> HOLD (keep current position)
func (s *ContrarianStrategy) Evaluate(sentiment float64) Decision {
	if sentiment <= float64(s.ExtremeLow) || sentiment >= float64(s.ExtremeHigh) {
		return Decision{
			Signal:          momentumSignal(sentiment, s.LowThreshold, s.HighThreshold),
			ExtremeOverride: true,
		}
	}

	switch {
	case sentiment <= float64(s.LowThreshold):
		return Decision{Signal: SignalLong}
	case sentiment >= float64(s.HighThreshold):
		return Decision{Signal: SignalShort}
	default:
		return Decision{Signal: SignalHold}
	}
}

// Ensure ContrarianStrategy implements Strategy
var _ Strategy = (*ContrarianStrategy)(nil)
