package strategy

import (
	"errors"

	"fgi-strategy-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownMode = errors.New("unknown strategy mode")
)

// FromParams creates a Strategy from simulation parameters.
// Parameters are validated first so a strategy never exists for an
// inconsistent threshold set.
func FromParams(p domain.SimulationParams) (Strategy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch p.Mode {
	case domain.ModeMomentum:
		return NewMomentumStrategy(p.LowThreshold, p.HighThreshold), nil
	case domain.ModeContrarian:
		return NewContrarianStrategy(
			p.LowThreshold,
			p.HighThreshold,
			p.ExtremeLowOrDefault(),
			p.ExtremeHighOrDefault(),
		), nil
	default:
		return nil, ErrUnknownMode
	}
}
