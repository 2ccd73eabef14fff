package strategy

import (
	"errors"
	"testing"

	"fgi-strategy-lab/internal/domain"
)

func TestFromParams_Momentum(t *testing.T) {
	p := domain.SimulationParams{
		Asset:         "SOL",
		Timeframe:     "1d",
		Mode:          domain.ModeMomentum,
		LowThreshold:  30,
		HighThreshold: 70,
		Leverage:      3,
	}

	s, err := FromParams(p)
	if err != nil {
		t.Fatalf("FromParams failed: %v", err)
	}

	m, ok := s.(*MomentumStrategy)
	if !ok {
		t.Fatalf("expected *MomentumStrategy, got %T", s)
	}

	if m.LowThreshold != 30 {
		t.Errorf("expected 30, got %d", m.LowThreshold)
	}
	if m.HighThreshold != 70 {
		t.Errorf("expected 70, got %d", m.HighThreshold)
	}
}

func TestFromParams_Contrarian(t *testing.T) {
	extLow, extHigh := 10, 90
	p := domain.SimulationParams{
		Asset:         "SOL",
		Timeframe:     "1d",
		Mode:          domain.ModeContrarian,
		LowThreshold:  25,
		HighThreshold: 75,
		ExtremeLow:    &extLow,
		ExtremeHigh:   &extHigh,
		Leverage:      2,
	}

	s, err := FromParams(p)
	if err != nil {
		t.Fatalf("FromParams failed: %v", err)
	}

	c, ok := s.(*ContrarianStrategy)
	if !ok {
		t.Fatalf("expected *ContrarianStrategy, got %T", s)
	}

	if c.ExtremeLow != 10 || c.ExtremeHigh != 90 {
		t.Errorf("expected extremes 10/90, got %d/%d", c.ExtremeLow, c.ExtremeHigh)
	}
}

func TestFromParams_ContrarianDefaultExtremes(t *testing.T) {
	p := domain.SimulationParams{
		Asset:         "SOL",
		Timeframe:     "1d",
		Mode:          domain.ModeContrarian,
		LowThreshold:  25,
		HighThreshold: 75,
		Leverage:      2,
	}

	s, err := FromParams(p)
	if err != nil {
		t.Fatalf("FromParams failed: %v", err)
	}

	c, ok := s.(*ContrarianStrategy)
	if !ok {
		t.Fatalf("expected *ContrarianStrategy, got %T", s)
	}

	if c.ExtremeLow != 0 || c.ExtremeHigh != 100 {
		t.Errorf("expected default extremes 0/100, got %d/%d", c.ExtremeLow, c.ExtremeHigh)
	}
}

func TestFromParams_InvalidParams(t *testing.T) {
	p := domain.SimulationParams{
		Asset:         "SOL",
		Timeframe:     "1d",
		Mode:          domain.ModeMomentum,
		LowThreshold:  70,
		HighThreshold: 30, // inverted
		Leverage:      3,
	}

	_, err := FromParams(p)
	if !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
}
