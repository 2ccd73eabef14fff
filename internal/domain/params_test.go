package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validParams() SimulationParams {
	return SimulationParams{
		Asset:         "SOL",
		Timeframe:     "1d",
		Mode:          ModeMomentum,
		LowThreshold:  30,
		HighThreshold: 70,
		Leverage:      3,
	}
}

func TestParamsValidate(t *testing.T) {
	if err := validParams().Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
}

func TestParamsValidate_Rejections(t *testing.T) {
	ext := func(v int) *int { return &v }

	cases := []struct {
		name   string
		mutate func(*SimulationParams)
	}{
		{"unknown mode", func(p *SimulationParams) { p.Mode = "mean_revert" }},
		{"low equals high", func(p *SimulationParams) { p.LowThreshold = 70 }},
		{"low above high", func(p *SimulationParams) { p.LowThreshold = 80 }},
		{"high above 100", func(p *SimulationParams) { p.HighThreshold = 101 }},
		{"extreme low above low", func(p *SimulationParams) { p.ExtremeLow = ext(40) }},
		{"extreme high below high", func(p *SimulationParams) { p.ExtremeHigh = ext(60) }},
		{"leverage zero", func(p *SimulationParams) { p.Leverage = 0 }},
		{"leverage above max", func(p *SimulationParams) { p.Leverage = 13 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.mutate(&p)
			err := p.Validate()
			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestParamsNormalized(t *testing.T) {
	p := validParams()
	n := p.Normalized()

	if n.ExtremeLow == nil || *n.ExtremeLow != 0 {
		t.Errorf("expected extremeLow defaulted to 0, got %v", n.ExtremeLow)
	}
	if n.ExtremeHigh == nil || *n.ExtremeHigh != 100 {
		t.Errorf("expected extremeHigh defaulted to 100, got %v", n.ExtremeHigh)
	}

	// Original must stay untouched
	if p.ExtremeLow != nil || p.ExtremeHigh != nil {
		t.Error("Normalized mutated the receiver")
	}
}

func TestSeriesValidate(t *testing.T) {
	mk := func(ts int64, price string, sentiment float64) Sample {
		return Sample{Timestamp: ts, Price: decimal.RequireFromString(price), Sentiment: sentiment}
	}

	good := Series{mk(1000, "100", 50), mk(2000, "101", 55)}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid series rejected: %v", err)
	}

	single := Series{mk(1000, "100", 50)}
	if err := single.Validate(); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries for single sample, got %v", err)
	}

	dup := Series{mk(1000, "100", 50), mk(1000, "101", 55)}
	if err := dup.Validate(); !errors.Is(err, ErrUnsortedSeries) {
		t.Errorf("expected ErrUnsortedSeries for duplicate timestamp, got %v", err)
	}

	negPrice := Series{mk(1000, "-1", 50), mk(2000, "101", 55)}
	if err := negPrice.Validate(); !errors.Is(err, ErrBadSample) {
		t.Errorf("expected ErrBadSample for negative price, got %v", err)
	}

	badSentiment := Series{mk(1000, "100", 50), mk(2000, "101", 100.5)}
	if err := badSentiment.Validate(); !errors.Is(err, ErrBadSample) {
		t.Errorf("expected ErrBadSample for out-of-range sentiment, got %v", err)
	}
}
