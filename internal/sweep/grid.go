package sweep

import "fgi-strategy-lab/internal/domain"

// Range is an inclusive integer range stepped by Step.
// End is always included even when the step overshoots it.
type Range struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
	Step  int `yaml:"step" json:"step"`
}

// Fixed returns a Range holding the single value v.
func Fixed(v int) Range {
	return Range{Start: v, End: v, Step: 1}
}

// Expand lists the range values in ascending order. A non-positive
// step counts as 1; End at or below Start yields just Start.
func (r Range) Expand() []int {
	step := r.Step
	if step <= 0 {
		step = 1
	}
	if r.End <= r.Start {
		return []int{r.Start}
	}

	var values []int
	for v := r.Start; v < r.End; v += step {
		values = append(values, v)
	}
	return append(values, r.End)
}

// Grid is the cartesian parameter space of one sweep.
type Grid struct {
	Asset     string              `yaml:"asset" json:"asset"`
	Timeframe string              `yaml:"timeframe" json:"timeframe"`
	Mode      domain.StrategyMode `yaml:"mode" json:"mode"`

	LowThresholds  Range `yaml:"low_thresholds" json:"low_thresholds"`
	HighThresholds Range `yaml:"high_thresholds" json:"high_thresholds"`
	Leverages      Range `yaml:"leverages" json:"leverages"`

	// Extreme override band for contrarian mode. Both zero leaves the
	// override disabled.
	ExtremeLow  int `yaml:"extreme_low" json:"extreme_low"`
	ExtremeHigh int `yaml:"extreme_high" json:"extreme_high"`
}

// Combinations expands the grid into validated parameter sets, in
// deterministic low/high/leverage order. The second return is how many
// grid points validation rejected (low >= high and similar degenerate
// pairings), which keeps invalid threshold orderings out of the sweep.
func (g Grid) Combinations() ([]domain.SimulationParams, int) {
	lows := g.LowThresholds.Expand()
	highs := g.HighThresholds.Expand()
	levs := g.Leverages.Expand()

	combos := make([]domain.SimulationParams, 0, len(lows)*len(highs)*len(levs))
	filtered := 0

	for _, low := range lows {
		for _, high := range highs {
			for _, lev := range levs {
				p := domain.SimulationParams{
					Asset:         g.Asset,
					Timeframe:     g.Timeframe,
					Mode:          g.Mode,
					LowThreshold:  low,
					HighThreshold: high,
					Leverage:      lev,
				}
				if g.ExtremeLow != 0 || g.ExtremeHigh != 0 {
					el, eh := g.ExtremeLow, g.ExtremeHigh
					p.ExtremeLow = &el
					p.ExtremeHigh = &eh
				}

				if err := p.Validate(); err != nil {
					filtered++
					continue
				}
				combos = append(combos, p)
			}
		}
	}

	return combos, filtered
}
