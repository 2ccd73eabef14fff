package sweep

import "sort"

// Rank orders cells best-first by the objective metric, descending.
// Ties break on lower max drawdown, then fewer liquidations; the sort is
// stable so equal cells keep their deterministic job order. The input
// slice is not modified.
func Rank(cells []Cell, metric string) []Cell {
	ranked := make([]Cell, len(cells))
	copy(ranked, cells)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Result, ranked[j].Result

		av, bv := a.ObjectiveValue(metric), b.ObjectiveValue(metric)
		if av != bv {
			return av > bv
		}
		if a.MaxDrawdownPct != b.MaxDrawdownPct {
			return a.MaxDrawdownPct < b.MaxDrawdownPct
		}
		return a.LiquidationCount < b.LiquidationCount
	})

	return ranked
}
