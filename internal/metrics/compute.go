// Package metrics provides the statistical helpers used to grade a
// simulation: return, Sharpe ratio, drawdown, win rate. All functions are
// pure and operate on plain float64 slices so they stay trivially testable.
package metrics

import (
	"math"
)

// Mean calculates the arithmetic mean of values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStddev calculates sample standard deviation (n-1 denominator) for an
// unbiased estimator.
func SampleStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Percentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	// Linear interpolation
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Returns converts an equity curve into per-bar simple returns.
// Bars following a non-positive equity value are skipped since a ratio
// against zero or negative equity is meaningless. A crash to zero still
// contributes a -1.0 return for the bar it happens on.
func Returns(equityCurve []float64) []float64 {
	if len(equityCurve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1]
		if prev <= 0 {
			continue
		}
		out = append(out, (equityCurve[i]-prev)/prev)
	}
	return out
}

// SharpeRatio calculates the annualized Sharpe ratio of per-bar returns with
// a zero risk-free rate: mean(returns) / stddev(returns) * sqrt(periodsPerYear).
// Returns 0 when there are fewer than 2 returns or the returns have zero
// variance, so flat equity curves grade as neutral rather than infinite.
func SharpeRatio(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := Mean(returns)
	stddev := SampleStddev(returns, mean)
	if stddev == 0 {
		return 0
	}
	return mean / stddev * math.Sqrt(periodsPerYear)
}

// MaxDrawdownPct calculates the worst peak-to-trough decline of an equity
// curve in percent of the peak. Equity values must be in chronological order.
// A curve that touches zero after a positive peak grades as a 100% drawdown.
func MaxDrawdownPct(equityCurve []float64) float64 {
	if len(equityCurve) == 0 {
		return 0
	}

	peak := equityCurve[0]
	maxDrawdown := 0.0

	for _, v := range equityCurve {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - v) / peak * 100
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// WinRatePct calculates wins / total in percent.
func WinRatePct(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}
