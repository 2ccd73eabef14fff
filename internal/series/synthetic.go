package series

import (
	"math"

	"github.com/shopspring/decimal"

	"fgi-strategy-lab/internal/domain"
)

// SyntheticOptions shapes a generated series. Zero values pick defaults,
// so Synthetic(n, SyntheticOptions{}) already yields a usable series.
type SyntheticOptions struct {
	StartTimestamp int64   // first bar Unix ms; 2024-01-01 UTC when zero
	StartPrice     float64 // first bar price; 100 when zero
	Drift          float64 // per-bar fractional price drift
	Swing          float64 // price oscillation amplitude as a fraction; 0.05 when zero
	SentimentBase  float64 // midpoint of the sentiment wave; 50 when zero
	SentimentSwing float64 // sentiment wave amplitude; 30 when zero
	PeriodBars     int     // bars per full oscillation; 14 when zero
}

// Synthetic generates n daily bars with deterministic price and sentiment
// waves. No randomness is involved: the same inputs always produce the
// same series, which keeps fixtures reproducible in tests and demos.
func Synthetic(n int, opts SyntheticOptions) domain.Series {
	if opts.StartTimestamp == 0 {
		opts.StartTimestamp = 1_704_067_200_000
	}
	if opts.StartPrice == 0 {
		opts.StartPrice = 100
	}
	if opts.Swing == 0 {
		opts.Swing = 0.05
	}
	if opts.SentimentBase == 0 {
		opts.SentimentBase = 50
	}
	if opts.SentimentSwing == 0 {
		opts.SentimentSwing = 30
	}
	if opts.PeriodBars == 0 {
		opts.PeriodBars = 14
	}

	s := make(domain.Series, n)
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * float64(i) / float64(opts.PeriodBars)

		price := opts.StartPrice *
			math.Pow(1+opts.Drift, float64(i)) *
			(1 + opts.Swing*math.Sin(phase))

		sentiment := opts.SentimentBase + opts.SentimentSwing*math.Sin(phase)
		if sentiment < 0 {
			sentiment = 0
		}
		if sentiment > 100 {
			sentiment = 100
		}

		s[i] = domain.Sample{
			Timestamp: opts.StartTimestamp + int64(i)*dayMs,
			Price:     decimal.NewFromFloat(price).Round(8),
			Sentiment: sentiment,
		}
	}
	return s
}
