package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Series validation errors.
var (
	// ErrEmptySeries is returned when a series has fewer than 2 samples.
	// A single point cannot be simulated.
	ErrEmptySeries = errors.New("series must contain at least 2 samples")

	// ErrUnsortedSeries is returned when samples are not strictly
	// ascending by timestamp (duplicates included).
	ErrUnsortedSeries = errors.New("series must be strictly ascending by timestamp")

	// ErrBadSample is returned when a sample carries an invalid price
	// or an out-of-range sentiment score.
	ErrBadSample = errors.New("invalid sample")
)

// Sample is one bar of the input series: a price observation paired
// with a Fear & Greed sentiment reading.
type Sample struct {
	Timestamp int64           `json:"timestamp"` // Unix timestamp in milliseconds
	Price     decimal.Decimal `json:"price"`     // asset price at this bar
	Sentiment float64         `json:"sentiment"` // FGI score, 0 (extreme fear) .. 100 (extreme greed)
}

// Series is an ordered sequence of samples. Producers guarantee
// ascending timestamps with no duplicates; Validate enforces it.
type Series []Sample

// Validate checks series invariants: at least 2 samples, strictly
// ascending timestamps, positive prices, sentiment within [0, 100].
func (s Series) Validate() error {
	if len(s) < 2 {
		return fmt.Errorf("%w: got %d", ErrEmptySeries, len(s))
	}
	for i, smp := range s {
		if i > 0 && smp.Timestamp <= s[i-1].Timestamp {
			return fmt.Errorf("%w: sample %d at %d follows %d",
				ErrUnsortedSeries, i, smp.Timestamp, s[i-1].Timestamp)
		}
		if !smp.Price.IsPositive() {
			return fmt.Errorf("%w: non-positive price at index %d", ErrBadSample, i)
		}
		if smp.Sentiment < 0 || smp.Sentiment > 100 {
			return fmt.Errorf("%w: sentiment %.2f out of [0,100] at index %d",
				ErrBadSample, smp.Sentiment, i)
		}
	}
	return nil
}

// Start returns the first timestamp, or 0 for an empty series.
func (s Series) Start() int64 {
	if len(s) == 0 {
		return 0
	}
	return s[0].Timestamp
}

// End returns the last timestamp, or 0 for an empty series.
func (s Series) End() int64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Timestamp
}
