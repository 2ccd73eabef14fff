// Package series loads, validates and windows the price+sentiment input
// that simulations consume.
package series

import (
	"errors"
	"fmt"

	"fgi-strategy-lab/internal/domain"
)

const dayMs = int64(86_400_000)

// Window generation errors.
var (
	ErrBadWindowDays = errors.New("window days must be at least 1")
)

// GenerateWindows slices a series into rolling daily windows of windowDays
// days. A series spanning N calendar days yields max(0, N-windowDays+1)
// candidate windows; window k covers the half-open range
// [first + k*day, first + (k+windowDays)*day).
//
// Windows with fewer than 2 samples are dropped since they cannot be
// simulated; Window.Index keeps the original k so gaps stay visible to
// callers that line windows up by date.
//
// Both scan pointers only ever move forward, so the whole generation is a
// single O(n) pass regardless of window count.
func GenerateWindows(s domain.Series, windowDays int) ([]domain.Window, error) {
	if windowDays < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrBadWindowDays, windowDays)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	first := s.Start()
	last := s.End()
	totalSpanDays := int((last-first)/dayMs) + 1
	totalWindows := totalSpanDays - windowDays + 1
	if totalWindows < 1 {
		return []domain.Window{}, nil
	}

	windows := make([]domain.Window, 0, totalWindows)
	lo, hi := 0, 0

	for k := 0; k < totalWindows; k++ {
		start := first + int64(k)*dayMs
		end := first + int64(k+windowDays)*dayMs

		for lo < len(s) && s[lo].Timestamp < start {
			lo++
		}
		if hi < lo {
			hi = lo
		}
		for hi < len(s) && s[hi].Timestamp < end {
			hi++
		}

		count := hi - lo
		if count < 2 {
			continue
		}

		windows = append(windows, domain.Window{
			Index:          k,
			StartTimestamp: start,
			EndTimestamp:   end,
			StartIdx:       lo,
			EndIdx:         hi,
			SampleCount:    count,
		})
	}

	return windows, nil
}

// Slice returns the window's sub-series. The backing array is shared with
// the input; callers must treat it as read-only.
func Slice(s domain.Series, w domain.Window) domain.Series {
	return s[w.StartIdx:w.EndIdx]
}
