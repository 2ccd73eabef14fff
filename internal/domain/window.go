package domain

// WholeSeriesWindow is the WindowIndex recorded when a simulation ran
// over the full series rather than a rolling window.
const WholeSeriesWindow = -1

// Window labels one day-granular sub-range of a parent series.
// Bounds are half-open: [StartTimestamp, EndTimestamp). The generator
// owns windows; the sweep consumes them read-only.
type Window struct {
	Index          int   // k, the day offset from the series start
	StartTimestamp int64 // inclusive, Unix ms
	EndTimestamp   int64 // exclusive, Unix ms

	// Sample index range into the parent series, half-open.
	StartIdx int
	EndIdx   int

	SampleCount int // EndIdx - StartIdx
}
