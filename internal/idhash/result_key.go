package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"fgi-strategy-lab/internal/domain"
)

// ComputeResultKey computes a deterministic cache key for a simulation using SHA256.
// Formula: SHA256(asset|timeframe|mode|low|high|ext_low|ext_high|leverage[|range_start|range_end])
// Extreme thresholds are normalized to 0/100 before hashing so that an absent
// override and an explicit no-op override map to the same key. The range suffix
// is included only when both bounds are set (pinned-range results).
// Returns hex-encoded hash (64 characters).
func ComputeResultKey(
	params domain.SimulationParams,
	rangeStart int64,
	rangeEnd int64,
) string {
	p := params.Normalized()

	data := fmt.Sprintf("%s|%s|%s|%d|%d|%d|%d|%d",
		p.Asset,
		p.Timeframe,
		string(p.Mode),
		p.LowThreshold,
		p.HighThreshold,
		*p.ExtremeLow,
		*p.ExtremeHigh,
		p.Leverage,
	)

	if rangeStart != 0 || rangeEnd != 0 {
		data += fmt.Sprintf("|%d|%d", rangeStart, rangeEnd)
	}

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
