package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"fgi-strategy-lab/internal/domain"
)

// ComputeRunRowID computes a deterministic row id for a persisted simulation
// run using SHA256.
// Formula: SHA256(run_id|asset|timeframe|mode|low|high|ext_low|ext_high|leverage|window_index)
// Re-persisting the same sweep deterministically reproduces the same ids, so
// duplicate inserts are caught by the store instead of silently doubling rows.
// Returns hex-encoded hash (64 characters).
func ComputeRunRowID(
	runID string,
	params domain.SimulationParams,
	windowIndex int,
) string {
	p := params.Normalized()

	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d|%d|%d|%d",
		runID,
		p.Asset,
		p.Timeframe,
		string(p.Mode),
		p.LowThreshold,
		p.HighThreshold,
		*p.ExtremeLow,
		*p.ExtremeHigh,
		p.Leverage,
		windowIndex,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
