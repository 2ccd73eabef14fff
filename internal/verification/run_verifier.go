package verification

import (
	"context"
	"errors"
	"fmt"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/storage"
)

var (
	// ErrRowNotFound is returned when a row ID doesn't exist.
	ErrRowNotFound = errors.New("verification: run row not found")

	// ErrNoRows is returned when a run ID has no persisted rows.
	ErrNoRows = errors.New("verification: no rows for run")
)

// Simulator produces a result for a series and parameter set.
type Simulator interface {
	Run(ctx context.Context, series domain.Series, params domain.SimulationParams) (*domain.SimulationResult, error)
}

// RunVerifier implements Verifier by re-running stored rows through a
// simulator.
type RunVerifier struct {
	runStore storage.SimulationRunStore
	sim      Simulator
}

// Options contains configuration for creating a RunVerifier.
type Options struct {
	RunStore storage.SimulationRunStore

	// Simulator must carry the same engine settings the original runs
	// used; a different fee or funding configuration diverges every row.
	Simulator Simulator
}

// New creates a new RunVerifier.
func New(opts Options) *RunVerifier {
	return &RunVerifier{
		runStore: opts.RunStore,
		sim:      opts.Simulator,
	}
}

// VerifyRow verifies a single persisted row against the series.
func (v *RunVerifier) VerifyRow(ctx context.Context, rowID string, series domain.Series) (*RowResult, error) {
	stored, err := v.runStore.GetByID(ctx, rowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRowNotFound
		}
		return nil, err
	}
	return v.verifyStored(ctx, stored, series)
}

// VerifyRun verifies every row persisted under one sweep run ID.
// Rows that fail to replay are reported as divergent, not as errors, so
// one bad row never hides the rest of the run.
func (v *RunVerifier) VerifyRun(ctx context.Context, runID string, series domain.Series) (*Report, error) {
	rows, err := v.runStore.ListByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRows, runID)
	}

	report := &Report{
		RunID:     runID,
		TotalRows: len(rows),
		Results:   make([]RowResult, 0, len(rows)),
	}

	for _, stored := range rows {
		result, err := v.verifyStored(ctx, stored, series)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			report.Results = append(report.Results, RowResult{
				RowID:           stored.ID,
				WindowIndex:     stored.WindowIndex,
				Match:           false,
				StoredReturnPct: stored.TotalReturnPct,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentRows++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRows++
		} else {
			report.DivergentRows++
		}
	}

	return report, nil
}

// verifyStored replays one stored row and compares the outcomes.
func (v *RunVerifier) verifyStored(ctx context.Context, stored *domain.PersistedRun, series domain.Series) (*RowResult, error) {
	sub := sliceForRow(stored, series)

	recomputed, err := v.sim.Run(ctx, sub, paramsFromRun(stored))
	if err != nil {
		return nil, fmt.Errorf("replay row %s: %w", stored.ID, err)
	}

	divergences := CompareRun(stored, recomputed)

	return &RowResult{
		RowID:               stored.ID,
		WindowIndex:         stored.WindowIndex,
		Match:               len(divergences) == 0,
		Divergences:         divergences,
		StoredReturnPct:     stored.TotalReturnPct,
		RecomputedReturnPct: recomputed.TotalReturnPct,
	}, nil
}

// sliceForRow cuts the sample range the row was computed over. Stored
// bounds are the first and last bar timestamps, both inclusive, so a
// timestamp range select reproduces the original slice without knowing
// the sweep's window length.
func sliceForRow(stored *domain.PersistedRun, series domain.Series) domain.Series {
	if stored.WindowIndex == domain.WholeSeriesWindow {
		return series
	}

	start, end := -1, -1
	for i, s := range series {
		if s.Timestamp < stored.WindowStart {
			continue
		}
		if s.Timestamp > stored.WindowEnd {
			break
		}
		if start == -1 {
			start = i
		}
		end = i
	}
	if start == -1 {
		return nil
	}
	return series[start : end+1]
}

// paramsFromRun rebuilds the parameter set a row was computed with.
// Stored extremes are already normalized, which reproduces the original
// strategy behavior exactly.
func paramsFromRun(r *domain.PersistedRun) domain.SimulationParams {
	el, eh := r.ExtremeLow, r.ExtremeHigh
	return domain.SimulationParams{
		Asset:         r.Asset,
		Timeframe:     r.Timeframe,
		Mode:          r.Mode,
		LowThreshold:  r.LowThreshold,
		HighThreshold: r.HighThreshold,
		ExtremeLow:    &el,
		ExtremeHigh:   &eh,
		Leverage:      r.Leverage,
	}
}

var _ Verifier = (*RunVerifier)(nil)
