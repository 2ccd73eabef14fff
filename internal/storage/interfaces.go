package storage

import (
	"context"

	"fgi-strategy-lab/internal/domain"
)

// Filter narrows store queries. Zero values mean "any"; WindowIndex is a
// pointer because -1 (whole series) and 0 are both real indices.
type Filter struct {
	Asset       string
	Timeframe   string
	Mode        domain.StrategyMode
	Leverage    int
	RunID       string
	WindowIndex *int
}

// Matches reports whether a run satisfies every set field of the filter.
func (f Filter) Matches(r *domain.PersistedRun) bool {
	if f.Asset != "" && r.Asset != f.Asset {
		return false
	}
	if f.Timeframe != "" && r.Timeframe != f.Timeframe {
		return false
	}
	if f.Mode != "" && r.Mode != f.Mode {
		return false
	}
	if f.Leverage != 0 && r.Leverage != f.Leverage {
		return false
	}
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if f.WindowIndex != nil && r.WindowIndex != *f.WindowIndex {
		return false
	}
	return true
}

// TopQuery selects the best runs by a ranking metric.
type TopQuery struct {
	Metric string // total_return_pct | sharpe_ratio
	Limit  int
	Filter Filter
}

// SimulationRunStore provides access to simulation_runs storage.
type SimulationRunStore interface {
	// Insert adds a new run row. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, r *domain.PersistedRun) error

	// InsertBatch adds multiple rows atomically. Fails entire batch on any duplicate.
	InsertBatch(ctx context.Context, runs []*domain.PersistedRun) error

	// GetByID retrieves a run row by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.PersistedRun, error)

	// ListByRunID retrieves all rows of one sweep, ordered by window_index ASC, id ASC.
	ListByRunID(ctx context.Context, runID string) ([]*domain.PersistedRun, error)

	// QueryTop retrieves the best rows by the query metric, descending.
	// Ties break on lower max_drawdown_pct, then fewer liquidations.
	QueryTop(ctx context.Context, q TopQuery) ([]*domain.PersistedRun, error)

	// QueryStats aggregates rows matching the filter.
	QueryStats(ctx context.Context, f Filter) (*domain.RunStats, error)

	// Count returns the number of rows matching the filter.
	Count(ctx context.Context, f Filter) (int64, error)
}
