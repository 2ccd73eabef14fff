package memory

import (
	"context"
	"sort"
	"sync"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/metrics"
	"fgi-strategy-lab/internal/storage"
)

// SimulationRunStore is an in-memory implementation of storage.SimulationRunStore.
type SimulationRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PersistedRun // keyed by id
}

// NewSimulationRunStore creates a new in-memory simulation run store.
func NewSimulationRunStore() *SimulationRunStore {
	return &SimulationRunStore{
		data: make(map[string]*domain.PersistedRun),
	}
}

// Insert adds a new run row. Returns ErrDuplicateKey if id exists.
func (s *SimulationRunStore) Insert(_ context.Context, r *domain.PersistedRun) error {
	if r == nil || r.ID == "" || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.ID] = &copy
	return nil
}

// InsertBatch adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *SimulationRunStore) InsertBatch(_ context.Context, runs []*domain.PersistedRun) error {
	if len(runs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(runs))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range runs {
		if r == nil || r.ID == "" || r.RunID == "" {
			return storage.ErrInvalidInput
		}

		// Check existing data
		if _, exists := s.data[r.ID]; exists {
			return storage.ErrDuplicateKey
		}
		// Check intra-batch duplicate
		if _, exists := batchKeys[r.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.ID] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range runs {
		copy := *r
		s.data[r.ID] = &copy
	}

	return nil
}

// GetByID retrieves a run row by its ID. Returns ErrNotFound if not exists.
func (s *SimulationRunStore) GetByID(_ context.Context, id string) (*domain.PersistedRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// ListByRunID retrieves all rows of one sweep, ordered by window_index ASC, id ASC.
func (s *SimulationRunStore) ListByRunID(_ context.Context, runID string) ([]*domain.PersistedRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PersistedRun
	for _, r := range s.data {
		if r.RunID == runID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].WindowIndex != result[j].WindowIndex {
			return result[i].WindowIndex < result[j].WindowIndex
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// QueryTop retrieves the best rows by the query metric, descending.
// A non-positive limit returns all matching rows.
func (s *SimulationRunStore) QueryTop(_ context.Context, q storage.TopQuery) ([]*domain.PersistedRun, error) {
	if q.Metric != domain.MetricTotalReturn && q.Metric != domain.MetricSharpe {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PersistedRun
	for _, r := range s.data {
		if q.Filter.Matches(r) {
			copy := *r
			result = append(result, &copy)
		}
	}

	metric := func(r *domain.PersistedRun) float64 {
		if q.Metric == domain.MetricSharpe {
			return r.SharpeRatio
		}
		return r.TotalReturnPct
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if metric(a) != metric(b) {
			return metric(a) > metric(b)
		}
		if a.MaxDrawdownPct != b.MaxDrawdownPct {
			return a.MaxDrawdownPct < b.MaxDrawdownPct
		}
		if a.LiquidationCount != b.LiquidationCount {
			return a.LiquidationCount < b.LiquidationCount
		}
		return a.ID < b.ID
	})

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}

	return result, nil
}

// QueryStats aggregates rows matching the filter.
func (s *SimulationRunStore) QueryStats(_ context.Context, f storage.Filter) (*domain.RunStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.RunStats{}
	var sumSharpe, sumDrawdown float64
	var returns []float64

	for _, r := range s.data {
		if !f.Matches(r) {
			continue
		}

		if stats.Runs == 0 || r.TotalReturnPct > stats.BestReturnPct {
			stats.BestReturnPct = r.TotalReturnPct
		}
		if stats.Runs == 0 || r.TotalReturnPct < stats.WorstReturnPct {
			stats.WorstReturnPct = r.TotalReturnPct
		}

		stats.Runs++
		returns = append(returns, r.TotalReturnPct)
		sumSharpe += r.SharpeRatio
		sumDrawdown += r.MaxDrawdownPct
		stats.TotalLiquidations += r.LiquidationCount
	}

	if stats.Runs > 0 {
		n := float64(stats.Runs)
		stats.AvgReturnPct = metrics.Mean(returns)
		sort.Float64s(returns)
		stats.MedianReturnPct = metrics.Percentile(returns, 0.5)
		stats.AvgSharpe = sumSharpe / n
		stats.AvgMaxDrawdownPct = sumDrawdown / n
	}

	return stats, nil
}

// Count returns the number of rows matching the filter.
func (s *SimulationRunStore) Count(_ context.Context, f storage.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.data {
		if f.Matches(r) {
			n++
		}
	}
	return n, nil
}

var _ storage.SimulationRunStore = (*SimulationRunStore)(nil)
