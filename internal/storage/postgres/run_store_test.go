package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/storage"
)

func createTestRun(id, runID string, windowIndex int) *domain.PersistedRun {
	return &domain.PersistedRun{
		ID:               id,
		RunID:            runID,
		CreatedAt:        1700000000000,
		Asset:            "BTC",
		Timeframe:        "1d",
		Mode:             domain.ModeMomentum,
		LowThreshold:     30,
		HighThreshold:    70,
		ExtremeLow:       0,
		ExtremeHigh:      100,
		Leverage:         2,
		WindowIndex:      windowIndex,
		WindowStart:      1704067200000,
		WindowEnd:        1706659200000,
		TotalReturnPct:   12.5,
		SharpeRatio:      1.8,
		MaxDrawdownPct:   6.25,
		WinRatePct:       60.0,
		NumTrades:        5,
		LiquidationCount: 0,
		SampleCount:      30,
		FeesPaid:         decimal.RequireFromString("3.75"),
		FundingPaid:      decimal.RequireFromString("-1.25"),
	}
}

func TestSimulationRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	run := createTestRun("run-row-001", "sweep-001", 0)

	// Insert
	err := store.Insert(ctx, run)
	require.NoError(t, err)

	// GetByID
	retrieved, err := store.GetByID(ctx, "run-row-001")
	require.NoError(t, err)

	assert.Equal(t, run.ID, retrieved.ID)
	assert.Equal(t, run.RunID, retrieved.RunID)
	assert.Equal(t, run.CreatedAt, retrieved.CreatedAt)
	assert.Equal(t, run.Asset, retrieved.Asset)
	assert.Equal(t, run.Timeframe, retrieved.Timeframe)
	assert.Equal(t, run.Mode, retrieved.Mode)
	assert.Equal(t, run.LowThreshold, retrieved.LowThreshold)
	assert.Equal(t, run.HighThreshold, retrieved.HighThreshold)
	assert.Equal(t, run.ExtremeLow, retrieved.ExtremeLow)
	assert.Equal(t, run.ExtremeHigh, retrieved.ExtremeHigh)
	assert.Equal(t, run.Leverage, retrieved.Leverage)
	assert.Equal(t, run.WindowIndex, retrieved.WindowIndex)
	assert.Equal(t, run.WindowStart, retrieved.WindowStart)
	assert.Equal(t, run.WindowEnd, retrieved.WindowEnd)
	assert.InDelta(t, run.TotalReturnPct, retrieved.TotalReturnPct, 0.0001)
	assert.InDelta(t, run.SharpeRatio, retrieved.SharpeRatio, 0.0001)
	assert.InDelta(t, run.MaxDrawdownPct, retrieved.MaxDrawdownPct, 0.0001)
	assert.InDelta(t, run.WinRatePct, retrieved.WinRatePct, 0.0001)
	assert.Equal(t, run.NumTrades, retrieved.NumTrades)
	assert.Equal(t, run.LiquidationCount, retrieved.LiquidationCount)
	assert.Equal(t, run.SampleCount, retrieved.SampleCount)
	assert.True(t, run.FeesPaid.Equal(retrieved.FeesPaid), "FeesPaid: want %s, got %s", run.FeesPaid, retrieved.FeesPaid)
	assert.True(t, run.FundingPaid.Equal(retrieved.FundingPaid), "FundingPaid: want %s, got %s", run.FundingPaid, retrieved.FundingPaid)
}

func TestSimulationRunStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	run := createTestRun("run-dup-001", "sweep-001", 0)

	// First insert should succeed
	err := store.Insert(ctx, run)
	require.NoError(t, err)

	// Second insert with same id should fail
	err = store.Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSimulationRunStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	_, err := store.GetByID(ctx, "nonexistent-run")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSimulationRunStore_InsertBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	runs := []*domain.PersistedRun{
		createTestRun("batch-002", "sweep-batch", 2),
		createTestRun("batch-000", "sweep-batch", 0),
		createTestRun("batch-001", "sweep-batch", 1),
		createTestRun("batch-other", "sweep-other", 0),
	}

	err := store.InsertBatch(ctx, runs)
	require.NoError(t, err)

	// ListByRunID returns only the sweep's rows, ordered by window_index
	result, err := store.ListByRunID(ctx, "sweep-batch")
	require.NoError(t, err)

	require.Len(t, result, 3)
	assert.Equal(t, 0, result[0].WindowIndex)
	assert.Equal(t, 1, result[1].WindowIndex)
	assert.Equal(t, 2, result[2].WindowIndex)
}

func TestSimulationRunStore_InsertBatchAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	// First batch succeeds
	err := store.InsertBatch(ctx, []*domain.PersistedRun{
		createTestRun("atomic-001", "sweep-atomic", 0),
	})
	require.NoError(t, err)

	// Second batch has duplicate - should fail entirely
	err = store.InsertBatch(ctx, []*domain.PersistedRun{
		createTestRun("atomic-002", "sweep-atomic", 1),
		createTestRun("atomic-001", "sweep-atomic", 2), // duplicate!
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Should still have only 1 row (atomic rollback)
	result, err := store.ListByRunID(ctx, "sweep-atomic")
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestSimulationRunStore_InsertBatchEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	// Empty batch should succeed (no-op)
	err := store.InsertBatch(ctx, []*domain.PersistedRun{})
	require.NoError(t, err)
}

func TestSimulationRunStore_QueryTop(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	a := createTestRun("top-a", "sweep-top", 0)
	a.TotalReturnPct = 10
	a.MaxDrawdownPct = 5
	a.SharpeRatio = 0.5

	b := createTestRun("top-b", "sweep-top", 1)
	b.TotalReturnPct = 10 // ties with a, lower drawdown wins
	b.MaxDrawdownPct = 3
	b.SharpeRatio = 0.4

	c := createTestRun("top-c", "sweep-top", 2)
	c.TotalReturnPct = 20
	c.MaxDrawdownPct = 50
	c.SharpeRatio = 2.0

	d := createTestRun("top-d", "sweep-top", 3)
	d.TotalReturnPct = 5
	d.MaxDrawdownPct = 1
	d.SharpeRatio = 1.0

	require.NoError(t, store.InsertBatch(ctx, []*domain.PersistedRun{a, b, c, d}))

	result, err := store.QueryTop(ctx, storage.TopQuery{Metric: domain.MetricTotalReturn, Limit: 10})
	require.NoError(t, err)

	require.Len(t, result, 4)
	assert.Equal(t, "top-c", result[0].ID)
	assert.Equal(t, "top-b", result[1].ID)
	assert.Equal(t, "top-a", result[2].ID)
	assert.Equal(t, "top-d", result[3].ID)

	// Limit truncates after ordering
	top2, err := store.QueryTop(ctx, storage.TopQuery{Metric: domain.MetricTotalReturn, Limit: 2})
	require.NoError(t, err)
	require.Len(t, top2, 2)
	assert.Equal(t, "top-c", top2[0].ID)
	assert.Equal(t, "top-b", top2[1].ID)

	// Sharpe ranks independently
	bySharpe, err := store.QueryTop(ctx, storage.TopQuery{Metric: domain.MetricSharpe, Limit: 1})
	require.NoError(t, err)
	require.Len(t, bySharpe, 1)
	assert.Equal(t, "top-c", bySharpe[0].ID)

	// Unknown metric rejected
	_, err = store.QueryTop(ctx, storage.TopQuery{Metric: "volatility", Limit: 1})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSimulationRunStore_QueryTopFiltered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	mom := createTestRun("filter-mom", "sweep-filter", 0)
	mom.TotalReturnPct = 5

	con := createTestRun("filter-con", "sweep-filter", 1)
	con.Mode = domain.ModeContrarian
	con.TotalReturnPct = 50

	require.NoError(t, store.InsertBatch(ctx, []*domain.PersistedRun{mom, con}))

	result, err := store.QueryTop(ctx, storage.TopQuery{
		Metric: domain.MetricTotalReturn,
		Limit:  10,
		Filter: storage.Filter{Mode: domain.ModeMomentum},
	})
	require.NoError(t, err)

	require.Len(t, result, 1)
	assert.Equal(t, "filter-mom", result[0].ID)
}

func TestSimulationRunStore_QueryStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	a := createTestRun("stats-a", "sweep-stats", 0)
	a.TotalReturnPct = 10
	a.SharpeRatio = 1
	a.MaxDrawdownPct = 10
	a.LiquidationCount = 0

	b := createTestRun("stats-b", "sweep-stats", 1)
	b.TotalReturnPct = 20
	b.SharpeRatio = 2
	b.MaxDrawdownPct = 20
	b.LiquidationCount = 1

	c := createTestRun("stats-c", "sweep-stats", 2)
	c.TotalReturnPct = -30
	c.SharpeRatio = 3
	c.MaxDrawdownPct = 30
	c.LiquidationCount = 2

	require.NoError(t, store.InsertBatch(ctx, []*domain.PersistedRun{a, b, c}))

	stats, err := store.QueryStats(ctx, storage.Filter{RunID: "sweep-stats"})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Runs)
	assert.InDelta(t, 0.0, stats.AvgReturnPct, 0.0001)
	assert.InDelta(t, 10.0, stats.MedianReturnPct, 0.0001)
	assert.InDelta(t, 2.0, stats.AvgSharpe, 0.0001)
	assert.InDelta(t, 20.0, stats.BestReturnPct, 0.0001)
	assert.InDelta(t, -30.0, stats.WorstReturnPct, 0.0001)
	assert.InDelta(t, 20.0, stats.AvgMaxDrawdownPct, 0.0001)
	assert.Equal(t, 3, stats.TotalLiquidations)

	// No matches yields zero stats, not an error
	empty, err := store.QueryStats(ctx, storage.Filter{RunID: "sweep-missing"})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Runs)
	assert.Equal(t, 0.0, empty.AvgReturnPct)
}

func TestSimulationRunStore_Count(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	a := createTestRun("count-a", "sweep-count", 0)
	b := createTestRun("count-b", "sweep-count", 1)
	b.Leverage = 5
	c := createTestRun("count-c", "sweep-count-2", domain.WholeSeriesWindow)
	c.Mode = domain.ModeContrarian

	require.NoError(t, store.InsertBatch(ctx, []*domain.PersistedRun{a, b, c}))

	n, err := store.Count(ctx, storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.Count(ctx, storage.Filter{RunID: "sweep-count"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Count(ctx, storage.Filter{Leverage: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Count(ctx, storage.Filter{Mode: domain.ModeContrarian})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Count(ctx, storage.Filter{WindowIndex: ptr(domain.WholeSeriesWindow)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Count(ctx, storage.Filter{Asset: "ETH"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSimulationRunStore_EmptyResult(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	result, err := store.ListByRunID(ctx, "nonexistent-sweep")
	require.NoError(t, err)
	assert.Empty(t, result)

	top, err := store.QueryTop(ctx, storage.TopQuery{Metric: domain.MetricTotalReturn, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestSimulationRunStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulationRunStore(pool)

	err := store.Insert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Insert(ctx, createTestRun("", "sweep-001", 0))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Insert(ctx, createTestRun("row-001", "", 0))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
