package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/storage"
)

// SimulationRunStore implements storage.SimulationRunStore using ClickHouse.
type SimulationRunStore struct {
	conn *Conn
}

// NewSimulationRunStore creates a new SimulationRunStore.
func NewSimulationRunStore(conn *Conn) *SimulationRunStore {
	return &SimulationRunStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SimulationRunStore = (*SimulationRunStore)(nil)

// Insert adds a new run row. Returns ErrDuplicateKey if id exists.
func (s *SimulationRunStore) Insert(ctx context.Context, r *domain.PersistedRun) error {
	if r == nil || r.ID == "" || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	// MergeTree will happily store duplicates, so check first
	exists, err := s.exists(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO simulation_runs (
			id, run_id, created_at,
			asset, timeframe, mode,
			low_threshold, high_threshold, extreme_low, extreme_high, leverage,
			window_index, window_start, window_end,
			total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate_pct,
			num_trades, liquidation_count, sample_count,
			fees_paid, funding_paid
		) VALUES (
			?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?,
			?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		r.ID, r.RunID, r.CreatedAt,
		r.Asset, r.Timeframe, string(r.Mode),
		int32(r.LowThreshold), int32(r.HighThreshold), int32(r.ExtremeLow), int32(r.ExtremeHigh), int32(r.Leverage),
		int32(r.WindowIndex), r.WindowStart, r.WindowEnd,
		r.TotalReturnPct, r.SharpeRatio, r.MaxDrawdownPct, r.WinRatePct,
		int32(r.NumTrades), int32(r.LiquidationCount), int32(r.SampleCount),
		r.FeesPaid, r.FundingPaid,
	)
	if err != nil {
		return fmt.Errorf("insert simulation run: %w", err)
	}
	return nil
}

// InsertBatch adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *SimulationRunStore) InsertBatch(ctx context.Context, runs []*domain.PersistedRun) error {
	if len(runs) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(runs))
	for _, r := range runs {
		if r == nil || r.ID == "" || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.ID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.ID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, r := range runs {
		exists, err := s.exists(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO simulation_runs (
			id, run_id, created_at,
			asset, timeframe, mode,
			low_threshold, high_threshold, extreme_low, extreme_high, leverage,
			window_index, window_start, window_end,
			total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate_pct,
			num_trades, liquidation_count, sample_count,
			fees_paid, funding_paid
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range runs {
		err = batch.Append(
			r.ID, r.RunID, r.CreatedAt,
			r.Asset, r.Timeframe, string(r.Mode),
			int32(r.LowThreshold), int32(r.HighThreshold), int32(r.ExtremeLow), int32(r.ExtremeHigh), int32(r.Leverage),
			int32(r.WindowIndex), r.WindowStart, r.WindowEnd,
			r.TotalReturnPct, r.SharpeRatio, r.MaxDrawdownPct, r.WinRatePct,
			int32(r.NumTrades), int32(r.LiquidationCount), int32(r.SampleCount),
			r.FeesPaid, r.FundingPaid,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByID retrieves a run row by its ID. Returns ErrNotFound if not exists.
func (s *SimulationRunStore) GetByID(ctx context.Context, id string) (*domain.PersistedRun, error) {
	query := selectRunColumns + `
		FROM simulation_runs
		WHERE id = ?
		LIMIT 1
	`

	row := s.conn.QueryRow(ctx, query, id)
	r, err := scanRunRow(row)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return r, nil
}

// ListByRunID retrieves all rows of one sweep, ordered by window_index ASC, id ASC.
func (s *SimulationRunStore) ListByRunID(ctx context.Context, runID string) ([]*domain.PersistedRun, error) {
	query := selectRunColumns + `
		FROM simulation_runs
		WHERE run_id = ?
		ORDER BY window_index ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list by run id: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// QueryTop retrieves the best rows by the query metric, descending.
// A non-positive limit returns all matching rows.
func (s *SimulationRunStore) QueryTop(ctx context.Context, q storage.TopQuery) ([]*domain.PersistedRun, error) {
	col, err := metricColumn(q.Metric)
	if err != nil {
		return nil, err
	}

	where, args := buildFilter(q.Filter)
	query := fmt.Sprintf(`%s
		FROM simulation_runs
		%s
		ORDER BY %s DESC, max_drawdown_pct ASC, liquidation_count ASC, id ASC
	`, selectRunColumns, where, col)

	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// QueryStats aggregates rows matching the filter.
func (s *SimulationRunStore) QueryStats(ctx context.Context, f storage.Filter) (*domain.RunStats, error) {
	where, args := buildFilter(f)
	query := fmt.Sprintf(`
		SELECT
			count(),
			avg(total_return_pct),
			medianExact(total_return_pct),
			avg(sharpe_ratio),
			max(total_return_pct),
			min(total_return_pct),
			avg(max_drawdown_pct),
			sum(liquidation_count)
		FROM simulation_runs
		%s
	`, where)

	var count uint64
	var avgRet, medianRet, avgSharpe, best, worst, avgDrawdown float64
	var totalLiquidations int64
	err := s.conn.QueryRow(ctx, query, args...).Scan(
		&count, &avgRet, &medianRet, &avgSharpe, &best, &worst, &avgDrawdown, &totalLiquidations,
	)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	// Aggregates over an empty set come back as NaN/zero placeholders
	if count == 0 {
		return &domain.RunStats{}, nil
	}

	return &domain.RunStats{
		Runs:              int(count),
		AvgReturnPct:      avgRet,
		MedianReturnPct:   medianRet,
		AvgSharpe:         avgSharpe,
		BestReturnPct:     best,
		WorstReturnPct:    worst,
		AvgMaxDrawdownPct: avgDrawdown,
		TotalLiquidations: int(totalLiquidations),
	}, nil
}

// Count returns the number of rows matching the filter.
func (s *SimulationRunStore) Count(ctx context.Context, f storage.Filter) (int64, error) {
	where, args := buildFilter(f)
	query := fmt.Sprintf("SELECT count() FROM simulation_runs %s", where)

	var count uint64
	if err := s.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return int64(count), nil
}

// exists checks if a row with the given id exists.
func (s *SimulationRunStore) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, "SELECT count() FROM simulation_runs WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// metricColumn maps a ranking metric to its column. Whitelist keeps the
// ORDER BY clause out of reach of caller input.
func metricColumn(metric string) (string, error) {
	switch metric {
	case domain.MetricTotalReturn:
		return "total_return_pct", nil
	case domain.MetricSharpe:
		return "sharpe_ratio", nil
	default:
		return "", storage.ErrInvalidInput
	}
}

// buildFilter renders set filter fields into a WHERE clause with ? args.
func buildFilter(f storage.Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.Asset != "" {
		conds = append(conds, "asset = ?")
		args = append(args, f.Asset)
	}
	if f.Timeframe != "" {
		conds = append(conds, "timeframe = ?")
		args = append(args, f.Timeframe)
	}
	if f.Mode != "" {
		conds = append(conds, "mode = ?")
		args = append(args, string(f.Mode))
	}
	if f.Leverage != 0 {
		conds = append(conds, "leverage = ?")
		args = append(args, int32(f.Leverage))
	}
	if f.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.WindowIndex != nil {
		conds = append(conds, "window_index = ?")
		args = append(args, int32(*f.WindowIndex))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

const selectRunColumns = `
		SELECT
			id, run_id, created_at,
			asset, timeframe, mode,
			low_threshold, high_threshold, extreme_low, extreme_high, leverage,
			window_index, window_start, window_end,
			total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate_pct,
			num_trades, liquidation_count, sample_count,
			fees_paid, funding_paid`

// Row interfaces for scanning
type chRow interface {
	Scan(dest ...interface{}) error
}

type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanRunRow scans a single row into a PersistedRun. Integer columns are
// Int32 on the wire, so they go through exact-width locals.
func scanRunRow(row chRow) (*domain.PersistedRun, error) {
	var r domain.PersistedRun
	var mode string
	var low, high, extLow, extHigh, leverage int32
	var windowIndex, numTrades, liquidations, samples int32

	err := row.Scan(
		&r.ID, &r.RunID, &r.CreatedAt,
		&r.Asset, &r.Timeframe, &mode,
		&low, &high, &extLow, &extHigh, &leverage,
		&windowIndex, &r.WindowStart, &r.WindowEnd,
		&r.TotalReturnPct, &r.SharpeRatio, &r.MaxDrawdownPct, &r.WinRatePct,
		&numTrades, &liquidations, &samples,
		&r.FeesPaid, &r.FundingPaid,
	)
	if err != nil {
		return nil, err
	}

	r.Mode = domain.StrategyMode(mode)
	r.LowThreshold = int(low)
	r.HighThreshold = int(high)
	r.ExtremeLow = int(extLow)
	r.ExtremeHigh = int(extHigh)
	r.Leverage = int(leverage)
	r.WindowIndex = int(windowIndex)
	r.NumTrades = int(numTrades)
	r.LiquidationCount = int(liquidations)
	r.SampleCount = int(samples)
	return &r, nil
}

// scanRuns scans multiple rows into a slice of PersistedRun.
func scanRuns(rows chRows) ([]*domain.PersistedRun, error) {
	var runs []*domain.PersistedRun

	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}
