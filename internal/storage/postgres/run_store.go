package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/storage"
)

// SimulationRunStore implements storage.SimulationRunStore using PostgreSQL.
type SimulationRunStore struct {
	pool *Pool
}

// NewSimulationRunStore creates a new SimulationRunStore.
func NewSimulationRunStore(pool *Pool) *SimulationRunStore {
	return &SimulationRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimulationRunStore = (*SimulationRunStore)(nil)

// Insert adds a new run row. Returns ErrDuplicateKey if id exists.
func (s *SimulationRunStore) Insert(ctx context.Context, r *domain.PersistedRun) error {
	if r == nil || r.ID == "" || r.RunID == "" {
		return storage.ErrInvalidInput
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
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21,
			$22, $23
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.RunID, r.CreatedAt,
		r.Asset, r.Timeframe, string(r.Mode),
		r.LowThreshold, r.HighThreshold, r.ExtremeLow, r.ExtremeHigh, r.Leverage,
		r.WindowIndex, r.WindowStart, r.WindowEnd,
		r.TotalReturnPct, r.SharpeRatio, r.MaxDrawdownPct, r.WinRatePct,
		r.NumTrades, r.LiquidationCount, r.SampleCount,
		r.FeesPaid, r.FundingPaid,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert simulation run: %w", err)
	}
	return nil
}

// InsertBatch adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *SimulationRunStore) InsertBatch(ctx context.Context, runs []*domain.PersistedRun) error {
	if len(runs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

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
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21,
			$22, $23
		)
	`

	for _, r := range runs {
		if r == nil || r.ID == "" || r.RunID == "" {
			return storage.ErrInvalidInput
		}

		_, err := tx.Exec(ctx, query,
			r.ID, r.RunID, r.CreatedAt,
			r.Asset, r.Timeframe, string(r.Mode),
			r.LowThreshold, r.HighThreshold, r.ExtremeLow, r.ExtremeHigh, r.Leverage,
			r.WindowIndex, r.WindowStart, r.WindowEnd,
			r.TotalReturnPct, r.SharpeRatio, r.MaxDrawdownPct, r.WinRatePct,
			r.NumTrades, r.LiquidationCount, r.SampleCount,
			r.FeesPaid, r.FundingPaid,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert simulation run in batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a run row by its ID. Returns ErrNotFound if not exists.
func (s *SimulationRunStore) GetByID(ctx context.Context, id string) (*domain.PersistedRun, error) {
	query := `
		SELECT
			id, run_id, created_at,
			asset, timeframe, mode,
			low_threshold, high_threshold, extreme_low, extreme_high, leverage,
			window_index, window_start, window_end,
			total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate_pct,
			num_trades, liquidation_count, sample_count,
			fees_paid, funding_paid
		FROM simulation_runs
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get simulation run by id: %w", err)
	}
	return r, nil
}

// ListByRunID retrieves all rows of one sweep, ordered by window_index ASC, id ASC.
func (s *SimulationRunStore) ListByRunID(ctx context.Context, runID string) ([]*domain.PersistedRun, error) {
	query := `
		SELECT
			id, run_id, created_at,
			asset, timeframe, mode,
			low_threshold, high_threshold, extreme_low, extreme_high, leverage,
			window_index, window_start, window_end,
			total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate_pct,
			num_trades, liquidation_count, sample_count,
			fees_paid, funding_paid
		FROM simulation_runs
		WHERE run_id = $1
		ORDER BY window_index ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list simulation runs by run id: %w", err)
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
	query := fmt.Sprintf(`
		SELECT
			id, run_id, created_at,
			asset, timeframe, mode,
			low_threshold, high_threshold, extreme_low, extreme_high, leverage,
			window_index, window_start, window_end,
			total_return_pct, sharpe_ratio, max_drawdown_pct, win_rate_pct,
			num_trades, liquidation_count, sample_count,
			fees_paid, funding_paid
		FROM simulation_runs
		%s
		ORDER BY %s DESC, max_drawdown_pct ASC, liquidation_count ASC, id ASC
	`, where, col)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top simulation runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// QueryStats aggregates rows matching the filter.
func (s *SimulationRunStore) QueryStats(ctx context.Context, f storage.Filter) (*domain.RunStats, error) {
	where, args := buildFilter(f)
	query := fmt.Sprintf(`
		SELECT
			count(*),
			coalesce(avg(total_return_pct), 0),
			coalesce(percentile_cont(0.5) WITHIN GROUP (ORDER BY total_return_pct), 0),
			coalesce(avg(sharpe_ratio), 0),
			coalesce(max(total_return_pct), 0),
			coalesce(min(total_return_pct), 0),
			coalesce(avg(max_drawdown_pct), 0),
			coalesce(sum(liquidation_count), 0)
		FROM simulation_runs
		%s
	`, where)

	var stats domain.RunStats
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Runs,
		&stats.AvgReturnPct,
		&stats.MedianReturnPct,
		&stats.AvgSharpe,
		&stats.BestReturnPct,
		&stats.WorstReturnPct,
		&stats.AvgMaxDrawdownPct,
		&stats.TotalLiquidations,
	)
	if err != nil {
		return nil, fmt.Errorf("query simulation run stats: %w", err)
	}

	return &stats, nil
}

// Count returns the number of rows matching the filter.
func (s *SimulationRunStore) Count(ctx context.Context, f storage.Filter) (int64, error) {
	where, args := buildFilter(f)
	query := fmt.Sprintf(`SELECT count(*) FROM simulation_runs %s`, where)

	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count simulation runs: %w", err)
	}
	return n, nil
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

// buildFilter renders set filter fields into a WHERE clause with
// positional args. Empty filter yields an empty clause.
func buildFilter(f storage.Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(format string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if f.Asset != "" {
		add("asset = $%d", f.Asset)
	}
	if f.Timeframe != "" {
		add("timeframe = $%d", f.Timeframe)
	}
	if f.Mode != "" {
		add("mode = $%d", string(f.Mode))
	}
	if f.Leverage != 0 {
		add("leverage = $%d", f.Leverage)
	}
	if f.RunID != "" {
		add("run_id = $%d", f.RunID)
	}
	if f.WindowIndex != nil {
		add("window_index = $%d", *f.WindowIndex)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// scanRun scans a single row into a PersistedRun.
func scanRun(row pgx.Row) (*domain.PersistedRun, error) {
	var r domain.PersistedRun
	var mode string

	err := row.Scan(
		&r.ID, &r.RunID, &r.CreatedAt,
		&r.Asset, &r.Timeframe, &mode,
		&r.LowThreshold, &r.HighThreshold, &r.ExtremeLow, &r.ExtremeHigh, &r.Leverage,
		&r.WindowIndex, &r.WindowStart, &r.WindowEnd,
		&r.TotalReturnPct, &r.SharpeRatio, &r.MaxDrawdownPct, &r.WinRatePct,
		&r.NumTrades, &r.LiquidationCount, &r.SampleCount,
		&r.FeesPaid, &r.FundingPaid,
	)
	if err != nil {
		return nil, err
	}

	r.Mode = domain.StrategyMode(mode)
	return &r, nil
}

// scanRuns scans multiple rows into a slice of PersistedRun.
func scanRuns(rows pgx.Rows) ([]*domain.PersistedRun, error) {
	var runs []*domain.PersistedRun

	for rows.Next() {
		var r domain.PersistedRun
		var mode string

		err := rows.Scan(
			&r.ID, &r.RunID, &r.CreatedAt,
			&r.Asset, &r.Timeframe, &mode,
			&r.LowThreshold, &r.HighThreshold, &r.ExtremeLow, &r.ExtremeHigh, &r.Leverage,
			&r.WindowIndex, &r.WindowStart, &r.WindowEnd,
			&r.TotalReturnPct, &r.SharpeRatio, &r.MaxDrawdownPct, &r.WinRatePct,
			&r.NumTrades, &r.LiquidationCount, &r.SampleCount,
			&r.FeesPaid, &r.FundingPaid,
		)
		if err != nil {
			return nil, fmt.Errorf("scan simulation run row: %w", err)
		}

		r.Mode = domain.StrategyMode(mode)
		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulation run rows: %w", err)
	}

	return runs, nil
}
