package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/metrics"
	"fgi-strategy-lab/internal/storage"
	"fgi-strategy-lab/internal/sweep"
)

// DefaultLimit caps the ranked table when Options.Limit is unset.
const DefaultLimit = 20

// ErrNoStore is returned by Generate when the generator has no store.
var ErrNoStore = errors.New("reporting: no run store configured")

// Options select what a report covers.
type Options struct {
	// Metric labels and, for store-backed reports, orders the ranked
	// table. Empty uses total return.
	Metric string

	// Limit caps the ranked table. Non-positive uses DefaultLimit.
	Limit int

	// Filter narrows store-backed reports. Ignored by FromSweep.
	Filter storage.Filter
}

func (o Options) normalize() (string, int) {
	metric := o.Metric
	if metric == "" {
		metric = domain.MetricTotalReturn
	}
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return metric, limit
}

// Generator produces reports from sweep outcomes or stored rows.
type Generator struct {
	runStore storage.SimulationRunStore
	now      func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. The store may be nil
// when reports are only built from in-memory sweep results.
func NewGenerator(runStore storage.SimulationRunStore) *Generator {
	return &Generator{
		runStore: runStore,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// FromSweep builds a report from a completed sweep without touching a
// store. The ranked table keeps the sweep's own ordering; summary and
// leverage aggregates cover every successful cell, not just the table.
func (g *Generator) FromSweep(res *sweep.Result, opts Options) *Report {
	metric, limit := opts.normalize()

	report := &Report{
		GeneratedAt: g.now(),
		RunID:       res.RunID,
		Objective:   metric,
	}

	n := limit
	if n > len(res.Ranked) {
		n = len(res.Ranked)
	}
	for i := 0; i < n; i++ {
		cell := res.Ranked[i]
		report.Ranked = append(report.Ranked, rowFromResult(i+1, cell.Window.Index, cell.Result))
	}

	report.Summary = summaryFromCells(res)
	report.LeverageAggregates = leverageAggregatesFromCells(res.Ranked)

	return report
}

// Generate builds a report from stored rows matching the filter.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Report, error) {
	if g.runStore == nil {
		return nil, ErrNoStore
	}
	metric, limit := opts.normalize()

	top, err := g.runStore.QueryTop(ctx, storage.TopQuery{
		Metric: metric,
		Limit:  limit,
		Filter: opts.Filter,
	})
	if err != nil {
		return nil, err
	}

	stats, err := g.runStore.QueryStats(ctx, opts.Filter)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt: g.now(),
		RunID:       opts.Filter.RunID,
		Objective:   metric,
	}

	for i, r := range top {
		report.Ranked = append(report.Ranked, rowFromRun(i+1, r))
	}

	report.Summary = SweepSummary{
		Runs:              stats.Runs,
		AvgReturnPct:      stats.AvgReturnPct,
		MedianReturnPct:   stats.MedianReturnPct,
		AvgSharpe:         stats.AvgSharpe,
		BestReturnPct:     stats.BestReturnPct,
		WorstReturnPct:    stats.WorstReturnPct,
		AvgMaxDrawdownPct: stats.AvgMaxDrawdownPct,
		TotalLiquidations: stats.TotalLiquidations,
	}
	fillDimensionsFromRuns(&report.Summary, top)

	aggs, err := g.leverageAggregatesFromStore(ctx, opts.Filter)
	if err != nil {
		return nil, err
	}
	report.LeverageAggregates = aggs

	return report, nil
}

// leverageAggregatesFromStore queries per-leverage stats across the
// accepted leverage range, skipping leverages with no rows.
func (g *Generator) leverageAggregatesFromStore(ctx context.Context, f storage.Filter) ([]LeverageAggregateRow, error) {
	var rows []LeverageAggregateRow
	for lev := domain.MinLeverage; lev <= domain.MaxLeverage; lev++ {
		if f.Leverage != 0 && f.Leverage != lev {
			continue
		}
		lf := f
		lf.Leverage = lev

		stats, err := g.runStore.QueryStats(ctx, lf)
		if err != nil {
			return nil, err
		}
		if stats.Runs == 0 {
			continue
		}

		rows = append(rows, LeverageAggregateRow{
			Leverage:          lev,
			Runs:              stats.Runs,
			AvgReturnPct:      stats.AvgReturnPct,
			AvgSharpe:         stats.AvgSharpe,
			BestReturnPct:     stats.BestReturnPct,
			AvgMaxDrawdownPct: stats.AvgMaxDrawdownPct,
			Liquidations:      stats.TotalLiquidations,
		})
	}
	return rows, nil
}

// summaryFromCells aggregates every successful cell of a sweep.
func summaryFromCells(res *sweep.Result) SweepSummary {
	s := SweepSummary{
		Runs:         res.Simulated,
		Combinations: res.Combinations,
		Windows:      res.Windows,
	}

	var returns []float64
	for i, c := range res.Ranked {
		r := c.Result
		if i == 0 {
			s.Asset = r.Params.Asset
			s.Timeframe = r.Params.Timeframe
			s.Mode = string(r.Params.Mode)
			s.BestReturnPct = r.TotalReturnPct
			s.WorstReturnPct = r.TotalReturnPct
			s.SeriesStart = r.StartTimestamp
			s.SeriesEnd = r.EndTimestamp
		}

		if r.Params.Asset != s.Asset {
			s.Asset = ""
		}
		if r.Params.Timeframe != s.Timeframe {
			s.Timeframe = ""
		}
		if string(r.Params.Mode) != s.Mode {
			s.Mode = ""
		}

		if r.TotalReturnPct > s.BestReturnPct {
			s.BestReturnPct = r.TotalReturnPct
		}
		if r.TotalReturnPct < s.WorstReturnPct {
			s.WorstReturnPct = r.TotalReturnPct
		}
		if r.StartTimestamp < s.SeriesStart {
			s.SeriesStart = r.StartTimestamp
		}
		if r.EndTimestamp > s.SeriesEnd {
			s.SeriesEnd = r.EndTimestamp
		}

		returns = append(returns, r.TotalReturnPct)
		s.AvgSharpe += r.SharpeRatio
		s.AvgMaxDrawdownPct += r.MaxDrawdownPct
		s.TotalLiquidations += r.LiquidationCount
	}

	if n := len(res.Ranked); n > 0 {
		s.AvgReturnPct = metrics.Mean(returns)
		sort.Float64s(returns)
		s.MedianReturnPct = metrics.Percentile(returns, 0.5)
		s.AvgSharpe /= float64(n)
		s.AvgMaxDrawdownPct /= float64(n)
	}
	return s
}

// leverageAggregatesFromCells groups successful cells by leverage,
// ascending.
func leverageAggregatesFromCells(cells []sweep.Cell) []LeverageAggregateRow {
	byLev := make(map[int]*LeverageAggregateRow)
	for _, c := range cells {
		r := c.Result
		lev := r.Params.Leverage

		agg := byLev[lev]
		if agg == nil {
			agg = &LeverageAggregateRow{Leverage: lev, BestReturnPct: r.TotalReturnPct}
			byLev[lev] = agg
		}

		agg.Runs++
		agg.AvgReturnPct += r.TotalReturnPct
		agg.AvgSharpe += r.SharpeRatio
		agg.AvgMaxDrawdownPct += r.MaxDrawdownPct
		agg.Liquidations += r.LiquidationCount
		if r.TotalReturnPct > agg.BestReturnPct {
			agg.BestReturnPct = r.TotalReturnPct
		}
	}

	var rows []LeverageAggregateRow
	for lev := domain.MinLeverage; lev <= domain.MaxLeverage; lev++ {
		agg := byLev[lev]
		if agg == nil {
			continue
		}
		agg.AvgReturnPct /= float64(agg.Runs)
		agg.AvgSharpe /= float64(agg.Runs)
		agg.AvgMaxDrawdownPct /= float64(agg.Runs)
		rows = append(rows, *agg)
	}
	return rows
}

// fillDimensionsFromRuns fills asset, timeframe and mode when every
// listed row agrees on them, plus the span the rows cover.
func fillDimensionsFromRuns(s *SweepSummary, runs []*domain.PersistedRun) {
	for i, r := range runs {
		if i == 0 {
			s.Asset = r.Asset
			s.Timeframe = r.Timeframe
			s.Mode = string(r.Mode)
			s.SeriesStart = r.WindowStart
			s.SeriesEnd = r.WindowEnd
		}

		if r.Asset != s.Asset {
			s.Asset = ""
		}
		if r.Timeframe != s.Timeframe {
			s.Timeframe = ""
		}
		if string(r.Mode) != s.Mode {
			s.Mode = ""
		}
		if r.WindowStart < s.SeriesStart {
			s.SeriesStart = r.WindowStart
		}
		if r.WindowEnd > s.SeriesEnd {
			s.SeriesEnd = r.WindowEnd
		}
	}
}

func rowFromResult(rank, windowIndex int, r *domain.SimulationResult) RankedRow {
	p := r.Params
	return RankedRow{
		Rank:             rank,
		Mode:             string(p.Mode),
		LowThreshold:     p.LowThreshold,
		HighThreshold:    p.HighThreshold,
		ExtremeLow:       p.ExtremeLowOrDefault(),
		ExtremeHigh:      p.ExtremeHighOrDefault(),
		Leverage:         p.Leverage,
		WindowIndex:      windowIndex,
		TotalReturnPct:   r.TotalReturnPct,
		SharpeRatio:      r.SharpeRatio,
		MaxDrawdownPct:   r.MaxDrawdownPct,
		WinRatePct:       r.WinRatePct,
		NumTrades:        r.NumTrades,
		LiquidationCount: r.LiquidationCount,
	}
}

func rowFromRun(rank int, r *domain.PersistedRun) RankedRow {
	return RankedRow{
		Rank:             rank,
		Mode:             string(r.Mode),
		LowThreshold:     r.LowThreshold,
		HighThreshold:    r.HighThreshold,
		ExtremeLow:       r.ExtremeLow,
		ExtremeHigh:      r.ExtremeHigh,
		Leverage:         r.Leverage,
		WindowIndex:      r.WindowIndex,
		TotalReturnPct:   r.TotalReturnPct,
		SharpeRatio:      r.SharpeRatio,
		MaxDrawdownPct:   r.MaxDrawdownPct,
		WinRatePct:       r.WinRatePct,
		NumTrades:        r.NumTrades,
		LiquidationCount: r.LiquidationCount,
	}
}
