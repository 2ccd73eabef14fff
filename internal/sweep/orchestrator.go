// Package sweep runs simulations across every combination of a
// parameter grid, optionally over rolling day windows, and ranks the
// outcomes by an objective metric.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fgi-strategy-lab/internal/cache"
	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/idhash"
	"fgi-strategy-lab/internal/series"
	"fgi-strategy-lab/internal/storage"
)

// DefaultWorkers caps concurrent simulations when Options.Workers is unset.
const DefaultWorkers = 4

var (
	ErrNoSimulator = errors.New("sweep: simulator is required")
	ErrEmptyGrid   = errors.New("sweep: grid produced no valid combinations")
	ErrBadMetric   = errors.New("sweep: unknown ranking metric")
)

// Simulator produces a result for a series and parameter set.
type Simulator interface {
	Run(ctx context.Context, series domain.Series, params domain.SimulationParams) (*domain.SimulationResult, error)
}

// Options for creating an Orchestrator.
type Options struct {
	Simulator Simulator

	// Cache is optional. Without it every cell recomputes.
	Cache *cache.Cache

	// Store is optional. Without it results are not persisted.
	Store storage.SimulationRunStore

	// Workers caps concurrent simulations. Non-positive uses DefaultWorkers.
	Workers int

	// Clock returns Unix ms for persisted rows. Nil uses the wall clock.
	Clock func() int64

	Verbose bool
}

// Orchestrator coordinates grid expansion, windowing, concurrent
// simulation, ranking, and persistence of one sweep.
type Orchestrator struct {
	sim     Simulator
	cache   *cache.Cache
	store   storage.SimulationRunStore
	workers int
	clock   func() int64
	verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}

	return &Orchestrator{
		sim:     opts.Simulator,
		cache:   opts.Cache,
		store:   opts.Store,
		workers: workers,
		clock:   clock,
		verbose: opts.Verbose,
	}
}

// Spec describes one sweep.
type Spec struct {
	Grid   Grid
	Series domain.Series

	// WindowDays > 0 slides windows of that many days across the
	// series; 0 runs the whole series once.
	WindowDays int

	// Metric ranks results. Empty uses total return.
	Metric string
}

// Cell is one (window, combination) outcome.
type Cell struct {
	Window domain.Window
	Result *domain.SimulationResult
}

// Result is the outcome of a sweep. Ranked holds every successful cell
// ordered best-first by Spec.Metric.
type Result struct {
	RunID                string
	Windows              int
	Combinations         int
	FilteredCombinations int
	Simulated            int   // cells that produced a result
	Computed             int64 // simulator executions (cache misses)
	Persisted            int
	Ranked               []Cell
	Errors               []string
}

// Best returns the top-ranked cell, or nil when nothing succeeded.
func (r *Result) Best() *Cell {
	if len(r.Ranked) == 0 {
		return nil
	}
	return &r.Ranked[0]
}

// countingSimulator tracks how many simulations actually executed, as
// opposed to being served from cache.
type countingSimulator struct {
	inner Simulator
	runs  atomic.Int64
}

func (c *countingSimulator) Run(ctx context.Context, s domain.Series, p domain.SimulationParams) (*domain.SimulationResult, error) {
	c.runs.Add(1)
	return c.inner.Run(ctx, s, p)
}

// Run executes the sweep.
// Phases:
//  1. Expand and validate the grid, generate windows
//  2. Simulate every (window, combination) cell concurrently
//  3. Rank successful cells by Spec.Metric
//  4. Persist one batch of rows per window
//
// Individual cell failures are collected into Result.Errors rather than
// aborting the sweep; context cancellation aborts it. A persistence
// failure is returned as an error alongside the still-valid Result.
func (o *Orchestrator) Run(ctx context.Context, spec Spec) (*Result, error) {
	if o.sim == nil {
		return nil, ErrNoSimulator
	}
	metric, err := normalizeMetric(spec.Metric)
	if err != nil {
		return nil, err
	}
	if err := spec.Series.Validate(); err != nil {
		return nil, fmt.Errorf("sweep series: %w", err)
	}

	result := &Result{RunID: uuid.NewString()}

	// Phase 1: grid and windows
	o.log("Phase 1: Expanding grid...")
	combos, filtered := spec.Grid.Combinations()
	result.Combinations = len(combos)
	result.FilteredCombinations = filtered
	if len(combos) == 0 {
		return nil, ErrEmptyGrid
	}

	windows, windowed, err := o.resolveWindows(spec)
	if err != nil {
		return nil, err
	}
	result.Windows = len(windows)
	o.log("  %d combinations (%d filtered), %d windows", len(combos), filtered, len(windows))

	// Phase 2: simulate cells
	o.log("Phase 2: Simulating %d cells with %d workers...", len(windows)*len(combos), o.workers)
	sim := &countingSimulator{inner: o.sim}
	cells := make([]*Cell, len(windows)*len(combos))

	var mu sync.Mutex
	var errs []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for wi, w := range windows {
		for ci, p := range combos {
			idx := wi*len(combos) + ci
			w, p := w, p

			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				res, err := o.simulateCell(gctx, sim, spec.Series, w, p, windowed)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					mu.Lock()
					errs = append(errs, fmt.Sprintf("window %d %s: %v", w.Index, paramsLabel(p), err))
					mu.Unlock()
					return nil
				}

				cells[idx] = &Cell{Window: w, Result: res}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Computed = sim.runs.Load()

	var succeeded []Cell
	for _, c := range cells {
		if c != nil {
			succeeded = append(succeeded, *c)
		}
	}
	result.Simulated = len(succeeded)

	// Phase 3: rank
	o.log("Phase 3: Ranking %d results by %s...", len(succeeded), metric)
	result.Ranked = Rank(succeeded, metric)

	// Phase 4: persist
	var persistErr error
	if o.store != nil && len(succeeded) > 0 {
		o.log("Phase 4: Persisting results...")
		persistErr = o.persist(ctx, result, windows, combos, cells)
	}

	sort.Strings(errs)
	result.Errors = append(result.Errors, errs...)

	return result, persistErr
}

// resolveWindows returns the simulation windows and whether the sweep
// is windowed. A non-windowed sweep gets one whole-series pseudo-window.
func (o *Orchestrator) resolveWindows(spec Spec) ([]domain.Window, bool, error) {
	if spec.WindowDays <= 0 {
		whole := domain.Window{
			Index:          domain.WholeSeriesWindow,
			StartTimestamp: spec.Series.Start(),
			EndTimestamp:   spec.Series.End(),
			StartIdx:       0,
			EndIdx:         len(spec.Series),
			SampleCount:    len(spec.Series),
		}
		return []domain.Window{whole}, false, nil
	}

	windows, err := series.GenerateWindows(spec.Series, spec.WindowDays)
	if err != nil {
		return nil, false, fmt.Errorf("generate windows: %w", err)
	}
	if len(windows) == 0 {
		return nil, false, fmt.Errorf("series spans no %d-day windows", spec.WindowDays)
	}
	return windows, true, nil
}

// simulateCell runs one (window, combination) cell, through the cache
// when one is configured. Completed windows are cached as pinned since
// their samples can never change; whole-series runs stay ephemeral.
func (o *Orchestrator) simulateCell(ctx context.Context, sim Simulator, full domain.Series, w domain.Window, p domain.SimulationParams, windowed bool) (*domain.SimulationResult, error) {
	sub := full
	if windowed {
		sub = series.Slice(full, w)
	}

	if o.cache == nil {
		return sim.Run(ctx, sub, p)
	}

	req := cache.Request{Params: p, Series: sub}
	if windowed {
		req.From = w.StartTimestamp
		req.To = w.EndTimestamp
		req.Pinned = true
	}
	return o.cache.RunAndCache(ctx, req, sim)
}

// persist writes one batch of rows per window, retrying each batch once.
// Batches that still fail are reported in Result.Errors and through the
// returned error; other windows keep persisting.
func (o *Orchestrator) persist(ctx context.Context, result *Result, windows []domain.Window, combos []domain.SimulationParams, cells []*Cell) error {
	createdAt := o.clock()
	failures := 0

	for wi, w := range windows {
		var rows []*domain.PersistedRun
		for ci := range combos {
			cell := cells[wi*len(combos)+ci]
			if cell == nil {
				continue
			}
			rowID := idhash.ComputeRunRowID(result.RunID, cell.Result.Params, w.Index)
			rows = append(rows, domain.RunFromResult(rowID, result.RunID, createdAt, w.Index, cell.Result))
		}
		if len(rows) == 0 {
			continue
		}

		err := o.store.InsertBatch(ctx, rows)
		if err != nil {
			o.log("  retrying window %d batch: %v", w.Index, err)
			err = o.store.InsertBatch(ctx, rows)
		}
		if err != nil {
			failures++
			result.Errors = append(result.Errors, fmt.Sprintf("persist window %d: %v", w.Index, err))
			continue
		}
		result.Persisted += len(rows)
	}

	if failures > 0 {
		return fmt.Errorf("sweep persist: %d window batches failed", failures)
	}
	return nil
}

func normalizeMetric(metric string) (string, error) {
	switch metric {
	case "":
		return domain.MetricTotalReturn, nil
	case domain.MetricTotalReturn, domain.MetricSharpe:
		return metric, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrBadMetric, metric)
	}
}

func paramsLabel(p domain.SimulationParams) string {
	return fmt.Sprintf("%s[%d/%d]x%d", p.Mode, p.LowThreshold, p.HighThreshold, p.Leverage)
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[sweep] "+format, args...)
	}
}
