package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"fgi-strategy-lab/internal/cache"
	"fgi-strategy-lab/internal/config"
	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/observability"
	"fgi-strategy-lab/internal/reporting"
	"fgi-strategy-lab/internal/series"
	"fgi-strategy-lab/internal/simulation"
	"fgi-strategy-lab/internal/storage"
	chstore "fgi-strategy-lab/internal/storage/clickhouse"
	"fgi-strategy-lab/internal/storage/memory"
	"fgi-strategy-lab/internal/storage/migrations"
	pgstore "fgi-strategy-lab/internal/storage/postgres"
	"fgi-strategy-lab/internal/sweep"
)

func main() {
	// Spec file or inline grid
	specPath := flag.String("spec", "", "Sweep spec YAML file (replaces series/grid/engine flags)")
	seriesPath := flag.String("series", "", "Price+sentiment series file (required without --spec)")

	// Inline grid
	mode := flag.String("mode", "contrarian", "Strategy mode: momentum or contrarian")
	lows := flag.String("lows", "20:40:5", "Low threshold range start:end:step")
	highs := flag.String("highs", "60:80:5", "High threshold range start:end:step")
	leverages := flag.String("leverages", "1:3:1", "Leverage range start:end:step")
	extremeLow := flag.Int("extreme-low", 0, "Contrarian extreme-low override (0 disables)")
	extremeHigh := flag.Int("extreme-high", 0, "Contrarian extreme-high override (0 disables)")
	asset := flag.String("asset", "BTC", "Asset label")
	timeframe := flag.String("timeframe", "1d", "Bar timeframe label")

	// Sweep shape
	windowDays := flag.Int("window-days", 0, "Rolling window length in days (0 = whole series)")
	workers := flag.Int("workers", sweep.DefaultWorkers, "Concurrent simulations")
	objective := flag.String("objective", domain.MetricTotalReturn, "Ranking metric: total_return_pct or sharpe_ratio")

	// Result cache
	cacheKind := flag.String("cache", "memory", "Result cache: memory, sqlite, redis, or off")
	cachePath := flag.String("cache-path", "sweep-cache.db", "SQLite cache file (--cache sqlite)")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis address (--cache redis)")
	staleAfter := flag.Duration("stale-after", 0, "Ephemeral cache entry lifetime (0 = 24h default)")
	purgeCache := flag.Bool("purge-cache", false, "Drop expired ephemeral cache entries after the sweep")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	// Output
	topN := flag.Int("top", 10, "Print the top N ranked results")
	reportOut := flag.String("report-out", "", "Write a markdown report to this file")
	csvOut := flag.String("csv-out", "", "Write the ranked table as CSV to this file")
	outputJSON := flag.Bool("json", false, "Output the report as JSON")
	verbose := flag.Bool("verbose", false, "Log per-phase sweep progress")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (e.g. :9090)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[sweep] ", log.LstdFlags)

	// Resolve the sweep inputs from the spec file or inline flags
	sweepCfg, err := resolveInputs(*specPath, *seriesPath, inlineGrid{
		mode:        *mode,
		lows:        *lows,
		highs:       *highs,
		leverages:   *leverages,
		extremeLow:  *extremeLow,
		extremeHigh: *extremeHigh,
		asset:       *asset,
		timeframe:   *timeframe,
	})
	if err != nil {
		logger.Fatal(err)
	}
	if sweepCfg.windowDays == 0 {
		sweepCfg.windowDays = *windowDays
	}
	if sweepCfg.workers == 0 {
		sweepCfg.workers = *workers
	}
	if sweepCfg.objective == "" {
		sweepCfg.objective = *objective
	}
	if sweepCfg.cache.Kind == "" {
		sweepCfg.cache = config.CacheSettings{Kind: *cacheKind, Path: *cachePath, Addr: *redisAddr}
		sweepCfg.cacheTTL = *staleAfter
	}

	// Validate storage flags
	if !*useMemory && *postgresDSN == "" && *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn or --clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals; a second signal forces exit
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling sweep...", sig)
		cancel()

		sig = <-sigCh
		logger.Printf("Received second signal %v, forcing immediate exit", sig)
		os.Exit(1)
	}()

	// Serve Prometheus metrics if requested
	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr)
	}

	// Load series
	s, err := series.Load(sweepCfg.seriesPath)
	if err != nil {
		logger.Fatalf("load series: %v", err)
	}
	logger.Printf("Loaded %d samples from %s", len(s), sweepCfg.seriesPath)

	// Create the result cache
	resultCache, closeCache, err := buildCache(ctx, sweepCfg.cache, sweepCfg.cacheTTL, *verbose)
	if err != nil {
		logger.Fatalf("create cache: %v", err)
	}
	defer closeCache()

	// Create the run store
	storeName := "memory"
	var runStore storage.SimulationRunStore = memory.NewSimulationRunStore()
	if !*useMemory {
		if *postgresDSN != "" {
			pool, err := pgstore.NewPool(ctx, *postgresDSN)
			if err != nil {
				logger.Fatalf("connect to postgres: %v", err)
			}
			defer pool.Close()
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatalf("apply postgres migrations: %v", err)
			}
			storeName = "postgres"
			runStore = pgstore.NewSimulationRunStore(pool)
		} else {
			conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("connect to clickhouse: %v", err)
			}
			defer conn.Close()
			storeName = "clickhouse"
			runStore = chstore.NewSimulationRunStore(conn)
		}
	}

	// Run the sweep
	orch := sweep.New(sweep.Options{
		Simulator: simulation.NewEngine(sweepCfg.engine),
		Cache:     resultCache,
		Store:     runStore,
		Workers:   sweepCfg.workers,
		Verbose:   *verbose,
	})

	logger.Printf("Starting sweep: mode=%s window-days=%d workers=%d objective=%s",
		sweepCfg.grid.Mode, sweepCfg.windowDays, sweepCfg.workers, sweepCfg.objective)
	start := time.Now()

	res, err := orch.Run(ctx, sweep.Spec{
		Grid:       sweepCfg.grid,
		Series:     s,
		WindowDays: sweepCfg.windowDays,
		Metric:     sweepCfg.objective,
	})
	elapsed := time.Since(start)

	if res != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		observability.RecordSweepRun(status, elapsed.Seconds(),
			res.Combinations, res.Windows, res.FilteredCombinations)
		observability.RecordRowsPersisted(storeName, res.Persisted)
	}
	if resultCache != nil {
		st := resultCache.Stats()
		observability.RecordCacheLookups(st.Hits, st.Misses, st.Stale, st.Errors)

		if *purgeCache {
			removed, perr := resultCache.Purge(ctx)
			if perr != nil {
				logger.Printf("purge cache: %v", perr)
			} else if removed > 0 {
				logger.Printf("Purged %d expired cache entries", removed)
				observability.RecordCacheEvictions("expired", removed)
			}
		}
		if pinned, ephemeral, cerr := resultCache.EntryCounts(ctx); cerr == nil {
			observability.UpdateCacheEntries(pinned, ephemeral)
		}
	}

	if err != nil {
		if res == nil {
			logger.Fatalf("sweep failed: %v", err)
		}
		// Partial failure (e.g. persistence): report what we have, exit non-zero below
		logger.Printf("sweep finished with errors: %v", err)
	} else {
		observability.MarkSweepSuccess(float64(time.Now().Unix()))
	}

	logger.Printf("Sweep complete in %v: %d combinations x %d windows (%d filtered), %d simulated, %d computed, %d persisted",
		elapsed, res.Combinations, res.Windows, res.FilteredCombinations,
		res.Simulated, res.Computed, res.Persisted)
	if best := res.Best(); best != nil {
		p := best.Result.Params
		logger.Printf("Best cell: mode=%s low=%d high=%d lev=%d window=%d %s=%.4f",
			p.Mode, p.LowThreshold, p.HighThreshold, p.Leverage,
			best.Window.Index, sweepCfg.objective, best.Result.ObjectiveValue(sweepCfg.objective))
	}
	for _, e := range res.Errors {
		logger.Printf("cell error: %s", e)
	}

	// Build the report from in-memory sweep results
	report := reporting.NewGenerator(nil).FromSweep(res, reporting.Options{
		Metric: sweepCfg.objective,
		Limit:  *topN,
	})

	// Output
	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printTopResults(res, sweepCfg.objective, *topN)
	}

	if *reportOut != "" {
		if werr := os.WriteFile(*reportOut, []byte(reporting.RenderMarkdown(report)), 0644); werr != nil {
			logger.Fatalf("write report: %v", werr)
		}
		logger.Printf("Wrote markdown report to %s", *reportOut)
	}
	if *csvOut != "" {
		if werr := os.WriteFile(*csvOut, []byte(reporting.RenderCSV(report.Ranked)), 0644); werr != nil {
			logger.Fatalf("write csv: %v", werr)
		}
		logger.Printf("Wrote ranked CSV to %s", *csvOut)
	}

	if err != nil {
		os.Exit(1)
	}
}

// inlineGrid carries the grid flags when no spec file is given.
type inlineGrid struct {
	mode        string
	lows        string
	highs       string
	leverages   string
	extremeLow  int
	extremeHigh int
	asset       string
	timeframe   string
}

// sweepInputs is the resolved sweep configuration from either source.
type sweepInputs struct {
	seriesPath string
	grid       sweep.Grid
	windowDays int
	workers    int
	objective  string
	engine     simulation.Config
	cache      config.CacheSettings
	cacheTTL   time.Duration
}

// resolveInputs builds the sweep configuration. A spec file supplies
// series, grid, engine and cache settings together; otherwise the
// inline grid flags are parsed.
func resolveInputs(specPath, seriesPath string, inline inlineGrid) (*sweepInputs, error) {
	if specPath != "" {
		sf, err := config.LoadSweepFile(specPath)
		if err != nil {
			return nil, err
		}

		engineCfg, err := sf.Engine.Apply(simulation.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("apply engine settings: %w", err)
		}
		ttl, err := sf.Cache.ParseStaleAfter()
		if err != nil {
			return nil, err
		}

		return &sweepInputs{
			seriesPath: sf.Series,
			grid:       sf.Grid,
			windowDays: sf.WindowDays,
			workers:    sf.Workers,
			objective:  sf.Objective,
			engine:     engineCfg,
			cache:      sf.Cache,
			cacheTTL:   ttl,
		}, nil
	}

	if seriesPath == "" {
		return nil, fmt.Errorf("--series is required without --spec")
	}

	lowRange, err := parseRange(inline.lows)
	if err != nil {
		return nil, fmt.Errorf("parse --lows: %w", err)
	}
	highRange, err := parseRange(inline.highs)
	if err != nil {
		return nil, fmt.Errorf("parse --highs: %w", err)
	}
	levRange, err := parseRange(inline.leverages)
	if err != nil {
		return nil, fmt.Errorf("parse --leverages: %w", err)
	}

	return &sweepInputs{
		seriesPath: seriesPath,
		grid: sweep.Grid{
			Asset:          inline.asset,
			Timeframe:      inline.timeframe,
			Mode:           domain.StrategyMode(strings.ToLower(inline.mode)),
			LowThresholds:  lowRange,
			HighThresholds: highRange,
			Leverages:      levRange,
			ExtremeLow:     inline.extremeLow,
			ExtremeHigh:    inline.extremeHigh,
		},
		engine: simulation.DefaultConfig(),
	}, nil
}

// parseRange parses "start:end:step" into a Range. "25" and "10:40"
// shorthands are accepted (step defaults to 1).
func parseRange(s string) (sweep.Range, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return sweep.Range{}, fmt.Errorf("expected start:end:step, got %q", s)
	}

	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return sweep.Range{}, fmt.Errorf("bad range component %q: %w", p, err)
		}
		vals[i] = v
	}

	switch len(vals) {
	case 1:
		return sweep.Fixed(vals[0]), nil
	case 2:
		return sweep.Range{Start: vals[0], End: vals[1], Step: 1}, nil
	default:
		return sweep.Range{Start: vals[0], End: vals[1], Step: vals[2]}, nil
	}
}

// buildCache creates the result cache for the configured backend.
// Kind "off" disables caching; every cell then recomputes.
func buildCache(ctx context.Context, cfg config.CacheSettings, ttl time.Duration, verbose bool) (*cache.Cache, func(), error) {
	noop := func() {}

	switch cfg.Kind {
	case "", "off":
		return nil, noop, nil
	case "memory":
		c := cache.New(cache.Options{Backend: cache.NewMemoryBackend(), TTL: ttl, Verbose: verbose})
		return c, noop, nil
	case "sqlite":
		backend, err := cache.NewSQLiteBackend(cfg.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite cache: %w", err)
		}
		c := cache.New(cache.Options{Backend: backend, TTL: ttl, Verbose: verbose})
		return c, func() { backend.Close() }, nil
	case "redis":
		backend, err := cache.NewRedisBackend(ctx, cfg.Addr)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to redis: %w", err)
		}
		c := cache.New(cache.Options{Backend: backend, TTL: ttl, Verbose: verbose})
		return c, func() { backend.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache kind %q (memory, sqlite, redis, or off)", cfg.Kind)
	}
}

// serveMetrics exposes Prometheus metrics and a health check.
func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("metrics server error: %v", err)
	}
}

// printTopResults outputs the best cells as an aligned table.
func printTopResults(res *sweep.Result, metric string, n int) {
	if len(res.Ranked) == 0 {
		fmt.Println("\nNo successful simulations.")
		return
	}
	if n > len(res.Ranked) {
		n = len(res.Ranked)
	}

	fmt.Println()
	fmt.Printf("=== Top %d by %s ===\n", n, metric)
	fmt.Printf("%-4s %-11s %5s %5s %4s %8s %10s %9s %9s %7s %6s\n",
		"#", "MODE", "LOW", "HIGH", "LEV", "WINDOW", "RETURN%", "SHARPE", "MAXDD%", "TRADES", "LIQS")

	for i := 0; i < n; i++ {
		cell := res.Ranked[i]
		p := cell.Result.Params

		window := "full"
		if cell.Window.Index != domain.WholeSeriesWindow {
			window = strconv.Itoa(cell.Window.Index)
		}

		fmt.Printf("%-4d %-11s %5d %5d %4d %8s %10.4f %9.4f %9.4f %7d %6d\n",
			i+1, p.Mode, p.LowThreshold, p.HighThreshold, p.Leverage, window,
			cell.Result.TotalReturnPct, cell.Result.SharpeRatio,
			cell.Result.MaxDrawdownPct, cell.Result.NumTrades,
			cell.Result.LiquidationCount)
	}
}
