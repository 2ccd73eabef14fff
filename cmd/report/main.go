package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fgi-strategy-lab/internal/config"
	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/reporting"
	"fgi-strategy-lab/internal/series"
	"fgi-strategy-lab/internal/simulation"
	"fgi-strategy-lab/internal/storage"
	chstore "fgi-strategy-lab/internal/storage/clickhouse"
	pgstore "fgi-strategy-lab/internal/storage/postgres"
	"fgi-strategy-lab/internal/verification"
)

func main() {
	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")

	// Report shape
	mode := flag.String("mode", "top", "Report mode: top or stats")
	metric := flag.String("metric", domain.MetricTotalReturn, "Ranking metric: total_return_pct or sharpe_ratio")
	limit := flag.Int("limit", reporting.DefaultLimit, "Rows in the ranked table")

	// Filters
	filterAsset := flag.String("asset", "", "Filter runs by asset")
	filterTimeframe := flag.String("timeframe", "", "Filter runs by timeframe")
	filterStrategy := flag.String("strategy", "", "Filter runs by strategy mode (momentum or contrarian)")
	filterLeverage := flag.Int("leverage", 0, "Filter runs by leverage (0 = any)")
	filterRunID := flag.String("run-id", "", "Filter runs by sweep run ID (required with --verify)")
	filterWindow := flag.Int("window", -2, "Filter runs by window index (-1 = whole series, -2 = any)")

	// Verification
	verify := flag.Bool("verify", false, "Replay persisted rows and compare stored metrics")
	seriesPath := flag.String("series", "", "Series file for --verify")
	specPath := flag.String("spec", "", "Sweep spec YAML; applies its engine settings to the replay (--verify)")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	out := flag.String("out", "", "Write markdown to this file instead of stdout")
	csvOut := flag.String("csv-out", "", "Write the ranked table as CSV to this file")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	// Validate flags
	if *postgresDSN == "" && *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn or --clickhouse-dsn is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create the run store
	var runStore storage.SimulationRunStore
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		runStore = pgstore.NewSimulationRunStore(pool)
	} else {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		runStore = chstore.NewSimulationRunStore(conn)
	}

	if *verify {
		runVerify(ctx, logger, runStore, *filterRunID, *seriesPath, *specPath, *outputJSON)
		return
	}

	// Build the filter
	filter := storage.Filter{
		Asset:     *filterAsset,
		Timeframe: *filterTimeframe,
		Mode:      domain.StrategyMode(strings.ToLower(*filterStrategy)),
		Leverage:  *filterLeverage,
		RunID:     *filterRunID,
	}
	if *filterWindow >= domain.WholeSeriesWindow {
		w := *filterWindow
		filter.WindowIndex = &w
	}

	// Generate the report
	gen := reporting.NewGenerator(runStore)
	report, err := gen.Generate(ctx, reporting.Options{
		Metric: *metric,
		Limit:  *limit,
		Filter: filter,
	})
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}

	// Output
	switch *mode {
	case "top":
		if *outputJSON {
			output, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(output))
		} else if *out != "" {
			if werr := os.WriteFile(*out, []byte(reporting.RenderMarkdown(report)), 0644); werr != nil {
				logger.Fatalf("write report: %v", werr)
			}
			logger.Printf("Wrote markdown report to %s", *out)
		} else {
			fmt.Print(reporting.RenderMarkdown(report))
		}

		if *csvOut != "" {
			if werr := os.WriteFile(*csvOut, []byte(reporting.RenderCSV(report.Ranked)), 0644); werr != nil {
				logger.Fatalf("write csv: %v", werr)
			}
			logger.Printf("Wrote ranked CSV to %s", *csvOut)
		}
	case "stats":
		if *outputJSON {
			output, _ := json.MarshalIndent(report.Summary, "", "  ")
			fmt.Println(string(output))
		} else {
			printStats(report.Summary)
		}
	default:
		logger.Fatalf("unknown mode %q (top or stats)", *mode)
	}
}

// printStats outputs the aggregate summary as plain text.
func printStats(s reporting.SweepSummary) {
	fmt.Println()
	fmt.Println("=== Run Stats ===")
	fmt.Printf("Runs:               %d\n", s.Runs)
	if s.Asset != "" {
		fmt.Printf("Asset:              %s (%s)\n", s.Asset, s.Timeframe)
	}
	if s.Mode != "" {
		fmt.Printf("Mode:               %s\n", s.Mode)
	}
	if s.SeriesStart != 0 && s.SeriesEnd != 0 {
		fmt.Printf("Series Span:        %s to %s\n",
			time.UnixMilli(s.SeriesStart).Format("2006-01-02"),
			time.UnixMilli(s.SeriesEnd).Format("2006-01-02"))
	}
	fmt.Printf("Avg Return:         %.4f%%\n", s.AvgReturnPct)
	fmt.Printf("Median Return:      %.4f%%\n", s.MedianReturnPct)
	fmt.Printf("Avg Sharpe:         %.4f\n", s.AvgSharpe)
	fmt.Printf("Best Return:        %.4f%%\n", s.BestReturnPct)
	fmt.Printf("Worst Return:       %.4f%%\n", s.WorstReturnPct)
	fmt.Printf("Avg Max Drawdown:   %.4f%%\n", s.AvgMaxDrawdownPct)
	fmt.Printf("Liquidations:       %d\n", s.TotalLiquidations)
}

// runVerify replays every stored row of a sweep and reports divergences.
// Exits non-zero when any row fails to reproduce.
func runVerify(ctx context.Context, logger *log.Logger, runStore storage.SimulationRunStore, runID, seriesPath, specPath string, outputJSON bool) {
	if runID == "" {
		logger.Fatal("--run-id is required with --verify")
	}
	if seriesPath == "" {
		logger.Fatal("--series is required with --verify")
	}

	s, err := series.Load(seriesPath)
	if err != nil {
		logger.Fatalf("load series: %v", err)
	}

	// The replay engine must use the same settings the original sweep
	// ran with, so an engine-settings spec can be passed through.
	engineCfg := simulation.DefaultConfig()
	if specPath != "" {
		sf, err := config.LoadSweepFile(specPath)
		if err != nil {
			logger.Fatalf("load sweep spec: %v", err)
		}
		engineCfg, err = sf.Engine.Apply(engineCfg)
		if err != nil {
			logger.Fatalf("apply engine settings: %v", err)
		}
	}

	verifier := verification.New(verification.Options{
		RunStore:  runStore,
		Simulator: simulation.NewEngine(engineCfg),
	})

	logger.Printf("Verifying run %s against %d samples", runID, len(s))
	report, err := verifier.VerifyRun(ctx, runID, s)
	if err != nil {
		logger.Fatalf("verification failed: %v", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printVerification(report)
	}

	if report.DivergentRows > 0 {
		os.Exit(1)
	}
}

// printVerification outputs the verification report, listing the
// per-field divergences of every row that failed to reproduce.
func printVerification(r *verification.Report) {
	fmt.Println()
	fmt.Println("=== Verification Report ===")
	fmt.Printf("Run ID:             %s\n", r.RunID)
	fmt.Printf("Total Rows:         %d\n", r.TotalRows)
	fmt.Printf("Matched:            %d\n", r.MatchedRows)
	fmt.Printf("Divergent:          %d\n", r.DivergentRows)

	for _, row := range r.Results {
		if row.Match {
			continue
		}
		fmt.Printf("\nRow %s (window %d):\n", row.RowID, row.WindowIndex)
		for _, d := range row.Divergences {
			fmt.Printf("  %-18s stored=%v recomputed=%v\n", d.Field, d.Expected, d.Actual)
		}
	}
}
