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

	"github.com/shopspring/decimal"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/observability"
	"fgi-strategy-lab/internal/series"
	"fgi-strategy-lab/internal/simulation"
)

func main() {
	// Parse flags
	seriesPath := flag.String("series", "", "Price+sentiment series file, .csv or .json (required)")

	// Strategy parameters
	mode := flag.String("mode", "", "Strategy mode: momentum or contrarian (required)")
	low := flag.Int("low", 25, "Low sentiment threshold")
	high := flag.Int("high", 75, "High sentiment threshold")
	extremeLow := flag.Int("extreme-low", -1, "Contrarian extreme-low override (-1 disables)")
	extremeHigh := flag.Int("extreme-high", -1, "Contrarian extreme-high override (-1 disables)")
	leverage := flag.Int("leverage", 1, "Position leverage")
	asset := flag.String("asset", "BTC", "Asset label")
	timeframe := flag.String("timeframe", "1d", "Bar timeframe label")

	// Engine overrides
	initialCapital := flag.String("initial-capital", "", "Starting capital (decimal, default 10000)")
	feeRate := flag.String("fee-rate", "", "Fee rate per open/close (fraction, default 0.0005)")
	fundingRate := flag.String("funding-rate", "", "Funding rate per bar (fraction, default 0.0001)")

	// Output
	showTrades := flag.Bool("trades", false, "Print the per-trade log")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	// Validate required flags
	if *seriesPath == "" {
		logger.Fatal("--series is required")
	}
	if *mode == "" {
		logger.Fatal("--mode is required (momentum or contrarian)")
	}

	// Build and validate parameters
	params := domain.SimulationParams{
		Asset:         *asset,
		Timeframe:     *timeframe,
		Mode:          domain.StrategyMode(strings.ToLower(*mode)),
		LowThreshold:  *low,
		HighThreshold: *high,
		Leverage:      *leverage,
	}
	if *extremeLow >= 0 {
		params.ExtremeLow = extremeLow
	}
	if *extremeHigh >= 0 {
		params.ExtremeHigh = extremeHigh
	}
	if err := params.Validate(); err != nil {
		logger.Fatalf("invalid parameters: %v", err)
	}

	// Build engine config
	cfg, err := buildConfig(*initialCapital, *feeRate, *fundingRate)
	if err != nil {
		logger.Fatal(err)
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

	// Load series
	s, err := series.Load(*seriesPath)
	if err != nil {
		logger.Fatalf("load series: %v", err)
	}
	logger.Printf("Loaded %d samples: %s to %s", len(s),
		time.UnixMilli(s.Start()).Format("2006-01-02"),
		time.UnixMilli(s.End()).Format("2006-01-02"))

	// Run simulation
	engine := simulation.NewEngine(cfg)
	start := time.Now()

	result, err := engine.Run(ctx, s, params)
	if err != nil {
		observability.RecordSimulationError("run")
		logger.Fatalf("simulation failed: %v", err)
	}
	observability.RecordSimulation(string(params.Mode), time.Since(start).Seconds(),
		result.NumTrades, result.LiquidationCount)

	// Output result
	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		printResult(result, *showTrades)
	}
}

// buildConfig applies CLI overrides on top of the default engine config.
func buildConfig(capital, fee, funding string) (simulation.Config, error) {
	cfg := simulation.DefaultConfig()

	if capital != "" {
		d, err := decimal.NewFromString(capital)
		if err != nil {
			return cfg, fmt.Errorf("parse --initial-capital: %w", err)
		}
		cfg.InitialCapital = d
	}
	if fee != "" {
		d, err := decimal.NewFromString(fee)
		if err != nil {
			return cfg, fmt.Errorf("parse --fee-rate: %w", err)
		}
		cfg.FeeRate = d
	}
	if funding != "" {
		d, err := decimal.NewFromString(funding)
		if err != nil {
			return cfg, fmt.Errorf("parse --funding-rate: %w", err)
		}
		cfg.FundingRatePerBar = d
	}

	return cfg, nil
}

// printResult outputs a human-readable simulation result.
func printResult(r *domain.SimulationResult, withTrades bool) {
	fmt.Println()
	fmt.Println("=== Simulation Result ===")
	fmt.Printf("Asset:              %s (%s)\n", r.Params.Asset, r.Params.Timeframe)
	fmt.Printf("Mode:               %s\n", r.Params.Mode)
	fmt.Printf("Thresholds:         %d / %d (extremes %d / %d)\n",
		r.Params.LowThreshold, r.Params.HighThreshold,
		r.Params.ExtremeLowOrDefault(), r.Params.ExtremeHighOrDefault())
	fmt.Printf("Leverage:           %dx\n", r.Params.Leverage)
	fmt.Printf("Span:               %s to %s (%d bars)\n",
		time.UnixMilli(r.StartTimestamp).Format("2006-01-02"),
		time.UnixMilli(r.EndTimestamp).Format("2006-01-02"),
		r.SampleCount)
	fmt.Println()

	fmt.Println("Performance:")
	fmt.Printf("  Total Return:     %.4f%%\n", r.TotalReturnPct)
	fmt.Printf("  Sharpe Ratio:     %.4f\n", r.SharpeRatio)
	fmt.Printf("  Max Drawdown:     %.4f%%\n", r.MaxDrawdownPct)
	fmt.Printf("  Win Rate:         %.2f%%\n", r.WinRatePct)
	fmt.Println()

	fmt.Println("Activity:")
	fmt.Printf("  Trades:           %d\n", r.NumTrades)
	fmt.Printf("  Liquidations:     %d\n", r.LiquidationCount)
	fmt.Printf("  Extreme Flips:    %d\n", r.ExtremeOverrides)
	fmt.Printf("  Fees Paid:        %s\n", r.FeesPaid.String())
	fmt.Printf("  Funding Paid:     %s\n", r.FundingPaid.String())
	fmt.Println()

	fmt.Println("Exposure:")
	fmt.Printf("  Long:             %.2f%%\n", r.TimeInLongPct)
	fmt.Printf("  Short:            %.2f%%\n", r.TimeInShortPct)
	fmt.Printf("  Neutral:          %.2f%%\n", r.TimeInNeutralPct)

	if withTrades && len(r.Trades) > 0 {
		fmt.Println()
		fmt.Printf("Trades (%d):\n", len(r.Trades))
		for _, t := range r.Trades {
			fmt.Printf("  [%s] %-11s price=%s sentiment=%.1f pnl=%s fees=%s balance=%s\n",
				time.UnixMilli(t.Timestamp).Format("2006-01-02"),
				t.Action, t.Price.String(), t.Sentiment,
				t.PnL.String(), t.Fees.String(), t.BalanceAfter.String())
		}
	}
}
