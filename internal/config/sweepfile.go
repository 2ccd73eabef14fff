// Package config loads sweep specifications from YAML files, so large
// parameter grids live next to the data instead of in shell history.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/simulation"
	"fgi-strategy-lab/internal/sweep"
)

// Config errors.
var (
	ErrMissingSeries = errors.New("sweep file must name a series file")
	ErrBadObjective  = errors.New("objective must be total_return_pct or sharpe_ratio")
	ErrBadCacheKind  = errors.New("cache must be memory, sqlite, redis or off")
)

// SweepFile is the on-disk description of one sweep: which series to
// load, the parameter grid, and optional engine and cache settings.
type SweepFile struct {
	// Series is the path to the CSV or JSON series file. Relative paths
	// resolve against the working directory, not the sweep file.
	Series string `yaml:"series"`

	Grid sweep.Grid `yaml:"grid"`

	// WindowDays > 0 runs the grid per rolling window; 0 runs the
	// whole series once.
	WindowDays int `yaml:"window_days"`

	// Workers caps concurrent simulations. 0 uses the orchestrator default.
	Workers int `yaml:"workers"`

	// Objective ranks results; empty means total return.
	Objective string `yaml:"objective"`

	Engine EngineSettings `yaml:"engine"`
	Cache  CacheSettings  `yaml:"cache"`
}

// EngineSettings overrides parts of the default simulation config.
// Money rates are decimal strings so YAML round-trips them exactly.
type EngineSettings struct {
	InitialCapital       string   `yaml:"initial_capital"`
	FeeRate              string   `yaml:"fee_rate"`
	FundingRatePerBar    string   `yaml:"funding_rate_per_bar"`
	LongPaysFunding      *bool    `yaml:"long_pays_funding"`
	LiquidationThreshold string   `yaml:"liquidation_threshold"`
	PeriodsPerYear       *float64 `yaml:"periods_per_year"`
	RecordTrades         *bool    `yaml:"record_trades"`
}

// CacheSettings selects the result cache backend.
type CacheSettings struct {
	// Kind is memory, sqlite, redis or off. Empty means off.
	Kind string `yaml:"kind"`

	// Path is the sqlite database file (sqlite backend only).
	Path string `yaml:"path"`

	// Addr is the host:port of the Redis server (redis backend only).
	Addr string `yaml:"addr"`

	// StaleAfter is the ephemeral entry lifetime as a Go duration
	// string, e.g. "24h". Empty uses the cache default.
	StaleAfter string `yaml:"stale_after"`
}

// LoadSweepFile reads and validates a sweep spec from path.
func LoadSweepFile(path string) (*SweepFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sweep file: %w", err)
	}

	var sf SweepFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse sweep file: %w", err)
	}

	if err := sf.Validate(); err != nil {
		return nil, fmt.Errorf("sweep file %s: %w", path, err)
	}
	return &sf, nil
}

// Validate checks the sweep file fields that do not need I/O. Grid
// combinations are validated later by the orchestrator.
func (sf *SweepFile) Validate() error {
	if sf.Series == "" {
		return ErrMissingSeries
	}

	switch sf.Objective {
	case "", domain.MetricTotalReturn, domain.MetricSharpe:
	default:
		return fmt.Errorf("%w: got %q", ErrBadObjective, sf.Objective)
	}

	switch sf.Cache.Kind {
	case "", "off", "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("%w: got %q", ErrBadCacheKind, sf.Cache.Kind)
	}
	if sf.Cache.Kind == "redis" && sf.Cache.Addr == "" {
		return errors.New("redis cache needs an addr")
	}
	if sf.Cache.Kind == "sqlite" && sf.Cache.Path == "" {
		return errors.New("sqlite cache needs a path")
	}

	if _, err := sf.Cache.ParseStaleAfter(); err != nil {
		return err
	}
	if _, err := sf.Engine.Apply(simulation.DefaultConfig()); err != nil {
		return err
	}

	return nil
}

// Apply overlays the set fields onto cfg and returns the result.
func (e EngineSettings) Apply(cfg simulation.Config) (simulation.Config, error) {
	setDecimal := func(dst *decimal.Decimal, raw, field string) error {
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("engine %s %q: %w", field, raw, err)
		}
		*dst = d
		return nil
	}

	if err := setDecimal(&cfg.InitialCapital, e.InitialCapital, "initial_capital"); err != nil {
		return cfg, err
	}
	if err := setDecimal(&cfg.FeeRate, e.FeeRate, "fee_rate"); err != nil {
		return cfg, err
	}
	if err := setDecimal(&cfg.FundingRatePerBar, e.FundingRatePerBar, "funding_rate_per_bar"); err != nil {
		return cfg, err
	}
	if err := setDecimal(&cfg.LiquidationThreshold, e.LiquidationThreshold, "liquidation_threshold"); err != nil {
		return cfg, err
	}

	if e.LongPaysFunding != nil {
		cfg.LongPaysFunding = *e.LongPaysFunding
	}
	if e.PeriodsPerYear != nil {
		cfg.PeriodsPerYear = *e.PeriodsPerYear
	}
	if e.RecordTrades != nil {
		cfg.RecordTrades = *e.RecordTrades
	}

	return cfg, nil
}

// ParseStaleAfter parses the ephemeral TTL. Zero means "use the default".
func (c CacheSettings) ParseStaleAfter() (time.Duration, error) {
	if c.StaleAfter == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("cache stale_after %q: %w", c.StaleAfter, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("cache stale_after must be positive, got %s", d)
	}
	return d, nil
}
