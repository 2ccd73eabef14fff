package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/simulation"
)

func writeSweepFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sweep file: %v", err)
	}
	return path
}

func TestLoadSweepFile(t *testing.T) {
	path := writeSweepFile(t, `
series: testdata/fgi.csv
window_days: 90
workers: 4
objective: sharpe_ratio
grid:
  asset: BTC
  timeframe: 1d
  mode: contrarian
  low_thresholds:
    start: 10
    end: 40
    step: 10
  high_thresholds:
    start: 60
    end: 90
    step: 10
  leverages:
    start: 1
    end: 3
    step: 1
  extreme_low: 5
  extreme_high: 95
engine:
  initial_capital: "25000"
  fee_rate: "0.001"
  long_pays_funding: false
  periods_per_year: 365
cache:
  kind: sqlite
  path: /tmp/fgi-cache.db
  stale_after: 12h
`)

	sf, err := LoadSweepFile(path)
	if err != nil {
		t.Fatalf("LoadSweepFile: %v", err)
	}

	if sf.Series != "testdata/fgi.csv" {
		t.Errorf("Series = %q", sf.Series)
	}
	if sf.WindowDays != 90 || sf.Workers != 4 {
		t.Errorf("WindowDays = %d, Workers = %d", sf.WindowDays, sf.Workers)
	}
	if sf.Objective != "sharpe_ratio" {
		t.Errorf("Objective = %q", sf.Objective)
	}

	if got := sf.Grid.LowThresholds.Expand(); len(got) != 4 || got[0] != 10 || got[3] != 40 {
		t.Errorf("low thresholds = %v", got)
	}
	if sf.Grid.Asset != "BTC" || sf.Grid.Timeframe != "1d" {
		t.Errorf("asset/timeframe = %q/%q", sf.Grid.Asset, sf.Grid.Timeframe)
	}
	if sf.Grid.Mode != domain.ModeContrarian {
		t.Errorf("mode = %q", sf.Grid.Mode)
	}
	if sf.Grid.ExtremeLow != 5 || sf.Grid.ExtremeHigh != 95 {
		t.Errorf("extremes = %d/%d", sf.Grid.ExtremeLow, sf.Grid.ExtremeHigh)
	}

	cfg, err := sf.Engine.Apply(simulation.DefaultConfig())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.InitialCapital.String() != "25000" {
		t.Errorf("InitialCapital = %s", cfg.InitialCapital)
	}
	if cfg.FeeRate.String() != "0.001" {
		t.Errorf("FeeRate = %s", cfg.FeeRate)
	}
	if cfg.LongPaysFunding {
		t.Error("LongPaysFunding should have been overridden to false")
	}
	// Untouched fields keep their defaults.
	if cfg.FundingRatePerBar.String() != "0.0001" {
		t.Errorf("FundingRatePerBar = %s", cfg.FundingRatePerBar)
	}
	if !cfg.RecordTrades {
		t.Error("RecordTrades default should survive an empty override")
	}

	ttl, err := sf.Cache.ParseStaleAfter()
	if err != nil {
		t.Fatalf("ParseStaleAfter: %v", err)
	}
	if ttl != 12*time.Hour {
		t.Errorf("stale_after = %s", ttl)
	}
}

func TestLoadSweepFile_Missing(t *testing.T) {
	if _, err := LoadSweepFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadSweepFile_BadYAML(t *testing.T) {
	path := writeSweepFile(t, "series: [unclosed")
	if _, err := LoadSweepFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSweepFile_Validate(t *testing.T) {
	base := func() SweepFile {
		return SweepFile{Series: "fgi.csv"}
	}

	t.Run("minimal passes", func(t *testing.T) {
		sf := base()
		if err := sf.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("missing series", func(t *testing.T) {
		sf := SweepFile{}
		if err := sf.Validate(); !errors.Is(err, ErrMissingSeries) {
			t.Fatalf("err = %v, want ErrMissingSeries", err)
		}
	})

	t.Run("bad objective", func(t *testing.T) {
		sf := base()
		sf.Objective = "cagr"
		if err := sf.Validate(); !errors.Is(err, ErrBadObjective) {
			t.Fatalf("err = %v, want ErrBadObjective", err)
		}
	})

	t.Run("bad cache kind", func(t *testing.T) {
		sf := base()
		sf.Cache.Kind = "memcached"
		if err := sf.Validate(); !errors.Is(err, ErrBadCacheKind) {
			t.Fatalf("err = %v, want ErrBadCacheKind", err)
		}
	})

	t.Run("redis needs addr", func(t *testing.T) {
		sf := base()
		sf.Cache.Kind = "redis"
		if err := sf.Validate(); err == nil {
			t.Fatal("expected error for redis without addr")
		}
	})

	t.Run("sqlite needs path", func(t *testing.T) {
		sf := base()
		sf.Cache.Kind = "sqlite"
		if err := sf.Validate(); err == nil {
			t.Fatal("expected error for sqlite without path")
		}
	})

	t.Run("bad stale_after", func(t *testing.T) {
		sf := base()
		sf.Cache.StaleAfter = "soon"
		if err := sf.Validate(); err == nil {
			t.Fatal("expected error for unparseable stale_after")
		}
	})

	t.Run("negative stale_after", func(t *testing.T) {
		sf := base()
		sf.Cache.StaleAfter = "-1h"
		if err := sf.Validate(); err == nil {
			t.Fatal("expected error for negative stale_after")
		}
	})

	t.Run("bad engine decimal", func(t *testing.T) {
		sf := base()
		sf.Engine.FeeRate = "five bps"
		if err := sf.Validate(); err == nil {
			t.Fatal("expected error for unparseable fee rate")
		}
	})
}
