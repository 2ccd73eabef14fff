package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fgi-strategy-lab/internal/domain"
)

func testParams() domain.SimulationParams {
	return domain.SimulationParams{
		Asset:         "BTC",
		Timeframe:     "1d",
		Mode:          domain.ModeMomentum,
		LowThreshold:  30,
		HighThreshold: 70,
		Leverage:      2,
	}
}

func testSeries() domain.Series {
	day := int64(86_400_000)
	start := int64(1_704_067_200_000)
	return domain.Series{
		{Timestamp: start, Price: decimal.NewFromInt(100), Sentiment: 80},
		{Timestamp: start + day, Price: decimal.NewFromInt(110), Sentiment: 50},
		{Timestamp: start + 2*day, Price: decimal.NewFromInt(105), Sentiment: 20},
	}
}

func testResult(returnPct float64) *domain.SimulationResult {
	return &domain.SimulationResult{
		Params:         testParams(),
		TotalReturnPct: returnPct,
		NumTrades:      3,
		SampleCount:    3,
	}
}

type fakeSimulator struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (f *fakeSimulator) Run(_ context.Context, _ domain.Series, params domain.SimulationParams) (*domain.SimulationResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SimulationResult{Params: params, TotalReturnPct: 42, SampleCount: 3}, nil
}

// failingBackend wraps MemoryBackend with switchable failures.
type failingBackend struct {
	inner   *MemoryBackend
	failGet bool
	failSet bool
}

func (b *failingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.failGet {
		return nil, false, errors.New("backend down")
	}
	return b.inner.Get(ctx, key)
}

func (b *failingBackend) Set(ctx context.Context, key string, value []byte) error {
	if b.failSet {
		return errors.New("backend down")
	}
	return b.inner.Set(ctx, key, value)
}

func (b *failingBackend) Delete(ctx context.Context, key string) error {
	return b.inner.Delete(ctx, key)
}

func (b *failingBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	return b.inner.Keys(ctx, prefix)
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Backend: NewMemoryBackend()})

	req := Request{Params: testParams(), Series: testSeries()}
	want := testResult(12.5)

	if err := c.Set(ctx, req, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(ctx, req)
	if !ok {
		t.Fatal("Expected hit after Set")
	}
	if got.TotalReturnPct != want.TotalReturnPct {
		t.Errorf("TotalReturnPct = %f, want %f", got.TotalReturnPct, want.TotalReturnPct)
	}
	if got.NumTrades != want.NumTrades {
		t.Errorf("NumTrades = %d, want %d", got.NumTrades, want.NumTrades)
	}
	if got.Params.Asset != want.Params.Asset {
		t.Errorf("Params.Asset = %s, want %s", got.Params.Asset, want.Params.Asset)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 0 {
		t.Errorf("Stats = %+v, want 1 hit 0 misses", stats)
	}
}

func TestCache_MissOnEmpty(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Backend: NewMemoryBackend()})

	_, ok := c.Get(ctx, Request{Params: testParams(), Series: testSeries()})
	if ok {
		t.Fatal("Expected miss on empty cache")
	}

	if stats := c.Stats(); stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestCache_EphemeralExpiry(t *testing.T) {
	ctx := context.Background()
	now := int64(1_000_000_000)
	c := New(Options{
		Backend: NewMemoryBackend(),
		TTL:     time.Hour,
		Clock:   func() int64 { return now },
	})

	req := Request{Params: testParams(), Series: testSeries()}
	if err := c.Set(ctx, req, testResult(5)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Within TTL
	now += 30 * time.Minute.Milliseconds()
	if _, ok := c.Get(ctx, req); !ok {
		t.Fatal("Expected hit within TTL")
	}

	// Past TTL
	now += 2 * time.Hour.Milliseconds()
	if _, ok := c.Get(ctx, req); ok {
		t.Fatal("Expected miss past TTL")
	}

	stats := c.Stats()
	if stats.Stale != 1 {
		t.Errorf("Stale = %d, want 1", stats.Stale)
	}
}

func TestCache_PinnedNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := int64(1_000_000_000)
	c := New(Options{
		Backend: NewMemoryBackend(),
		TTL:     time.Hour,
		Clock:   func() int64 { return now },
	})

	req := Request{
		Params: testParams(),
		Series: testSeries(),
		From:   1_704_067_200_000,
		To:     1_704_672_000_000,
		Pinned: true,
	}
	if err := c.Set(ctx, req, testResult(7)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	now += 1000 * time.Hour.Milliseconds()
	if _, ok := c.Get(ctx, req); !ok {
		t.Fatal("Expected pinned entry to survive far past the ephemeral TTL")
	}
}

func TestCache_PartitionLayout(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := New(Options{Backend: backend})

	whole := Request{Params: testParams(), Series: testSeries()}
	window := Request{
		Params: testParams(),
		Series: testSeries(),
		From:   1_704_067_200_000,
		To:     1_704_672_000_000,
		Pinned: true,
	}

	if err := c.Set(ctx, whole, testResult(1)); err != nil {
		t.Fatalf("Set whole failed: %v", err)
	}
	if err := c.Set(ctx, window, testResult(2)); err != nil {
		t.Fatalf("Set window failed: %v", err)
	}

	eph, err := backend.Keys(ctx, "fgi:eph:")
	if err != nil || len(eph) != 1 {
		t.Errorf("Expected 1 ephemeral key, got %d (err %v)", len(eph), err)
	}
	perm, err := backend.Keys(ctx, "fgi:perm:")
	if err != nil || len(perm) != 1 {
		t.Errorf("Expected 1 permanent key, got %d (err %v)", len(perm), err)
	}

	// Window bounds are part of the identity, so the requests do not collide
	if whole.Key() == window.Key() {
		t.Error("Whole-series and windowed requests must not share a key")
	}
}

func TestCache_KeyIdentity(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Backend: NewMemoryBackend()})

	reqA := Request{Params: testParams(), Series: testSeries()}
	if err := c.Set(ctx, reqA, testResult(1)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	other := testParams()
	other.Leverage = 5
	reqB := Request{Params: other, Series: testSeries()}

	if _, ok := c.Get(ctx, reqB); ok {
		t.Fatal("Different params must not share a cache entry")
	}
}

func TestCache_RunAndCache_ComputesOnce(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Backend: NewMemoryBackend()})
	sim := &fakeSimulator{}

	req := Request{Params: testParams(), Series: testSeries()}

	first, err := c.RunAndCache(ctx, req, sim)
	if err != nil {
		t.Fatalf("First RunAndCache failed: %v", err)
	}
	second, err := c.RunAndCache(ctx, req, sim)
	if err != nil {
		t.Fatalf("Second RunAndCache failed: %v", err)
	}

	if sim.calls.Load() != 1 {
		t.Errorf("Simulator called %d times, want 1", sim.calls.Load())
	}
	if first.TotalReturnPct != second.TotalReturnPct {
		t.Errorf("Cached result diverged: %f vs %f", first.TotalReturnPct, second.TotalReturnPct)
	}
	if stats := c.Stats(); stats.Computes != 1 {
		t.Errorf("Computes = %d, want 1", stats.Computes)
	}
}

func TestCache_RunAndCache_SingleFlight(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Backend: NewMemoryBackend()})
	sim := &fakeSimulator{delay: 50 * time.Millisecond}

	req := Request{Params: testParams(), Series: testSeries()}

	const goroutines = 8
	var wg sync.WaitGroup
	results := make([]*domain.SimulationResult, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.RunAndCache(ctx, req, sim)
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("Goroutine %d failed: %v", i, errs[i])
		}
		if results[i].TotalReturnPct != 42 {
			t.Errorf("Goroutine %d got %f, want 42", i, results[i].TotalReturnPct)
		}
	}

	if sim.calls.Load() != 1 {
		t.Errorf("Simulator called %d times for concurrent identical requests, want 1", sim.calls.Load())
	}
}

func TestCache_RunAndCache_SimulatorError(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Backend: NewMemoryBackend()})
	simErr := errors.New("bad series")
	sim := &fakeSimulator{err: simErr}

	req := Request{Params: testParams(), Series: testSeries()}

	_, err := c.RunAndCache(ctx, req, sim)
	if !errors.Is(err, simErr) {
		t.Fatalf("Expected simulator error, got %v", err)
	}

	// Nothing must be stored for a failed computation
	if _, ok := c.Get(ctx, req); ok {
		t.Fatal("Failed computation must not be cached")
	}
}

func TestCache_DegradesOnBackendError(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{inner: NewMemoryBackend(), failGet: true, failSet: true}
	c := New(Options{Backend: backend})
	sim := &fakeSimulator{}

	req := Request{Params: testParams(), Series: testSeries()}

	// Get degrades to a miss
	if _, ok := c.Get(ctx, req); ok {
		t.Fatal("Expected miss when backend is down")
	}

	// RunAndCache still produces a result
	res, err := c.RunAndCache(ctx, req, sim)
	if err != nil {
		t.Fatalf("RunAndCache failed: %v", err)
	}
	if res.TotalReturnPct != 42 {
		t.Errorf("TotalReturnPct = %f, want 42", res.TotalReturnPct)
	}
	if sim.calls.Load() != 1 {
		t.Errorf("Simulator called %d times, want 1", sim.calls.Load())
	}

	if stats := c.Stats(); stats.Errors == 0 {
		t.Error("Expected backend errors to be counted")
	}
}

func TestCache_Purge(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	now := int64(1_000_000_000)
	c := New(Options{
		Backend: backend,
		TTL:     time.Hour,
		Clock:   func() int64 { return now },
	})

	// Three ephemeral entries with distinct params
	for _, lev := range []int{1, 2, 3} {
		p := testParams()
		p.Leverage = lev
		if err := c.Set(ctx, Request{Params: p, Series: testSeries()}, testResult(float64(lev))); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	// One pinned entry
	pinnedReq := Request{
		Params: testParams(),
		Series: testSeries(),
		From:   1_704_067_200_000,
		To:     1_704_672_000_000,
		Pinned: true,
	}
	if err := c.Set(ctx, pinnedReq, testResult(99)); err != nil {
		t.Fatalf("Set pinned failed: %v", err)
	}

	now += 2 * time.Hour.Milliseconds()

	removed, err := c.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("Purge removed %d entries, want 3", removed)
	}

	eph, _ := backend.Keys(ctx, "fgi:eph:")
	if len(eph) != 0 {
		t.Errorf("Expected 0 ephemeral keys after purge, got %d", len(eph))
	}
	if _, ok := c.Get(ctx, pinnedReq); !ok {
		t.Error("Pinned entry must survive purge")
	}
}

func TestCache_PurgeKeepsFresh(t *testing.T) {
	ctx := context.Background()
	now := int64(1_000_000_000)
	c := New(Options{
		Backend: NewMemoryBackend(),
		TTL:     time.Hour,
		Clock:   func() int64 { return now },
	})

	req := Request{Params: testParams(), Series: testSeries()}
	if err := c.Set(ctx, req, testResult(1)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	now += 10 * time.Minute.Milliseconds()

	removed, err := c.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Purge removed %d fresh entries, want 0", removed)
	}
	if _, ok := c.Get(ctx, req); !ok {
		t.Error("Fresh entry must survive purge")
	}
}

func TestCache_EntryCounts(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Backend: NewMemoryBackend()})

	pinned, ephemeral, err := c.EntryCounts(ctx)
	if err != nil {
		t.Fatalf("EntryCounts failed: %v", err)
	}
	if pinned != 0 || ephemeral != 0 {
		t.Errorf("Empty cache counts = %d pinned, %d ephemeral, want 0, 0", pinned, ephemeral)
	}

	for _, lev := range []int{1, 2} {
		p := testParams()
		p.Leverage = lev
		if err := c.Set(ctx, Request{Params: p, Series: testSeries()}, testResult(float64(lev))); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	pinnedReq := Request{
		Params: testParams(),
		Series: testSeries(),
		From:   1_704_067_200_000,
		To:     1_704_672_000_000,
		Pinned: true,
	}
	if err := c.Set(ctx, pinnedReq, testResult(9)); err != nil {
		t.Fatalf("Set pinned failed: %v", err)
	}

	pinned, ephemeral, err = c.EntryCounts(ctx)
	if err != nil {
		t.Fatalf("EntryCounts failed: %v", err)
	}
	if pinned != 1 {
		t.Errorf("Pinned count = %d, want 1", pinned)
	}
	if ephemeral != 2 {
		t.Errorf("Ephemeral count = %d, want 2", ephemeral)
	}
}
