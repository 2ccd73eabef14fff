// Package cache stores simulation results keyed by their full input
// identity, so repeated sweeps over the same data skip recomputation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"fgi-strategy-lab/internal/domain"
	"fgi-strategy-lab/internal/idhash"
)

// keyPrefix namespaces every backend key written by this package.
const keyPrefix = "fgi:"

// Simulator produces a result for a series and parameter set.
type Simulator interface {
	Run(ctx context.Context, series domain.Series, params domain.SimulationParams) (*domain.SimulationResult, error)
}

// Request identifies one simulation for caching purposes.
type Request struct {
	Params domain.SimulationParams
	Series domain.Series

	// From/To bound the cache identity for windowed runs.
	// Both zero means the whole series.
	From int64
	To   int64

	// Pinned marks results whose inputs can never change (completed
	// historical windows). Pinned entries never expire.
	Pinned bool
}

// Key returns the deterministic cache identity of the request.
func (r Request) Key() string {
	return idhash.ComputeResultKey(r.Params, r.From, r.To)
}

// Entry is the stored envelope around one simulation result.
type Entry struct {
	Key          string                   `json:"key"`
	Result       *domain.SimulationResult `json:"result"`
	ComputedAt   int64                    `json:"computed_at"`
	Policy       string                   `json:"policy"`
	AccessCount  int64                    `json:"access_count"`
	LastAccessed int64                    `json:"last_accessed"`
}

// Stats are cumulative counters since cache creation.
type Stats struct {
	Hits     int64
	Misses   int64
	Stale    int64
	Errors   int64
	Computes int64
}

// Options for creating a Cache.
type Options struct {
	Backend Backend

	// TTL for ephemeral entries. Zero uses DefaultTTL.
	TTL time.Duration

	// Clock returns current Unix ms. Nil uses the wall clock.
	Clock func() int64

	Verbose bool
}

// Cache wraps a Backend with policy-aware lookups and single-flight
// computation of misses.
type Cache struct {
	backend Backend
	pinned  Policy
	ttl     Policy
	clock   func() int64
	verbose bool

	group singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	stale    atomic.Int64
	errs     atomic.Int64
	computes atomic.Int64
}

// New creates a Cache over the backend.
func New(opts Options) *Cache {
	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}

	return &Cache{
		backend: opts.Backend,
		pinned:  PinnedPolicy{},
		ttl:     TTLPolicy{TTL: opts.TTL},
		clock:   clock,
		verbose: opts.Verbose,
	}
}

// Get returns a fresh cached result for the request, if any.
// The permanent partition is checked first; an expired ephemeral entry
// is a miss. Backend failures also degrade to a miss so callers always
// have the recompute path.
func (c *Cache) Get(ctx context.Context, req Request) (*domain.SimulationResult, bool) {
	res, ok := c.lookup(ctx, req)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return res, ok
}

// Set stores a computed result under the request identity.
func (c *Cache) Set(ctx context.Context, req Request, result *domain.SimulationResult) error {
	pol := c.policyFor(req)
	entry := &Entry{
		Key:        req.Key(),
		Result:     result,
		ComputedAt: c.clock(),
		Policy:     pol.Partition(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := c.backend.Set(ctx, c.storageKey(pol, entry.Key), data); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// RunAndCache returns the cached result or computes it once. Concurrent
// callers with the same identity share a single computation.
func (c *Cache) RunAndCache(ctx context.Context, req Request, sim Simulator) (*domain.SimulationResult, error) {
	if res, ok := c.Get(ctx, req); ok {
		return res, nil
	}

	v, err, _ := c.group.Do(req.Key(), func() (interface{}, error) {
		// Another flight may have stored it while we waited
		if res, ok := c.lookup(ctx, req); ok {
			return res, nil
		}

		res, err := sim.Run(ctx, req.Series, req.Params)
		if err != nil {
			return nil, err
		}
		c.computes.Add(1)

		if err := c.Set(ctx, req, res); err != nil {
			c.errs.Add(1)
			c.log("store after compute: %v", err)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.SimulationResult), nil
}

// Purge deletes expired ephemeral entries and returns how many were removed.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	now := c.clock()
	prefix := keyPrefix + c.ttl.Partition() + ":"

	keys, err := c.backend.Keys(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}

	removed := 0
	for _, k := range keys {
		data, ok, err := c.backend.Get(ctx, k)
		if err != nil || !ok {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			// Unreadable entries are dead weight, drop them too
			if c.backend.Delete(ctx, k) == nil {
				removed++
			}
			continue
		}
		if c.ttl.Fresh(entry.ComputedAt, now) {
			continue
		}

		if err := c.backend.Delete(ctx, k); err != nil {
			return removed, fmt.Errorf("delete stale entry: %w", err)
		}
		removed++
	}

	c.log("purged %d stale entries", removed)
	return removed, nil
}

// EntryCounts returns the number of stored entries per partition.
func (c *Cache) EntryCounts(ctx context.Context) (pinned, ephemeral int, err error) {
	pinnedKeys, err := c.backend.Keys(ctx, keyPrefix+c.pinned.Partition()+":")
	if err != nil {
		return 0, 0, fmt.Errorf("list pinned keys: %w", err)
	}
	ephemeralKeys, err := c.backend.Keys(ctx, keyPrefix+c.ttl.Partition()+":")
	if err != nil {
		return 0, 0, fmt.Errorf("list ephemeral keys: %w", err)
	}
	return len(pinnedKeys), len(ephemeralKeys), nil
}

// Stats returns a snapshot of the cumulative counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Stale:    c.stale.Load(),
		Errors:   c.errs.Load(),
		Computes: c.computes.Load(),
	}
}

// lookup walks the partitions without touching hit/miss counters.
func (c *Cache) lookup(ctx context.Context, req Request) (*domain.SimulationResult, bool) {
	key := req.Key()
	now := c.clock()

	for _, pol := range []Policy{c.pinned, c.ttl} {
		data, ok, err := c.backend.Get(ctx, c.storageKey(pol, key))
		if err != nil {
			c.errs.Add(1)
			c.log("backend get %s: %v", pol.Partition(), err)
			continue
		}
		if !ok {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			c.errs.Add(1)
			c.log("decode entry %s: %v", pol.Partition(), err)
			continue
		}
		if !pol.Fresh(entry.ComputedAt, now) {
			c.stale.Add(1)
			continue
		}

		c.touch(ctx, pol, &entry, now)
		return entry.Result, true
	}

	return nil, false
}

// touch bumps access counters on the stored entry. Best effort.
func (c *Cache) touch(ctx context.Context, pol Policy, entry *Entry, now int64) {
	entry.AccessCount++
	entry.LastAccessed = now

	if data, err := json.Marshal(entry); err == nil {
		_ = c.backend.Set(ctx, c.storageKey(pol, entry.Key), data)
	}
}

func (c *Cache) policyFor(req Request) Policy {
	if req.Pinned {
		return c.pinned
	}
	return c.ttl
}

func (c *Cache) storageKey(pol Policy, key string) string {
	return keyPrefix + pol.Partition() + ":" + key
}

func (c *Cache) log(format string, args ...interface{}) {
	if c.verbose {
		log.Printf("[cache] "+format, args...)
	}
}
