// Package cache provides the in-memory read-through TTL cache that fronts
// the StatHub API.
//
// The catalogs of a statistics provider change on the order of days, while
// an agent session touches them on every turn. The Store keeps assembled
// collections in memory under deterministic keys with a per-entry TTL.
// Freshness is checked at read time, so an expired entry is never returned
// even if the background janitor has not swept yet; the janitor only bounds
// memory between reads.
//
// Concurrent misses on the same key collapse into a single producer
// invocation via singleflight, so a burst of identical agent calls costs
// one upstream fetch.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/nwardt/stathub-mcp/pkg/logging"
)

// Prometheus metrics for cache operations.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stathub_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stathub_cache_misses_total",
		Help: "Total number of cache misses",
	})

	cacheSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stathub_cache_sweep_evictions_total",
		Help: "Total number of expired entries removed by the janitor",
	})

	cacheSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stathub_cache_size_bytes",
		Help: "Approximate size of cached payloads in bytes",
	})
)

// entry is one cached payload with its freshness metadata.
type entry struct {
	payload   any
	size      int64
	createdAt time.Time
	ttl       time.Duration
}

// expired reports whether the entry is stale at the given instant.
func (e entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Stats describes the cache population for observability.
type Stats struct {
	// Total is the number of entries physically present.
	Total int `json:"total"`

	// Live is the number of entries that would be served on a read.
	Live int `json:"live"`

	// Expired is the number of stale entries not yet swept.
	Expired int `json:"expired"`

	// SizeBytes is the approximate payload size of all present entries.
	SizeBytes int64 `json:"size_bytes"`
}

// Options configures a Store.
type Options struct {
	// DefaultTTL applies when Set or GetOrFetch receive a zero TTL.
	// Default 24h, suiting slowly-changing catalogs.
	DefaultTTL time.Duration

	// JanitorInterval is how often the background sweep runs. Zero
	// disables the janitor; freshness does not depend on it.
	JanitorInterval time.Duration
}

// Store is an in-memory key/value cache with per-entry TTL.
//
// All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	sizeBytes  int64
	defaultTTL time.Duration

	sf     singleflight.Group
	logger zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a Store and, when Options.JanitorInterval is positive, starts
// its background janitor. Call Close to stop the janitor.
func New(opts Options) *Store {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 24 * time.Hour
	}

	s := &Store{
		entries:    make(map[string]entry),
		defaultTTL: opts.DefaultTTL,
		logger:     logging.NewLogger("cache"),
		stop:       make(chan struct{}),
	}

	if opts.JanitorInterval > 0 {
		go s.janitor(opts.JanitorInterval)
	}
	return s
}

// GetOrFetch returns the live cached payload for key, or invokes producer,
// stores its result under key with the given ttl (the default TTL when ttl
// is zero), and returns it.
//
// Producer failures are returned as-is and never cached: an error state must
// not be served as data on the next call. Concurrent callers that miss on
// the same key share one producer invocation.
func (s *Store) GetOrFetch(ctx context.Context, key string, ttl time.Duration, producer func(context.Context) (any, error)) (any, error) {
	if payload, ok := s.Get(key); ok {
		return payload, nil
	}

	payload, err, _ := s.sf.Do(key, func() (any, error) {
		// A concurrent flight may have populated the entry between our
		// miss and this closure running.
		if payload, ok := s.Get(key); ok {
			return payload, nil
		}

		payload, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		s.Set(key, payload, ttl)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// GetOrFetch is the typed wrapper around [Store.GetOrFetch].
func GetOrFetch[T any](ctx context.Context, s *Store, key string, ttl time.Duration, producer func(context.Context) (T, error)) (T, error) {
	payload, err := s.GetOrFetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return producer(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: entry %q holds %T, not the requested type", key, payload)
	}
	return typed, nil
}

// Get returns the live payload for key. Expired entries are treated as
// absent and removed lazily; a miss is not an error.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		cacheMisses.Inc()
		return nil, false
	}
	if e.expired(time.Now()) {
		s.mu.Lock()
		// Re-check under the write lock; Set may have refreshed the entry.
		if cur, ok := s.entries[key]; ok && cur.expired(time.Now()) {
			s.removeLocked(key, cur)
		}
		s.mu.Unlock()
		cacheMisses.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return e.payload, true
}

// Set unconditionally stores payload under key. A zero ttl uses the
// default TTL.
func (s *Store) Set(key string, payload any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	e := entry{
		payload:   payload,
		size:      approxSize(payload),
		createdAt: time.Now(),
		ttl:       ttl,
	}

	s.mu.Lock()
	if old, ok := s.entries[key]; ok {
		s.sizeBytes -= old.size
	}
	s.entries[key] = e
	s.sizeBytes += e.size
	cacheSizeBytes.Set(float64(s.sizeBytes))
	s.mu.Unlock()

	s.logger.Debug().
		Str("cache_key", key).
		Dur("ttl", ttl).
		Int64("size_bytes", e.size).
		Msg("Cached entry")
}

// Delete removes key if present.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		s.removeLocked(key, e)
	}
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	s.sizeBytes = 0
	cacheSizeBytes.Set(0)
}

// Stats reports the current cache population. Expired counts entries that
// are stale but have not yet been removed lazily or by the janitor.
func (s *Store) Stats() Stats {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.entries), SizeBytes: s.sizeBytes}
	for _, e := range s.entries {
		if e.expired(now) {
			st.Expired++
		} else {
			st.Live++
		}
	}
	return st
}

// Sweep removes every expired entry and returns how many were removed.
// The janitor calls it periodically; tests call it directly.
func (s *Store) Sweep() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			s.removeLocked(key, e)
			removed++
		}
	}
	if removed > 0 {
		cacheSweeps.Add(float64(removed))
	}
	return removed
}

// Close stops the janitor. The store remains usable afterwards.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// removeLocked deletes an entry and maintains the size accounting.
// Callers must hold the write lock.
func (s *Store) removeLocked(key string, e entry) {
	delete(s.entries, key)
	s.sizeBytes -= e.size
	cacheSizeBytes.Set(float64(s.sizeBytes))
}

// janitor periodically evicts expired entries to bound memory growth.
// Freshness never depends on it; Get checks expiry on every read.
func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Debug().
					Int("removed", removed).
					Msg("Janitor swept expired entries")
			}
		}
	}
}

// approxSize estimates a payload's memory footprint through its JSON
// encoding. Good enough for the observability gauge; not an allocator
// measurement.
func approxSize(payload any) int64 {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return int64(len(data))
}
