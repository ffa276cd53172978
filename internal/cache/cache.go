// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cache implements the keyed, invalidation-driven entity cache.

Reads are fed by the transport and invalidated by mutations. Entries move
through three states:

  - FRESH: served without a fetch.
  - STALE: the next read fetches again.
  - IN_FLIGHT: a fetch is running; concurrent readers of the same key wait
    for it instead of starting another one.

# Concurrency

Deduplication uses singleflight. The shared fetch runs on a context detached
from the first caller, so a caller that gives up only stops waiting; the
fetch continues and its result is still stored. An invalidation that lands
while a fetch is running forgets that flight, and its late result is kept as
STALE so it never masks the newer state.
*/
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/taibuivan/taskdeck/internal/platform/metrics"
	"github.com/taibuivan/taskdeck/pkg/query"
)

// # Keys

// Key identifies a cache entry: an entity kind plus an id or the canonical
// encoding of list parameters.
type Key struct {
	Kind string
	ID   string
}

// ItemKey returns the key of a single entity.
func ItemKey(kind string, id int64) Key {
	return Key{Kind: kind, ID: strconv.FormatInt(id, 10)}
}

// ListKey returns the key of a collection read with the given parameters.
// Empty and undefined parameters never reach the key.
func ListKey(kind string, params *query.Params) Key {
	if params == nil {
		return Key{Kind: kind}
	}
	return Key{Kind: kind, ID: params.Canonical()}
}

// String renders the key as "kind:id".
func (k Key) String() string {
	return k.Kind + ":" + k.ID
}

// Matcher selects keys for invalidation.
type Matcher func(Key) bool

// Exact matches the given keys only.
func Exact(keys ...Key) Matcher {
	return func(candidate Key) bool {
		for _, key := range keys {
			if candidate == key {
				return true
			}
		}
		return false
	}
}

// MatchKind matches every key of the given kinds.
func MatchKind(kinds ...string) Matcher {
	return func(candidate Key) bool {
		for _, kind := range kinds {
			if candidate.Kind == kind {
				return true
			}
		}
		return false
	}
}

// Any matches keys selected by at least one of the matchers.
func Any(matchers ...Matcher) Matcher {
	return func(candidate Key) bool {
		for _, match := range matchers {
			if match(candidate) {
				return true
			}
		}
		return false
	}
}

// # Entries

// State is the freshness of an entry.
type State int

const (
	StateFresh State = iota
	StateStale
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "FRESH"
	case StateStale:
		return "STALE"
	case StateInFlight:
		return "IN_FLIGHT"
	default:
		return "UNKNOWN"
	}
}

// Entry is a read-only view of a cache entry.
type Entry struct {
	Key       Key
	Value     any
	FetchedAt time.Time
	State     State
}

type entry struct {
	value     any
	fetchedAt time.Time
	stale     bool
}

// flight tracks one running fetch.
type flight struct {
	invalidated bool
	purged      bool
}

// Fetcher loads the value of a key from the remote service.
type Fetcher func(ctx context.Context) (any, error)

// # Cache

// Options configures a [Cache].
type Options struct {
	// FreshFor turns FRESH entries STALE after this age. Zero keeps them
	// FRESH until invalidated.
	FreshFor time.Duration

	Logger  *slog.Logger
	Metrics metrics.Recorder

	// Now overrides the clock.
	Now func() time.Time
}

// Cache is the entity cache. The zero value is not usable; call [New].
type Cache struct {
	freshFor time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  metrics.Recorder

	group singleflight.Group

	mu      sync.Mutex
	entries map[Key]*entry
	pending map[Key]*flight
}

// New creates an empty cache.
func New(options Options) *Cache {
	cache := &Cache{
		freshFor: options.FreshFor,
		now:      options.Now,
		logger:   options.Logger,
		metrics:  options.Metrics,
		entries:  make(map[Key]*entry),
		pending:  make(map[Key]*flight),
	}
	if cache.now == nil {
		cache.now = time.Now
	}
	if cache.logger == nil {
		cache.logger = slog.New(slog.DiscardHandler)
	}
	if cache.metrics == nil {
		cache.metrics = metrics.Nop{}
	}
	cache.logger = cache.logger.With(slog.String("component", "cache"))
	return cache
}

/*
Read returns the value of key, fetching it when absent or STALE.

Parameters:
  - ctx: context.Context (only bounds this caller's wait)
  - key: Key
  - fetch: Fetcher (receives a context detached from ctx)

Returns:
  - any: The cached or freshly fetched value; shared between callers, never mutate it
  - error: The fetch error, or ctx.Err() when the caller gave up waiting
*/
func (cache *Cache) Read(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	cache.mu.Lock()
	if current, ok := cache.entries[key]; ok && cache.isFresh(current) {
		cache.mu.Unlock()
		cache.metrics.RecordCacheHit(key.Kind)
		return current.value, nil
	}
	cache.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	result := cache.group.DoChan(key.String(), func() (any, error) {
		return cache.fetch(detached, key, fetch)
	})

	select {
	case outcome := <-result:
		return outcome.Val, outcome.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch runs inside singleflight and records the outcome.
func (cache *Cache) fetch(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	current := &flight{}

	cache.mu.Lock()
	cache.pending[key] = current
	cache.mu.Unlock()

	cache.metrics.RecordCacheMiss(key.Kind)
	value, err := fetch(ctx)

	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cache.pending[key] == current {
		delete(cache.pending, key)
	}

	if err != nil {
		cache.metrics.RecordCacheFetchError(key.Kind)
		if !current.invalidated {
			delete(cache.entries, key)
		}
		return nil, err
	}

	switch {
	case current.purged:
		// The session that asked for it is gone.
	case current.invalidated:
		// A newer fetch may already have stored a FRESH value.
		if existing, ok := cache.entries[key]; !ok || existing.stale {
			cache.entries[key] = &entry{value: value, fetchedAt: cache.now(), stale: true}
		}
	default:
		cache.entries[key] = &entry{value: value, fetchedAt: cache.now()}
	}

	return value, nil
}

/*
Invalidate marks every matching entry STALE. Nothing is refetched until
the next read. Running fetches of matching keys are detached so the next
read starts a new one.

Returns:
  - int: Number of stored entries marked STALE
*/
func (cache *Cache) Invalidate(match Matcher) int {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	count := 0
	for key, current := range cache.entries {
		if match(key) && !current.stale {
			current.stale = true
			count++
		}
	}

	for key, running := range cache.pending {
		if match(key) {
			running.invalidated = true
			delete(cache.pending, key)
			cache.group.Forget(key.String())
		}
	}

	if count > 0 {
		cache.metrics.RecordInvalidation(count)
		cache.logger.Debug("cache invalidated", slog.Int("entries", count))
	}
	return count
}

// Purge drops every entry. Running fetches complete but store nothing.
func (cache *Cache) Purge() {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	for key, running := range cache.pending {
		running.invalidated = true
		running.purged = true
		cache.group.Forget(key.String())
	}
	cache.pending = make(map[Key]*flight)

	dropped := len(cache.entries)
	cache.entries = make(map[Key]*entry)
	cache.logger.Debug("cache purged", slog.Int("entries", dropped))
}

// Peek reports the entry for key without fetching.
func (cache *Cache) Peek(key Key) (Entry, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	current, stored := cache.entries[key]
	_, running := cache.pending[key]
	if !stored && !running {
		return Entry{}, false
	}

	view := Entry{Key: key, State: StateInFlight}
	if stored {
		view.Value = current.value
		view.FetchedAt = current.fetchedAt
	}
	if !running {
		view.State = StateStale
		if cache.isFresh(current) {
			view.State = StateFresh
		}
	}
	return view, true
}

// Len returns the number of stored entries.
func (cache *Cache) Len() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return len(cache.entries)
}

// isFresh reports whether the entry can be served. Callers hold mu.
func (cache *Cache) isFresh(current *entry) bool {
	if current.stale {
		return false
	}
	if cache.freshFor > 0 && cache.now().Sub(current.fetchedAt) > cache.freshFor {
		return false
	}
	return true
}

// # Typed Access

// Read is the typed form of [Cache.Read].
func Read[T any](ctx context.Context, cache *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	value, err := cache.Read(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("cache: entry %s holds %T, not %T", key, value, zero)
	}
	return typed, nil
}
