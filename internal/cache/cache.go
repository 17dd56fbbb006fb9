// SPDX-License-Identifier: MIT

// Package cache is the cache-aside layer in front of the flight data provider.
// Stores hold serialized upstream responses keyed by normalized request
// parameters; expiry is always passive (store TTL).
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrUnavailable reports that the backing store could not be reached.
// Callers never fail a request because of it.
var ErrUnavailable = errors.New("cache: store unavailable")

// Store is a byte-oriented key/value store with per-entry TTL.
type Store interface {
	// Get returns the value for key. found is false on a miss; err is non-nil
	// only when the store itself failed.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Stats returns store statistics.
	Stats() Stats
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64 // Successful Get operations
	Misses      int64 // Get operations that found nothing (or an expired entry)
	Sets        int64 // Successful Set operations
	Errors      int64 // Operations that failed against the store
	CurrentSize int   // Entries currently held, when the backend can tell
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	errors atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Errors: c.errors.Load(),
	}
}

// entry represents a cached value with expiration time.
type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return !now.Before(e.expiration)
}

// MemoryStore is an in-process Store. It backs single-instance deployments
// (cache.backend: memory) and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   counters
	janitor *janitor
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store. A positive cleanupInterval starts
// a janitor that drops expired entries; Close stops it.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		s.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
			done:     make(chan struct{}),
		}
		go s.janitor.run(s)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, found := s.entries[key]
	s.mu.RUnlock()

	if !found || e.isExpired(s.now()) {
		s.stats.misses.Add(1)
		return nil, false, nil
	}
	s.stats.hits.Add(1)
	return append([]byte(nil), e.value...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = &entry{
		value:      append([]byte(nil), value...),
		expiration: s.now().Add(ttl),
	}
	s.mu.Unlock()
	s.stats.sets.Add(1)
	return nil
}

func (s *MemoryStore) Stats() Stats {
	st := s.stats.snapshot()
	s.mu.RLock()
	st.CurrentSize = len(s.entries)
	s.mu.RUnlock()
	return st
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	if s.janitor != nil {
		s.janitor.stopOnce.Do(func() { close(s.janitor.stop) })
		<-s.janitor.done
	}
	return nil
}

// deleteExpired removes all expired entries and returns how many it dropped.
func (s *MemoryStore) deleteExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, e := range s.entries {
		if e.isExpired(now) {
			delete(s.entries, key)
			count++
		}
	}
	return count
}

// janitor performs periodic cleanup of expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (j *janitor) run(s *MemoryStore) {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// noopStore is used when caching is disabled: every lookup misses and every
// write is dropped.
type noopStore struct{}

// NewNoopStore returns a store that caches nothing.
func NewNoopStore() Store { return noopStore{} }

func (noopStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (noopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (noopStore) Stats() Stats { return Stats{} }

func (noopStore) Close() error { return nil }
