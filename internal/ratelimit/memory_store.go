package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryStoreShards = 32

// MemoryStore is an in-process Store backed by a sharded mutex map.
//
// Each key's window is a slice of timestamps guarded by its shard lock, so
// admission decisions are linearizable per key. A janitor goroutine evicts
// keys whose windows drained, bounding memory under a churn of distinct
// client identities.
type MemoryStore struct {
	shards       [memoryStoreShards]*memoryShard
	window       time.Duration
	ceiling      int
	cleanupEvery time.Duration
}

type memoryShard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupEvery sets the janitor sweep interval.
func WithCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

// NewMemoryStore creates a MemoryStore with the given window and ceiling.
func NewMemoryStore(window time.Duration, ceiling int, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		window:       window,
		ceiling:      ceiling,
		cleanupEvery: 2 * time.Minute,
	}
	for i := range s.shards {
		s.shards[i] = &memoryShard{windows: make(map[string][]time.Time)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit implements Store. The whole read-prune-compare-append sequence runs
// under the shard lock for the key.
func (s *MemoryStore) Admit(_ context.Context, key string, now time.Time) (bool, error) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	window := pruneWindow(shard.windows[key], now.Add(-s.window))
	if len(window) >= s.ceiling {
		// Rejected requests must not mutate the recorded sequence, but the
		// prune itself is kept so the map never holds expired entries.
		shard.windows[key] = window
		return false, nil
	}

	shard.windows[key] = append(window, now)
	return true, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string, now time.Time) (int, error) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	window := pruneWindow(shard.windows[key], now.Add(-s.window))
	if len(window) == 0 {
		delete(shard.windows, key)
		return 0, nil
	}
	shard.windows[key] = window
	return len(window), nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(_ context.Context, key string, before time.Time) error {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	window := pruneWindow(shard.windows[key], before)
	if len(window) == 0 {
		delete(shard.windows, key)
		return nil
	}
	shard.windows[key] = window
	return nil
}

// Record implements Store.
func (s *MemoryStore) Record(_ context.Context, key string, now time.Time) error {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.windows[key] = append(shard.windows[key], now)
	return nil
}

// Cleanup evicts every key whose window holds no in-window timestamps.
func (s *MemoryStore) Cleanup(now time.Time) {
	cutoff := now.Add(-s.window)
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, window := range shard.windows {
			if len(pruneWindow(window, cutoff)) == 0 {
				delete(shard.windows, key)
			}
		}
		shard.mu.Unlock()
	}
}

// StartJanitor runs periodic Cleanup sweeps until the context is cancelled.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	ticker := time.NewTicker(s.cleanupEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Cleanup(now)
			}
		}
	}()
}

func (s *MemoryStore) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%memoryStoreShards]
}

// pruneWindow drops timestamps at or before the cutoff. Timestamps are
// appended in arrival order, so the slice stays ordered and the scan stops at
// the first in-window entry.
func pruneWindow(window []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(window) && !window[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return window
	}
	return append([]time.Time(nil), window[idx:]...)
}
