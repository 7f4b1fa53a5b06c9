// Package ratelimit implements per-client sliding-window admission control.
//
// A window considers only request timestamps within the trailing window
// duration ending at the decision instant, which avoids the boundary burst
// artifacts of fixed, aligned buckets. Window state lives behind the Store
// interface so single-instance deployments can use the in-process sharded map
// while multi-instance deployments share state through redis.
package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultWindow is the default sliding-window duration.
	DefaultWindow = 60 * time.Second

	// DefaultCeiling is the default maximum number of requests per window.
	DefaultCeiling = 100
)

// Store tracks per-key request timestamps within a sliding window.
//
// Admit is the hot-path operation: implementations must make the
// prune-count-record sequence atomic per key, so that no two concurrent
// requests for the same key can both race past the ceiling. Get, Prune, and
// Record expose the individual steps for eviction, introspection, and tests.
type Store interface {
	// Admit prunes timestamps older than the window, then either records now
	// and admits, or rejects without recording when the in-window count has
	// reached the ceiling.
	Admit(ctx context.Context, key string, now time.Time) (bool, error)

	// Get returns the number of in-window timestamps for key at the given instant.
	Get(ctx context.Context, key string, now time.Time) (int, error)

	// Prune drops timestamps recorded before the cutoff. Keys whose windows
	// become empty may be evicted entirely.
	Prune(ctx context.Context, key string, before time.Time) error

	// Record unconditionally appends a timestamp for key.
	Record(ctx context.Context, key string, now time.Time) error
}
