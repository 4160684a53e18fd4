// Package db declares the storage contracts shared by the Redis-backed
// repositories: the embedding cache, the budget counters and the hybrid index.
package db

import (
	"context"
	"time"
)

// Store is everything the Redis backend offers.
type Store interface {
	KVStore
	Searcher
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// KVStore covers the cache and counter commands.
type KVStore interface {
	// Get returns ErrKeyNotFound for an absent key.
	Get(ctx context.Context, key string) ([]byte, error)
	// MGet answers in key order with nil for every absent key.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// SetMulti writes all items in one round trip; ttl zero means no expiry.
	SetMulti(ctx context.Context, items []KVItem, ttl time.Duration) error
	// IncrBy returns the new counter value. A positive ttl is only applied
	// to a key that has no expiry yet.
	IncrBy(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
}

// KVItem is one pipelined write.
type KVItem struct {
	Key   string
	Value []byte
}

// Searcher runs FT.SEARCH queries.
type Searcher interface {
	// SearchMulti answers every query from one pipelined round trip, in query order.
	SearchMulti(ctx context.Context, queries []Query) ([]*SearchResult, error)
	IndexExists(ctx context.Context, name string) (bool, error)
}
