// Package budget persists token budget counters in Redis so every replica
// and every restart sees the same spend.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/cypherrag/internal/db"
)

// Counter lifetimes. Each outlives its period so a late replica still reads it.
const (
	DefaultDailyTTL   = 48 * time.Hour
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

type counterStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
}

// Store keeps one integer counter per key. Keys containing ":daily:" get the
// daily lifetime, all others the monthly one.
type Store struct {
	kv       counterStore
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New uses the default lifetimes for non-positive TTLs.
func New(kv counterStore, dailyTTL, monthTTL time.Duration) *Store {
	s := &Store{kv: kv, dailyTTL: DefaultDailyTTL, monthTTL: DefaultMonthlyTTL}
	if dailyTTL > 0 {
		s.dailyTTL = dailyTTL
	}
	if monthTTL > 0 {
		s.monthTTL = monthTTL
	}
	return s
}

// IncrBy adds val. The lifetime starts with the first increment of the key.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	ttl := s.monthTTL
	if strings.Contains(key, ":daily:") {
		ttl = s.dailyTTL
	}
	if _, err := s.kv.IncrBy(ctx, key, val, ttl); err != nil {
		return fmt.Errorf("budget counter %s: %w", key, err)
	}
	return nil
}

// Get reads a counter; an absent key is zero spend.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget counter %s: %w", key, err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget counter %s holds %q: %w", key, raw, err)
	}
	return n, nil
}
