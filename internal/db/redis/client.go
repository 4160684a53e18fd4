// Package redis backs the key-value and search stores with rueidis.
// It serves the embedding cache, the budget counters and the optional Redis hybrid index.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cypherrag/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	defaultClientName  = "cypherrag"
	defaultDialTimeout = 5 * time.Second
	readyPollInterval  = 100 * time.Millisecond
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// TLS enables TLS with the system roots.
	TLS         bool
	DialTimeout time.Duration
}

// Store implements db.Store on rueidis for Redis 8+ with the search module.
type Store struct {
	client rueidis.Client
}

// NewStore creates a Redis store. The connection is opened eagerly by rueidis.
func NewStore(cfg Config) (*Store, error) {
	opt, err := clientOption(cfg)
	if err != nil {
		return nil, err
	}
	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	return &Store{client: client}, nil
}

func clientOption(cfg Config) (rueidis.ClientOption, error) {
	if len(cfg.Addrs) == 0 {
		return rueidis.ClientOption{}, errors.New("addrs is required")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	opt := rueidis.ClientOption{
		InitAddress: cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		ClientName:  defaultClientName,
		Dialer:      net.Dialer{Timeout: dial},
		// vectors and counters are never read twice in a way client-side caching would help
		DisableCache: true,
		// FT.SEARCH result parsing expects the RESP2 array format
		AlwaysRESP2: true,
	}
	if cfg.TLS {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opt, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store answers or timeout expires.
// On timeout the last ping error is reported alongside the context error.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis not ready after %s: %w", timeout, errors.Join(ctx.Err(), lastErr))
		case <-time.After(readyPollInterval):
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr reports whether err is a Redis server error mentioning substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
