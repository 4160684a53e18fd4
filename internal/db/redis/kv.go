package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cypherrag/internal/db"
)

// Get reads one key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	case err != nil:
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// MGet reads keys with one MGET.
func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	msgs, err := s.do(ctx, s.b().Mget().Key(keys...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpMGet, Err: err}
	}
	if len(msgs) != len(keys) {
		return nil, &db.Error{Op: db.OpMGet, Err: fmt.Errorf("%d keys but %d values", len(keys), len(msgs))}
	}

	values := make([][]byte, len(keys))
	for i := range msgs {
		if msgs[i].IsNil() {
			continue
		}
		if values[i], err = msgs[i].AsBytes(); err != nil {
			return nil, &db.Error{Op: db.OpMGet, Err: fmt.Errorf("%s: %w", keys[i], err)}
		}
	}
	return values, nil
}

// SetMulti pipelines one SET per item.
func (s *Store) SetMulti(ctx context.Context, items []db.KVItem, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	cmds := make(rueidis.Commands, len(items))
	for i, it := range items {
		set := s.b().Set().Key(it.Key).Value(rueidis.BinaryString(it.Value))
		if ttl > 0 {
			cmds[i] = set.Ex(ttl).Build()
			continue
		}
		cmds[i] = set.Build()
	}

	var errs []error
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", items[i].Key, err))
		}
	}
	if len(errs) > 0 {
		return &db.Error{Op: db.OpSet, Err: fmt.Errorf("%d of %d writes failed: %w", len(errs), len(items), errs[0])}
	}
	return nil
}

// IncrBy pipelines INCRBY with EXPIRE NX, so a counter's lifetime starts at its first increment.
func (s *Store) IncrBy(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	cmds := rueidis.Commands{s.b().Incrby().Key(key).Increment(val).Build()}
	if ttl > 0 {
		cmds = append(cmds, s.b().Expire().Key(key).Seconds(int64(ttl/time.Second)).Nx().Build())
	}

	res := s.client.DoMulti(ctx, cmds...)
	n, err := res[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: fmt.Errorf("%s: %w", key, err)}
	}
	if len(res) == 2 {
		if err := res[1].Error(); err != nil {
			return n, &db.Error{Op: db.OpExpire, Err: fmt.Errorf("%s: %w", key, err)}
		}
	}
	return n, nil
}
