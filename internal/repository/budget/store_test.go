package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/cypherrag/internal/db"
)

type mockKV struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	incrErr error
}

func newMockKV() *mockKV {
	return &mockKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) IncrBy(_ context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.ttls[key] = ttl
	m.data[key] = []byte("7")
	return val, nil
}

func TestStore_IncrBy_PicksTTLByKey(t *testing.T) {
	kv := newMockKV()
	s := New(kv, time.Hour, 2*time.Hour)

	require.NoError(t, s.IncrBy(context.Background(), "cypherrag:budget:llm:daily:2026-05-02", 5))
	require.NoError(t, s.IncrBy(context.Background(), "cypherrag:budget:llm:monthly:2026-05", 5))

	assert.Equal(t, time.Hour, kv.ttls["cypherrag:budget:llm:daily:2026-05-02"])
	assert.Equal(t, 2*time.Hour, kv.ttls["cypherrag:budget:llm:monthly:2026-05"])
}

func TestStore_DefaultTTLs(t *testing.T) {
	kv := newMockKV()
	s := New(kv, 0, 0)

	require.NoError(t, s.IncrBy(context.Background(), "x:daily:1", 1))
	assert.Equal(t, DefaultDailyTTL, kv.ttls["x:daily:1"])
}

func TestStore_IncrBy_Error(t *testing.T) {
	kv := newMockKV()
	kv.incrErr = &db.Error{Op: db.OpIncrBy, Err: errors.New("WRONGTYPE")}

	err := New(kv, 0, 0).IncrBy(context.Background(), "k", 1)
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpIncrBy, dbErr.Op)
}

func TestStore_Get(t *testing.T) {
	kv := newMockKV()
	kv.data["k"] = []byte("1200")
	s := New(kv, 0, 0)

	v, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), v)

	v, err = s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestStore_Get_Errors(t *testing.T) {
	kv := newMockKV()
	kv.data["bad"] = []byte("abc")
	s := New(kv, 0, 0)

	_, err := s.Get(context.Background(), "bad")
	assert.Error(t, err)

	kv.getErr = errors.New("timeout")
	_, err = s.Get(context.Background(), "k")
	assert.Error(t, err)
}
