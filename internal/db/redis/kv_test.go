package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/cypherrag/internal/db"
)

func requireOp(t *testing.T, err error, op string) {
	t.Helper()
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, op, dbErr.Op)
}

func TestGet(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("GET", "budget:llm:daily:20261018")).
			Return(mock.Result(mock.RedisBlobString("1500"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("GET", "absent")).
			Return(mock.Result(mock.RedisNil())),
		c.EXPECT().Do(gomock.Any(), mock.Match("GET", "broken")).
			Return(mock.ErrorResult(context.Canceled)),
	)

	v, err := s.Get(context.Background(), "budget:llm:daily:20261018")
	require.NoError(t, err)
	assert.Equal(t, "1500", string(v))

	_, err = s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, db.ErrKeyNotFound)

	_, err = s.Get(context.Background(), "broken")
	requireOp(t, err, db.OpGet)
}

func TestMGet(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("MGET", "emb:a", "emb:b", "emb:c")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisBlobString("\x00\x00\x80\x3f"),
			mock.RedisNil(),
			mock.RedisBlobString("x"),
		)))

	vals, err := s.MGet(context.Background(), []string{"emb:a", "emb:b", "emb:c"})
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Len(t, vals[0], 4)
	assert.Nil(t, vals[1])
	assert.Equal(t, "x", string(vals[2]))
}

func TestMGet_NoKeysSkipsRedis(t *testing.T) {
	s, _ := newMockStore(t)
	vals, err := s.MGet(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vals)
}

func TestMGet_ShortReply(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisArray(mock.RedisNil())))

	_, err := s.MGet(context.Background(), []string{"a", "b"})
	requireOp(t, err, db.OpMGet)
}

func TestSetMulti(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().DoMulti(gomock.Any(),
			mock.Match("SET", "k1", "v1", "EX", "3600"),
			mock.Match("SET", "k2", "v2", "EX", "3600"),
		).Return([]rueidis.RedisResult{mock.Result(mock.RedisString("OK")), mock.Result(mock.RedisString("OK"))}),
		c.EXPECT().DoMulti(gomock.Any(), mock.Match("SET", "k3", "v3")).
			Return([]rueidis.RedisResult{mock.Result(mock.RedisString("OK"))}),
	)

	require.NoError(t, s.SetMulti(context.Background(), []db.KVItem{
		{Key: "k1", Value: []byte("v1")},
		{Key: "k2", Value: []byte("v2")},
	}, time.Hour))
	require.NoError(t, s.SetMulti(context.Background(), []db.KVItem{{Key: "k3", Value: []byte("v3")}}, 0))
	require.NoError(t, s.SetMulti(context.Background(), nil, time.Hour))
}

func TestSetMulti_PartialFailure(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.ErrorResult(errors.New("OOM command not allowed")),
		})

	err := s.SetMulti(context.Background(), []db.KVItem{{Key: "a"}, {Key: "b"}}, 0)
	requireOp(t, err, db.OpSet)
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestIncrBy(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().DoMulti(gomock.Any(),
			mock.Match("INCRBY", "budget:llm:daily:20261018", "42"),
			mock.Match("EXPIRE", "budget:llm:daily:20261018", "172800", "NX"),
		).Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(142)), mock.Result(mock.RedisInt64(0))}),
		c.EXPECT().DoMulti(gomock.Any(), mock.Match("INCRBY", "k", "1")).
			Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(1))}),
		c.EXPECT().DoMulti(gomock.Any(), gomock.Any()).
			Return([]rueidis.RedisResult{mock.Result(mock.RedisError("WRONGTYPE"))}),
	)

	n, err := s.IncrBy(context.Background(), "budget:llm:daily:20261018", 42, 48*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 142, n)

	_, err = s.IncrBy(context.Background(), "k", 1, 0)
	require.NoError(t, err)

	_, err = s.IncrBy(context.Background(), "k", 1, 0)
	requireOp(t, err, db.OpIncrBy)
}
