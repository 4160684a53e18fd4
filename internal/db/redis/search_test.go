package redis

import (
	"context"
	"encoding/binary"
	"math"
	"slices"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/cypherrag/internal/db"
)

func TestIndexExists(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "spu_vector")).
			Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("spu_vector")))),
		c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "sku_vector")).
			Return(mock.Result(mock.RedisError("Unknown Index name"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "brand_vector")).
			Return(mock.Result(mock.RedisError("ERR unknown command 'FT.INFO'"))),
	)

	ok, err := s.IndexExists(context.Background(), "spu_vector")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IndexExists(context.Background(), "sku_vector")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.IndexExists(context.Background(), "brand_vector")
	requireOp(t, err, db.OpIndexInfo)
}

func TestSearchMulti_KNNAndText(t *testing.T) {
	s, c := newMockStore(t)

	knn := mock.MatchFn(func(cmd []string) bool {
		return slices.Equal(cmd[:3], []string{"FT.SEARCH", "spu_vector", "*=>[KNN 4 @embedding $BLOB AS __score]"}) &&
			slices.Contains(cmd, "SORTBY") && cmd[len(cmd)-1] == "2"
	})
	text := mock.MatchFn(func(cmd []string) bool {
		return slices.Equal(cmd[:3], []string{"FT.SEARCH", "spu_fulltext", `@spu_name:(华为|mate\-40)`}) &&
			slices.Contains(cmd, "WITHSCORES") && slices.Contains(cmd, "chinese")
	})

	c.EXPECT().DoMulti(gomock.Any(), knn, text).Return([]rueidis.RedisResult{
		mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("spu:1"),
			mock.RedisArray(
				mock.RedisString("spu_name"), mock.RedisString("华为Mate 40 pro"),
				mock.RedisString("__score"), mock.RedisString("0.25"),
			),
			mock.RedisString("spu:2"),
			mock.RedisArray(
				mock.RedisString("spu_name"), mock.RedisString("华为P50"),
				mock.RedisString("__score"), mock.RedisString("1.4"),
			),
		)),
		mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("spu:1"),
			mock.RedisString("3.5"),
			mock.RedisArray(mock.RedisString("spu_name"), mock.RedisString("华为Mate 40 pro")),
		)),
	})

	res, err := s.SearchMulti(context.Background(), []db.Query{
		&db.KNNQuery{IndexName: "spu_vector", VectorField: "embedding", Vector: []float32{0.1, 0.2}, K: 4, ReturnFields: []string{"spu_name"}},
		&db.TextQuery{IndexName: "spu_fulltext", Field: "spu_name", Terms: []string{"华为", " ", "mate-40"}, TopK: 4, Language: "chinese"},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)

	require.Len(t, res[0].Entries, 2)
	assert.InDelta(t, 0.75, res[0].Entries[0].Score, 1e-9)
	assert.Zero(t, res[0].Entries[1].Score, "similarity is clamped at zero")
	assert.NotContains(t, res[0].Entries[0].Fields, distanceAlias)

	require.Len(t, res[1].Entries, 1)
	assert.Equal(t, 3.5, res[1].Entries[0].Score)
	assert.Equal(t, "华为Mate 40 pro", res[1].Entries[0].Fields["spu_name"])
}

func TestSearchMulti_MissingIndex(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.Result(mock.RedisError("spu_vector: no such index"))})

	_, err := s.SearchMulti(context.Background(), []db.Query{
		&db.KNNQuery{IndexName: "spu_vector", VectorField: "embedding", Vector: []float32{1}, K: 1},
	})
	assert.ErrorIs(t, err, db.ErrIndexNotFound)
	requireOp(t, err, db.OpSearch)
}

func TestSearchMulti_InvalidQueryNeverReachesRedis(t *testing.T) {
	s, _ := newMockStore(t)
	for _, q := range []db.Query{
		&db.KNNQuery{VectorField: "embedding", Vector: []float32{1}, K: 1},
		&db.KNNQuery{IndexName: "i", Vector: []float32{1}, K: 1},
		&db.KNNQuery{IndexName: "i", VectorField: "embedding", K: 1},
		&db.KNNQuery{IndexName: "i", VectorField: "embedding", Vector: []float32{1}},
		&db.TextQuery{IndexName: "i", Terms: []string{" "}, TopK: 1},
		&db.TextQuery{IndexName: "i", Terms: []string{"a"}},
	} {
		_, err := s.SearchMulti(context.Background(), []db.Query{q})
		assert.Error(t, err, "%+v", q)
	}

	res, err := s.SearchMulti(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestParseReply_Empty(t *testing.T) {
	res, err := parseReply([]rueidis.RedisMessage{mock.RedisInt64(0)}, false)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}

func TestEscapeTerm(t *testing.T) {
	assert.Equal(t, `mate\-40\ pro`, escapeTerm("mate-40 pro"))
	assert.Equal(t, "华为手机", escapeTerm("华为手机"))
	assert.Equal(t, `a\@b\.c`, escapeTerm("a@b.c"))
}

func TestFloat32Blob(t *testing.T) {
	blob := float32Blob([]float32{1, -2})
	require.Len(t, blob, 8)
	assert.Equal(t, float32(-2), math.Float32frombits(binary.LittleEndian.Uint32([]byte(blob[4:]))))
}
