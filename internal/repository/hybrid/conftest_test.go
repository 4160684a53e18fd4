package hybrid

import (
	"context"
	"testing"

	"github.com/kailas-cloud/cypherrag/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchMultiFn func(ctx context.Context, queries []db.Query) ([]*db.SearchResult, error)
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	calls         int
}

func (m *mockStore) SearchMulti(ctx context.Context, queries []db.Query) ([]*db.SearchResult, error) {
	m.calls++
	if m.searchMultiFn != nil {
		return m.searchMultiFn(ctx, queries)
	}
	return make([]*db.SearchResult, len(queries)), nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, Config{}), ms
}
