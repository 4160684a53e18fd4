// Package hybrid serves entry-node hybrid search from Redis search indexes.
package hybrid

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/cypherrag/internal/db"
	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/segment"
)

// store is the consumer interface for hybrid search (ISP).
type store interface {
	SearchMulti(ctx context.Context, queries []db.Query) ([]*db.SearchResult, error)
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Config describes how entry nodes are laid out in Redis.
type Config struct {
	// VectorField is the hash field the vector index covers.
	VectorField string
	// Language selects the full-text tokenizer.
	Language string
}

// Repo implements entry-node hybrid search over <label>_vector and <label>_fulltext indexes.
type Repo struct {
	store       store
	vectorField string
	language    string
}

// New creates a hybrid search repository.
func New(s store, cfg Config) *Repo {
	if cfg.VectorField == "" {
		cfg.VectorField = "embedding"
	}
	if cfg.Language == "" {
		cfg.Language = "chinese"
	}
	return &Repo{store: s, vectorField: cfg.VectorField, language: cfg.Language}
}

// HybridSearch sends the KNN and BM25 queries of every term in one pipeline,
// then fuses each term's two rankings by RRF and cuts it to TopK.
func (r *Repo) HybridSearch(ctx context.Context, q domain.HybridQuery) ([]domain.EntryNode, error) {
	if len(q.Terms) == 0 {
		return nil, nil
	}
	topK := q.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	ratio := q.Ratio
	if ratio <= 0 {
		ratio = domain.DefaultEffectiveSearchRatio
	}
	prop := q.Label.DisplayProperty()
	pool := topK * ratio

	type slot struct{ knn, text int }
	slots := make([]slot, len(q.Terms))
	var queries []db.Query
	for i, t := range q.Terms {
		slots[i] = slot{knn: -1, text: -1}
		if len(t.Vector) > 0 {
			slots[i].knn = len(queries)
			queries = append(queries, &db.KNNQuery{
				IndexName:    q.Label.VectorIndex(),
				VectorField:  r.vectorField,
				Vector:       t.Vector,
				K:            pool,
				ReturnFields: []string{prop},
			})
		}
		if words := segment.Words(t.Lexical); len(words) > 0 {
			slots[i].text = len(queries)
			queries = append(queries, &db.TextQuery{
				IndexName:    q.Label.FulltextIndex(),
				Field:        prop,
				Terms:        words,
				TopK:         pool,
				ReturnFields: []string{prop},
				Language:     r.language,
			})
		}
	}
	if len(queries) == 0 {
		return nil, nil
	}

	results, err := r.store.SearchMulti(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("hybrid search %s: %w", q.Label, err)
	}

	var nodes []domain.EntryNode
	for _, s := range slots {
		fused := fuseRRF(entries(results, s.knn), entries(results, s.text), topK)
		for _, e := range fused {
			value, ok := e.Fields[prop]
			if !ok {
				continue
			}
			nodes = append(nodes, domain.EntryNode{Property: prop, Value: value, Score: e.Score})
		}
	}
	return nodes, nil
}

// MissingIndexes lists the entry-node indexes absent from the store.
func (r *Repo) MissingIndexes(ctx context.Context) ([]string, error) {
	var missing []string
	for _, label := range domain.Labels {
		if label == domain.LabelUser {
			continue
		}
		for _, name := range []string{label.VectorIndex(), label.FulltextIndex()} {
			ok, err := r.store.IndexExists(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("check index %s: %w", name, err)
			}
			if !ok {
				missing = append(missing, name)
			}
		}
	}
	return missing, nil
}

func entries(results []*db.SearchResult, i int) []db.SearchEntry {
	if i < 0 || i >= len(results) || results[i] == nil {
		return nil
	}
	return results[i].Entries
}
