package graph

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// hybridCypher fuses the label's vector and fulltext indexes for every term.
// Each side is normalised by its best score, a node keeps its higher score,
// and every term is cut to $top_k on its own.
const hybridCypher = `UNWIND $terms AS term
CALL {
  WITH term
  CALL db.index.vector.queryNodes($vector_index, $top_k * $ratio, term.vector)
  YIELD node, score
  WITH node, score LIMIT $top_k
  WITH collect({node: node, score: score}) AS hits, max(score) AS best
  UNWIND hits AS hit
  RETURN hit.node AS node, hit.score / best AS score
  UNION
  WITH term
  CALL db.index.fulltext.queryNodes($fulltext_index, term.lexical, {limit: $top_k * $ratio})
  YIELD node, score
  WITH node, score LIMIT $top_k
  WITH collect({node: node, score: score}) AS hits, max(score) AS best
  UNWIND hits AS hit
  RETURN hit.node AS node, hit.score / best AS score
}
WITH term.idx AS idx, node, max(score) AS score
ORDER BY idx, score DESC
WITH idx, collect({value: node[$property], score: score})[..$top_k] AS hits
UNWIND hits AS hit
RETURN idx, hit.value AS value, hit.score AS score`

// HybridSearch runs the hybrid entry-node search for all terms of one label in a single query.
func (c *Client) HybridSearch(ctx context.Context, q domain.HybridQuery) ([]domain.EntryNode, error) {
	if len(q.Terms) == 0 {
		return nil, nil
	}
	rows, err := c.read(ctx, hybridCypher, hybridParams(q))
	if err != nil {
		return nil, &Error{Op: OpSearch, Err: fmt.Errorf("%s: %w", q.Label, err)}
	}
	return entryNodes(q.Label, rows), nil
}

func hybridParams(q domain.HybridQuery) map[string]any {
	topK := q.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	ratio := q.Ratio
	if ratio <= 0 {
		ratio = domain.DefaultEffectiveSearchRatio
	}

	terms := make([]any, len(q.Terms))
	for i, t := range q.Terms {
		// vectors go over the wire as lists of float64
		vec := make([]float64, len(t.Vector))
		for j, v := range t.Vector {
			vec[j] = float64(v)
		}
		terms[i] = map[string]any{"idx": i, "lexical": t.Lexical, "vector": vec}
	}

	return map[string]any{
		"vector_index":   q.Label.VectorIndex(),
		"fulltext_index": q.Label.FulltextIndex(),
		"terms":          terms,
		"top_k":          topK,
		"ratio":          ratio,
		"property":       q.Label.DisplayProperty(),
	}
}

func entryNodes(label domain.Label, rows []map[string]any) []domain.EntryNode {
	prop := label.DisplayProperty()
	out := make([]domain.EntryNode, 0, len(rows))
	for _, row := range rows {
		value, ok := row["value"]
		if !ok || value == nil {
			continue
		}
		score, _ := row["score"].(float64)
		out = append(out, domain.EntryNode{Property: prop, Value: value, Score: score})
	}
	return out
}
