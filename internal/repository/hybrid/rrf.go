package hybrid

import (
	"sort"

	"github.com/kailas-cloud/cypherrag/internal/db"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges KNN and BM25 hits via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// When a document appears in both lists, the KNN entry's fields are kept.
func fuseRRF(knn, bm25 []db.SearchEntry, topK int) []db.SearchEntry {
	merged := make(map[string]*db.SearchEntry, len(knn)+len(bm25))

	add := func(list []db.SearchEntry) {
		for rank, e := range list {
			s := 1.0 / float64(rrfK+rank+1)
			if existing, ok := merged[e.Key]; ok {
				existing.Score += s
				continue
			}
			fused := db.SearchEntry{Key: e.Key, Score: s, Fields: e.Fields}
			merged[e.Key] = &fused
		}
	}
	add(knn)
	add(bm25)

	results := make([]db.SearchEntry, 0, len(merged))
	for _, e := range merged {
		results = append(results, *e)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Key < results[j].Key
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
