package domain

import (
	"encoding/json"
	"sort"
)

// EntryNode is a candidate starting node for graph traversal.
// Hybrid hits carry Property/Value/Score; direct lookups carry Record.
type EntryNode struct {
	Property string
	Value    any
	Score    float64
	Record   map[string]any
}

// EntryNodeSet groups entry nodes by label.
type EntryNodeSet map[Label][]EntryNode

// Add appends nodes to the label's bucket.
func (s EntryNodeSet) Add(label Label, nodes ...EntryNode) {
	if len(nodes) == 0 {
		return
	}
	s[label] = append(s[label], nodes...)
}

// SortByScore orders every hybrid bucket by descending score.
// Direct lookup buckets keep insertion order.
func (s EntryNodeSet) SortByScore() {
	for label, nodes := range s {
		if label == LabelUser {
			continue
		}
		sort.SliceStable(nodes, func(i, j int) bool {
			return nodes[i].Score > nodes[j].Score
		})
	}
}

// Len returns the total number of entry nodes across labels.
func (s EntryNodeSet) Len() int {
	n := 0
	for _, nodes := range s {
		n += len(nodes)
	}
	return n
}

// Summary renders the set as JSON for prompt assembly.
func (s EntryNodeSet) Summary() string {
	out := make(map[string][]map[string]any, len(s))
	for label, nodes := range s {
		items := make([]map[string]any, 0, len(nodes))
		for _, n := range nodes {
			if n.Record != nil {
				items = append(items, n.Record)
				continue
			}
			items = append(items, map[string]any{n.Property: n.Value, "score": n.Score})
		}
		out[string(label)] = items
	}
	// map keys are sorted by encoding/json, so the summary is deterministic
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// HybridTerm is one entity to look up: its lexical query and its embedding.
type HybridTerm struct {
	Lexical string
	Vector  []float32
}

// HybridQuery batches every entity of one label into a single index round-trip.
// Each term is ranked and truncated to TopK on its own.
type HybridQuery struct {
	Label Label
	Terms []HybridTerm
	TopK  int
	// Ratio widens each side's candidate pool to TopK*Ratio before fusion.
	Ratio int
}
