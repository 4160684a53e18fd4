package db

import (
	"errors"
	"strings"
)

// Query is one FT.SEARCH request. Only the types below implement it.
type Query interface {
	Validate() error
	query()
}

// KNNQuery finds the K nearest stored vectors to Vector.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Vector       []float32
	K            int
	ReturnFields []string
}

// Validate reports the first missing parameter.
func (q *KNNQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return errors.New("knn: index name is required")
	case q.VectorField == "":
		return errors.New("knn: vector field is required")
	case len(q.Vector) == 0:
		return errors.New("knn: vector is required")
	case q.K <= 0:
		return errors.New("knn: k must be positive")
	}
	return nil
}

func (*KNNQuery) query() {}

// TextQuery is a BM25 match of any of Terms.
type TextQuery struct {
	IndexName string
	// Field restricts the match to one TEXT field; empty searches all of them.
	Field        string
	Terms        []string
	TopK         int
	ReturnFields []string
	// Language picks the tokenizer, e.g. "chinese".
	Language string
}

// Validate reports the first missing parameter. Blank terms do not count.
func (q *TextQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return errors.New("text: index name is required")
	case q.TopK <= 0:
		return errors.New("text: topK must be positive")
	}
	for _, t := range q.Terms {
		if strings.TrimSpace(t) != "" {
			return nil
		}
	}
	return errors.New("text: at least one term is required")
}

func (*TextQuery) query() {}

// SearchResult is one query's hits in rank order.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a matched hash. Score is a similarity for KNN and BM25 for text.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
