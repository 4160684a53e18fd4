package domain

import (
	"errors"
)

var (
	// ErrRoutingFailed signals that the router reply could not be decoded into route items.
	// It is the only pipeline failure surfaced to callers.
	ErrRoutingFailed = errors.New("routing failed")
	// ErrEntrySearchDegraded signals a failed or timed-out per-label hybrid search.
	ErrEntrySearchDegraded = errors.New("entry search degraded")
	// ErrSyntaxInvalid signals that the graph engine rejected a draft at EXPLAIN time.
	ErrSyntaxInvalid = errors.New("query syntax invalid")
	// ErrDirectionUnresolvable signals a relationship pattern absent from the schema in both directions.
	ErrDirectionUnresolvable = errors.New("relationship direction unresolvable")
	// ErrExecutionFailed signals a failure while running the final query.
	ErrExecutionFailed = errors.New("query execution failed")
	// ErrEmptyQuery signals an attempt to explain or execute an empty query.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals a chat completion provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrBudgetExceeded signals an exhausted token budget with the reject action.
	ErrBudgetExceeded = errors.New("token budget exceeded")
)

// SyntaxError carries the engine message for a query it could not compile.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string { return ErrSyntaxInvalid.Error() + ": " + e.Message }
func (e *SyntaxError) Unwrap() error { return ErrSyntaxInvalid }
