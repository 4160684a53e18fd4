package search

import (
	"context"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// Router classifies the conversation into labelled entities.
type Router interface {
	Route(ctx context.Context, history string) ([]domain.RouteItem, error)
}

// Retriever resolves routed entities to entry nodes.
type Retriever interface {
	Retrieve(ctx context.Context, items []domain.RouteItem, topK int) domain.EntryNodeSet
}

// Generator drafts a query from the question and entry nodes.
type Generator interface {
	Generate(ctx context.Context, query string, entry domain.EntryNodeSet) domain.QueryDraft
}

// Validator reviews a draft without running it.
type Validator interface {
	Validate(ctx context.Context, query string, entry domain.EntryNodeSet, draft domain.QueryDraft) domain.ValidationReport
}

// Corrector revises a draft against a validation report.
type Corrector interface {
	Correct(
		ctx context.Context, query string, entry domain.EntryNodeSet,
		draft domain.QueryDraft, report domain.ValidationReport,
	) domain.QueryDraft
}

// DirectionCorrector aligns relationship arrows with the schema.
type DirectionCorrector interface {
	Correct(ctx context.Context, draft domain.QueryDraft) domain.QueryDraft
}

// Executor runs the final query.
type Executor interface {
	Execute(ctx context.Context, query string) ([]map[string]any, error)
}
