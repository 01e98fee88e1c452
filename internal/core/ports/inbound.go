package ports

import (
	"context"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

// Ingestor is the inbound contract for batch ingestion.
type Ingestor interface {
	IngestBatch(ctx context.Context, docs []domain.IngestDocument) (*domain.IngestReport, error)
	ReingestByIDs(ctx context.Context, documentIDs []string) (*domain.IngestReport, error)
}

// Searcher is the inbound contract for hybrid retrieval.
type Searcher interface {
	Search(ctx context.Context, collection domain.Collection, query string, topK int, filters []domain.Predicate) (*domain.SearchResult, error)
}

// StrategyRouter selects a collection and retrieval strategy for a query and
// executes it.
type StrategyRouter interface {
	Route(ctx context.Context, query string) (domain.RouteDecision, error)
	RouteAndSearch(ctx context.Context, query string, topK int) (*domain.RoutedResult, error)
}

// QueryPlanner decomposes complex queries and merges sub-query retrievals.
type QueryPlanner interface {
	Plan(ctx context.Context, query string) ([]domain.SubQuery, error)
	PlanAndSearch(ctx context.Context, query string, topK int) (*domain.MergedResult, error)
}

// Answerer routes, retrieves, and synthesizes a grounded answer over the
// fused chunks. Retrieval evidence always accompanies the answer.
type Answerer interface {
	Answer(ctx context.Context, query string, topK int) (*domain.AnsweredResult, error)
}

// HealthReporter exposes non-mutating index diagnostics.
type HealthReporter interface {
	IndexHealth(ctx context.Context) (*domain.IndexHealth, error)
}
