package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

type RouteConfig struct {
	Mode            string // "llm" or "heuristic"
	ClassifyTimeout time.Duration
	RecursiveDocs   int
}

func (c RouteConfig) normalize() RouteConfig {
	out := c
	if out.Mode != "llm" && out.Mode != "heuristic" {
		out.Mode = "heuristic"
	}
	if out.ClassifyTimeout <= 0 {
		out.ClassifyTimeout = 60 * time.Second
	}
	if out.RecursiveDocs <= 0 {
		out.RecursiveDocs = 3
	}
	return out
}

// RouteUseCase selects a collection and retrieval strategy per query and
// dispatches it. Strategies are executed over the same hybrid primitives;
// adding one means adding a case here plus a RouteOption description.
type RouteUseCase struct {
	classifier ports.RouteClassifier
	heuristic  *Heuristic
	search     *SearchUseCase
	planner    ports.QueryPlanner
	metadata   ports.MetadataIndex
	embedder   ports.Embedder
	vectors    ports.VectorStore
	cfg        RouteConfig
}

func NewRouteUseCase(
	classifier ports.RouteClassifier,
	heuristic *Heuristic,
	search *SearchUseCase,
	planner ports.QueryPlanner,
	metadata ports.MetadataIndex,
	embedder ports.Embedder,
	vectors ports.VectorStore,
	cfg RouteConfig,
) *RouteUseCase {
	return &RouteUseCase{
		classifier: classifier,
		heuristic:  heuristic,
		search:     search,
		planner:    planner,
		metadata:   metadata,
		embedder:   embedder,
		vectors:    vectors,
		cfg:        cfg.normalize(),
	}
}

// RouteOptions describes every dispatchable route for the LLM selector.
func RouteOptions() []domain.RouteOption {
	return []domain.RouteOption{
		{Collection: domain.CollectionText, Strategy: domain.StrategyHybrid, Description: "fused vector + lexical retrieval over text documents; the default for factual lookups"},
		{Collection: domain.CollectionText, Strategy: domain.StrategyVector, Description: "dense-only retrieval for paraphrased or conceptual questions"},
		{Collection: domain.CollectionText, Strategy: domain.StrategyMetadata, Description: "metadata-prefiltered retrieval for aggregation, counting, and per-category questions"},
		{Collection: domain.CollectionText, Strategy: domain.StrategySummary, Description: "retrieval over per-document key-info summaries for broad document-level questions"},
		{Collection: domain.CollectionText, Strategy: domain.StrategyRecursive, Description: "two-pass retrieval: pick top documents first, then re-retrieve within them"},
		{Collection: domain.CollectionText, Strategy: domain.StrategyChunkDecoupled, Description: "match on summary chunks, return the full chunks of the matched documents"},
		{Collection: domain.CollectionText, Strategy: domain.StrategyPlanner, Description: "decompose comparative, multi-period, or cross-category questions into sub-queries"},
		{Collection: domain.CollectionAssets, Strategy: domain.StrategyVector, Description: "dense retrieval over campaign creative asset descriptions"},
	}
}

func (uc *RouteUseCase) Route(ctx context.Context, query string) (domain.RouteDecision, error) {
	if uc.cfg.Mode == "llm" && uc.classifier != nil {
		classifyCtx, cancel := context.WithTimeout(ctx, uc.cfg.ClassifyTimeout)
		decision, err := uc.classifier.ClassifyRoute(classifyCtx, query, RouteOptions())
		cancel()
		if err == nil && domain.ValidStrategy(decision.Strategy) {
			decision.Source = domain.RouteSourceLLM
			uc.logDecision(query, decision)
			return decision, nil
		}
		if err != nil {
			slog.Warn("route_classifier_fallback", "error", err)
		}
	}

	decision := uc.heuristic.Route(query)
	uc.logDecision(query, decision)
	return decision, nil
}

func (uc *RouteUseCase) RouteAndSearch(ctx context.Context, query string, topK int) (*domain.RoutedResult, error) {
	decision, err := uc.Route(ctx, query)
	if err != nil {
		return nil, err
	}

	result, err := uc.execute(ctx, decision, query, topK)
	if err != nil {
		return &domain.RoutedResult{Decision: decision}, err
	}
	return &domain.RoutedResult{Decision: decision, Result: result}, nil
}

func (uc *RouteUseCase) execute(
	ctx context.Context,
	decision domain.RouteDecision,
	query string,
	topK int,
) (*domain.SearchResult, error) {
	if topK <= 0 {
		topK = uc.search.cfg.TopK
	}

	switch decision.Strategy {
	case domain.StrategyHybrid:
		return uc.search.Search(ctx, decision.Collection, query, topK, nil)

	case domain.StrategyVector:
		return uc.vectorOnly(ctx, decision.Collection, query, topK, nil)

	case domain.StrategyMetadata:
		filters := uc.heuristic.DeriveFilters(query)
		return uc.search.Search(ctx, decision.Collection, query, topK, filters)

	case domain.StrategySummary:
		return uc.search.Search(ctx, decision.Collection, query, topK, []domain.Predicate{
			{Field: "key_info", Op: domain.OpEq, Values: []string{"true"}},
		})

	case domain.StrategyRecursive:
		return uc.recursive(ctx, decision.Collection, query, topK)

	case domain.StrategyChunkDecoupled:
		return uc.chunkDecoupled(ctx, decision.Collection, query, topK)

	case domain.StrategyPlanner:
		merged, err := uc.planner.PlanAndSearch(ctx, query, topK)
		if err != nil {
			return nil, err
		}
		return flattenMerged(merged, topK), nil

	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "route", fmt.Errorf("unknown strategy %q", decision.Strategy))
	}
}

func (uc *RouteUseCase) vectorOnly(
	ctx context.Context,
	collection domain.Collection,
	query string,
	topK int,
	candidates map[string]struct{},
) (*domain.SearchResult, error) {
	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "vector retrieval", err)
	}
	hits, err := uc.vectors.Search(ctx, collection, queryVector, topK, candidates)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "vector retrieval", err)
	}
	for i := range hits {
		hits[i].VectorRank = i + 1
		hits[i].VectorScore = hits[i].Score
		hits[i].Rank = i + 1
	}
	if len(hits) == 0 {
		return &domain.SearchResult{FilterMatched: -1},
			domain.WrapError(domain.ErrNoResults, "vector retrieval", fmt.Errorf("no chunks matched %q in %s", query, collection))
	}
	return &domain.SearchResult{Chunks: hits, FilterMatched: -1}, nil
}

// recursive retrieves twice: a document-selection pass over the whole
// collection, then a chunk pass restricted to the selected documents.
func (uc *RouteUseCase) recursive(
	ctx context.Context,
	collection domain.Collection,
	query string,
	topK int,
) (*domain.SearchResult, error) {
	first, err := uc.search.Search(ctx, collection, query, topK*2, nil)
	if err != nil {
		return nil, err
	}

	docIDs := topDocuments(first.Chunks, uc.cfg.RecursiveDocs)
	candidates := uc.metadata.ChunksByDocuments(collection, docIDs)
	if len(candidates) == 0 {
		return first, nil
	}

	return uc.search.Search(ctx, collection, query, topK, []domain.Predicate{
		{Field: "document_id", Op: domain.OpIn, Values: docIDs},
	})
}

// chunkDecoupled matches against per-document key-info chunks, then returns
// regular chunks from the matched documents, decoupling the match unit from
// the returned unit.
func (uc *RouteUseCase) chunkDecoupled(
	ctx context.Context,
	collection domain.Collection,
	query string,
	topK int,
) (*domain.SearchResult, error) {
	summaryHits, err := uc.search.Search(ctx, collection, query, uc.cfg.RecursiveDocs, []domain.Predicate{
		{Field: "key_info", Op: domain.OpEq, Values: []string{"true"}},
	})
	if err != nil {
		return nil, err
	}

	docIDs := topDocuments(summaryHits.Chunks, uc.cfg.RecursiveDocs)
	return uc.search.Search(ctx, collection, query, topK, []domain.Predicate{
		{Field: "document_id", Op: domain.OpIn, Values: docIDs},
		{Field: "key_info", Op: domain.OpEq, Values: []string{"false"}},
	})
}

func (uc *RouteUseCase) logDecision(query string, decision domain.RouteDecision) {
	slog.Info("route_decision",
		"query", query,
		"collection", string(decision.Collection),
		"strategy", string(decision.Strategy),
		"confidence", decision.Confidence,
		"source", string(decision.Source),
		"reasoning", decision.Reasoning,
	)
}

func topDocuments(chunks []domain.RetrievedChunk, limit int) []string {
	seen := make(map[string]struct{}, limit)
	var out []string
	for _, c := range chunks {
		if _, ok := seen[c.DocumentID]; ok {
			continue
		}
		seen[c.DocumentID] = struct{}{}
		out = append(out, c.DocumentID)
		if len(out) == limit {
			break
		}
	}
	return out
}

// flattenMerged folds a plan's per-sub-query results into one ranked list so
// routed callers get a uniform SearchResult shape.
func flattenMerged(merged *domain.MergedResult, topK int) *domain.SearchResult {
	var all []domain.RetrievedChunk
	seen := make(map[string]struct{})
	for _, r := range merged.Results {
		for _, c := range r.Chunks {
			if _, ok := seen[c.ChunkID]; ok {
				continue
			}
			seen[c.ChunkID] = struct{}{}
			all = append(all, c)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].ChunkID < all[j].ChunkID
	})
	all = trimRetrieved(all, topK)
	for i := range all {
		all[i].Rank = i + 1
	}
	return &domain.SearchResult{
		Chunks:        all,
		Degraded:      merged.Partial,
		FilterMatched: -1,
	}
}
