package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

type SearchConfig struct {
	TopK                int
	CandidateMultiplier int
	RRFK                int
}

func (c SearchConfig) normalize() SearchConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.CandidateMultiplier < 1 {
		out.CandidateMultiplier = 2
	}
	if out.RRFK <= 0 {
		out.RRFK = 60
	}
	return out
}

// SearchUseCase runs hybrid retrieval: metadata pre-filter, parallel vector
// and lexical search, reciprocal rank fusion.
type SearchUseCase struct {
	embedder ports.Embedder
	vectors  ports.VectorStore
	lexical  ports.LexicalIndex
	metadata ports.MetadataIndex
	cfg      SearchConfig
}

func NewSearchUseCase(
	embedder ports.Embedder,
	vectors ports.VectorStore,
	lexical ports.LexicalIndex,
	metadata ports.MetadataIndex,
	cfg SearchConfig,
) *SearchUseCase {
	return &SearchUseCase{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		metadata: metadata,
		cfg:      cfg.normalize(),
	}
}

func (uc *SearchUseCase) Search(
	ctx context.Context,
	collection domain.Collection,
	query string,
	topK int,
	filters []domain.Predicate,
) (*domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("empty query"))
	}
	if topK <= 0 {
		topK = uc.cfg.TopK
	}
	for _, p := range filters {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	// Pre-filtering runs before any scoring so vector and lexical search
	// only ever see the restricted candidate set.
	var candidates map[string]struct{}
	filterMatched := -1
	if len(filters) > 0 {
		set, err := uc.metadata.Query(collection, filters)
		if err != nil {
			return nil, err
		}
		filterMatched = len(set)
		if len(set) == 0 {
			// Strict semantics: an explicit zero-match signal instead of a
			// silent fallback to unfiltered search.
			return &domain.SearchResult{Chunks: nil, FilterMatched: 0},
				domain.WrapError(domain.ErrFilterMatchedZero, "search", fmt.Errorf("filters excluded every chunk in %s", collection))
		}
		candidates = set
	}

	candidateK := topK * uc.cfg.CandidateMultiplier

	var vectorHits, lexicalHits []domain.RetrievedChunk
	var vectorErr, lexicalErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vectorHits, vectorErr = uc.vectorSearch(gctx, collection, query, candidateK, candidates)
		return nil
	})
	g.Go(func() error {
		lexicalHits, lexicalErr = uc.lexical.Search(collection, query, candidateK, candidates)
		return nil
	})
	_ = g.Wait()

	if vectorErr != nil && lexicalErr != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "search",
			fmt.Errorf("vector: %v; lexical: %v", vectorErr, lexicalErr))
	}

	degraded := false
	if vectorErr != nil {
		slog.Warn("vector_search_degraded", "collection", string(collection), "error", vectorErr)
		vectorHits = nil
		degraded = true
	}
	if lexicalErr != nil {
		slog.Warn("lexical_search_degraded", "collection", string(collection), "error", lexicalErr)
		lexicalHits = nil
		degraded = true
	}

	fused := trimRetrieved(fuseRRF(vectorHits, lexicalHits, uc.cfg.RRFK), topK)
	if len(fused) == 0 {
		return &domain.SearchResult{Chunks: nil, Degraded: degraded, FilterMatched: filterMatched},
			domain.WrapError(domain.ErrNoResults, "search", fmt.Errorf("no chunks matched %q in %s", query, collection))
	}

	return &domain.SearchResult{
		Chunks:        fused,
		Degraded:      degraded,
		FilterMatched: filterMatched,
	}, nil
}

func (uc *SearchUseCase) vectorSearch(
	ctx context.Context,
	collection domain.Collection,
	query string,
	limit int,
	candidates map[string]struct{},
) ([]domain.RetrievedChunk, error) {
	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := uc.vectors.Search(ctx, collection, queryVector, limit, candidates)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}
