package usecase

import (
	"context"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

// HealthUseCase reports per-collection index sizes across all three stores.
type HealthUseCase struct {
	vectors  ports.VectorStore
	lexical  ports.LexicalIndex
	metadata ports.MetadataIndex
}

func NewHealthUseCase(vectors ports.VectorStore, lexical ports.LexicalIndex, metadata ports.MetadataIndex) *HealthUseCase {
	return &HealthUseCase{vectors: vectors, lexical: lexical, metadata: metadata}
}

func (uc *HealthUseCase) IndexHealth(ctx context.Context) (*domain.IndexHealth, error) {
	health := &domain.IndexHealth{Collections: map[domain.Collection]domain.CollectionHealth{}}
	for _, collection := range []domain.Collection{domain.CollectionText, domain.CollectionAssets} {
		ch := domain.CollectionHealth{}

		if count, err := uc.vectors.Count(ctx, collection); err != nil {
			ch.VectorError = err.Error()
		} else {
			ch.VectorPoints = count
		}

		lex := uc.lexical.Stats(collection)
		ch.LexicalChunks = lex.Chunks
		ch.LexicalTerms = lex.Terms

		meta := uc.metadata.Stats(collection)
		ch.Documents = meta.Documents
		ch.MetadataChunks = meta.Chunks
		ch.MetadataKeys = meta.Keys

		health.Collections[collection] = ch
	}
	return health, nil
}

var _ ports.HealthReporter = (*HealthUseCase)(nil)
