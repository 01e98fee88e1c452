package qdrant

import (
	"context"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
	"github.com/adscope/marketing-rag/internal/infrastructure/resilience"
)

// ResilientStore retries transient Qdrant failures and trips a breaker per
// operation. Search and ingest share the client but break independently.
type ResilientStore struct {
	inner    ports.VectorStore
	executor *resilience.Executor
}

func NewResilientStore(inner ports.VectorStore, executor *resilience.Executor) *ResilientStore {
	return &ResilientStore{inner: inner, executor: executor}
}

func (s *ResilientStore) Upsert(ctx context.Context, collection domain.Collection, chunks []domain.Chunk, vectors [][]float32) error {
	return s.executor.Execute(ctx, "qdrant.upsert", func(ctx context.Context) error {
		return s.inner.Upsert(ctx, collection, chunks, vectors)
	}, resilience.TemporaryClassifier)
}

func (s *ResilientStore) DeleteByDocument(ctx context.Context, collection domain.Collection, documentID string) error {
	return s.executor.Execute(ctx, "qdrant.delete", func(ctx context.Context) error {
		return s.inner.DeleteByDocument(ctx, collection, documentID)
	}, resilience.TemporaryClassifier)
}

func (s *ResilientStore) Search(ctx context.Context, collection domain.Collection, queryVector []float32, limit int, candidates map[string]struct{}) ([]domain.RetrievedChunk, error) {
	var out []domain.RetrievedChunk
	err := s.executor.Execute(ctx, "qdrant.search", func(ctx context.Context) error {
		var innerErr error
		out, innerErr = s.inner.Search(ctx, collection, queryVector, limit, candidates)
		return innerErr
	}, resilience.TemporaryClassifier)
	return out, err
}

func (s *ResilientStore) Count(ctx context.Context, collection domain.Collection) (int, error) {
	var count int
	err := s.executor.Execute(ctx, "qdrant.count", func(ctx context.Context) error {
		var innerErr error
		count, innerErr = s.inner.Count(ctx, collection)
		return innerErr
	}, resilience.TemporaryClassifier)
	return count, err
}

var _ ports.VectorStore = (*ResilientStore)(nil)
