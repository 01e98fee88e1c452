package ports

import (
	"context"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

// DocumentRegistry persists document revisions and their lifecycle state.
type DocumentRegistry interface {
	Register(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
}

// ObjectStorage stores raw source documents. Save returns the storage path
// recorded on the document for later re-ingestion.
type ObjectStorage interface {
	Save(ctx context.Context, collection, name string, data []byte) (string, error)
	Open(ctx context.Context, path string) ([]byte, error)
}

// MessageQueue carries ingestion batches to the worker and index-updated
// notifications back to readers.
type MessageQueue interface {
	PublishIngestBatch(ctx context.Context, documentIDs []string) error
	SubscribeIngestBatch(ctx context.Context, handler func(context.Context, []string) error) error
	PublishIndexUpdated(ctx context.Context, collection domain.Collection) error
	SubscribeIndexUpdated(ctx context.Context, handler func(context.Context, domain.Collection) error) error
}

// TextExtractor turns a document's raw bytes into plain text. The format is
// picked from the document name's extension.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document, raw []byte) (string, error)
}

// Chunker splits one document's content into retrievable chunks.
type Chunker interface {
	Chunk(doc *domain.Document, content string) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunk and query text. Dimensionality is fixed
// per collection and validated at bootstrap.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes chunk vectors and performs cosine nearest-neighbor
// search, optionally restricted to a candidate chunk-id set.
type VectorStore interface {
	Upsert(ctx context.Context, collection domain.Collection, chunks []domain.Chunk, vectors [][]float32) error
	DeleteByDocument(ctx context.Context, collection domain.Collection, documentID string) error
	Search(ctx context.Context, collection domain.Collection, queryVector []float32, limit int, candidates map[string]struct{}) ([]domain.RetrievedChunk, error)
	Count(ctx context.Context, collection domain.Collection) (int, error)
}

// LexicalIndex is the BM25 side of the dual store. Apply swaps in a new
// snapshot atomically per ingestion batch.
type LexicalIndex interface {
	Apply(ctx context.Context, batch *domain.IndexBatch) error
	Search(collection domain.Collection, query string, limit int, candidates map[string]struct{}) ([]domain.RetrievedChunk, error)
	Stats(collection domain.Collection) domain.LexicalStats
	Reload(collection domain.Collection) error
}

// MetadataIndex answers structured-attribute queries ahead of any scoring.
type MetadataIndex interface {
	Apply(ctx context.Context, batch *domain.IndexBatch) error
	Query(collection domain.Collection, predicates []domain.Predicate) (map[string]struct{}, error)
	ChunksByDocuments(collection domain.Collection, documentIDs []string) map[string]struct{}
	Stats(collection domain.Collection) domain.MetadataStats
	Reload(collection domain.Collection) error
}

// RouteClassifier is the LLM-backed route selector. Implementations must be
// cancellable; callers fall back to the heuristic on error or timeout.
type RouteClassifier interface {
	ClassifyRoute(ctx context.Context, query string, options []domain.RouteOption) (domain.RouteDecision, error)
}

// AnswerGenerator creates a user-facing answer for retrieved context. The
// retrieval core only consumes it for routing and downstream synthesis glue.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}
