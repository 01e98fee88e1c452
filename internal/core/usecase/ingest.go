package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

// IngestUseCase drives the batch ingestion pipeline: extract, chunk, embed,
// upsert vectors, then swap the lexical and metadata snapshots in one step.
// A single writer mutex serializes batches; readers are never blocked.
type IngestUseCase struct {
	registry  ports.DocumentRegistry
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectors   ports.VectorStore
	lexical   ports.LexicalIndex
	metadata  ports.MetadataIndex
	queue     ports.MessageQueue

	writeMu sync.Mutex
}

func NewIngestUseCase(
	registry ports.DocumentRegistry,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectors ports.VectorStore,
	lexical ports.LexicalIndex,
	metadata ports.MetadataIndex,
	queue ports.MessageQueue,
) *IngestUseCase {
	return &IngestUseCase{
		registry:  registry,
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		lexical:   lexical,
		metadata:  metadata,
		queue:     queue,
	}
}

func (uc *IngestUseCase) IngestBatch(ctx context.Context, docs []domain.IngestDocument) (*domain.IngestReport, error) {
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest batch", fmt.Errorf("empty batch"))
	}

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	started := time.Now()
	report := &domain.IngestReport{}
	batches := map[domain.Collection]*domain.IndexBatch{}

	for _, in := range docs {
		doc, err := uc.prepare(ctx, in)
		if err != nil {
			report.Errors = append(report.Errors, domain.IngestError{Name: in.Name, Stage: "register", Reason: err.Error()})
			continue
		}

		chunks, err := uc.indexDocument(ctx, doc, in.Content)
		if err != nil {
			report.Errors = append(report.Errors, domain.IngestError{Name: doc.Name, Stage: "index", Reason: err.Error()})
			uc.markFailed(ctx, doc, err)
			continue
		}

		batch := batches[doc.Collection]
		if batch == nil {
			batch = &domain.IndexBatch{Collection: doc.Collection, Documents: map[string][]domain.Chunk{}}
			batches[doc.Collection] = batch
		}
		batch.Documents[doc.ID] = chunks

		report.Documents++
		report.ChunksCreated += len(chunks)
	}

	// One snapshot swap per collection so readers never see a half batch.
	for collection, batch := range batches {
		if err := uc.metadata.Apply(ctx, batch); err != nil {
			return report, domain.WrapError(domain.ErrIngestion, "metadata apply", err)
		}
		if err := uc.lexical.Apply(ctx, batch); err != nil {
			return report, domain.WrapError(domain.ErrIngestion, "lexical apply", err)
		}
		for docID := range batch.Documents {
			uc.markIndexed(ctx, docID)
		}
		if uc.queue != nil {
			if err := uc.queue.PublishIndexUpdated(ctx, collection); err != nil {
				slog.Warn("index_updated_publish_failed", "collection", string(collection), "error", err)
			}
		}
	}

	slog.Info("ingest_batch_done",
		"documents", report.Documents,
		"chunks", report.ChunksCreated,
		"errors", len(report.Errors),
		"duration", time.Since(started).String(),
	)
	return report, nil
}

func (uc *IngestUseCase) ReingestByIDs(ctx context.Context, ids []string) (*domain.IngestReport, error) {
	if len(ids) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reingest", fmt.Errorf("no document ids"))
	}

	var docs []domain.IngestDocument
	var report domain.IngestReport
	for _, id := range ids {
		doc, err := uc.registry.GetByID(ctx, id)
		if err != nil {
			report.Errors = append(report.Errors, domain.IngestError{Name: id, Stage: "lookup", Reason: err.Error()})
			continue
		}
		raw, err := uc.storage.Open(ctx, doc.StoragePath)
		if err != nil {
			report.Errors = append(report.Errors, domain.IngestError{Name: doc.Name, Stage: "storage", Reason: err.Error()})
			continue
		}
		docs = append(docs, domain.IngestDocument{
			Name:       doc.Name,
			SourceType: doc.SourceType,
			Collection: doc.Collection,
			Category:   doc.Category,
			Metadata:   doc.Metadata,
			Numeric:    doc.Numeric,
			Content:    raw,
		})
	}
	if len(docs) == 0 {
		return &report, domain.WrapError(domain.ErrDocumentNotFound, "reingest", fmt.Errorf("none of %d ids resolved", len(ids)))
	}

	out, err := uc.IngestBatch(ctx, docs)
	if out != nil {
		out.Errors = append(report.Errors, out.Errors...)
	}
	return out, err
}

// prepare registers the document and persists its raw content.
func (uc *IngestUseCase) prepare(ctx context.Context, in domain.IngestDocument) (*domain.Document, error) {
	if in.Name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "register", fmt.Errorf("document name required"))
	}
	if in.Collection != domain.CollectionText && in.Collection != domain.CollectionAssets {
		return nil, domain.WrapError(domain.ErrInvalidInput, "register", fmt.Errorf("unknown collection %q", in.Collection))
	}

	path, err := uc.storage.Save(ctx, string(in.Collection), in.Name, in.Content)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "storage save", err)
	}

	doc := &domain.Document{
		Name:        in.Name,
		SourceType:  in.SourceType,
		Collection:  in.Collection,
		Category:    in.Category,
		Metadata:    in.Metadata,
		Numeric:     in.Numeric,
		StoragePath: path,
		Status:      domain.StatusIngesting,
	}
	if err := uc.registry.Register(ctx, doc); err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "register", err)
	}
	return doc, nil
}

// indexDocument runs the per-document stages. Vector writes happen here, per
// document, so one bad file never takes the rest of the batch down.
func (uc *IngestUseCase) indexDocument(ctx context.Context, doc *domain.Document, raw []byte) ([]domain.Chunk, error) {
	content, err := uc.extractor.Extract(ctx, doc, raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "extract", err)
	}

	chunks, err := uc.chunker.Chunk(doc, content)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "chunk", err)
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrIngestion, "chunk", fmt.Errorf("no chunks produced for %s", doc.Name))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "embed", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(domain.ErrIngestion, "embed", fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	// Replace-then-upsert keeps re-ingestion idempotent; stale chunk ids
	// from a previous revision never survive.
	if err := uc.vectors.DeleteByDocument(ctx, doc.Collection, doc.ID); err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "vector delete", err)
	}
	if err := uc.vectors.Upsert(ctx, doc.Collection, chunks, vectors); err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "vector upsert", err)
	}
	return chunks, nil
}

func (uc *IngestUseCase) markIndexed(ctx context.Context, docID string) {
	if err := uc.registry.UpdateStatus(ctx, docID, domain.StatusIndexed, ""); err != nil {
		slog.Warn("document_status_update_failed", "document_id", docID, "error", err)
	}
}

func (uc *IngestUseCase) markFailed(ctx context.Context, doc *domain.Document, cause error) {
	if err := uc.registry.UpdateStatus(ctx, doc.ID, domain.StatusFailed, cause.Error()); err != nil {
		slog.Warn("document_status_update_failed", "document_id", doc.ID, "error", err)
	}
}

var _ ports.Ingestor = (*IngestUseCase)(nil)
