// Package postgres persists the document registry. Document IDs are derived
// from collection and name, so re-registering the same source bumps the
// revision of one row instead of accumulating duplicates.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

type DocumentRegistry struct {
	db *sql.DB
}

func NewDocumentRegistry(db *sql.DB) *DocumentRegistry {
	return &DocumentRegistry{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRegistry) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	source_type TEXT NOT NULL,
	collection TEXT NOT NULL,
	category TEXT,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	numeric_attrs JSONB NOT NULL DEFAULT '{}'::jsonb,
	storage_path TEXT NOT NULL,
	revision INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

var documentNamespace = uuid.MustParse("8f6f3b0a-2f39-4a3c-9e52-6d8a5c1b7e40")

// DocumentID derives the stable registry ID for a source.
func DocumentID(collection domain.Collection, name string) string {
	return uuid.NewSHA1(documentNamespace, []byte(string(collection)+"/"+name)).String()
}

// Register upserts by derived ID. An existing row keeps its created_at and
// gets its revision bumped; the returned document carries the stored values.
func (r *DocumentRegistry) Register(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(orEmptyMap(doc.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	numericJSON, err := json.Marshal(orEmptyNumeric(doc.Numeric))
	if err != nil {
		return fmt.Errorf("marshal numeric attrs: %w", err)
	}

	doc.ID = DocumentID(doc.Collection, doc.Name)
	now := time.Now().UTC()

	row := r.db.QueryRowContext(ctx, `
INSERT INTO documents (
	id, name, source_type, collection, category, metadata, numeric_attrs, storage_path, revision, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,$9,'',$10,$10)
ON CONFLICT (id) DO UPDATE SET
	source_type = EXCLUDED.source_type,
	category = EXCLUDED.category,
	metadata = EXCLUDED.metadata,
	numeric_attrs = EXCLUDED.numeric_attrs,
	storage_path = EXCLUDED.storage_path,
	revision = documents.revision + 1,
	status = EXCLUDED.status,
	error_message = '',
	updated_at = EXCLUDED.updated_at
RETURNING revision, created_at
`,
		doc.ID, doc.Name, string(doc.SourceType), string(doc.Collection), doc.Category,
		metadataJSON, numericJSON, doc.StoragePath, string(doc.Status), now,
	)
	if err := row.Scan(&doc.Revision, &doc.CreatedAt); err != nil {
		return fmt.Errorf("register document: %w", err)
	}
	doc.UpdatedAt = now
	return nil
}

func (r *DocumentRegistry) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, source_type, collection, category, metadata, numeric_attrs, storage_path, revision, status, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var metadataRaw, numericRaw []byte
	var sourceType, collection, status string

	err := row.Scan(
		&doc.ID, &doc.Name, &sourceType, &collection, &doc.Category,
		&metadataRaw, &numericRaw, &doc.StoragePath, &doc.Revision, &status, &doc.Error,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if err := json.Unmarshal(metadataRaw, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(numericRaw, &doc.Numeric); err != nil {
		return nil, fmt.Errorf("unmarshal numeric attrs: %w", err)
	}
	doc.SourceType = domain.SourceType(sourceType)
	doc.Collection = domain.Collection(collection)
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRegistry) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", fmt.Errorf("id %s", id))
	}
	return nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptyNumeric(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

var _ ports.DocumentRegistry = (*DocumentRegistry)(nil)
