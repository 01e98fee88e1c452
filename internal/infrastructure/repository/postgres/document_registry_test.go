package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

func newRegistryWithMock(t *testing.T) (*DocumentRegistry, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRegistry{db: db}, mock, func() { _ = db.Close() }
}

func TestDocumentIDDeterministic(t *testing.T) {
	a := DocumentID(domain.CollectionText, "meta_ads.csv")
	b := DocumentID(domain.CollectionText, "meta_ads.csv")
	if a != b {
		t.Fatalf("same source must derive the same id: %s vs %s", a, b)
	}
	if DocumentID(domain.CollectionAssets, "meta_ads.csv") == a {
		t.Fatalf("different collections must derive different ids")
	}
}

func TestRegisterSetsStoredValues(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"revision", "created_at"}).AddRow(3, created))

	doc := &domain.Document{
		Name:        "meta_ads.csv",
		SourceType:  domain.SourceTabular,
		Collection:  domain.CollectionText,
		Category:    "digital_media",
		StoragePath: "text_documents/meta_ads.csv",
		Status:      domain.StatusIngesting,
	}
	if err := registry.Register(context.Background(), doc); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if doc.ID != DocumentID(domain.CollectionText, "meta_ads.csv") {
		t.Fatalf("id not derived: %s", doc.ID)
	}
	if doc.Revision != 3 || !doc.CreatedAt.Equal(created) {
		t.Fatalf("stored values not applied: revision=%d created=%v", doc.Revision, doc.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, source_type").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := registry.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesJSONColumns(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "name", "source_type", "collection", "category", "metadata", "numeric_attrs",
		"storage_path", "revision", "status", "error_message", "created_at", "updated_at",
	}).AddRow(
		"doc-1", "meta_ads.csv", "tabular", "text_documents", "digital_media",
		[]byte(`{"region":"dach"}`), []byte(`{"budget":5000}`),
		"text_documents/meta_ads.csv", 2, "indexed", "", now, now,
	)
	mock.ExpectQuery("SELECT id, name, source_type").WithArgs("doc-1").WillReturnRows(rows)

	doc, err := registry.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.SourceType != domain.SourceTabular || doc.Status != domain.StatusIndexed {
		t.Fatalf("typed columns not mapped: %+v", doc)
	}
	if doc.Metadata["region"] != "dach" || doc.Numeric["budget"] != 5000 {
		t.Fatalf("json columns not decoded: %+v %+v", doc.Metadata, doc.Numeric)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusNotFoundWhenNoRowsAffected(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusFailed), "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := registry.UpdateStatus(context.Background(), "missing", domain.StatusFailed, "boom")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusSuccess(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", string(domain.StatusIndexed), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := registry.UpdateStatus(context.Background(), "doc-1", domain.StatusIndexed, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
