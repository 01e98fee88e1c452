package main

import (
	"testing"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

func TestBatchCounts(t *testing.T) {
	report := &domain.IngestReport{
		Documents:     3,
		ChunksCreated: 12,
		Errors: []domain.IngestError{
			{Name: "broken.csv", Stage: "index", Reason: "chunking failed"},
			{Name: "missing.txt", Stage: "lookup", Reason: "document not found"},
		},
	}

	succeeded, failed, chunks := batchCounts(report)
	if succeeded != 3 {
		t.Fatalf("succeeded = %d, want the report's indexed count untouched", succeeded)
	}
	if failed != 2 {
		t.Fatalf("failed = %d, want 2", failed)
	}
	if chunks != 12 {
		t.Fatalf("chunks = %d, want 12", chunks)
	}
}
