package lexical

import (
	"context"
	"reflect"
	"testing"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

func seedIndex(t *testing.T, store *Store) *Index {
	t.Helper()
	idx, err := NewIndex(store)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}

	batch := &domain.IndexBatch{
		Collection: domain.CollectionText,
		Documents: map[string][]domain.Chunk{
			"doc-1": {
				{ID: "c1", DocumentID: "doc-1", Text: "Meta CPM rose sharply during the summer campaign"},
				{ID: "c2", DocumentID: "doc-1", Text: "Google CPC stayed flat across all regions"},
			},
			"doc-2": {
				{ID: "c3", DocumentID: "doc-2", Text: "TV spend dominated the traditional media budget"},
			},
		},
	}
	if err := idx.Apply(context.Background(), batch); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	return idx
}

func chunkIDs(hits []domain.RetrievedChunk) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ChunkID
	}
	return out
}

func TestSearchRanksTermMatches(t *testing.T) {
	idx := seedIndex(t, nil)

	hits, err := idx.Search(domain.CollectionText, "Meta CPM", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) == 0 || hits[0].ChunkID != "c1" {
		t.Fatalf("expected c1 first for Meta CPM, got %v", chunkIDs(hits))
	}
	if hits[0].Score <= 0 {
		t.Fatalf("expected positive score, got %v", hits[0].Score)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	idx := seedIndex(t, nil)
	hits, err := idx.Search(domain.CollectionText, "tv SPEND", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c3" {
		t.Fatalf("expected {c3}, got %v", chunkIDs(hits))
	}
}

func TestSearchCandidateRestriction(t *testing.T) {
	idx := seedIndex(t, nil)

	candidates := map[string]struct{}{"c2": {}, "c3": {}}
	hits, err := idx.Search(domain.CollectionText, "Meta CPM Google CPC", 10, candidates)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !reflect.DeepEqual(chunkIDs(hits), []string{"c2"}) {
		t.Fatalf("candidate restriction failed: %v", chunkIDs(hits))
	}
}

func TestSearchLimit(t *testing.T) {
	idx := seedIndex(t, nil)
	hits, err := idx.Search(domain.CollectionText, "the", 1, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected limit applied, got %d hits", len(hits))
	}
}

func TestSearchNoTokens(t *testing.T) {
	idx := seedIndex(t, nil)
	hits, err := idx.Search(domain.CollectionText, "!!! ???", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if hits != nil {
		t.Fatalf("expected nil for token-free query, got %v", hits)
	}
}

func TestTokenizeAlphaNum(t *testing.T) {
	got := tokenizeAlphaNum("Q3-2026: Meta/Google CPM, 12.5%")
	want := []string{"q3", "2026", "meta", "google", "cpm", "12", "5"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
}

func TestStatsAndRemoval(t *testing.T) {
	idx := seedIndex(t, nil)

	stats := idx.Stats(domain.CollectionText)
	if stats.Chunks != 3 || stats.Terms == 0 {
		t.Fatalf("stats = %+v", stats)
	}

	if err := idx.Apply(context.Background(), &domain.IndexBatch{
		Collection: domain.CollectionText,
		Documents:  map[string][]domain.Chunk{"doc-2": {}},
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := idx.Stats(domain.CollectionText).Chunks; got != 2 {
		t.Fatalf("expected 2 chunks after removal, got %d", got)
	}

	hits, err := idx.Search(domain.CollectionText, "TV spend", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("removed document still searchable: %v", chunkIDs(hits))
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	seedIndex(t, store)

	reloaded, err := NewIndex(store)
	if err != nil {
		t.Fatalf("NewIndex() reload error = %v", err)
	}
	hits, err := reloaded.Search(domain.CollectionText, "traditional media", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c3" {
		t.Fatalf("expected persisted index to answer, got %v", chunkIDs(hits))
	}
}

func TestReload(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	writer := seedIndex(t, store)

	reader, err := NewIndex(store)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}

	if err := writer.Apply(context.Background(), &domain.IndexBatch{
		Collection: domain.CollectionText,
		Documents: map[string][]domain.Chunk{
			"doc-3": {{ID: "c4", DocumentID: "doc-3", Text: "Out of home billboard placements in Berlin"}},
		},
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if err := reader.Reload(domain.CollectionText); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	hits, err := reader.Search(domain.CollectionText, "billboard Berlin", 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "c4" {
		t.Fatalf("expected reloaded chunk, got %v", chunkIDs(hits))
	}
}
