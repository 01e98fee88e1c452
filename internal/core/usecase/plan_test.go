package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

func newPlanFixture(vector *searchVectorFake, lexical *searchLexicalFake) *PlanUseCase {
	search := newSearchFixture(vector, lexical, &searchMetadataFake{})
	return NewPlanUseCase(search, NewHeuristic(domain.KnownCategories()), PlanConfig{})
}

func subTexts(subs []domain.SubQuery) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.Text
	}
	return out
}

func TestPlanSimpleQueryStaysWhole(t *testing.T) {
	uc := newPlanFixture(&searchVectorFake{}, &searchLexicalFake{})
	subs, err := uc.Plan(context.Background(), "What is Meta CPM?")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(subs) != 1 || subs[0].Text != "What is Meta CPM?" {
		t.Fatalf("expected single whole sub-query, got %+v", subs)
	}
}

func TestPlanEmptyQuery(t *testing.T) {
	uc := newPlanFixture(&searchVectorFake{}, &searchLexicalFake{})
	if _, err := uc.Plan(context.Background(), "  "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestPlanComparisonFansOutPeriods(t *testing.T) {
	uc := newPlanFixture(&searchVectorFake{}, &searchLexicalFake{})
	subs, err := uc.Plan(context.Background(), "Compare Meta CPM vs Google CPC in Q3 and Q4")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	got := subTexts(subs)
	want := []string{
		"Meta CPM in Q3",
		"Meta CPM in Q4",
		"Google CPC in Q3",
		"Google CPC in Q4",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d sub-queries, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sub-query %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPlanDeterministicIDs(t *testing.T) {
	uc := newPlanFixture(&searchVectorFake{}, &searchLexicalFake{})
	first, _ := uc.Plan(context.Background(), "Compare Meta CPM vs Google CPC")
	second, _ := uc.Plan(context.Background(), "Compare Meta CPM vs Google CPC")
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 sub-queries, got %d/%d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("ids must be deterministic: %s vs %s", first[i].ID, second[i].ID)
		}
	}
}

func TestPlanMultiPeriod(t *testing.T) {
	uc := newPlanFixture(&searchVectorFake{}, &searchLexicalFake{})
	subs, err := uc.Plan(context.Background(), "Show revenue in Q3 and Q4")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	got := subTexts(subs)
	if len(got) != 2 || got[0] != "Show revenue in Q3" || got[1] != "Show revenue in Q4" {
		t.Fatalf("unexpected period split %v", got)
	}
}

func TestPlanCrossCategoryCarriesFilters(t *testing.T) {
	uc := newPlanFixture(&searchVectorFake{}, &searchLexicalFake{})
	subs, err := uc.Plan(context.Background(), "Relate digital media spend to sales pipeline conversion")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 category sub-queries, got %+v", subs)
	}
	for _, sub := range subs {
		if !strings.HasPrefix(sub.Label, "category:") {
			t.Fatalf("expected category label, got %q", sub.Label)
		}
		if len(sub.Filters) != 1 || sub.Filters[0].Field != "category" || sub.Filters[0].Op != domain.OpEq {
			t.Fatalf("expected one category eq filter, got %+v", sub.Filters)
		}
	}
}

func TestPlanCapsSubQueries(t *testing.T) {
	search := newSearchFixture(&searchVectorFake{}, &searchLexicalFake{}, &searchMetadataFake{})
	uc := NewPlanUseCase(search, NewHeuristic(domain.KnownCategories()), PlanConfig{MaxSubQueries: 3})
	subs, err := uc.Plan(context.Background(), "Compare Meta CPM vs Google CPC in Q3 and Q4")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected cap at 3, got %d", len(subs))
	}
}

func TestPlanAndSearchMergesResults(t *testing.T) {
	vector := &searchVectorFake{hits: []domain.RetrievedChunk{chunk("a", 0.9)}}
	lexical := &searchLexicalFake{hits: []domain.RetrievedChunk{chunk("a", 2.0)}}
	uc := newPlanFixture(vector, lexical)

	merged, err := uc.PlanAndSearch(context.Background(), "Compare Meta CPM vs Google CPC", 5)
	if err != nil {
		t.Fatalf("PlanAndSearch() error = %v", err)
	}
	if merged.State != domain.PlanDone {
		t.Fatalf("state = %s, want done", merged.State)
	}
	if merged.Partial {
		t.Fatalf("unexpected partial flag")
	}
	if len(merged.Results) != 2 {
		t.Fatalf("expected 2 sub-query results, got %d", len(merged.Results))
	}
	for _, r := range merged.Results {
		if r.Error != "" || len(r.Chunks) == 0 {
			t.Fatalf("expected successful sub-query, got %+v", r)
		}
	}
}

func TestPlanAndSearchPartialOnSubQueryFailure(t *testing.T) {
	// No hits anywhere: every sub-query fails with no-results, so the
	// whole plan degrades to failure.
	uc := newPlanFixture(&searchVectorFake{}, &searchLexicalFake{})
	merged, err := uc.PlanAndSearch(context.Background(), "Compare Meta CPM vs Google CPC", 5)
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
	if merged.State != domain.PlanFailed {
		t.Fatalf("state = %s, want failed", merged.State)
	}
	if got := merged.Failures(); len(got) != 2 {
		t.Fatalf("expected both sub-queries in failures, got %v", got)
	}
}

func TestPlanAndSearchPartialMerge(t *testing.T) {
	// The vector side errors and lexical matches only one sub-query's
	// terms; retrieval still fails per sub-query only when both sides
	// return nothing.
	vector := &searchVectorFake{err: errors.New("down")}
	lexical := &partialLexicalFake{term: "q3"}
	search := NewSearchUseCase(&searchEmbedderFake{}, vector, lexical, &searchMetadataFake{}, SearchConfig{})
	uc := NewPlanUseCase(search, NewHeuristic(domain.KnownCategories()), PlanConfig{})

	merged, err := uc.PlanAndSearch(context.Background(), "Show revenue in Q3 and Q4", 5)
	if err != nil {
		t.Fatalf("PlanAndSearch() error = %v", err)
	}
	if !merged.Partial {
		t.Fatalf("expected partial merge")
	}
	if len(merged.Failures()) != 1 {
		t.Fatalf("expected one failed sub-query, got %v", merged.Failures())
	}
}

// partialLexicalFake returns a hit only when the query mentions its term.
type partialLexicalFake struct {
	term string
}

func (f *partialLexicalFake) Apply(context.Context, *domain.IndexBatch) error { return nil }
func (f *partialLexicalFake) Search(_ domain.Collection, query string, _ int, _ map[string]struct{}) ([]domain.RetrievedChunk, error) {
	if strings.Contains(strings.ToLower(query), f.term) {
		return []domain.RetrievedChunk{chunk("hit-"+f.term, 1.0)}, nil
	}
	return nil, nil
}
func (f *partialLexicalFake) Stats(domain.Collection) domain.LexicalStats {
	return domain.LexicalStats{}
}
func (f *partialLexicalFake) Reload(domain.Collection) error { return nil }
