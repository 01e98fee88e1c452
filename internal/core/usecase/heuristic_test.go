package usecase

import (
	"testing"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

func TestHeuristicRoute(t *testing.T) {
	h := NewHeuristic(domain.KnownCategories())

	cases := []struct {
		name       string
		query      string
		collection domain.Collection
		strategy   domain.Strategy
	}{
		{"default hybrid", "Show me TV spend", domain.CollectionText, domain.StrategyHybrid},
		{"asset wording", "Find the banner creative for the summer campaign", domain.CollectionAssets, domain.StrategyVector},
		{"comparison", "Compare Meta CPM vs Google CPC", domain.CollectionText, domain.StrategyPlanner},
		{"multi period", "Revenue in Q3 and Q4", domain.CollectionText, domain.StrategyPlanner},
		{"cross category", "Relate digital media spend to sales pipeline conversion", domain.CollectionText, domain.StrategyPlanner},
		{"aggregation", "What is the total spend per channel?", domain.CollectionText, domain.StrategyMetadata},
		{"optimization", "Optimize budget allocation", domain.CollectionText, domain.StrategyMetadata},
		{"quoted term", `Where does "exclusivity clause" appear?`, domain.CollectionText, domain.StrategyHybrid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := h.Route(tc.query)
			if got.Collection != tc.collection {
				t.Fatalf("collection = %s, want %s", got.Collection, tc.collection)
			}
			if got.Strategy != tc.strategy {
				t.Fatalf("strategy = %s, want %s", got.Strategy, tc.strategy)
			}
			if got.Source != domain.RouteSourceHeuristic {
				t.Fatalf("source = %s, want heuristic", got.Source)
			}
		})
	}
}

func TestHeuristicProperNounConfidence(t *testing.T) {
	h := NewHeuristic(domain.KnownCategories())
	// Two proper nouns past the sentence start raise confidence but keep hybrid.
	got := h.Route("How did Meta and Google perform?")
	if got.Strategy != domain.StrategyHybrid {
		t.Fatalf("strategy = %s, want hybrid", got.Strategy)
	}
	if got.Confidence <= 0.5 {
		t.Fatalf("expected raised confidence, got %v", got.Confidence)
	}
}

func TestHeuristicDeriveFilters(t *testing.T) {
	h := NewHeuristic(domain.KnownCategories())

	if got := h.DeriveFilters("total spend overall"); got != nil {
		t.Fatalf("expected no filters, got %+v", got)
	}

	got := h.DeriveFilters("total contracts value this year")
	if len(got) != 1 || got[0].Field != "category" || got[0].Op != domain.OpIn {
		t.Fatalf("unexpected filters %+v", got)
	}
	if len(got[0].Values) != 1 || got[0].Values[0] != "contracts" {
		t.Fatalf("expected contracts category, got %+v", got[0].Values)
	}
}
