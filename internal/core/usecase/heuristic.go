package usecase

import (
	"regexp"
	"strings"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

var (
	aggregationPattern = regexp.MustCompile(`(?i)\b(how many|count|total|sum|average|aggregate|optimi[sz]e|allocat\w*|breakdown|per (channel|category|region))\b`)
	comparePattern     = regexp.MustCompile(`(?i)\b(compare|versus|vs\.?|difference between|better than)\b`)
	periodPattern      = regexp.MustCompile(`(?i)\b(q[1-4]|h[12]|20\d{2}|january|february|march|april|may|june|july|august|september|october|november|december|last (week|month|quarter|year))\b`)
	assetPattern       = regexp.MustCompile(`(?i)\b(image|creative|asset|banner|visual|artwork|ad copy|thumbnail)\b`)
	quotedPattern      = regexp.MustCompile(`"[^"]+"|'[^']+'`)
	properNounPattern  = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]+\b`)
)

// Heuristic is the deterministic route selector. It is the fallback when the
// LLM selector fails or times out, and the primary selector on low-latency
// paths.
type Heuristic struct {
	categories []string
}

func NewHeuristic(categories []string) *Heuristic {
	return &Heuristic{categories: categories}
}

func (h *Heuristic) Route(query string) domain.RouteDecision {
	trimmed := strings.TrimSpace(query)

	decision := domain.RouteDecision{
		Collection: domain.CollectionText,
		Strategy:   domain.StrategyHybrid,
		Confidence: 0.5,
		Reasoning:  "default hybrid retrieval",
		Source:     domain.RouteSourceHeuristic,
	}

	if assetPattern.MatchString(trimmed) {
		decision.Collection = domain.CollectionAssets
		decision.Strategy = domain.StrategyVector
		decision.Confidence = 0.8
		decision.Reasoning = "creative/asset wording targets the asset collection"
		return decision
	}

	if h.isComplex(trimmed) {
		decision.Strategy = domain.StrategyPlanner
		decision.Confidence = 0.85
		decision.Reasoning = "comparative or multi-scope query needs decomposition"
		return decision
	}

	if aggregationPattern.MatchString(trimmed) {
		decision.Strategy = domain.StrategyMetadata
		decision.Confidence = 0.75
		decision.Reasoning = "aggregation/optimization wording favors metadata pre-filtering"
		return decision
	}

	if quotedPattern.MatchString(trimmed) || countProperNouns(trimmed) >= 2 {
		// Exact tokens matter; hybrid already weights the lexical list via
		// fusion, so keep hybrid with raised confidence.
		decision.Confidence = 0.7
		decision.Reasoning = "quoted or proper-noun tokens favor lexically weighted hybrid retrieval"
		return decision
	}

	return decision
}

// isComplex reports whether the query spans compared entities, multiple time
// periods, or multiple data categories.
func (h *Heuristic) isComplex(query string) bool {
	if comparePattern.MatchString(query) {
		return true
	}
	if len(periodPattern.FindAllString(query, -1)) >= 2 {
		return true
	}
	return len(h.categoriesMentioned(query)) >= 2
}

func (h *Heuristic) categoriesMentioned(query string) []string {
	lower := strings.ToLower(query)
	var out []string
	for _, cat := range h.categories {
		needle := strings.ReplaceAll(strings.ToLower(cat), "_", " ")
		if strings.Contains(lower, needle) {
			out = append(out, cat)
		}
	}
	return out
}

// DeriveFilters extracts category filter hints for metadata-prefiltered
// strategies. Only exact category vocabulary matches become predicates.
func (h *Heuristic) DeriveFilters(query string) []domain.Predicate {
	mentioned := h.categoriesMentioned(query)
	if len(mentioned) == 0 {
		return nil
	}
	return []domain.Predicate{{
		Field:  "category",
		Op:     domain.OpIn,
		Values: mentioned,
	}}
}

func countProperNouns(query string) int {
	words := properNounPattern.FindAllString(query, -1)
	count := 0
	for i, w := range words {
		// The sentence-initial word capitalizes regardless of being a name.
		if i == 0 && strings.Index(query, w) == 0 {
			continue
		}
		count++
	}
	return count
}
