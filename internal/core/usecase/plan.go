package usecase

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

type PlanConfig struct {
	MaxConcurrency int
	MaxSubQueries  int
	SubQueryTopK   int
}

func (c PlanConfig) normalize() PlanConfig {
	out := c
	if out.MaxConcurrency <= 0 {
		out.MaxConcurrency = 3
	}
	if out.MaxSubQueries <= 0 {
		out.MaxSubQueries = 6
	}
	if out.SubQueryTopK <= 0 {
		out.SubQueryTopK = 5
	}
	return out
}

// PlanUseCase decomposes comparative and multi-scope queries into sub-queries
// and executes them concurrently. Decomposition is deterministic: the same
// query always yields the same sub-queries in the same order.
type PlanUseCase struct {
	search    *SearchUseCase
	heuristic *Heuristic
	cfg       PlanConfig
}

func NewPlanUseCase(search *SearchUseCase, heuristic *Heuristic, cfg PlanConfig) *PlanUseCase {
	return &PlanUseCase{search: search, heuristic: heuristic, cfg: cfg.normalize()}
}

var (
	versusSplit  = regexp.MustCompile(`(?i)\s+(?:vs\.?|versus)\s+`)
	compareLead  = regexp.MustCompile(`(?i)^\s*compare\s+`)
	periodFind   = regexp.MustCompile(`(?i)\b(q[1-4](?:\s+\d{4})?|\d{4}|january|february|march|april|june|july|august|september|october|november|december)\b`)
	andSplit     = regexp.MustCompile(`(?i)\s+(?:and|,)\s+`)
	trailingStop = regexp.MustCompile(`[?.!\s]+$`)
)

// Plan classifies the query and returns its sub-queries without executing
// them. A query that does not decompose yields itself as the only sub-query.
func (uc *PlanUseCase) Plan(ctx context.Context, query string) ([]domain.SubQuery, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "plan", fmt.Errorf("empty query"))
	}

	subs := uc.decompose(query)
	if len(subs) > uc.cfg.MaxSubQueries {
		subs = subs[:uc.cfg.MaxSubQueries]
	}
	return subs, nil
}

func (uc *PlanUseCase) PlanAndSearch(ctx context.Context, query string, topK int) (*domain.MergedResult, error) {
	merged := &domain.MergedResult{Query: query, State: domain.PlanReceived}

	subs, err := uc.Plan(ctx, query)
	if err != nil {
		merged.State = domain.PlanFailed
		return merged, err
	}
	merged.State = domain.PlanDecomposed
	merged.SubQueries = subs

	if topK <= 0 {
		topK = uc.cfg.SubQueryTopK
	}

	merged.State = domain.PlanExecuting
	results := make([]domain.SubQueryResult, len(subs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.MaxConcurrency)
	for i, sub := range subs {
		g.Go(func() error {
			res, err := uc.search.Search(gctx, domain.CollectionText, sub.Text, topK, sub.Filters)
			mu.Lock()
			defer mu.Unlock()
			results[i] = domain.SubQueryResult{SubQuery: sub}
			if err != nil {
				// Sub-query failures degrade the plan instead of aborting it.
				results[i].Error = err.Error()
				slog.Warn("plan_subquery_failed", "sub_query", sub.Text, "error", err)
				return nil
			}
			results[i].Chunks = res.Chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		merged.State = domain.PlanFailed
		return merged, domain.WrapError(domain.ErrRetrievalUnavailable, "plan", err)
	}

	merged.State = domain.PlanMerged
	merged.Results = results

	succeeded := 0
	for _, r := range results {
		if r.Error == "" {
			succeeded++
		}
	}
	if succeeded == 0 {
		merged.State = domain.PlanFailed
		return merged, domain.WrapError(domain.ErrRetrievalUnavailable, "plan", fmt.Errorf("all %d sub-queries failed", len(results)))
	}
	merged.Partial = succeeded < len(results)
	merged.State = domain.PlanDone

	slog.Info("plan_executed",
		"query", query,
		"sub_queries", len(subs),
		"succeeded", succeeded,
		"partial", merged.Partial,
	)
	return merged, nil
}

// decompose applies the comparison, multi-period, and cross-category rules in
// that order; the first rule that yields more than one sub-query wins.
func (uc *PlanUseCase) decompose(query string) []domain.SubQuery {
	if subs := uc.splitComparison(query); len(subs) > 1 {
		return subs
	}
	if subs := uc.splitPeriods(query); len(subs) > 1 {
		return subs
	}
	if subs := uc.splitCategories(query); len(subs) > 1 {
		return subs
	}
	return []domain.SubQuery{{ID: subQueryID(query, 0), Text: query, Label: "whole"}}
}

// splitComparison turns "Compare X vs Y ..." into one sub-query per compared
// entity, carrying any shared period suffix into each.
func (uc *PlanUseCase) splitComparison(query string) []domain.SubQuery {
	if !versusSplit.MatchString(query) && !compareLead.MatchString(query) {
		return nil
	}

	body := compareLead.ReplaceAllString(query, "")
	body = trailingStop.ReplaceAllString(body, "")

	parts := versusSplit.Split(body, -1)
	if len(parts) < 2 {
		return nil
	}

	// Periods in the tail apply to every side of the comparison.
	periods := periodFind.FindAllString(parts[len(parts)-1], -1)
	last := parts[len(parts)-1]
	if idx := strings.Index(strings.ToLower(last), " in "); idx >= 0 && len(periods) > 0 {
		parts[len(parts)-1] = strings.TrimSpace(last[:idx])
	} else {
		periods = nil
	}

	var subs []domain.SubQuery
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(periods) > 0 {
			for _, p := range periods {
				text := part + " in " + p
				subs = append(subs, domain.SubQuery{
					ID:    subQueryID(text, len(subs)),
					Text:  text,
					Label: "compare",
				})
			}
		} else {
			subs = append(subs, domain.SubQuery{
				ID:    subQueryID(part, len(subs)),
				Text:  part,
				Label: "compare",
			})
		}
	}
	return subs
}

// splitPeriods turns "... in Q3 and Q4" into one sub-query per period.
func (uc *PlanUseCase) splitPeriods(query string) []domain.SubQuery {
	periods := periodFind.FindAllString(query, -1)
	if len(periods) < 2 {
		return nil
	}

	base := periodFind.ReplaceAllString(query, "")
	base = andSplit.ReplaceAllString(base, " ")
	base = trailingStop.ReplaceAllString(base, "")
	base = strings.Join(strings.Fields(base), " ")
	base = strings.TrimSuffix(base, " in")

	var subs []domain.SubQuery
	for _, p := range periods {
		text := base + " in " + p
		subs = append(subs, domain.SubQuery{
			ID:    subQueryID(text, len(subs)),
			Text:  text,
			Label: "period",
		})
	}
	return subs
}

// splitCategories fans a query naming several known categories out into one
// filtered sub-query per category.
func (uc *PlanUseCase) splitCategories(query string) []domain.SubQuery {
	lower := strings.ToLower(query)
	var matched []string
	for _, cat := range uc.heuristic.categories {
		if strings.Contains(lower, strings.ReplaceAll(cat, "_", " ")) || strings.Contains(lower, cat) {
			matched = append(matched, cat)
		}
	}
	if len(matched) < 2 {
		return nil
	}

	var subs []domain.SubQuery
	for _, cat := range matched {
		subs = append(subs, domain.SubQuery{
			ID:    subQueryID(query+"#"+cat, len(subs)),
			Text:  query,
			Label: "category:" + cat,
			Filters: []domain.Predicate{
				{Field: "category", Op: domain.OpEq, Values: []string{cat}},
			},
		})
	}
	return subs
}

func subQueryID(text string, index int) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("sq-%d-%x", index, h.Sum32())
}

var _ ports.QueryPlanner = (*PlanUseCase)(nil)
