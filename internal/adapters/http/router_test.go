package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

type ingestorStub struct {
	report *domain.IngestReport
	err    error
	docs   []domain.IngestDocument
}

func (s *ingestorStub) IngestBatch(_ context.Context, docs []domain.IngestDocument) (*domain.IngestReport, error) {
	s.docs = docs
	return s.report, s.err
}
func (s *ingestorStub) ReingestByIDs(context.Context, []string) (*domain.IngestReport, error) {
	return s.report, s.err
}

type searcherStub struct {
	result     *domain.SearchResult
	err        error
	collection domain.Collection
	query      string
}

func (s *searcherStub) Search(_ context.Context, collection domain.Collection, query string, _ int, _ []domain.Predicate) (*domain.SearchResult, error) {
	s.collection = collection
	s.query = query
	return s.result, s.err
}

type strategyRouterStub struct {
	routed *domain.RoutedResult
	err    error
}

func (s *strategyRouterStub) Route(context.Context, string) (domain.RouteDecision, error) {
	if s.routed == nil {
		return domain.RouteDecision{}, s.err
	}
	return s.routed.Decision, s.err
}
func (s *strategyRouterStub) RouteAndSearch(context.Context, string, int) (*domain.RoutedResult, error) {
	return s.routed, s.err
}

type plannerStub struct {
	merged *domain.MergedResult
	err    error
}

func (s *plannerStub) Plan(_ context.Context, query string) ([]domain.SubQuery, error) {
	return []domain.SubQuery{{ID: "sq-0", Text: query}}, nil
}
func (s *plannerStub) PlanAndSearch(context.Context, string, int) (*domain.MergedResult, error) {
	return s.merged, s.err
}

type answererStub struct {
	answered *domain.AnsweredResult
	err      error
}

func (s *answererStub) Answer(context.Context, string, int) (*domain.AnsweredResult, error) {
	return s.answered, s.err
}

type healthStub struct {
	health *domain.IndexHealth
	err    error
}

func (s *healthStub) IndexHealth(context.Context) (*domain.IndexHealth, error) {
	return s.health, s.err
}

type registryStub struct {
	doc *domain.Document
	err error
}

func (s *registryStub) Register(context.Context, *domain.Document) error { return nil }
func (s *registryStub) GetByID(context.Context, string) (*domain.Document, error) {
	return s.doc, s.err
}
func (s *registryStub) UpdateStatus(context.Context, string, domain.DocumentStatus, string) error {
	return nil
}

type queueStub struct {
	published []string
	err       error
}

func (s *queueStub) PublishIngestBatch(_ context.Context, ids []string) error {
	s.published = ids
	return s.err
}
func (s *queueStub) SubscribeIngestBatch(context.Context, func(context.Context, []string) error) error {
	return nil
}
func (s *queueStub) PublishIndexUpdated(context.Context, domain.Collection) error { return nil }
func (s *queueStub) SubscribeIndexUpdated(context.Context, func(context.Context, domain.Collection) error) error {
	return nil
}

type fixture struct {
	ingestor *ingestorStub
	searcher *searcherStub
	router   *strategyRouterStub
	planner  *plannerStub
	answerer *answererStub
	health   *healthStub
	registry *registryStub
	queue    *queueStub
	handler  http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		ingestor: &ingestorStub{report: &domain.IngestReport{Documents: 1, ChunksCreated: 2}},
		searcher: &searcherStub{result: &domain.SearchResult{FilterMatched: -1}},
		router:   &strategyRouterStub{routed: &domain.RoutedResult{}},
		planner:  &plannerStub{merged: &domain.MergedResult{State: domain.PlanDone}},
		answerer: &answererStub{answered: &domain.AnsweredResult{Answer: "Meta CPM rose 12%.", Routed: &domain.RoutedResult{}}},
		health:   &healthStub{health: &domain.IndexHealth{}},
		registry: &registryStub{doc: &domain.Document{ID: "doc-1"}},
		queue:    &queueStub{},
	}
	f.handler = NewRouter(f.ingestor, f.searcher, f.router, f.planner, f.answerer, f.health, f.registry, f.queue, nil, "api").Handler()
	return f
}

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIngestTranslatesDocuments(t *testing.T) {
	f := newFixture()
	body := `{"documents":[{"name":"meta_ads.csv","source_type":"tabular","collection":"text_documents","category":"digital_media","content":"a,b\n1,2"}]}`
	rec := do(t, f.handler, http.MethodPost, "/v1/ingest", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(f.ingestor.docs) != 1 {
		t.Fatalf("expected one document, got %d", len(f.ingestor.docs))
	}
	doc := f.ingestor.docs[0]
	if doc.SourceType != domain.SourceTabular || string(doc.Content) != "a,b\n1,2" {
		t.Fatalf("document not translated: %+v", doc)
	}
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodPost, "/v1/ingest", `{"documents":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReingestQueues(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodPost, "/v1/reingest", `{"document_ids":["a","b"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(f.queue.published) != 2 {
		t.Fatalf("expected ids queued, got %v", f.queue.published)
	}
	if !strings.Contains(rec.Body.String(), `"queued":2`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestGetDocument(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodGet, "/v1/documents/doc-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	f.registry.doc = nil
	f.registry.err = domain.WrapError(domain.ErrDocumentNotFound, "get document", domain.ErrDocumentNotFound)
	rec = do(t, f.handler, http.MethodGet, "/v1/documents/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSearchDefaultsCollection(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodPost, "/v1/search", `{"query":"tv spend"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if f.searcher.collection != domain.CollectionText {
		t.Fatalf("collection = %s, want default text", f.searcher.collection)
	}
}

func TestSearchErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "search", domain.ErrInvalidInput), http.StatusBadRequest},
		{"filter zero", domain.WrapError(domain.ErrFilterMatchedZero, "search", domain.ErrFilterMatchedZero), http.StatusUnprocessableEntity},
		{"no results", domain.WrapError(domain.ErrNoResults, "search", domain.ErrNoResults), http.StatusNotFound},
		{"unavailable", domain.WrapError(domain.ErrRetrievalUnavailable, "search", domain.ErrRetrievalUnavailable), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.searcher.result = nil
			f.searcher.err = tc.err
			rec := do(t, f.handler, http.MethodPost, "/v1/search", `{"query":"q"}`)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestRouteSearchRequiresQuery(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodPost, "/v1/route-search", `{"query":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRouteSearch(t *testing.T) {
	f := newFixture()
	f.router.routed = &domain.RoutedResult{
		Decision: domain.RouteDecision{Strategy: domain.StrategyHybrid, Source: domain.RouteSourceHeuristic},
		Result:   &domain.SearchResult{FilterMatched: -1},
	}
	rec := do(t, f.handler, http.MethodPost, "/v1/route-search", `{"query":"tv spend"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"strategy":"hybrid"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestPlanSearch(t *testing.T) {
	f := newFixture()
	f.planner.merged = &domain.MergedResult{State: domain.PlanDone, Partial: true}
	rec := do(t, f.handler, http.MethodPost, "/v1/plan-search", `{"query":"Compare A vs B"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"partial":true`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestAnswer(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodPost, "/v1/answer", `{"query":"How did Meta CPM move?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Meta CPM rose 12%.") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestAnswerRequiresQuery(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodPost, "/v1/answer", `{"query":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIndexHealth(t *testing.T) {
	f := newFixture()
	f.health.health = &domain.IndexHealth{Collections: map[domain.Collection]domain.CollectionHealth{
		domain.CollectionText: {VectorPoints: 10, Documents: 2},
	}}
	rec := do(t, f.handler, http.MethodGet, "/v1/index/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"vector_points":10`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodGet, "/v1/search", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture()
	rec := do(t, f.handler, http.MethodGet, "/healthz", "")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}
