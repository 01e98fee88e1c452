// Package httpadapter exposes ingestion and retrieval over a JSON HTTP API.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
	"github.com/adscope/marketing-rag/internal/observability/metrics"
)

type Router struct {
	ingestor ports.Ingestor
	searcher ports.Searcher
	router   ports.StrategyRouter
	planner  ports.QueryPlanner
	answerer ports.Answerer
	health   ports.HealthReporter
	registry ports.DocumentRegistry
	queue    ports.MessageQueue
	metrics  *metrics.HTTPServerMetrics
	service  string
}

func NewRouter(
	ingestor ports.Ingestor,
	searcher ports.Searcher,
	strategyRouter ports.StrategyRouter,
	planner ports.QueryPlanner,
	answerer ports.Answerer,
	health ports.HealthReporter,
	registry ports.DocumentRegistry,
	queue ports.MessageQueue,
	m *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		ingestor: ingestor,
		searcher: searcher,
		router:   strategyRouter,
		planner:  planner,
		answerer: answerer,
		health:   health,
		registry: registry,
		queue:    queue,
		metrics:  m,
		service:  service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ingest", rt.ingest)
	mux.HandleFunc("/v1/reingest", rt.reingest)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/route-search", rt.routeSearch)
	mux.HandleFunc("/v1/plan-search", rt.planSearch)
	mux.HandleFunc("/v1/answer", rt.answer)
	mux.HandleFunc("/v1/index/health", rt.indexHealth)

	var handler http.Handler = mux
	handler = accessLogMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	Documents []struct {
		Name       string             `json:"name"`
		SourceType string             `json:"source_type"`
		Collection string             `json:"collection"`
		Category   string             `json:"category"`
		Metadata   map[string]string  `json:"metadata"`
		Numeric    map[string]float64 `json:"numeric"`
		Content    string             `json:"content"`
	} `json:"documents"`
}

func (rt *Router) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Documents) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documents is required"})
		return
	}

	docs := make([]domain.IngestDocument, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = domain.IngestDocument{
			Name:       d.Name,
			SourceType: domain.SourceType(d.SourceType),
			Collection: domain.Collection(d.Collection),
			Category:   d.Category,
			Metadata:   d.Metadata,
			Numeric:    d.Numeric,
			Content:    []byte(d.Content),
		}
	}

	report, err := rt.ingestor.IngestBatch(r.Context(), docs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) reingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		DocumentIDs []string `json:"document_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.DocumentIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_ids is required"})
		return
	}

	// Re-ingestion is handed to the worker; the response only acknowledges
	// the handoff.
	if err := rt.queue.PublishIngestBatch(r.Context(), req.DocumentIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": len(req.DocumentIDs)})
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.registry.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type searchRequest struct {
	Collection string             `json:"collection"`
	Query      string             `json:"query"`
	TopK       int                `json:"top_k"`
	Filters    []domain.Predicate `json:"filters"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	collection := domain.Collection(req.Collection)
	if req.Collection == "" {
		collection = domain.CollectionText
	}

	start := time.Now()
	result, err := rt.searcher.Search(r.Context(), collection, req.Query, req.TopK, req.Filters)
	rt.recordSearch(string(collection), result, err, time.Since(start))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) routeSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	routed, err := rt.router.RouteAndSearch(r.Context(), req.Query, req.TopK)
	if routed != nil && rt.metrics != nil {
		rt.metrics.RecordRouteDecision(rt.service, string(routed.Decision.Strategy), string(routed.Decision.Source))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, routed)
}

func (rt *Router) planSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	merged, err := rt.planner.PlanAndSearch(r.Context(), req.Query, req.TopK)
	if merged != nil && rt.metrics != nil {
		rt.metrics.RecordPlan(rt.service, len(merged.SubQueries), merged.Partial)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	answered, err := rt.answerer.Answer(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answered)
}

func (rt *Router) indexHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	health, err := rt.health.IndexHealth(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (rt *Router) recordSearch(collection string, result *domain.SearchResult, err error, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	chunks := 0
	degraded := false
	if result != nil {
		chunks = len(result.Chunks)
		degraded = result.Degraded
	}
	rt.metrics.RecordSearch(rt.service, collection, outcome, chunks, degraded, duration)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
