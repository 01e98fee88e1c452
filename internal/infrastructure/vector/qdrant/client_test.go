package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, Dimension: 4})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{Dimension: 4}); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing url, got %v", err)
	}
	if _, err := NewClient(Config{BaseURL: "http://qdrant:6333"}); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing dimension, got %v", err)
	}
}

func TestEnsureCollectionsCreatesMissing(t *testing.T) {
	var created []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.Error(w, `{"status":{"error":"not found"}}`, http.StatusNotFound)
		case http.MethodPut:
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			if body.Vectors.Size != 4 || body.Vectors.Distance != "Cosine" {
				t.Errorf("unexpected create body %+v", body)
			}
			created = append(created, r.URL.Path)
			w.Write([]byte(`{"result":true}`))
		}
	})

	if err := client.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("EnsureCollections() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected both collections created, got %v", created)
	}
}

func TestEnsureCollectionsDimensionMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":768}}}}}`))
	})

	err := client.EnsureCollections(context.Background())
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUpsertSendsPointsWithPayload(t *testing.T) {
	var got struct {
		Points []struct {
			ID      string    `json:"id"`
			Vector  []float32 `json:"vector"`
			Payload payload   `json:"payload"`
		} `json:"points"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/text_documents/points" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Errorf("expected wait=true")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode upsert body: %v", err)
		}
		w.Write([]byte(`{"result":{"status":"acknowledged"}}`))
	})

	chunks := []domain.Chunk{{
		ID:           "chunk-1",
		DocumentID:   "doc-1",
		DocumentName: "meta_ads.csv",
		Text:         "header\nrow",
		Metadata:     map[string]string{"category": "digital_media"},
		RowStart:     1,
		RowEnd:       20,
	}}
	err := client.Upsert(context.Background(), domain.CollectionText, chunks, [][]float32{{0.1, 0.2, 0.3, 0.4}})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(got.Points) != 1 || got.Points[0].ID != "chunk-1" {
		t.Fatalf("unexpected points %+v", got.Points)
	}
	p := got.Points[0].Payload
	if p.DocumentID != "doc-1" || p.Metadata["category"] != "digital_media" || p.RowEnd != 20 {
		t.Fatalf("payload not carried: %+v", p)
	}
}

func TestUpsertLengthMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	err := client.Upsert(context.Background(), domain.CollectionText, []domain.Chunk{{ID: "a"}}, nil)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestDeleteByDocumentFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/text_documents/points/delete" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode delete body: %v", err)
		}
		if len(body.Filter.Must) != 1 || body.Filter.Must[0].Key != "document_id" || body.Filter.Must[0].Match.Value != "doc-9" {
			t.Errorf("unexpected delete filter %+v", body.Filter)
		}
		w.Write([]byte(`{"result":{"status":"acknowledged"}}`))
	})

	if err := client.DeleteByDocument(context.Background(), domain.CollectionText, "doc-9"); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}
}

func TestSearchDecodesHits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Vector []float32        `json:"vector"`
			Limit  int              `json:"limit"`
			Filter *json.RawMessage `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode search body: %v", err)
		}
		if body.Limit != 5 || body.Filter != nil {
			t.Errorf("unexpected search body limit=%d filter=%v", body.Limit, body.Filter)
		}
		w.Write([]byte(`{"result":[
			{"id":"c1","score":0.91,"payload":{"document_id":"doc-1","document_name":"report.txt","text":"summer campaign","metadata":{"category":"digital_media"}}}
		]}`))
	})

	hits, err := client.Search(context.Background(), domain.CollectionText, []float32{0.1, 0.2, 0.3, 0.4}, 5, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %d", len(hits))
	}
	h := hits[0]
	if h.ChunkID != "c1" || h.Score != 0.91 || h.DocumentName != "report.txt" || h.Collection != domain.CollectionText {
		t.Fatalf("unexpected hit %+v", h)
	}
}

func TestSearchWithCandidatesSendsHasID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Filter struct {
				Must []struct {
					HasID []string `json:"has_id"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode search body: %v", err)
		}
		if len(body.Filter.Must) != 1 || len(body.Filter.Must[0].HasID) != 2 {
			t.Errorf("expected has_id filter with 2 ids, got %+v", body.Filter)
		}
		w.Write([]byte(`{"result":[]}`))
	})

	candidates := map[string]struct{}{"c1": {}, "c2": {}}
	if _, err := client.Search(context.Background(), domain.CollectionText, []float32{0.1}, 5, candidates); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
}

func TestCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"count":42}}`))
	})
	count, err := client.Count(context.Background(), domain.CollectionText)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 42 {
		t.Fatalf("count = %d, want 42", count)
	}
}

func TestServerErrorIsTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"service overloaded"}}`, http.StatusServiceUnavailable)
	})
	_, err := client.Count(context.Background(), domain.CollectionText)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestClientErrorIsNotTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"bad vector size"}}`, http.StatusBadRequest)
	})
	_, err := client.Count(context.Background(), domain.CollectionText)
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}
