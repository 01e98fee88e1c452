// Package qdrant talks to Qdrant over its HTTP API. Point IDs are chunk IDs,
// so upserting a rebuilt document replaces its points instead of duplicating
// them.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

type Config struct {
	BaseURL   string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "qdrant client", fmt.Errorf("base url required"))
	}
	if cfg.Dimension <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "qdrant client", fmt.Errorf("embedding dimension required"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// EnsureCollections creates both collections if missing. Dimension mismatch
// against an existing collection is a startup error, not something to heal.
func (c *Client) EnsureCollections(ctx context.Context) error {
	for _, collection := range []domain.Collection{domain.CollectionText, domain.CollectionAssets} {
		if err := c.ensureCollection(ctx, collection); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, collection domain.Collection) error {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", collection), nil, &info)
	if err == nil {
		if info.Result.Config.Params.Vectors.Size != c.cfg.Dimension {
			return domain.WrapError(domain.ErrConfiguration, "ensure collection",
				fmt.Errorf("collection %s has dimension %d, expected %d", collection, info.Result.Config.Params.Vectors.Size, c.cfg.Dimension))
		}
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.cfg.Dimension,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", collection), body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	return nil
}

func (c *Client) Upsert(ctx context.Context, collection domain.Collection, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("qdrant upsert: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	points := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		points[i] = map[string]any{
			"id":      chunk.ID,
			"vector":  vectors[i],
			"payload": pointPayload(chunk),
		}
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	if err := c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (c *Client) DeleteByDocument(ctx context.Context, collection domain.Collection, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", collection)
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("qdrant delete by document: %w", err)
	}
	return nil
}

func (c *Client) Search(ctx context.Context, collection domain.Collection, queryVector []float32, limit int, candidates map[string]struct{}) ([]domain.RetrievedChunk, error) {
	body := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if candidates != nil {
		ids := make([]string, 0, len(candidates))
		for id := range candidates {
			ids = append(ids, id)
		}
		body["filter"] = map[string]any{
			"must": []map[string]any{{"has_id": ids}},
		}
	}

	var resp struct {
		Result []struct {
			ID      string          `json:"id"`
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", collection)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(resp.Result))
	for _, hit := range resp.Result {
		var payload payload
		if err := json.Unmarshal(hit.Payload, &payload); err != nil {
			return nil, fmt.Errorf("qdrant search: decode payload for %s: %w", hit.ID, err)
		}
		out = append(out, domain.RetrievedChunk{
			ChunkID:      hit.ID,
			DocumentID:   payload.DocumentID,
			DocumentName: payload.DocumentName,
			Collection:   collection,
			SectionLabel: payload.SectionLabel,
			KeyInfo:      payload.KeyInfo,
			Text:         payload.Text,
			Metadata:     payload.Metadata,
			Score:        hit.Score,
		})
	}
	return out, nil
}

func (c *Client) Count(ctx context.Context, collection domain.Collection) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", collection)
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"exact": true}, &resp); err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return resp.Result.Count, nil
}

type payload struct {
	DocumentID   string            `json:"document_id"`
	DocumentName string            `json:"document_name"`
	SectionLabel string            `json:"section_label,omitempty"`
	KeyInfo      bool              `json:"key_info,omitempty"`
	Text         string            `json:"text"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RowStart     int               `json:"row_start,omitempty"`
	RowEnd       int               `json:"row_end,omitempty"`
}

func pointPayload(chunk domain.Chunk) payload {
	return payload{
		DocumentID:   chunk.DocumentID,
		DocumentName: chunk.DocumentName,
		SectionLabel: chunk.SectionLabel,
		KeyInfo:      chunk.KeyInfo,
		Text:         chunk.Text,
		Metadata:     chunk.Metadata,
		RowStart:     chunk.RowStart,
		RowEnd:       chunk.RowEnd,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "qdrant request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "qdrant response", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Status struct {
				Error string `json:"error"`
			} `json:"status"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.Status.Error
		if msg == "" {
			msg = string(raw)
		}
		err := fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return domain.WrapError(domain.ErrTemporary, "qdrant request", err)
		}
		return err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

var _ ports.VectorStore = (*Client)(nil)
