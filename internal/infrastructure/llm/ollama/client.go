// Package ollama implements embedding, generation, and route classification
// against a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

type Config struct {
	BaseURL         string
	GenModel        string
	EmbedModel      string
	Timeout         time.Duration
	EmbedRatePerSec float64
	EmbedBurst      int
}

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	embedLimit *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.EmbedRatePerSec > 0 {
		burst := cfg.EmbedBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRatePerSec), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		genModel:   cfg.GenModel,
		embedModel: cfg.EmbedModel,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		embedLimit: limiter,
	}
}

type Embedder struct {
	client    *Client
	dimension int
}

// NewEmbedder validates every returned vector against the configured
// dimension; a model/collection mismatch surfaces on first use, not at
// query time.
func NewEmbedder(client *Client, dimension int) *Embedder {
	return &Embedder{client: client, dimension: dimension}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.client.embedLimit != nil {
		if err := e.client.embedLimit.Wait(ctx); err != nil {
			return nil, err
		}
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	for i, v := range response.Embeddings {
		if len(v) != e.dimension {
			return nil, domain.WrapError(domain.ErrConfiguration, "embed",
				fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), e.dimension))
		}
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	return g.client.generateText(ctx, buildAnswerPrompt(question, chunks))
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.client.generateText(ctx, prompt)
}

func (g *Generator) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.client.generateJSON(ctx, prompt)
}

type RouteClassifier struct {
	client *Client
}

func NewRouteClassifier(client *Client) *RouteClassifier {
	return &RouteClassifier{client: client}
}

func (c *RouteClassifier) ClassifyRoute(ctx context.Context, query string, options []domain.RouteOption) (domain.RouteDecision, error) {
	respText, err := c.client.generateJSON(ctx, buildRoutePrompt(query, options))
	if err != nil {
		return domain.RouteDecision{}, err
	}

	var raw struct {
		Collection string  `json:"collection"`
		Strategy   string  `json:"strategy"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &raw); err != nil {
		return domain.RouteDecision{}, fmt.Errorf("parse route json: %w", err)
	}

	decision := domain.RouteDecision{
		Collection: domain.Collection(raw.Collection),
		Strategy:   domain.Strategy(raw.Strategy),
		Confidence: raw.Confidence,
		Reasoning:  raw.Reasoning,
		Source:     domain.RouteSourceLLM,
	}
	if !domain.ValidStrategy(decision.Strategy) {
		return domain.RouteDecision{}, fmt.Errorf("route json names unknown strategy %q", raw.Strategy)
	}
	if decision.Collection != domain.CollectionText && decision.Collection != domain.CollectionAssets {
		return domain.RouteDecision{}, fmt.Errorf("route json names unknown collection %q", raw.Collection)
	}
	return decision, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	})
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
