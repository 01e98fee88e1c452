package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
	"github.com/adscope/marketing-rag/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func classifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ResilientEmbedder retries transient embedding failures behind a breaker
// shared across batch and query embedding.
type ResilientEmbedder struct {
	inner    ports.Embedder
	executor *resilience.Executor
}

func NewResilientEmbedder(inner ports.Embedder, executor *resilience.Executor) *ResilientEmbedder {
	return &ResilientEmbedder{inner: inner, executor: executor}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.executor.Execute(ctx, "ollama.embed", func(ctx context.Context) error {
		var innerErr error
		out, innerErr = e.inner.Embed(ctx, texts)
		return innerErr
	}, classifyError)
	return out, wrapTemporaryIfNeeded("embed", err)
}

func (e *ResilientEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.executor.Execute(ctx, "ollama.embed", func(ctx context.Context) error {
		var innerErr error
		out, innerErr = e.inner.EmbedQuery(ctx, text)
		return innerErr
	}, classifyError)
	return out, wrapTemporaryIfNeeded("embed query", err)
}

// ResilientClassifier retries the route classifier. The route usecase still
// falls back to heuristics when all attempts fail.
type ResilientClassifier struct {
	inner    ports.RouteClassifier
	executor *resilience.Executor
}

func NewResilientClassifier(inner ports.RouteClassifier, executor *resilience.Executor) *ResilientClassifier {
	return &ResilientClassifier{inner: inner, executor: executor}
}

func (c *ResilientClassifier) ClassifyRoute(ctx context.Context, query string, options []domain.RouteOption) (domain.RouteDecision, error) {
	var out domain.RouteDecision
	err := c.executor.Execute(ctx, "ollama.route", func(ctx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.ClassifyRoute(ctx, query, options)
		return innerErr
	}, classifyError)
	return out, wrapTemporaryIfNeeded("classify route", err)
}

// ResilientGenerator retries transient generation failures. All three entry
// points share one breaker since they hit the same ollama model.
type ResilientGenerator struct {
	inner    ports.AnswerGenerator
	executor *resilience.Executor
}

func NewResilientGenerator(inner ports.AnswerGenerator, executor *resilience.Executor) *ResilientGenerator {
	return &ResilientGenerator{inner: inner, executor: executor}
}

func (g *ResilientGenerator) GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	var out string
	err := g.executor.Execute(ctx, "ollama.generate", func(ctx context.Context) error {
		var innerErr error
		out, innerErr = g.inner.GenerateAnswer(ctx, question, chunks)
		return innerErr
	}, classifyError)
	return out, wrapTemporaryIfNeeded("generate answer", err)
}

func (g *ResilientGenerator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.executor.Execute(ctx, "ollama.generate", func(ctx context.Context) error {
		var innerErr error
		out, innerErr = g.inner.GenerateFromPrompt(ctx, prompt)
		return innerErr
	}, classifyError)
	return out, wrapTemporaryIfNeeded("generate", err)
}

func (g *ResilientGenerator) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.executor.Execute(ctx, "ollama.generate", func(ctx context.Context) error {
		var innerErr error
		out, innerErr = g.inner.GenerateJSONFromPrompt(ctx, prompt)
		return innerErr
	}, classifyError)
	return out, wrapTemporaryIfNeeded("generate json", err)
}

var (
	_ ports.Embedder        = (*ResilientEmbedder)(nil)
	_ ports.RouteClassifier = (*ResilientClassifier)(nil)
	_ ports.AnswerGenerator = (*ResilientGenerator)(nil)
)
