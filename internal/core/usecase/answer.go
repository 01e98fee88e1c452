package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

// AnswerUseCase runs routed retrieval and synthesizes an answer over the
// fused chunks. Generation failures degrade to an evidence-only response so
// the retrieval work is never thrown away.
type AnswerUseCase struct {
	router    ports.StrategyRouter
	generator ports.AnswerGenerator
}

func NewAnswerUseCase(router ports.StrategyRouter, generator ports.AnswerGenerator) *AnswerUseCase {
	return &AnswerUseCase{router: router, generator: generator}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, query string, topK int) (*domain.AnsweredResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("empty query"))
	}

	routed, err := uc.router.RouteAndSearch(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	out := &domain.AnsweredResult{Routed: routed}
	if routed.Result == nil || len(routed.Result.Chunks) == 0 {
		return out, nil
	}

	answer, err := uc.generator.GenerateAnswer(ctx, query, routed.Result.Chunks)
	if err != nil {
		slog.Warn("answer generation failed, returning evidence only",
			"strategy", routed.Decision.Strategy,
			"chunks", len(routed.Result.Chunks),
			"error", err,
		)
		return out, nil
	}
	out.Answer = strings.TrimSpace(answer)
	return out, nil
}

var _ ports.Answerer = (*AnswerUseCase)(nil)
