package ollama

import (
	"fmt"
	"strings"

	"github.com/adscope/marketing-rag/internal/core/domain"
)

func buildRoutePrompt(query string, options []domain.RouteOption) string {
	var optionList strings.Builder
	for _, opt := range options {
		fmt.Fprintf(&optionList, "- collection=%s strategy=%s: %s\n", opt.Collection, opt.Strategy, opt.Description)
	}

	return `You route marketing analytics questions to a retrieval strategy.
Pick exactly one option from the list.
Return strict JSON object with keys:
collection (string), strategy (string), confidence (number from 0 to 1), reasoning (string).
No markdown, no extra keys.

Options:
` + optionList.String() + `
Question:
` + query
}

func buildAnswerPrompt(question string, chunks []domain.RetrievedChunk) string {
	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		fmt.Fprintf(&contextBuilder,
			"[%d] document=%s section=%s category=%s score=%.3f\n%s\n\n",
			idx+1,
			chunk.DocumentName,
			chunk.SectionLabel,
			chunk.Metadata["category"],
			chunk.Score,
			chunk.Text,
		)
	}

	return fmt.Sprintf(`Answer user question only from context below.
Cite document names for every figure you quote.
If context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}
