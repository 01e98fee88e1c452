package domain

import (
	"fmt"
	"strings"
)

type PredicateOp string

const (
	OpEq      PredicateOp = "eq"
	OpIn      PredicateOp = "in"
	OpGTE     PredicateOp = "gte"
	OpLTE     PredicateOp = "lte"
	OpBetween PredicateOp = "between"
)

// Predicate is one metadata filter clause. Clauses are ANDed across fields;
// OpIn values are ORed within a field.
type Predicate struct {
	Field  string      `json:"field"`
	Op     PredicateOp `json:"op"`
	Values []string    `json:"values,omitempty"`
	Min    float64     `json:"min,omitempty"`
	Max    float64     `json:"max,omitempty"`
}

// Validate rejects malformed predicates before any index work happens.
func (p Predicate) Validate() error {
	if strings.TrimSpace(p.Field) == "" {
		return WrapError(ErrConfiguration, "validate predicate", fmt.Errorf("empty field"))
	}
	switch p.Op {
	case OpEq:
		if len(p.Values) != 1 {
			return WrapError(ErrConfiguration, "validate predicate", fmt.Errorf("op eq on %q needs exactly one value", p.Field))
		}
	case OpIn:
		if len(p.Values) == 0 {
			return WrapError(ErrConfiguration, "validate predicate", fmt.Errorf("op in on %q needs at least one value", p.Field))
		}
	case OpGTE, OpLTE:
	case OpBetween:
		if p.Min > p.Max {
			return WrapError(ErrConfiguration, "validate predicate", fmt.Errorf("op between on %q has min > max", p.Field))
		}
	default:
		return WrapError(ErrConfiguration, "validate predicate", fmt.Errorf("unknown op %q on %q", p.Op, p.Field))
	}
	return nil
}

// RetrievedChunk is a query-scoped view of a chunk with fused and per-method
// scores. Ranks are 1-based; 0 means the method did not return the chunk.
type RetrievedChunk struct {
	ChunkID      string            `json:"chunk_id"`
	DocumentID   string            `json:"document_id"`
	DocumentName string            `json:"document_name"`
	Collection   Collection        `json:"collection"`
	SectionLabel string            `json:"section_label,omitempty"`
	KeyInfo      bool              `json:"key_info,omitempty"`
	Text         string            `json:"text"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Score        float64           `json:"score"`
	VectorScore  float64           `json:"vector_score,omitempty"`
	LexicalScore float64           `json:"lexical_score,omitempty"`
	VectorRank   int               `json:"vector_rank,omitempty"`
	LexicalRank  int               `json:"lexical_rank,omitempty"`
	Rank         int               `json:"rank"`
}

// SearchResult is the fused ranked list for one query. Degraded is set when
// one retrieval method was unavailable and the other served alone.
type SearchResult struct {
	Chunks        []RetrievedChunk `json:"chunks"`
	Degraded      bool             `json:"degraded,omitempty"`
	FilterMatched int              `json:"filter_matched"`
}
