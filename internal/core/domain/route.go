package domain

type Strategy string

const (
	StrategyVector         Strategy = "vector"
	StrategySummary        Strategy = "summary"
	StrategyRecursive      Strategy = "recursive"
	StrategyChunkDecoupled Strategy = "chunk_decoupled"
	StrategyMetadata       Strategy = "metadata"
	StrategyHybrid         Strategy = "hybrid"
	StrategyPlanner        Strategy = "planner"
)

// Strategies lists every dispatchable retrieval strategy.
func Strategies() []Strategy {
	return []Strategy{
		StrategyVector,
		StrategySummary,
		StrategyRecursive,
		StrategyChunkDecoupled,
		StrategyMetadata,
		StrategyHybrid,
		StrategyPlanner,
	}
}

func ValidStrategy(s Strategy) bool {
	for _, known := range Strategies() {
		if s == known {
			return true
		}
	}
	return false
}

// StrategyReliability ranks strategies by observed robustness; higher is
// safer. Metadata-only and summary-only can come back empty when filters
// miss or summaries are poorly tuned, so they sit at the bottom.
func StrategyReliability(s Strategy) int {
	switch s {
	case StrategyHybrid:
		return 6
	case StrategyRecursive:
		return 5
	case StrategyChunkDecoupled:
		return 4
	case StrategyPlanner:
		return 3
	case StrategyMetadata:
		return 2
	case StrategySummary:
		return 1
	default:
		return 0
	}
}

type RouteSource string

const (
	RouteSourceLLM       RouteSource = "llm"
	RouteSourceHeuristic RouteSource = "heuristic"
)

// RouteOption describes one candidate route for the LLM selector.
type RouteOption struct {
	Collection  Collection `json:"collection"`
	Strategy    Strategy   `json:"strategy"`
	Description string     `json:"description"`
}

// RouteDecision is the ephemeral routing outcome. It is logged for
// observability; no other component depends on it being persisted.
type RouteDecision struct {
	Collection Collection  `json:"collection"`
	Strategy   Strategy    `json:"strategy"`
	Confidence float64     `json:"confidence"`
	Reasoning  string      `json:"reasoning,omitempty"`
	Source     RouteSource `json:"source"`
}

// RoutedResult pairs a route decision with the retrieval it produced.
type RoutedResult struct {
	Decision RouteDecision `json:"decision"`
	Result   *SearchResult `json:"result"`
}

// AnsweredResult is a RoutedResult with a synthesized answer on top. Answer
// is empty when generation failed; the retrieval evidence stands on its own.
type AnsweredResult struct {
	Answer string        `json:"answer,omitempty"`
	Routed *RoutedResult `json:"routed"`
}
