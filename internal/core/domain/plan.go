package domain

type PlanState string

const (
	PlanReceived   PlanState = "received"
	PlanClassified PlanState = "classified"
	PlanDecomposed PlanState = "decomposed"
	PlanExecuting  PlanState = "executing"
	PlanMerged     PlanState = "merged"
	PlanDone       PlanState = "done"
	PlanFailed     PlanState = "failed"
)

// SubQuery is one independently retrievable slice of a complex query, scoped
// with its own filter hints.
type SubQuery struct {
	ID      string      `json:"id"`
	Text    string      `json:"text"`
	Label   string      `json:"label,omitempty"`
	Filters []Predicate `json:"filters,omitempty"`
}

type SubQueryResult struct {
	SubQuery SubQuery         `json:"sub_query"`
	Chunks   []RetrievedChunk `json:"chunks"`
	Error    string           `json:"error,omitempty"`
}

// MergedResult is the outcome of executing a query plan. Partial is set when
// some sub-queries failed but at least one succeeded; the failures stay
// visible in Results so callers can report them.
type MergedResult struct {
	Query      string           `json:"query"`
	State      PlanState        `json:"state"`
	SubQueries []SubQuery       `json:"sub_queries"`
	Results    []SubQueryResult `json:"results"`
	Partial    bool             `json:"partial,omitempty"`
}

// Failures returns sub-query IDs whose retrieval failed.
func (m *MergedResult) Failures() []string {
	var out []string
	for _, r := range m.Results {
		if r.Error != "" {
			out = append(out, r.SubQuery.ID)
		}
	}
	return out
}
