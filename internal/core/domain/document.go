package domain

import "time"

type SourceType string

const (
	SourceTabular   SourceType = "tabular"
	SourceNarrative SourceType = "narrative"
	SourceSectioned SourceType = "sectioned"
	SourceConfig    SourceType = "config"
	SourceAssetRow  SourceType = "asset_row"
)

// Collection is a logical content class with its own vector collection,
// lexical index, and metadata index. Queries never mix collections.
type Collection string

const (
	CollectionText   Collection = "text_documents"
	CollectionAssets Collection = "campaign_assets"
)

// KnownCategories lists the data categories carried by marketing sources.
// The heuristic router and planner match query text against these.
func KnownCategories() []string {
	return []string{
		"digital_media",
		"traditional_media",
		"sales_pipeline",
		"external",
		"contracts",
		"config",
		"assets",
	}
}

type DocumentStatus string

const (
	StatusRegistered DocumentStatus = "registered"
	StatusIngesting  DocumentStatus = "ingesting"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
	StatusSuperseded DocumentStatus = "superseded"
)

// Document is an immutable named source. Re-ingesting the same name in the
// same collection supersedes the prior revision rather than mutating it.
type Document struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	SourceType  SourceType         `json:"source_type"`
	Collection  Collection         `json:"collection"`
	Category    string             `json:"category,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
	Numeric     map[string]float64 `json:"numeric,omitempty"`
	StoragePath string             `json:"storage_path"`
	Revision    int                `json:"revision"`
	Status      DocumentStatus     `json:"status"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// IngestDocument is a document submitted for ingestion with inline content.
type IngestDocument struct {
	Name       string             `json:"name"`
	SourceType SourceType         `json:"source_type"`
	Collection Collection         `json:"collection"`
	Category   string             `json:"category,omitempty"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
	Numeric    map[string]float64 `json:"numeric,omitempty"`
	Content    []byte             `json:"content"`
}

type IngestError struct {
	DocumentID string `json:"document_id,omitempty"`
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	Reason     string `json:"reason"`
}

// IngestReport summarizes one ingestion batch. Per-document failures are
// recorded here instead of aborting the batch.
type IngestReport struct {
	Documents     int           `json:"documents"`
	ChunksCreated int           `json:"chunks_created"`
	Errors        []IngestError `json:"errors,omitempty"`
}
