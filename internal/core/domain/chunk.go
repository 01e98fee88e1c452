package domain

// Chunk is the atomic retrievable unit. IDs are derived from parent document
// and chunk content, so rebuilding unchanged content yields identical IDs and
// re-upserts replace instead of duplicating.
type Chunk struct {
	ID            string             `json:"id"`
	DocumentID    string             `json:"document_id"`
	DocumentName  string             `json:"document_name"`
	Collection    Collection         `json:"collection"`
	Text          string             `json:"text"`
	SectionLabel  string             `json:"section_label,omitempty"`
	RowStart      int                `json:"row_start"`
	RowEnd        int                `json:"row_end"`
	OverlapTokens int                `json:"overlap_tokens"`
	KeyInfo       bool               `json:"key_info,omitempty"`
	Metadata      map[string]string  `json:"metadata,omitempty"`
	Numeric       map[string]float64 `json:"numeric,omitempty"`
}

// IndexBatch carries the chunks produced by one ingestion run, keyed by
// parent document ID. Applying a batch replaces every entry for those
// documents in a single snapshot swap; an empty slice removes a document.
type IndexBatch struct {
	Collection Collection
	Documents  map[string][]Chunk
}

// LexicalStats and MetadataStats report snapshot sizes for health output.
type LexicalStats struct {
	Chunks int `json:"chunks"`
	Terms  int `json:"terms"`
}

type MetadataStats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Keys      int `json:"keys"`
}

type CollectionHealth struct {
	VectorPoints   int    `json:"vector_points"`
	VectorError    string `json:"vector_error,omitempty"`
	Documents      int    `json:"documents"`
	LexicalChunks  int    `json:"lexical_chunks"`
	LexicalTerms   int    `json:"lexical_terms"`
	MetadataChunks int    `json:"metadata_chunks"`
	MetadataKeys   int    `json:"metadata_keys"`
}

type IndexHealth struct {
	Collections map[Collection]CollectionHealth `json:"collections"`
}
