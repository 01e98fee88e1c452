// Package extractor turns raw document bytes into plain text. The format is
// chosen by file extension; tabular formats come out as delimiter-joined
// lines that the chunker windows by row.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("document %s is empty", doc.Name)
	}

	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".txt", ".md", ".csv", ".tsv", ".json", ".yaml", ".yml", "":
		return extractPlaintext(doc.Name, raw)
	case ".xlsx":
		return extractXLSX(raw)
	case ".pdf":
		return extractPDF(raw)
	default:
		return "", fmt.Errorf("unsupported file type for %s", doc.Name)
	}
}

func extractPlaintext(name string, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("document %s is not valid utf-8", name)
	}
	return string(raw), nil
}

var _ ports.TextExtractor = (*Extractor)(nil)
