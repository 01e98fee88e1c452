package chunking

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

type Config struct {
	NarrativeTokens    int
	ContractTokens     int
	OverlapTokens      int
	TabularRows        int
	ShortSectionTokens int
}

func (c Config) normalize() Config {
	out := c
	if out.NarrativeTokens <= 0 {
		out.NarrativeTokens = 1024
	}
	if out.ContractTokens <= 0 {
		out.ContractTokens = 512
	}
	if out.OverlapTokens <= 0 {
		out.OverlapTokens = 50
	}
	if out.TabularRows <= 0 {
		out.TabularRows = 20
	}
	if out.ShortSectionTokens <= 0 {
		out.ShortSectionTokens = 50
	}
	return out
}

// Chunker splits documents by source type. Chunk IDs hash the parent document
// ID together with the chunk's position and text, so unchanged content keeps
// its IDs across re-ingestion.
type Chunker struct {
	cfg   Config
	vocab *Vocabulary
}

func New(cfg Config, vocab *Vocabulary) *Chunker {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Chunker{cfg: cfg.normalize(), vocab: vocab}
}

func (c *Chunker) Chunk(doc *domain.Document, content string) ([]domain.Chunk, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("document %s has no content", doc.Name)
	}

	switch doc.SourceType {
	case domain.SourceTabular:
		return c.chunkTabular(doc, content)
	case domain.SourceNarrative:
		return c.chunkNarrative(doc, content)
	case domain.SourceSectioned:
		return c.chunkSectioned(doc, content)
	case domain.SourceConfig:
		return c.chunkConfig(doc, content)
	case domain.SourceAssetRow:
		return c.chunkAssetRows(doc, content)
	default:
		return nil, fmt.Errorf("unknown source type %q for %s", doc.SourceType, doc.Name)
	}
}

// chunkTabular windows data rows, repeating the header in every chunk so each
// window reads standalone.
func (c *Chunker) chunkTabular(doc *domain.Document, content string) ([]domain.Chunk, error) {
	lines := nonEmptyLines(content)
	if len(lines) < 2 {
		return nil, fmt.Errorf("tabular document %s needs a header and at least one row", doc.Name)
	}
	header := lines[0]
	rows := lines[1:]

	var chunks []domain.Chunk
	for start := 0; start < len(rows); start += c.cfg.TabularRows {
		end := start + c.cfg.TabularRows
		if end > len(rows) {
			end = len(rows)
		}
		text := header + "\n" + strings.Join(rows[start:end], "\n")
		ch := c.newChunk(doc, text, "", false)
		ch.RowStart = start + 1
		ch.RowEnd = end
		// The row range participates in the ID so windows with identical
		// content stay distinct chunks.
		ch.ID = chunkID(doc.ID, fmt.Sprintf("rows-%d-%d", ch.RowStart, ch.RowEnd), text)
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

func (c *Chunker) chunkNarrative(doc *domain.Document, content string) ([]domain.Chunk, error) {
	target := c.cfg.NarrativeTokens
	if doc.Category == "contracts" {
		target = c.cfg.ContractTokens
	}
	windows := packSentences(splitSentences(content), target, c.cfg.OverlapTokens)

	var chunks []domain.Chunk
	for _, w := range windows {
		ch := c.newChunk(doc, w.Text, "", false)
		ch.OverlapTokens = w.OverlapTokens
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

// chunkSectioned splits on vocabulary headings. Substantial sections become
// their own chunks; short ones fold into a single key-info chunk alongside
// the first sentence of every section, giving broad queries one dense target.
func (c *Chunker) chunkSectioned(doc *domain.Document, content string) ([]domain.Chunk, error) {
	sections := c.splitSections(content)
	c.warnMissingSections(doc, sections)

	target := c.cfg.NarrativeTokens
	if doc.Category == "contracts" {
		target = c.cfg.ContractTokens
	}

	var chunks []domain.Chunk
	var keyParts []string
	for _, sec := range sections {
		if estimateTokens(sec.text) < c.cfg.ShortSectionTokens {
			keyParts = append(keyParts, sec.label+": "+sec.text)
			continue
		}
		for _, w := range packSentences(splitSentences(sec.text), target, c.cfg.OverlapTokens) {
			ch := c.newChunk(doc, w.Text, sec.label, false)
			ch.OverlapTokens = w.OverlapTokens
			chunks = append(chunks, ch)
		}
		if first := firstSentence(sec.text); first != "" {
			keyParts = append(keyParts, sec.label+": "+first)
		}
	}

	if len(keyParts) > 0 {
		text := doc.Name + "\n" + strings.Join(keyParts, "\n")
		chunks = append(chunks, c.newChunk(doc, text, "key_info", true))
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("sectioned document %s produced no chunks", doc.Name)
	}
	return chunks, nil
}

// chunkConfig keeps configuration files whole; they are small and queried as
// a unit.
func (c *Chunker) chunkConfig(doc *domain.Document, content string) ([]domain.Chunk, error) {
	return []domain.Chunk{c.newChunk(doc, content, "config", true)}, nil
}

// chunkAssetRows emits one chunk per data row with columns flattened into
// chunk metadata, so asset lookups can filter on any column.
func (c *Chunker) chunkAssetRows(doc *domain.Document, content string) ([]domain.Chunk, error) {
	lines := nonEmptyLines(content)
	if len(lines) < 2 {
		return nil, fmt.Errorf("asset document %s needs a header and at least one row", doc.Name)
	}
	cols := splitRow(lines[0])

	var chunks []domain.Chunk
	for i, line := range lines[1:] {
		values := splitRow(line)
		var parts []string
		ch := c.newChunk(doc, "", "", false)
		for j, col := range cols {
			if j >= len(values) || values[j] == "" {
				continue
			}
			parts = append(parts, col+": "+values[j])
			if f, err := strconv.ParseFloat(values[j], 64); err == nil {
				ch.Numeric[col] = f
			} else {
				ch.Metadata[col] = values[j]
			}
		}
		ch.Text = strings.Join(parts, "; ")
		ch.RowStart = i + 1
		ch.RowEnd = i + 1
		ch.ID = chunkID(doc.ID, fmt.Sprintf("row-%d", i+1), ch.Text)
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

// warnMissingSections flags vocabulary labels marked expected that a
// sectioned document did not produce. A missing section is a data-quality
// signal, not an ingestion failure.
func (c *Chunker) warnMissingSections(doc *domain.Document, sections []section) {
	seen := make(map[string]bool, len(sections))
	for _, sec := range sections {
		seen[sec.label] = true
	}
	for _, label := range c.vocab.ExpectedLabels() {
		if !seen[label] {
			slog.Warn("expected section missing", "document", doc.Name, "section", label)
		}
	}
}

type section struct {
	label string
	text  string
}

func (c *Chunker) splitSections(content string) []section {
	var sections []section
	current := section{label: "preamble"}
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			current.text = text
			sections = append(sections, current)
		}
		buf = nil
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if looksLikeHeading(trimmed) {
			if label, ok := c.vocab.Match(trimmed); ok {
				flush()
				current = section{label: label}
				continue
			}
		}
		buf = append(buf, line)
	}
	flush()
	return sections
}

// looksLikeHeading filters candidate lines before vocabulary lookup: short,
// no terminal punctuation.
func looksLikeHeading(line string) bool {
	if line == "" || len(line) > 80 {
		return false
	}
	return !strings.HasSuffix(line, ".") && !strings.HasSuffix(line, ",")
}

func (c *Chunker) newChunk(doc *domain.Document, text, label string, keyInfo bool) domain.Chunk {
	meta := make(map[string]string, len(doc.Metadata)+3)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	if doc.Category != "" {
		meta["category"] = doc.Category
	}
	if label != "" {
		meta["section"] = label
	}
	meta["key_info"] = strconv.FormatBool(keyInfo)

	numeric := make(map[string]float64, len(doc.Numeric))
	for k, v := range doc.Numeric {
		numeric[k] = v
	}

	return domain.Chunk{
		ID:           chunkID(doc.ID, label, text),
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Collection:   doc.Collection,
		Text:         text,
		SectionLabel: label,
		KeyInfo:      keyInfo,
		Metadata:     meta,
		Numeric:      numeric,
	}
}

func chunkID(docID, label, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID+"|"+label+"|"+text)).String()
}

func nonEmptyLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func splitRow(line string) []string {
	sep := ","
	if strings.Contains(line, "\t") {
		sep = "\t"
	}
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(parts[i]), `"`)
	}
	return parts
}

func firstSentence(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	return sentences[0]
}

var _ ports.Chunker = (*Chunker)(nil)
