package chunking

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary maps section headings to canonical labels. Loaded once at
// startup from a YAML file so new document families don't need a rebuild.
type Vocabulary struct {
	entries []vocabEntry
}

type vocabEntry struct {
	Label    string   `yaml:"label"`
	Aliases  []string `yaml:"aliases"`
	Expected bool     `yaml:"expected"`
}

type vocabFile struct {
	Sections []vocabEntry `yaml:"sections"`
}

func LoadVocabulary(path string) (*Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	return ParseVocabulary(raw)
}

func ParseVocabulary(raw []byte) (*Vocabulary, error) {
	var file vocabFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	v := &Vocabulary{}
	for _, e := range file.Sections {
		if e.Label == "" || len(e.Aliases) == 0 {
			return nil, fmt.Errorf("vocabulary entry needs label and aliases, got %+v", e)
		}
		lowered := make([]string, len(e.Aliases))
		for i, a := range e.Aliases {
			lowered[i] = strings.ToLower(strings.TrimSpace(a))
		}
		v.entries = append(v.entries, vocabEntry{Label: e.Label, Aliases: lowered, Expected: e.Expected})
	}
	return v, nil
}

// DefaultVocabulary covers the contract sections seen in practice; used when
// no vocabulary file is configured.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{entries: []vocabEntry{
		{Label: "parties", Aliases: []string{"parties", "between"}, Expected: true},
		{Label: "scope", Aliases: []string{"scope of work", "scope", "services"}},
		{Label: "payment_terms", Aliases: []string{"payment terms", "payment", "fees", "compensation"}, Expected: true},
		{Label: "term", Aliases: []string{"term and termination", "term", "duration"}, Expected: true},
		{Label: "deliverables", Aliases: []string{"deliverables", "milestones"}},
		{Label: "confidentiality", Aliases: []string{"confidentiality", "non-disclosure"}},
		{Label: "liability", Aliases: []string{"liability", "indemnification", "indemnity"}},
		{Label: "exclusivity", Aliases: []string{"exclusivity", "non-compete"}},
	}}
}

// ExpectedLabels lists the sections a sectioned document is expected to
// carry; absences are logged by the chunker for quality monitoring.
func (v *Vocabulary) ExpectedLabels() []string {
	var out []string
	for _, e := range v.entries {
		if e.Expected {
			out = append(out, e.Label)
		}
	}
	return out
}

// Match reports the canonical label for a heading line. Heading detection is
// the caller's job; Match only resolves the label.
func (v *Vocabulary) Match(line string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(line))
	// Markdown and setext markers come off before clause numbering so
	// "## 3. Payment Terms:" resolves like "Payment Terms".
	lower = strings.Trim(lower, "#*= ")
	lower = strings.TrimLeft(lower, "0123456789. )")
	lower = strings.TrimRight(lower, ":")
	lower = strings.TrimSpace(lower)
	for _, e := range v.entries {
		for _, a := range e.Aliases {
			if strings.HasPrefix(lower, a) {
				return e.Label, true
			}
		}
	}
	return "", false
}
