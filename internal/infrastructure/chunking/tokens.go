package chunking

import (
	"regexp"
	"strings"
)

// estimateTokens approximates token count as len/4. Good enough to size
// chunks consistently without shipping a tokenizer model.
func estimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && s != "" {
		n = 1
	}
	return n
}

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// splitSentences breaks text on sentence punctuation, keeping the terminator
// with its sentence. Text without terminators comes back as a single element.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type packedWindow struct {
	Text          string
	OverlapTokens int
}

// packSentences groups sentences into windows of at most targetTokens,
// carrying roughly overlapTokens of trailing sentences into the next window.
// OverlapTokens on a window counts its leading repeated text.
func packSentences(sentences []string, targetTokens, overlapTokens int) []packedWindow {
	var windows []packedWindow
	var current []string
	currentTokens := 0
	leadingOverlap := 0

	for _, s := range sentences {
		st := estimateTokens(s)
		if currentTokens+st > targetTokens && currentTokens > 0 {
			windows = append(windows, packedWindow{
				Text:          strings.Join(current, " "),
				OverlapTokens: leadingOverlap,
			})

			var carry []string
			carryTokens := 0
			for i := len(current) - 1; i >= 0 && carryTokens < overlapTokens; i-- {
				carry = append([]string{current[i]}, carry...)
				carryTokens += estimateTokens(current[i])
			}
			if len(carry) == len(current) {
				// A window made of one oversized sentence carries nothing.
				carry = nil
				carryTokens = 0
			}
			current = carry
			currentTokens = carryTokens
			leadingOverlap = carryTokens
		}
		current = append(current, s)
		currentTokens += st
	}
	if len(current) > 0 && currentTokens > leadingOverlap {
		windows = append(windows, packedWindow{
			Text:          strings.Join(current, " "),
			OverlapTokens: leadingOverlap,
		})
	} else if len(windows) == 0 && len(current) > 0 {
		windows = append(windows, packedWindow{Text: strings.Join(current, " ")})
	}
	return windows
}
