// Package textsplit turns raw extracted document text into retrieval units:
// it segments text into sentences and groups consecutive sentences into
// fixed-size chunks. Both operations are pure functions with no state, so
// they are safe to call from any goroutine.
package textsplit

import (
	"regexp"
	"strings"
)

// sentencePattern matches one sentence: a run of non-terminator characters
// followed by a run of terminators and any trailing closing quotes/brackets.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+['")\]]*`)

// Sentences splits text into an ordered slice of non-empty sentence strings
// using punctuation-based boundary heuristics. A trailing fragment without a
// terminator (common in OCR output) is kept as its own sentence. Empty or
// whitespace-only input returns an empty slice, never an error.
func Sentences(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	matches := sentencePattern.FindAllStringIndex(trimmed, -1)
	if len(matches) == 0 {
		return []string{trimmed}
	}

	sentences := make([]string, 0, len(matches)+1)
	for _, m := range matches {
		if s := strings.TrimSpace(trimmed[m[0]:m[1]]); s != "" {
			sentences = append(sentences, s)
		}
	}

	// Anything after the last terminator is an unterminated fragment.
	if tail := strings.TrimSpace(trimmed[matches[len(matches)-1][1]:]); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}
