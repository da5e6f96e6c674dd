// Package segmenter splits masked text into sentence-level segments for
// independent translation. Both CJK (。！？) and Latin (.!?) terminators end a
// sentence; a boundary candidate that falls inside a [[…]] placeholder span is
// rejected so no placeholder is ever split across two segments.
package segmenter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var placeholderSpanRe = regexp.MustCompile(`\[\[.*?\]\]`)

// Split segments text at sentence-ending punctuation followed by optional
// whitespace. Segments are trimmed and empty segments dropped; the
// concatenation of all segments reproduces the text's content minus the
// inter-sentence whitespace, and every placeholder token lands in exactly
// one segment.
func Split(text string) []string {
	spans := placeholderSpanRe.FindAllStringIndex(text, -1)

	var segments []string
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if isTerminator(r) && !insideSpan(spans, i) {
			end := i + size
			seg := strings.TrimSpace(text[start:end])
			if seg != "" {
				segments = append(segments, seg)
			}
			// Consume the whitespace separating this sentence from the next.
			start = end
			for start < len(text) {
				ws, wsize := utf8.DecodeRuneInString(text[start:])
				if ws != ' ' && ws != '\t' && ws != '\n' && ws != '\r' {
					break
				}
				start += wsize
			}
			i = start
			continue
		}
		i += size
	}

	if rest := strings.TrimSpace(text[start:]); rest != "" {
		segments = append(segments, rest)
	}
	return segments
}

// CountPlaceholders returns the number of [[…]] tokens in text. Used to check
// that segmentation conserves the placeholder population.
func CountPlaceholders(text string) int {
	return len(placeholderSpanRe.FindAllString(text, -1))
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

// insideSpan reports whether byte offset pos falls strictly within any
// placeholder span (the span's closing bracket included, so a terminator that
// is part of the token never ends a sentence).
func insideSpan(spans [][]int, pos int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
		if s[0] > pos {
			break
		}
	}
	return false
}
