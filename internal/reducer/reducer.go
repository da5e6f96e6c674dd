// Package reducer performs the final restoration: every placeholder in the
// polished text is substituted back with the original value recorded by the
// masker. Substitution is literal, never pattern-based, and processes
// longest placeholders first.
package reducer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/valpere/masktran/internal/registry"
)

// ErrUnmappedPlaceholder is returned when the restored text still contains a
// [[…]] token the registry knows nothing about. Emitting it silently would
// hand a bare placeholder to the reader, so the segment fails instead.
var ErrUnmappedPlaceholder = fmt.Errorf("unmapped placeholder in output")

var tagRe = regexp.MustCompile(`\[\[.*?\]\]`)

// Reduce substitutes every registry placeholder occurring in text with its
// original value and returns the restored text. Non-placeholder content is
// untouched. A [[…]] token with no registry entry is an error: either the
// entry went missing (corruption) or a collaborator invented a token that
// never passed tag validation.
//
// The unmapped check runs before substitution so that an original value that
// happens to contain bracket pairs (an odd URL, say) cannot trip it.
func Reduce(text string, reg *registry.Registry) (string, error) {
	var unmapped []string
	for _, tok := range tagRe.FindAllString(text, -1) {
		if !reg.Has(tok) {
			unmapped = append(unmapped, tok)
		}
	}
	if len(unmapped) > 0 {
		// Diagnostics carry the tokens only; originals never enter messages.
		return "", fmt.Errorf("%w: %s", ErrUnmappedPlaceholder, strings.Join(dedupe(unmapped), ", "))
	}

	restored := text
	for _, e := range reg.Entries() {
		restored = strings.ReplaceAll(restored, e.Placeholder, e.Original)
	}
	return restored, nil
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}
