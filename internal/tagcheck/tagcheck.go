// Package tagcheck compares the placeholder-tag population of a source
// segment against a candidate rewrite. It is the single hard gate before
// restoration: a candidate whose tag set differs from the source has lost or
// invented masked content, and restoring it would leak or destroy data.
package tagcheck

import (
	"regexp"
	"sort"
	"strings"
)

var tagRe = regexp.MustCompile(`\[\[.*?\]\]`)

// Result is the outcome of a tag-consistency check. Missing and Extra are
// sorted for stable diagnostics; duplicates collapse (set semantics).
type Result struct {
	OK      bool
	Missing []string // tags present in the source but absent from the candidate
	Extra   []string // tags present in the candidate but absent from the source
}

// Validate extracts the [[…]] tag sets of both texts and compares them
// order-insensitively. It is a pure function.
func Validate(sourceText, candidateText string) Result {
	source := tagSet(sourceText)
	candidate := tagSet(candidateText)

	var missing, extra []string
	for tag := range source {
		if !candidate[tag] {
			missing = append(missing, tag)
		}
	}
	for tag := range candidate {
		if !source[tag] {
			extra = append(extra, tag)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	return Result{
		OK:      len(missing) == 0 && len(extra) == 0,
		Missing: missing,
		Extra:   extra,
	}
}

// Diff renders the mismatch for use as re-translation feedback. Empty when
// the result is OK.
func (r Result) Diff() string {
	if r.OK {
		return ""
	}
	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(r.Missing, ", "))
	}
	if len(r.Extra) > 0 {
		parts = append(parts, "extra: "+strings.Join(r.Extra, ", "))
	}
	return "tag mismatch (" + strings.Join(parts, "; ") + ")"
}

// Tags returns the distinct placeholder tags in text, sorted.
func Tags(text string) []string {
	set := tagSet(text)
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func tagSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tag := range tagRe.FindAllString(text, -1) {
		set[tag] = true
	}
	return set
}
