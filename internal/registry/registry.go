// Package registry holds the placeholder→original mappings for one workflow
// run. Entries are written once during masking and read-only afterwards; the
// registry is discarded with the run, so sensitive originals never outlive it.
package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Category labels the kind of sensitive content a placeholder stands for.
type Category string

const (
	CategoryEmail Category = "EMAIL"
	CategoryIP    Category = "IP"
	CategoryURL   Category = "URL"
)

// MaskEntry maps one placeholder token to the original value it replaced.
type MaskEntry struct {
	Placeholder string
	Original    string
	Category    Category
}

// Registry is the per-run placeholder store. It is not safe for concurrent
// mutation and never needs to be: all writes happen during masking, before
// segments are processed.
type Registry struct {
	entries []MaskEntry
	byToken map[string]int
}

func New() *Registry {
	return &Registry{byToken: make(map[string]int)}
}

// Add records a placeholder→original mapping. It rejects duplicate
// placeholders and any placeholder that is a prefix of (or prefixed by) an
// existing one — partial overlap would corrupt the literal substitution
// performed at restoration time.
func (r *Registry) Add(e MaskEntry) error {
	if e.Placeholder == "" {
		return fmt.Errorf("registry: empty placeholder")
	}
	if _, dup := r.byToken[e.Placeholder]; dup {
		return fmt.Errorf("registry: duplicate placeholder %s", e.Placeholder)
	}
	for _, existing := range r.entries {
		if strings.HasPrefix(existing.Placeholder, e.Placeholder) ||
			strings.HasPrefix(e.Placeholder, existing.Placeholder) {
			return fmt.Errorf("registry: placeholder %s overlaps %s", e.Placeholder, existing.Placeholder)
		}
	}
	r.byToken[e.Placeholder] = len(r.entries)
	r.entries = append(r.entries, e)
	return nil
}

// Lookup returns the entry for a placeholder token.
func (r *Registry) Lookup(placeholder string) (MaskEntry, bool) {
	i, ok := r.byToken[placeholder]
	if !ok {
		return MaskEntry{}, false
	}
	return r.entries[i], true
}

// Has reports whether the placeholder is known to this run.
func (r *Registry) Has(placeholder string) bool {
	_, ok := r.byToken[placeholder]
	return ok
}

// Entries returns a copy of all entries sorted longest-placeholder-first,
// the order the reducer substitutes in.
func (r *Registry) Entries() []MaskEntry {
	out := make([]MaskEntry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Placeholder) > len(out[j].Placeholder)
	})
	return out
}

func (r *Registry) Len() int {
	return len(r.entries)
}
