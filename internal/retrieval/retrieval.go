// Package retrieval supplies terminology and translation-memory context for a
// segment before it enters translation. The pipeline only depends on the
// Retriever interface; the bundled backend is a SQLite store, but a lexical
// index or vector store can implement the same two read-only methods.
package retrieval

import "context"

// TermMatch is one glossary hit: a source term that must be translated to a
// fixed target term. Read-only once attached to a segment.
type TermMatch struct {
	Term        string
	Translation string
}

// TmMatch is one translation-memory hit: a prior source/target sentence pair
// used as a style and consistency reference. Read-only once attached.
type TmMatch struct {
	Source string
	Target string
}

// Retriever answers context queries for a fixed language pair. Both methods
// are side-effect-free from the pipeline's perspective and return matches in
// relevance order.
type Retriever interface {
	ExactTermMatch(ctx context.Context, text string) ([]TermMatch, error)
	HybridMatch(ctx context.Context, text string) ([]TmMatch, error)
}

// Empty is a Retriever with no data behind it, for runs without a store.
type Empty struct{}

func (Empty) ExactTermMatch(ctx context.Context, text string) ([]TermMatch, error) {
	return nil, nil
}

func (Empty) HybridMatch(ctx context.Context, text string) ([]TmMatch, error) {
	return nil, nil
}
