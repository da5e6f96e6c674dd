// Package translator defines the external collaborator contracts of the
// pipeline — translation, quality inspection, and polishing — together with
// Ollama and Google Cloud implementations. Collaborators only ever see
// masked text; the tag-consistency gate in the workflow protects against any
// of them dropping or inventing placeholder tokens.
package translator

import (
	"context"
	"time"

	"github.com/valpere/masktran/internal/retrieval"
)

// Options configures an LLM-backed collaborator. Temperature and Seed pin
// generation so repeated calls on identical input are reproducible.
type Options struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	Seed        int
}

// DefaultOptions is the deterministic profile used for translation and
// inspection. Seed 42 matches the profile the pipeline was tuned against.
var DefaultOptions = Options{
	BaseURL:     "http://localhost:11434",
	Model:       "llama3.2",
	Timeout:     120 * time.Second,
	Temperature: 0,
	Seed:        42,
}

// Request carries one masked segment into translation along with its
// assembled context. Terms and TmHints are read-only snapshots from the
// retrieval backend; PriorFeedback is the validator's tag diff or the
// inspector's rejection reason from a failed earlier attempt, empty on the
// first attempt.
type Request struct {
	Text          string
	SourceLang    string
	TargetLang    string
	Terms         []retrieval.TermMatch
	TmHints       []retrieval.TmMatch
	PriorFeedback string
}

// Translator produces a translation of a masked segment, preserving every
// placeholder token verbatim.
type Translator interface {
	Name() string
	Translate(ctx context.Context, req Request) (string, error)
}

// Verdict is the structured outcome of a quality inspection.
type Verdict struct {
	Approved bool
	Reason   string
}

// Inspector judges whether a translation of a masked segment is acceptable.
type Inspector interface {
	Inspect(ctx context.Context, sourceText, translatedText string) (Verdict, error)
}

// Polisher rewrites a translation for fluency while preserving meaning and
// placeholder tokens.
type Polisher interface {
	Polish(ctx context.Context, translatedText string) (string, error)
}
