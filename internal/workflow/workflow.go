// Package workflow drives masked segments through the translation state
// machine: Translate → TagCheck → QualityCheck → Polish → Restore, with
// bounded per-segment retries and failure escalation. Segments are processed
// concurrently and reassembled in their original order; a failing segment
// never aborts its siblings.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/valpere/masktran/internal/detector"
	"github.com/valpere/masktran/internal/masker"
	"github.com/valpere/masktran/internal/reducer"
	"github.com/valpere/masktran/internal/registry"
	"github.com/valpere/masktran/internal/retrieval"
	"github.com/valpere/masktran/internal/segmenter"
	"github.com/valpere/masktran/internal/tagcheck"
	"github.com/valpere/masktran/internal/translator"
)

// DefaultMaxRetries bounds re-translation attempts per segment.
const DefaultMaxRetries = 2

// Event is one entry of the per-stage observability stream. Detail carries
// placeholder tokens at most — registry originals never appear in events.
type Event struct {
	RunID   string
	Segment int // -1 for run-level events
	Stage   Stage
	Status  string
	Detail  string
}

// EventSink receives pipeline events. Sinks must be safe for concurrent use;
// segments emit from their own goroutines.
type EventSink func(Event)

// Config tunes one engine. Zero values select the defaults.
type Config struct {
	SourceLang   string
	TargetLang   string
	MaxRetries   int           // 0 selects DefaultMaxRetries
	CallTimeout  time.Duration // per external collaborator call, 0 = no limit
	RetryBackoff time.Duration // base delay before re-invoking a collaborator
	Events       EventSink
	Logger       *log.Logger
}

// MemoryWriter persists completed segment pairs. Satisfied by
// retrieval.Store; both sides are stored masked, so nothing sensitive ever
// reaches the memory backend.
type MemoryWriter interface {
	SaveToMemory(ctx context.Context, sourceLang, targetLang, sourceText, targetText string) error
}

// Deps are the engine's collaborators. Translator, Inspector, Polisher and
// Retriever are required; Detector and Memory are optional extras.
type Deps struct {
	Translator translator.Translator
	Inspector  translator.Inspector
	Polisher   translator.Polisher
	Retriever  retrieval.Retriever
	Detector   *detector.Detector
	Memory     MemoryWriter
}

// Segment is one sentence-level unit moving through the state machine. It is
// created by Run and mutated only by the engine goroutine that owns it.
type Segment struct {
	Index       int
	MaskedText  string
	Translation string
	RetryCount  int
	Stage       Stage
	Terms       []retrieval.TermMatch
	TmHints     []retrieval.TmMatch

	restored string
	failure  *SegmentError
}

// SegmentError is the diagnostic for a Failed segment: which gate rejected
// it and after how many attempts. Reasons reference placeholder tokens only.
type SegmentError struct {
	Stage    Stage
	Attempts int
	Reason   string
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment failed at %s after %d attempt(s): %s", e.Stage, e.Attempts, e.Reason)
}

// SegmentResult is the per-segment outcome in a Result. Text holds restored
// output for Done segments and the last-known masked text otherwise.
type SegmentResult struct {
	Index int
	Stage Stage
	Text  string
	Err   *SegmentError
}

// Result aggregates a run: Done and Failed segments with diagnostics, plus
// the ordered concatenation of all restored output.
type Result struct {
	RunID     string
	FinalText string
	Segments  []SegmentResult
	Done      int
	Failed    int
}

// Engine executes workflow runs. Safe for concurrent Run calls; each run
// owns its registry and segments.
type Engine struct {
	deps   Deps
	cfg    Config
	logger *log.Logger
}

func New(deps Deps, cfg Config) *Engine {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{deps: deps, cfg: cfg, logger: logger}
}

// Run masks rawText, segments it, processes every segment concurrently
// through the state machine and returns the aggregated result. Only masking
// failure aborts the run; per-segment failures are reported in the result.
func (e *Engine) Run(ctx context.Context, rawText string) (*Result, error) {
	runID := strings.ToLower(uuid.NewString()[:8])

	reg := registry.New()
	masked, err := masker.Mask(rawText, reg)
	if err != nil {
		// Fatal: emitting partially-masked output is never safe.
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	e.emit(Event{RunID: runID, Segment: -1, Stage: StageTranslate, Status: "run_start",
		Detail: fmt.Sprintf("masked %d value(s)", reg.Len())})

	pieces := segmenter.Split(masked)
	segments := make([]*Segment, len(pieces))
	for i, text := range pieces {
		segments[i] = &Segment{Index: i, MaskedText: text, Stage: StageTranslate}
	}

	var wg sync.WaitGroup
	for _, seg := range segments {
		wg.Add(1)
		go func(s *Segment) {
			defer wg.Done()
			e.processSegment(ctx, runID, reg, s)
		}(seg)
	}
	wg.Wait()

	return e.assemble(runID, segments), nil
}

// assemble builds the run result in original segment index order, regardless
// of completion order.
func (e *Engine) assemble(runID string, segments []*Segment) *Result {
	result := &Result{RunID: runID}
	var parts []string
	for _, seg := range segments {
		sr := SegmentResult{Index: seg.Index, Stage: seg.Stage, Err: seg.failure}
		if seg.Stage == StageDone {
			sr.Text = seg.restored
			parts = append(parts, seg.restored)
			result.Done++
		} else {
			sr.Text = seg.MaskedText
			result.Failed++
		}
		result.Segments = append(result.Segments, sr)
	}
	result.FinalText = joinSegments(parts)
	return result
}

func (e *Engine) processSegment(ctx context.Context, runID string, reg *registry.Registry, seg *Segment) {
	if err := e.assembleContext(ctx, runID, seg); err != nil {
		e.fail(runID, seg, StageTranslate, fmt.Sprintf("context assembly failed: %v", err))
		return
	}

	feedback := ""
	for !seg.Stage.Terminal() {
		if ctx.Err() != nil {
			e.fail(runID, seg, seg.Stage, "cancelled")
			return
		}

		switch seg.Stage {
		case StageTranslate:
			text, err := e.callTranslate(ctx, seg, feedback)
			if err != nil {
				e.retryOrFail(ctx, runID, seg, StageTranslate, StageTranslate, err.Error())
				continue
			}
			seg.Translation = text
			seg.Stage = StageTagCheck
			e.emit(Event{RunID: runID, Segment: seg.Index, Stage: StageTranslate, Status: "ok"})

		case StageTagCheck:
			res := tagcheck.Validate(seg.MaskedText, seg.Translation)
			if !res.OK {
				feedback = res.Diff()
				e.retryOrFail(ctx, runID, seg, StageTagCheck, StageTranslate, res.Diff())
				continue
			}
			seg.Stage = StageQualityCheck
			e.emit(Event{RunID: runID, Segment: seg.Index, Stage: StageTagCheck, Status: "pass"})

		case StageQualityCheck:
			// Local language gate first: no point spending an inspector call
			// on a candidate that is not even in the target language.
			if e.deps.Detector != nil {
				if ok, derr := e.deps.Detector.CheckTarget(seg.Translation, e.cfg.TargetLang); !ok {
					feedback = fmt.Sprintf("wrong output language: %v", derr)
					e.retryOrFail(ctx, runID, seg, StageQualityCheck, StageTranslate, feedback)
					continue
				}
			}

			verdict, err := e.callInspect(ctx, seg)
			if err != nil {
				e.retryOrFail(ctx, runID, seg, StageQualityCheck, StageQualityCheck, err.Error())
				continue
			}
			if !verdict.Approved {
				feedback = verdict.Reason
				e.retryOrFail(ctx, runID, seg, StageQualityCheck, StageTranslate, verdict.Reason)
				continue
			}
			seg.Stage = StagePolish
			e.emit(Event{RunID: runID, Segment: seg.Index, Stage: StageQualityCheck, Status: "approved"})

		case StagePolish:
			polished, err := e.callPolish(ctx, seg)
			if err != nil {
				e.retryOrFail(ctx, runID, seg, StagePolish, StagePolish, err.Error())
				continue
			}
			// A polish that breaks the tag set is discarded in favor of the
			// already-approved translation; restoration must only ever see
			// text that passed the tag gate.
			if res := tagcheck.Validate(seg.MaskedText, polished); res.OK {
				seg.Translation = polished
				e.emit(Event{RunID: runID, Segment: seg.Index, Stage: StagePolish, Status: "ok"})
			} else {
				e.emit(Event{RunID: runID, Segment: seg.Index, Stage: StagePolish, Status: "discarded", Detail: res.Diff()})
			}
			seg.Stage = StageRestore

		case StageRestore:
			restored, err := reducer.Reduce(seg.Translation, reg)
			if err != nil {
				e.fail(runID, seg, StageRestore, err.Error())
				continue
			}
			seg.restored = restored
			seg.Stage = StageDone
			e.emit(Event{RunID: runID, Segment: seg.Index, Stage: StageRestore, Status: "done"})
		}
	}

	if seg.Stage == StageDone && e.deps.Memory != nil {
		// Masked source and masked target: the memory backend never sees a
		// restored original.
		if err := e.deps.Memory.SaveToMemory(ctx, e.cfg.SourceLang, e.cfg.TargetLang, seg.MaskedText, seg.Translation); err != nil {
			e.logger.Warn("translation memory writeback failed", "run", runID, "segment", seg.Index, "err", err)
		}
	}
}

// assembleContext fetches terminology and translation-memory hints. The
// segment is not touched until both queries have succeeded.
func (e *Engine) assembleContext(ctx context.Context, runID string, seg *Segment) error {
	terms, err := e.deps.Retriever.ExactTermMatch(ctx, seg.MaskedText)
	if err != nil {
		return fmt.Errorf("term lookup: %w", err)
	}
	hints, err := e.deps.Retriever.HybridMatch(ctx, seg.MaskedText)
	if err != nil {
		return fmt.Errorf("memory lookup: %w", err)
	}
	seg.Terms = terms
	seg.TmHints = hints
	e.emit(Event{RunID: runID, Segment: seg.Index, Stage: StageTranslate, Status: "context",
		Detail: fmt.Sprintf("%d term(s), %d tm hint(s)", len(terms), len(hints))})
	return nil
}

// retryOrFail applies the shared retry bound: below the bound the segment
// moves to next (with a bounded backoff before the re-invocation), at the
// bound it fails with a diagnostic naming the gate that rejected it.
func (e *Engine) retryOrFail(ctx context.Context, runID string, seg *Segment, at Stage, next Stage, reason string) {
	if seg.RetryCount >= e.cfg.MaxRetries {
		e.fail(runID, seg, at, reason)
		return
	}
	seg.RetryCount++
	seg.Stage = next
	e.emit(Event{RunID: runID, Segment: seg.Index, Stage: at, Status: "retry",
		Detail: fmt.Sprintf("attempt %d: %s", seg.RetryCount, reason)})

	if !e.backoff(ctx, seg.RetryCount) {
		e.fail(runID, seg, at, "cancelled")
	}
}

// backoff waits before the next collaborator call, doubling with each retry
// up to a fixed cap. Returns false when the context is cancelled first.
func (e *Engine) backoff(ctx context.Context, attempt int) bool {
	delay := e.cfg.RetryBackoff << (attempt - 1)
	if max := e.cfg.RetryBackoff * 8; delay > max {
		delay = max
	}
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) fail(runID string, seg *Segment, at Stage, reason string) {
	seg.Stage = StageFailed
	seg.failure = &SegmentError{Stage: at, Attempts: seg.RetryCount + 1, Reason: reason}
	e.emit(Event{RunID: runID, Segment: seg.Index, Stage: at, Status: "failed", Detail: reason})
}

func (e *Engine) callTranslate(ctx context.Context, seg *Segment, feedback string) (string, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	return e.deps.Translator.Translate(callCtx, translator.Request{
		Text:          seg.MaskedText,
		SourceLang:    e.cfg.SourceLang,
		TargetLang:    e.cfg.TargetLang,
		Terms:         seg.Terms,
		TmHints:       seg.TmHints,
		PriorFeedback: feedback,
	})
}

func (e *Engine) callInspect(ctx context.Context, seg *Segment) (translator.Verdict, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	return e.deps.Inspector.Inspect(callCtx, seg.MaskedText, seg.Translation)
}

func (e *Engine) callPolish(ctx context.Context, seg *Segment) (string, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	return e.deps.Polisher.Polish(callCtx, seg.Translation)
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.CallTimeout)
}

func (e *Engine) emit(ev Event) {
	if e.cfg.Events != nil {
		e.cfg.Events(ev)
	}
	e.logger.Debug("stage event",
		"run", ev.RunID, "segment", ev.Segment, "stage", ev.Stage.String(),
		"status", ev.Status, "detail", ev.Detail)
}

// joinSegments concatenates restored segments in order. Latin sentences get
// a single separating space; a segment ending in a CJK terminator joins the
// next one directly.
func joinSegments(parts []string) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 && !endsWithCJKTerminator(parts[i-1]) {
			sb.WriteString(" ")
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func endsWithCJKTerminator(s string) bool {
	runes := []rune(s)
	if len(runes) == 0 {
		return false
	}
	switch runes[len(runes)-1] {
	case '。', '！', '？':
		return true
	}
	return false
}
