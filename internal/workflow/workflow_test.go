package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valpere/masktran/internal/retrieval"
	"github.com/valpere/masktran/internal/translator"
)

type fakeTranslator struct {
	mu       sync.Mutex
	calls    []translator.Request
	fn       func(req translator.Request, call int) (string, error)
}

func (f *fakeTranslator) Name() string { return "fake" }

func (f *fakeTranslator) Translate(_ context.Context, req translator.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(req, n)
	}
	return req.Text, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeInspector struct {
	fn func(sourceText, translatedText string) (translator.Verdict, error)
}

func (f *fakeInspector) Inspect(_ context.Context, sourceText, translatedText string) (translator.Verdict, error) {
	if f.fn != nil {
		return f.fn(sourceText, translatedText)
	}
	return translator.Verdict{Approved: true}, nil
}

type fakePolisher struct {
	fn func(text string) (string, error)
}

func (f *fakePolisher) Polish(_ context.Context, text string) (string, error) {
	if f.fn != nil {
		return f.fn(text)
	}
	return text, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) sink() EventSink {
	return func(ev Event) {
		l.mu.Lock()
		l.events = append(l.events, ev)
		l.mu.Unlock()
	}
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

type memoryRecorder struct {
	mu    sync.Mutex
	pairs [][2]string
}

func (m *memoryRecorder) SaveToMemory(_ context.Context, _, _, sourceText, targetText string) error {
	m.mu.Lock()
	m.pairs = append(m.pairs, [2]string{sourceText, targetText})
	m.mu.Unlock()
	return nil
}

func testConfig(events EventSink) Config {
	return Config{
		SourceLang:   "en",
		TargetLang:   "uk",
		RetryBackoff: time.Millisecond,
		Events:       events,
	}
}

func newTestEngine(tr *fakeTranslator, ins *fakeInspector, pol *fakePolisher, cfg Config) *Engine {
	return New(Deps{
		Translator: tr,
		Inspector:  ins,
		Polisher:   pol,
		Retriever:  retrieval.Empty{},
	}, cfg)
}

func TestRunIdentityRoundTrip(t *testing.T) {
	input := "Contact alice@example.com about the outage. The dashboard is at https://status.example.com/live now. Ping 192.168.0.12 if it is down."

	engine := newTestEngine(&fakeTranslator{}, &fakeInspector{}, &fakePolisher{}, testConfig(nil))
	result, err := engine.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Failed != 0 {
		t.Fatalf("expected no failed segments, got %d", result.Failed)
	}
	if result.Done != 3 {
		t.Errorf("expected 3 done segments, got %d", result.Done)
	}
	if result.FinalText != input {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", result.FinalText, input)
	}
}

func TestRunTagDropTriggersRetryWithFeedback(t *testing.T) {
	tr := &fakeTranslator{}
	tr.fn = func(req translator.Request, call int) (string, error) {
		if call == 1 {
			// Drop every placeholder on the first attempt.
			return "translated without tags", nil
		}
		return req.Text, nil
	}

	events := &eventLog{}
	engine := newTestEngine(tr, &fakeInspector{}, &fakePolisher{}, testConfig(events.sink()))

	result, err := engine.Run(context.Background(), "Write to bob@example.com today.")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Failed != 0 {
		t.Fatalf("expected recovery after retry, got %d failed", result.Failed)
	}
	if got := tr.callCount(); got != 2 {
		t.Fatalf("expected 2 translation attempts, got %d", got)
	}

	second := tr.calls[1]
	if !strings.Contains(second.PriorFeedback, "missing") {
		t.Errorf("second attempt should carry tag feedback, got %q", second.PriorFeedback)
	}
	if !strings.Contains(second.PriorFeedback, "[[EMAIL_") {
		t.Errorf("feedback should name the missing placeholder, got %q", second.PriorFeedback)
	}

	var sawRetry bool
	for _, ev := range events.all() {
		if ev.Stage == StageTagCheck && ev.Status == "retry" {
			sawRetry = true
		}
	}
	if !sawRetry {
		t.Error("expected a tag_check retry event")
	}
}

func TestRunQualityRejectionExhaustsRetries(t *testing.T) {
	// The second sentence is always rejected; the first must still complete.
	ins := &fakeInspector{fn: func(_, translatedText string) (translator.Verdict, error) {
		if strings.Contains(translatedText, "flaky") {
			return translator.Verdict{Approved: false, Reason: "reads unnaturally"}, nil
		}
		return translator.Verdict{Approved: true}, nil
	}}

	engine := newTestEngine(&fakeTranslator{}, ins, &fakePolisher{}, testConfig(nil))
	result, err := engine.Run(context.Background(), "The service is stable. The mirror is flaky.")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Done != 1 || result.Failed != 1 {
		t.Fatalf("expected 1 done and 1 failed, got %d/%d", result.Done, result.Failed)
	}

	failed := result.Segments[1]
	if failed.Err == nil {
		t.Fatal("failed segment should carry a diagnostic")
	}
	if failed.Err.Stage != StageQualityCheck {
		t.Errorf("expected quality_check failure, got %s", failed.Err.Stage)
	}
	if failed.Err.Attempts != DefaultMaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", DefaultMaxRetries+1, failed.Err.Attempts)
	}
	if !strings.Contains(failed.Err.Reason, "unnaturally") {
		t.Errorf("diagnostic should carry the rejection reason, got %q", failed.Err.Reason)
	}
	if result.FinalText != "The service is stable." {
		t.Errorf("final text should hold only completed segments, got %q", result.FinalText)
	}
}

func TestRunRetryBoundTerminates(t *testing.T) {
	tr := &fakeTranslator{fn: func(translator.Request, int) (string, error) {
		return "never any tags here", nil
	}}

	engine := newTestEngine(tr, &fakeInspector{}, &fakePolisher{}, testConfig(nil))
	result, err := engine.Run(context.Background(), "Reach ops@example.com for access.")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected the segment to fail, got %d failed", result.Failed)
	}
	if got := tr.callCount(); got != DefaultMaxRetries+1 {
		t.Errorf("expected exactly %d translation attempts, got %d", DefaultMaxRetries+1, got)
	}
	if result.Segments[0].Err.Stage != StageTagCheck {
		t.Errorf("expected tag_check failure, got %s", result.Segments[0].Err.Stage)
	}
}

func TestRunTranslatorErrorRetriesThenFails(t *testing.T) {
	tr := &fakeTranslator{fn: func(translator.Request, int) (string, error) {
		return "", errors.New("connection refused")
	}}

	engine := newTestEngine(tr, &fakeInspector{}, &fakePolisher{}, testConfig(nil))
	result, err := engine.Run(context.Background(), "One short sentence.")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected failure, got %d failed", result.Failed)
	}
	if got := tr.callCount(); got != DefaultMaxRetries+1 {
		t.Errorf("expected %d attempts before giving up, got %d", DefaultMaxRetries+1, got)
	}
	if !strings.Contains(result.Segments[0].Err.Reason, "connection refused") {
		t.Errorf("diagnostic should carry the transport error, got %q", result.Segments[0].Err.Reason)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newTestEngine(&fakeTranslator{}, &fakeInspector{}, &fakePolisher{}, testConfig(nil))
	result, err := engine.Run(ctx, "One sentence. Another sentence.")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Failed != 2 {
		t.Fatalf("expected all segments cancelled, got %d failed", result.Failed)
	}
	for _, seg := range result.Segments {
		if seg.Err == nil || seg.Err.Reason != "cancelled" {
			t.Errorf("segment %d: expected cancelled diagnostic, got %+v", seg.Index, seg.Err)
		}
	}
}

func TestRunPolishBreakingTagsIsDiscarded(t *testing.T) {
	pol := &fakePolisher{fn: func(string) (string, error) {
		return "polished away the tags", nil
	}}
	events := &eventLog{}
	engine := newTestEngine(&fakeTranslator{}, &fakeInspector{}, pol, testConfig(events.sink()))

	input := "Send findings to carol@example.com soon."
	result, err := engine.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Failed != 0 {
		t.Fatalf("polish must not fail the segment, got %d failed", result.Failed)
	}
	if result.FinalText != input {
		t.Errorf("expected fallback to the approved translation, got %q", result.FinalText)
	}

	var sawDiscard bool
	for _, ev := range events.all() {
		if ev.Stage == StagePolish && ev.Status == "discarded" {
			sawDiscard = true
		}
	}
	if !sawDiscard {
		t.Error("expected a polish discarded event")
	}
}

func TestRunEventsNeverCarryOriginals(t *testing.T) {
	ins := &fakeInspector{fn: func(_, _ string) (translator.Verdict, error) {
		return translator.Verdict{Approved: false, Reason: "too literal"}, nil
	}}
	events := &eventLog{}
	engine := newTestEngine(&fakeTranslator{}, ins, &fakePolisher{}, testConfig(events.sink()))

	if _, err := engine.Run(context.Background(), "Escalate to dave@example.com from 10.0.0.7."); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, ev := range events.all() {
		if strings.Contains(ev.Detail, "dave@example.com") || strings.Contains(ev.Detail, "10.0.0.7") {
			t.Fatalf("event leaked an original value: %+v", ev)
		}
	}
}

func TestRunMemoryWritebackStoresMaskedPairs(t *testing.T) {
	rec := &memoryRecorder{}
	engine := New(Deps{
		Translator: &fakeTranslator{},
		Inspector:  &fakeInspector{},
		Polisher:   &fakePolisher{},
		Retriever:  retrieval.Empty{},
		Memory:     rec,
	}, testConfig(nil))

	if _, err := engine.Run(context.Background(), "Notify erin@example.com immediately."); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.pairs) != 1 {
		t.Fatalf("expected 1 memory entry, got %d", len(rec.pairs))
	}
	source, target := rec.pairs[0][0], rec.pairs[0][1]
	if strings.Contains(source, "erin@example.com") || strings.Contains(target, "erin@example.com") {
		t.Fatal("memory writeback must only store masked text")
	}
	if !strings.Contains(source, "[[EMAIL_") {
		t.Errorf("stored source should keep its placeholder, got %q", source)
	}
}

func TestRunTermsAndHintsAttachedBeforeTranslate(t *testing.T) {
	tr := &fakeTranslator{}
	engine := New(Deps{
		Translator: tr,
		Inspector:  &fakeInspector{},
		Polisher:   &fakePolisher{},
		Retriever: staticRetriever{
			terms: []retrieval.TermMatch{{Term: "outage", Translation: "збій"}},
			tm:    []retrieval.TmMatch{{Source: "The outage is over.", Target: "Збій усунено."}},
		},
	}, testConfig(nil))

	if _, err := engine.Run(context.Background(), "The outage is resolved."); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := tr.callCount(); got != 1 {
		t.Fatalf("expected 1 translation call, got %d", got)
	}
	req := tr.calls[0]
	if len(req.Terms) != 1 || req.Terms[0].Translation != "збій" {
		t.Errorf("terminology not attached to the request: %+v", req.Terms)
	}
	if len(req.TmHints) != 1 {
		t.Errorf("tm hints not attached to the request: %+v", req.TmHints)
	}
}

type staticRetriever struct {
	terms []retrieval.TermMatch
	tm    []retrieval.TmMatch
}

func (s staticRetriever) ExactTermMatch(context.Context, string) ([]retrieval.TermMatch, error) {
	return s.terms, nil
}

func (s staticRetriever) HybridMatch(context.Context, string) ([]retrieval.TmMatch, error) {
	return s.tm, nil
}
