package detector_test

import (
	"strings"
	"testing"

	"github.com/valpere/masktran/internal/detector"
)

func TestCheckTarget_EmptyTargetSkips(t *testing.T) {
	d := detector.New()
	ok, err := d.CheckTarget("anything at all", "")
	if !ok || err != nil {
		t.Errorf("empty target language must pass, got ok=%v err=%v", ok, err)
	}
}

func TestCheckTarget_EmptyTextFails(t *testing.T) {
	d := detector.New()
	ok, err := d.CheckTarget("   ", "zh")
	if ok || err == nil {
		t.Error("empty translation must fail")
	}
}

func TestCheckTarget_ShortTextPasses(t *testing.T) {
	d := detector.New()
	// Under the minimum length the detector is unreliable, so short texts pass.
	ok, err := d.CheckTarget("好的。", "en")
	if !ok || err != nil {
		t.Errorf("short text must pass unchecked, got ok=%v err=%v", ok, err)
	}
}

func TestCheckTarget_MatchingLanguage(t *testing.T) {
	d := detector.New()
	text := "这个翻译工作流具有高度的确定性，并且保证占位符标签在整个流程中保持一致。"
	ok, err := d.CheckTarget(text, "zh")
	if !ok {
		t.Errorf("expected Chinese text to pass for zh, got err=%v", err)
	}
}

func TestCheckTarget_WrongLanguage(t *testing.T) {
	d := detector.New()
	text := "This sentence is very clearly written in the English language and nothing else."
	ok, err := d.CheckTarget(text, "zh")
	if ok {
		t.Fatal("expected English text to fail for zh")
	}
	if err == nil || !strings.Contains(err.Error(), "zh") {
		t.Errorf("error should name the expected code, got %v", err)
	}
}

func TestDetectISO(t *testing.T) {
	d := detector.New()
	code, ok := d.DetectISO("The quick brown fox jumps over the lazy dog near the river bank.")
	if !ok {
		t.Fatal("expected detection to succeed")
	}
	if !strings.EqualFold(code, "en") {
		t.Errorf("expected en, got %s", code)
	}
}

func TestDetectISO_Empty(t *testing.T) {
	d := detector.New()
	if _, ok := d.DetectISO(""); ok {
		t.Error("empty text must not detect")
	}
}
