package postprocess_test

import (
	"testing"

	"github.com/valpere/masktran/internal/postprocess"
)

func TestClean_PlainTextUnchanged(t *testing.T) {
	text := "该工作流具有高度确定性。"
	if got := postprocess.Clean(text); got != text {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

func TestClean_ThinkingBlock(t *testing.T) {
	text := "<thinking>Let me consider the terminology.</thinking>该工作流具有高度确定性。"
	if got := postprocess.Clean(text); got != "该工作流具有高度确定性。" {
		t.Errorf("thinking block not removed: %q", got)
	}
}

func TestClean_TruncatedThinkingBlock(t *testing.T) {
	text := "结果在这里。<think>and then I was cut off"
	if got := postprocess.Clean(text); got != "结果在这里。" {
		t.Errorf("truncated thinking block not removed: %q", got)
	}
}

func TestClean_InstructionEcho(t *testing.T) {
	text := "Here is the translation: 该工作流具有高度确定性。"
	if got := postprocess.Clean(text); got != "该工作流具有高度确定性。" {
		t.Errorf("instruction echo not removed: %q", got)
	}
}

func TestClean_QuoteWrapping(t *testing.T) {
	text := `"该工作流具有高度确定性。"`
	if got := postprocess.Clean(text); got != "该工作流具有高度确定性。" {
		t.Errorf("quote wrapping not removed: %q", got)
	}
}

func TestClean_PlaceholdersPreserved(t *testing.T) {
	text := "Here is the translation: 请联系 [[EMAIL_A1B2]] 获取支持。"
	got := postprocess.Clean(text)
	if got != "请联系 [[EMAIL_A1B2]] 获取支持。" {
		t.Errorf("placeholder damaged by cleanup: %q", got)
	}
}

func TestClean_InnerQuotesKept(t *testing.T) {
	// Only a full outer wrap is stripped; quotes inside content stay.
	text := `He said "hello" to everyone.`
	if got := postprocess.Clean(text); got != text {
		t.Errorf("inner quotes must be kept, got %q", got)
	}
}

func TestClean_Empty(t *testing.T) {
	if got := postprocess.Clean(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
