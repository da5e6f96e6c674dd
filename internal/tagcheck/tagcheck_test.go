package tagcheck_test

import (
	"strings"
	"testing"

	"github.com/valpere/masktran/internal/tagcheck"
)

func TestValidate_Consistent(t *testing.T) {
	res := tagcheck.Validate(
		"Contact [[EMAIL_A1B2]] at [[URL_C3D4]].",
		"请通过 [[URL_C3D4]] 联系 [[EMAIL_A1B2]]。",
	)
	if !res.OK {
		t.Errorf("expected OK, got missing=%v extra=%v", res.Missing, res.Extra)
	}
}

func TestValidate_MissingTag(t *testing.T) {
	res := tagcheck.Validate(
		"Contact [[EMAIL_A1B2]] now.",
		"现在就联系我们。",
	)
	if res.OK {
		t.Fatal("expected failure")
	}
	if len(res.Missing) != 1 || res.Missing[0] != "[[EMAIL_A1B2]]" {
		t.Errorf("expected missing [[EMAIL_A1B2]], got %v", res.Missing)
	}
	if len(res.Extra) != 0 {
		t.Errorf("expected no extra tags, got %v", res.Extra)
	}
}

func TestValidate_ExtraTag(t *testing.T) {
	res := tagcheck.Validate(
		"Plain sentence.",
		"Plain sentence with [[IP_FFFF]].",
	)
	if res.OK {
		t.Fatal("expected failure")
	}
	if len(res.Extra) != 1 || res.Extra[0] != "[[IP_FFFF]]" {
		t.Errorf("expected extra [[IP_FFFF]], got %v", res.Extra)
	}
}

func TestValidate_DuplicatesCollapse(t *testing.T) {
	// The same tag appearing twice in the candidate is set-equal to once.
	res := tagcheck.Validate(
		"Use [[URL_AAAA]] here.",
		"Use [[URL_AAAA]] and again [[URL_AAAA]].",
	)
	if !res.OK {
		t.Errorf("duplicate occurrences should be set-equal, got missing=%v extra=%v", res.Missing, res.Extra)
	}
}

func TestValidate_BothEmpty(t *testing.T) {
	if res := tagcheck.Validate("no tags.", "無標籤。"); !res.OK {
		t.Error("texts without tags must validate")
	}
}

func TestDiff(t *testing.T) {
	res := tagcheck.Validate("[[EMAIL_A1B2]]", "[[IP_C3D4]]")
	diff := res.Diff()
	if !strings.Contains(diff, "[[EMAIL_A1B2]]") || !strings.Contains(diff, "[[IP_C3D4]]") {
		t.Errorf("diff should name both tags, got %q", diff)
	}

	if ok := tagcheck.Validate("x", "y"); ok.Diff() != "" {
		t.Errorf("expected empty diff for OK result, got %q", ok.Diff())
	}
}

func TestTags_SortedDistinct(t *testing.T) {
	tags := tagcheck.Tags("[[URL_BB]] then [[EMAIL_AA]] then [[URL_BB]]")
	if len(tags) != 2 {
		t.Fatalf("expected 2 distinct tags, got %v", tags)
	}
	if tags[0] != "[[EMAIL_AA]]" || tags[1] != "[[URL_BB]]" {
		t.Errorf("expected sorted tags, got %v", tags)
	}
}
