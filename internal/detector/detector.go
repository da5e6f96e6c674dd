// Package detector wraps lingua-go language detection. The workflow uses it
// as a free local gate inside QualityCheck: a candidate translation that is
// not even written in the target language is rejected before an inspector
// call is spent on it.
package detector

import (
	"fmt"
	"regexp"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

var tagRe = regexp.MustCompile(`\[\[.*?\]\]`)

// minCheckLength is the minimum rune count required to attempt language
// detection. Shorter texts produce unreliable results and pass unchecked.
const minCheckLength = 20

// Detector detects the language of a text. The underlying lingua detector is
// expensive to build; reuse the instance across segments.
type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
	}
}

// DetectISO returns the ISO 639-1 code of the detected language.
func (d *Detector) DetectISO(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// CheckTarget verifies that text appears to be written in targetLang (an ISO
// 639-1 code). Empty text fails; short or ambiguous texts pass without
// validation; placeholder tokens are stripped first so they cannot skew
// detection. When the detected language differs the error names both codes.
func (d *Detector) CheckTarget(text, targetLang string) (bool, error) {
	if targetLang == "" {
		return true, nil
	}

	if strings.TrimSpace(text) == "" {
		return false, fmt.Errorf("translation is empty")
	}

	// Strip placeholder tokens so they cannot skew detection. A candidate
	// that is nothing but placeholders has no prose to check.
	trimmed := strings.TrimSpace(tagRe.ReplaceAllString(text, ""))
	if trimmed == "" {
		return true, nil
	}

	// Detector is unreliable for very short texts; skip validation.
	if len([]rune(trimmed)) < minCheckLength {
		return true, nil
	}

	detected, ok := d.DetectISO(trimmed)
	if !ok {
		return true, nil
	}
	if !strings.EqualFold(detected, targetLang) {
		return false, fmt.Errorf("expected %s but detected %s", targetLang, detected)
	}
	return true, nil
}
