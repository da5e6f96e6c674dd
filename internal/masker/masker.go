// Package masker detects sensitive substrings (emails, IP addresses, URLs)
// and replaces each with a unique [[CATEGORY_SUFFIX]] placeholder, recording
// the mapping in the run's registry so the reducer can restore the originals
// after translation. Masked text is safe to hand to any translation backend.
package masker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/valpere/masktran/internal/registry"
)

// ErrMaskingFailed marks a fatal masking error: the input cannot be processed
// safely and no partially-masked text is returned.
var ErrMaskingFailed = fmt.Errorf("masking failed")

// categoryPattern pairs a mask category with its detection pattern.
// Order matters: URLs first so an address or IP embedded in a URL is consumed
// by the URL placeholder instead of producing nested masks.
type categoryPattern struct {
	category registry.Category
	re       *regexp.Regexp
}

var patterns = []categoryPattern{
	{registry.CategoryURL, regexp.MustCompile(`https?://[^\s]+`)},
	{registry.CategoryEmail, regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)},
	{registry.CategoryIP, regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
}

// Mask replaces every non-overlapping sensitive match in text with a fresh
// placeholder and records the mapping in reg. It returns the masked text.
// Re-masking already-masked text is a no-op with respect to the registry:
// the placeholder grammar does not match any category pattern.
func Mask(text string, reg *registry.Registry) (string, error) {
	if err := auditPatterns(); err != nil {
		return "", err
	}

	masked := text
	var substErr error

	for _, cp := range patterns {
		if substErr != nil {
			break
		}
		category := cp.category
		masked = cp.re.ReplaceAllStringFunc(masked, func(match string) string {
			if substErr != nil {
				return match
			}
			placeholder, err := newPlaceholder(category, reg)
			if err != nil {
				substErr = err
				return match
			}
			if err := reg.Add(registry.MaskEntry{
				Placeholder: placeholder,
				Original:    match,
				Category:    category,
			}); err != nil {
				substErr = err
				return match
			}
			return placeholder
		})
	}

	if substErr != nil {
		return "", fmt.Errorf("%w: %v", ErrMaskingFailed, substErr)
	}
	return masked, nil
}

// newPlaceholder generates a [[CATEGORY_XXXX]] token with a 4-hex-uppercase
// suffix, re-drawing on the (unlikely) collision with an existing entry.
func newPlaceholder(category registry.Category, reg *registry.Registry) (string, error) {
	const maxDraws = 16
	for i := 0; i < maxDraws; i++ {
		u := uuid.New()
		suffix := strings.ToUpper(fmt.Sprintf("%x", u[:2]))
		placeholder := fmt.Sprintf("[[%s_%s]]", category, suffix)
		if !reg.Has(placeholder) {
			return placeholder, nil
		}
	}
	return "", fmt.Errorf("could not generate unique placeholder for %s", category)
}

// auditPatterns verifies that no category pattern can match a placeholder
// token. If one did, re-masking would destroy the registry mapping, so the
// whole run must abort rather than proceed unsafely.
func auditPatterns() error {
	probe := "[[EMAIL_A1B2]] [[IP_C3D4]] [[URL_E5F6]]"
	for _, cp := range patterns {
		if cp.re.MatchString(probe) {
			return fmt.Errorf("%w: %s pattern matches placeholder grammar", ErrMaskingFailed, cp.category)
		}
	}
	return nil
}
