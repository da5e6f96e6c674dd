package translator

import (
	"fmt"
	"strings"
)

// buildTranslationPrompt assembles the deterministic translation prompt:
// hard rules first, then the terminology the model must use, then translation
// memory pairs as style reference, then the segment itself. Prior feedback
// from a rejected attempt is appended as a correction instruction.
func buildTranslationPrompt(req Request) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `You are a professional, highly accurate translation engine.
Translate the given segment from %s to %s.

### CRITICAL RULES:
1. **Consistency**: Use the provided 'Terminology' for specific words.
2. **Tags/Placeholders**: Keep all placeholders like [[EMAIL_XXXX]] or [[URL_XXXX]] EXACTLY as they are. DO NOT translate, move, or modify them.
3. **Style**: Follow the style of the 'Translation Memory' if provided.
4. **Output**: Return ONLY the translated text. No explanations, no notes.

`, req.SourceLang, req.TargetLang)

	if len(req.Terms) > 0 {
		sb.WriteString("### Terminology Reference (MUST USE):\n")
		for _, t := range req.Terms {
			fmt.Fprintf(&sb, "- %s -> %s\n", t.Term, t.Translation)
		}
		sb.WriteString("\n")
	}

	if len(req.TmHints) > 0 {
		sb.WriteString("### Translation Memory (Style Reference):\n")
		for _, m := range req.TmHints {
			fmt.Fprintf(&sb, "Source: %s\nTarget: %s\n", m.Source, m.Target)
		}
		sb.WriteString("\n")
	}

	if req.PriorFeedback != "" {
		fmt.Fprintf(&sb, "### Correction Required:\nYour previous attempt was rejected: %s\nFix this in the new translation.\n\n", req.PriorFeedback)
	}

	fmt.Fprintf(&sb, "Target Segment: %s\n\nTranslated text:", req.Text)
	return sb.String()
}

// buildInspectionPrompt asks for a JSON verdict so the caller never has to
// sniff free text for approval markers.
func buildInspectionPrompt(sourceText, translatedText string) string {
	return fmt.Sprintf(`You are a translation quality inspector.
Check the translation below for serious grammar errors, omissions, and mistranslations.
Placeholders like [[EMAIL_XXXX]] stand for protected content and must appear unchanged; do not judge their wording.

Source:
%s

Translation:
%s

Respond ONLY in JSON:
{
  "approved": true|false,
  "reason": "one short sentence; empty when approved"
}`, sourceText, translatedText)
}

// buildPolishPrompt rewrites for fluency under the same tag-preservation
// contract the translator works under.
func buildPolishPrompt(translatedText string) string {
	return fmt.Sprintf(`You are a translation polishing expert.
Rewrite the text below so it reads naturally and fluently, while keeping the
meaning intact and every [[...]] placeholder EXACTLY as it appears.
If the text is already good, return it unchanged.
Output ONLY the polished text.

Text:
%s`, translatedText)
}
