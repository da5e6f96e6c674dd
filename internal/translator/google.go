package translator

import (
	"context"
	"fmt"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleTranslator is the non-LLM translation collaborator, backed by Google
// Cloud Translation. It cannot consume terminology or translation-memory
// context, and bracketed placeholders occasionally get reflowed by the API —
// the workflow's tag gate catches that and retries or fails the segment.
type GoogleTranslator struct {
	credentialsFile string
}

func NewGoogleTranslator(credentialsFile string) *GoogleTranslator {
	return &GoogleTranslator{credentialsFile: credentialsFile}
}

func (g *GoogleTranslator) Name() string { return "google" }

func (g *GoogleTranslator) Translate(ctx context.Context, req Request) (string, error) {
	targetTag, err := language.Parse(req.TargetLang)
	if err != nil {
		return "", fmt.Errorf("invalid target language: %w", err)
	}

	var opts []option.ClientOption
	if g.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(g.credentialsFile))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	var tOpts *translate.Options
	if req.SourceLang != "" && req.SourceLang != "auto" {
		sourceTag, err := language.Parse(req.SourceLang)
		if err != nil {
			return "", fmt.Errorf("invalid source language: %w", err)
		}
		tOpts = &translate.Options{Source: sourceTag, Format: translate.Text}
	} else {
		tOpts = &translate.Options{Format: translate.Text}
	}

	translations, err := client.Translate(ctx, []string{req.Text}, targetTag, tOpts)
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}
	if len(translations) == 0 {
		return "", fmt.Errorf("no translation returned")
	}
	return translations[0].Text, nil
}
