package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/valpere/masktran/internal/postprocess"
)

// ollamaClient is the shared HTTP plumbing for the Ollama-backed
// collaborators. Generation options are pinned from Options so identical
// input reproduces identical output.
type ollamaClient struct {
	opts   Options
	client *http.Client
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func newOllamaClient(opts Options) *ollamaClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOptions.BaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultOptions.Model
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	return &ollamaClient{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// generate runs one non-streaming completion. format may be "json" to force
// structured output, or empty for plain text.
func (c *ollamaClient) generate(ctx context.Context, prompt, format string) (string, error) {
	reqBody := ollamaRequest{
		Model:  c.opts.Model,
		Prompt: prompt,
		Stream: false,
		Format: format,
		Options: map[string]any{
			"temperature": c.opts.Temperature,
			"seed":        c.opts.Seed,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", c.opts.BaseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Response, nil
}

// OllamaTranslator translates masked segments through a local Ollama model.
type OllamaTranslator struct {
	c *ollamaClient
}

func NewOllamaTranslator(opts Options) *OllamaTranslator {
	return &OllamaTranslator{c: newOllamaClient(opts)}
}

func (t *OllamaTranslator) Name() string { return "ollama" }

func (t *OllamaTranslator) Translate(ctx context.Context, req Request) (string, error) {
	raw, err := t.c.generate(ctx, buildTranslationPrompt(req), "")
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}
	text := postprocess.Clean(raw)
	if text == "" {
		return "", fmt.Errorf("translation came back empty")
	}
	return text, nil
}

// OllamaInspector judges translation quality and returns a structured
// verdict. The model's JSON parsing stays inside this type; callers only see
// Verdict values.
type OllamaInspector struct {
	c *ollamaClient
}

func NewOllamaInspector(opts Options) *OllamaInspector {
	return &OllamaInspector{c: newOllamaClient(opts)}
}

func (i *OllamaInspector) Inspect(ctx context.Context, sourceText, translatedText string) (Verdict, error) {
	raw, err := i.c.generate(ctx, buildInspectionPrompt(sourceText, translatedText), "json")
	if err != nil {
		return Verdict{}, fmt.Errorf("inspection failed: %w", err)
	}
	return parseVerdict(raw)
}

func parseVerdict(raw string) (Verdict, error) {
	raw = strings.TrimSpace(raw)
	// Some models wrap the JSON in a fence despite format=json.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed struct {
		Approved bool   `json:"approved"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return Verdict{}, fmt.Errorf("failed to parse verdict: %w", err)
	}
	if !parsed.Approved && parsed.Reason == "" {
		parsed.Reason = "rejected without a stated reason"
	}
	return Verdict{Approved: parsed.Approved, Reason: parsed.Reason}, nil
}

// OllamaPolisher rewrites translations for fluency. A polish that comes back
// empty falls back to the input rather than erasing the segment.
type OllamaPolisher struct {
	c *ollamaClient
}

func NewOllamaPolisher(opts Options) *OllamaPolisher {
	return &OllamaPolisher{c: newOllamaClient(opts)}
}

func (p *OllamaPolisher) Polish(ctx context.Context, translatedText string) (string, error) {
	raw, err := p.c.generate(ctx, buildPolishPrompt(translatedText), "")
	if err != nil {
		return "", fmt.Errorf("polishing failed: %w", err)
	}
	polished := postprocess.Clean(raw)
	if polished == "" {
		return translatedText, nil
	}
	return polished, nil
}
