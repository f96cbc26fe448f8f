// Package extract condenses raw conversation text into a single storable
// fact. It is optional pre-processing in front of the memory core: the core
// stores whatever text it is handed and never calls an extractor itself.
package extract

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Extractor rewrites raw input into a condensed fact. Implementations must
// be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, raw string) (string, error)
}

// Passthrough returns the input unchanged. Used when no extraction model is
// configured.
type Passthrough struct{}

// Extract returns raw trimmed, with no rewriting.
func (Passthrough) Extract(_ context.Context, raw string) (string, error) {
	return strings.TrimSpace(raw), nil
}

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 300
)

const systemPrompt = `You condense raw notes or conversation snippets into a single memorable fact.

Rules:
- Output exactly one plain sentence, third person, present tense.
- Keep concrete details (names, numbers, tools, dates); drop filler and dialogue.
- Do not add information that is not in the input.
- Output only the sentence, nothing else.`

// Claude condenses text with the Anthropic Messages API.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Config configures the Claude extractor.
type Config struct {
	APIKey string

	// Model defaults to a current Sonnet model.
	Model string

	// MaxTokens caps the condensed output; facts are short by design.
	MaxTokens int64
}

// NewClaude creates a Claude-backed extractor.
func NewClaude(cfg Config) (*Claude, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("extract: anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Claude{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Extract sends the raw text to Claude and returns the condensed sentence.
// Failures surface to the caller; nothing is stored on error.
func (c *Claude) Extract(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("extract: empty input")
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(raw)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("extract: claude api: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("extract: empty model response")
	}

	log.Printf("[EXTRACT] Condensed %d chars into %d", len(raw), len(text))
	return text, nil
}
