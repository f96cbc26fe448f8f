// Package ollama embeds text through a local Ollama server. This is the
// default provider: nomic-embed-text runs fully offline on most machines.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const (
	// DefaultBaseURL is the stock Ollama listen address.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "nomic-embed-text"

	// DefaultDimensions is nomic-embed-text's output size.
	DefaultDimensions = 768

	requestTimeout = 60 * time.Second
)

// Embedder is the Ollama implementation of memory.Embedder.
type Embedder struct {
	client     *ollama.Client
	model      string
	dimensions int
}

// Config configures the embedder. Zero values fall back to the defaults
// above.
type Config struct {
	BaseURL    string
	Model      string
	Dimensions int
}

// New creates an Ollama embedder. It does not probe the server; the first
// Embed call surfaces connectivity problems.
func New(cfg Config) (*Embedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", cfg.BaseURL, err)
	}

	client := ollama.NewClient(parsed, &http.Client{Timeout: requestTimeout})
	return &Embedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: no embeddings returned for model %s", e.model)
	}
	return resp.Embeddings[0], nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
