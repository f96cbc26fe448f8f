// Package app wires configuration into a ready memory manager. Both the
// daemon and the CLI go through here so embedder selection and store setup
// stay in one place.
package app

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/membridge/membridge/config"
	"github.com/membridge/membridge/extract"
	"github.com/membridge/membridge/memory"
	"github.com/membridge/membridge/memory/embedder/cache"
	"github.com/membridge/membridge/memory/embedder/mock"
	ollamaembed "github.com/membridge/membridge/memory/embedder/ollama"
	openaiembed "github.com/membridge/membridge/memory/embedder/openai"
	chromemstore "github.com/membridge/membridge/memory/store/chromem"
)

// NewEmbedder builds the configured embedding provider, wrapped in the
// ristretto cache unless caching is disabled.
func NewEmbedder(cfg config.Config) (memory.Embedder, func(), error) {
	var (
		inner memory.Embedder
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.EmbedProvider)) {
	case "", "ollama":
		inner, err = ollamaembed.New(ollamaembed.Config{
			BaseURL:    cfg.OllamaBaseURL,
			Model:      cfg.EmbedModel,
			Dimensions: cfg.EmbedDimensions,
		})
	case "openai":
		inner, err = openaiembed.New(openaiembed.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.EmbedModel,
			Dimensions: cfg.EmbedDimensions,
		})
	case "mock":
		if cfg.EmbedDimensions > 0 {
			inner = mock.NewWithDimensions(cfg.EmbedDimensions)
		} else {
			inner = mock.New()
		}
	default:
		return nil, nil, fmt.Errorf("invalid embed provider %q (expected ollama|openai|mock)", cfg.EmbedProvider)
	}
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[APP] Embedder %s ready (%d dimensions)", cfg.EmbedProvider, inner.Dimensions())

	if cfg.EmbedCacheSize < 0 {
		return inner, func() {}, nil
	}
	cached, err := cache.New(inner, cfg.EmbedCacheSize)
	if err != nil {
		return nil, nil, err
	}
	return cached, cached.Close, nil
}

// NewManager assembles the full stack: embedder, persistent store, registry
// and manager. The returned cleanup releases the store and cache.
func NewManager(cfg config.Config, opts ...memory.Option) (*memory.Manager, func(), error) {
	embedder, closeEmbedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		closeEmbedder()
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := chromemstore.New(chromemstore.Config{
		Path:       cfg.StorePath(),
		Dimensions: embedder.Dimensions(),
		UserID:     cfg.UserID,
	})
	if err != nil {
		closeEmbedder()
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	registry, err := cfg.Registry()
	if err != nil {
		closeEmbedder()
		store.Close()
		return nil, nil, fmt.Errorf("load categories: %w", err)
	}

	opts = append([]memory.Option{memory.WithOverfetchFactor(cfg.OverfetchFactor)}, opts...)
	manager := memory.NewManager(store, embedder, registry, opts...)

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Printf("[APP] Store close: %v", err)
		}
		closeEmbedder()
	}
	return manager, cleanup, nil
}

// NewExtractor returns the Claude extractor when an Anthropic key is
// configured, otherwise a passthrough.
func NewExtractor(cfg config.Config) (extract.Extractor, error) {
	if cfg.AnthropicAPIKey == "" {
		return extract.Passthrough{}, nil
	}
	return extract.NewClaude(extract.Config{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.ExtractModel,
	})
}
