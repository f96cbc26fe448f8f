// Package config loads runtime settings from the environment with safe
// local-first defaults, plus the optional category-registry YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/membridge/membridge/memory"
)

// Config contains all runtime settings for the membridge daemon and CLI.
type Config struct {
	BindAddr string
	DataDir  string
	UserID   string

	// EmbedProvider selects the embedder: "ollama", "openai" or "mock".
	EmbedProvider   string
	EmbedModel      string
	EmbedDimensions int
	OllamaBaseURL   string
	OpenAIAPIKey    string
	OpenAIBaseURL   string

	// EmbedCacheSize bounds the ristretto embedding cache; 0 uses the
	// package default, negative disables caching.
	EmbedCacheSize int64

	// AnthropicAPIKey enables the Claude extraction pre-processor when
	// set; empty leaves extraction as a passthrough.
	AnthropicAPIKey string
	ExtractModel    string

	OverfetchFactor int
	DefaultProject  string

	// CategoriesFile optionally overrides the built-in category registry.
	CategoriesFile string

	MetricsNamespace string
	AllowAnyOrigin   bool
}

// Load reads environment variables and applies defaults. The data directory
// defaults to ~/.membridge.
func Load() (Config, error) {
	home, _ := os.UserHomeDir()

	cfg := Config{
		BindAddr:         envOrDefault("MEMBRIDGE_BIND_ADDR", ":8900"),
		DataDir:          envOrDefault("MEMBRIDGE_DATA_DIR", filepath.Join(home, ".membridge")),
		UserID:           envOrDefault("MEMBRIDGE_USER_ID", "default"),
		EmbedProvider:    envOrDefault("MEMBRIDGE_EMBED_PROVIDER", "ollama"),
		EmbedModel:       os.Getenv("MEMBRIDGE_EMBED_MODEL"),
		OllamaBaseURL:    envOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:    strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		AnthropicAPIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		ExtractModel:     os.Getenv("MEMBRIDGE_EXTRACT_MODEL"),
		DefaultProject:   envOrDefault("MEMBRIDGE_DEFAULT_PROJECT", memory.DefaultProject),
		CategoriesFile:   os.Getenv("MEMBRIDGE_CATEGORIES_FILE"),
		MetricsNamespace: envOrDefault("MEMBRIDGE_METRICS_NAMESPACE", "membridge"),
	}

	var err error
	cfg.OverfetchFactor, err = intFromEnv("MEMBRIDGE_OVERFETCH_FACTOR", memory.DefaultOverfetchFactor)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbedDimensions, err = intFromEnv("MEMBRIDGE_EMBED_DIMENSIONS", 0)
	if err != nil {
		return Config{}, err
	}
	cacheSize, err := intFromEnv("MEMBRIDGE_EMBED_CACHE_SIZE", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbedCacheSize = int64(cacheSize)
	cfg.AllowAnyOrigin, err = boolFromEnv("MEMBRIDGE_ALLOW_ANY_ORIGIN", true)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Registry builds the category registry: the YAML file when configured,
// otherwise the built-in schema.
func (c Config) Registry() (*memory.Registry, error) {
	if c.CategoriesFile == "" {
		return memory.BuiltinRegistry(), nil
	}
	return memory.LoadRegistry(c.CategoriesFile)
}

// StorePath is the on-disk location of the vector database.
func (c Config) StorePath() string {
	return filepath.Join(c.DataDir, "chromem")
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
