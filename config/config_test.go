package config

import (
	"path/filepath"
	"testing"

	"github.com/membridge/membridge/memory"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"MEMBRIDGE_BIND_ADDR", "MEMBRIDGE_DATA_DIR", "MEMBRIDGE_USER_ID",
		"MEMBRIDGE_EMBED_PROVIDER", "MEMBRIDGE_OVERFETCH_FACTOR",
		"MEMBRIDGE_CATEGORIES_FILE", "MEMBRIDGE_ALLOW_ANY_ORIGIN",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BindAddr != ":8900" {
		t.Errorf("Unexpected bind addr %q", cfg.BindAddr)
	}
	if cfg.UserID != "default" {
		t.Errorf("Unexpected user id %q", cfg.UserID)
	}
	if cfg.EmbedProvider != "ollama" {
		t.Errorf("Unexpected provider %q", cfg.EmbedProvider)
	}
	if cfg.OverfetchFactor != memory.DefaultOverfetchFactor {
		t.Errorf("Unexpected overfetch factor %d", cfg.OverfetchFactor)
	}
	if !cfg.AllowAnyOrigin {
		t.Error("Expected permissive origin default for local use")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MEMBRIDGE_BIND_ADDR", "127.0.0.1:9000")
	t.Setenv("MEMBRIDGE_EMBED_PROVIDER", "mock")
	t.Setenv("MEMBRIDGE_OVERFETCH_FACTOR", "5")
	t.Setenv("MEMBRIDGE_ALLOW_ANY_ORIGIN", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:9000" || cfg.EmbedProvider != "mock" {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
	if cfg.OverfetchFactor != 5 {
		t.Errorf("Expected overfetch 5, got %d", cfg.OverfetchFactor)
	}
	if cfg.AllowAnyOrigin {
		t.Error("Expected origin check enabled")
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("MEMBRIDGE_OVERFETCH_FACTOR", "three")
	if _, err := Load(); err == nil {
		t.Error("Expected error for non-numeric overfetch factor")
	}
}

func TestRegistrySource(t *testing.T) {
	t.Setenv("MEMBRIDGE_CATEGORIES_FILE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	r, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry failed: %v", err)
	}
	if ttl, ok := r.DefaultTTL("job-search", "job_lead"); !ok || ttl != 30 {
		t.Errorf("Expected builtin registry, got ttl=%d ok=%t", ttl, ok)
	}

	cfg.CategoriesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.Registry(); err == nil {
		t.Error("Expected error for unreadable categories file")
	}
}

func TestStorePath(t *testing.T) {
	cfg := Config{DataDir: "/tmp/mb"}
	if got := cfg.StorePath(); got != filepath.Join("/tmp/mb", "chromem") {
		t.Errorf("Unexpected store path %q", got)
	}
}
