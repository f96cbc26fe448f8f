// Package cache wraps any memory.Embedder with a ristretto read-through
// cache keyed by the input text. Re-recording a fact, repeated searches for
// the same query and the CLI's context command all hit the provider once.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/membridge/membridge/memory"
)

// defaultMaxEntries bounds the cache; each entry costs 1.
const defaultMaxEntries = 4096

// Embedder decorates an inner embedder with caching.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache of at most maxEntries embeddings. A
// maxEntries of 0 uses the default bound.
func New(inner memory.Embedder, maxEntries int64) (*Embedder, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		// Counters ~10x max entries, per ristretto guidance.
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text if present, otherwise calls the
// inner embedder and caches the result. Provider errors are never cached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if emb, ok := v.([]float32); ok {
			return emb, nil
		}
	}

	embedding, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, embedding, 1)
	return embedding, nil
}

// Dimensions returns the inner embedder's size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}
