package memory

import (
	"context"
	"errors"
)

// Error kinds surfaced by the Manager. Transports map these to status
// signaling (bad request vs service unavailable); the underlying collaborator
// error stays in the chain for diagnostics.
var (
	// ErrEmbeddingUnavailable marks a failed call to the embedding provider.
	// The Manager never retries; retry policy belongs to the caller.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrStoreUnavailable marks a failed call to the vector store.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrNotFound is returned by Store implementations for missing ids.
	// Manager.Delete swallows it: deleting an absent fact is a no-op.
	ErrNotFound = errors.New("fact not found")

	// ErrInvalidInput marks malformed caller input (empty text,
	// non-positive limit, negative TTL).
	ErrInvalidInput = errors.New("invalid input")
)

// Embedder converts text to vector embeddings.
// Implementations: embedder/ollama (default), embedder/openai,
// embedder/onnx (offline, build-tagged), embedder/mock (testing).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Result is a fact returned from a similarity query together with its
// similarity to the query vector.
type Result struct {
	Fact       *Fact
	Similarity float32
}

// Store is the vector storage backend interface.
// Implementations: store/chromem (embedded, optionally persistent).
//
// The store treats project and category as opaque metadata strings. Its
// where-filter supports exact equality only; time comparisons (expiration)
// are the Manager's job.
type Store interface {
	// Insert persists a fact with its embedding. The write is atomic from
	// the caller's point of view: readers never observe a vector without
	// its metadata.
	Insert(ctx context.Context, fact *Fact) error

	// Query returns up to limit facts by descending similarity to the
	// given embedding. where, when non-nil, is an exact-match metadata
	// pre-filter (e.g. {"category": "preference"}).
	Query(ctx context.Context, embedding []float32, limit int, where map[string]string) ([]Result, error)

	// Scan returns every stored fact, expired ones included, in no
	// particular order.
	Scan(ctx context.Context) ([]*Fact, error)

	// Delete removes a fact by id. Deleting an absent id returns
	// ErrNotFound; callers that need idempotence ignore it.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
