// Package chromem adapts chromem-go, a pure-Go embedded vector database, to
// the memory.Store interface. All facts live in a single collection;
// project, category and the timestamps travel as document metadata so the
// native where-filter can match on category equality.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/membridge/membridge/memory"
)

const collectionName = "facts"

// Metadata keys attached to every stored document.
const (
	metaProject   = "project"
	metaCategory  = "category"
	metaSource    = "source"
	metaUserID    = "user_id"
	metaCreatedAt = "created_at"
	metaExpiresAt = "expires_at"
)

// Config configures the store.
type Config struct {
	// Path is the on-disk location of the database. Empty keeps everything
	// in memory (tests, throwaway runs).
	Path string

	// Compress gzip-compresses persisted documents.
	Compress bool

	// Dimensions is the embedding size, fixed by the embedding provider
	// for the lifetime of the store. Required; scans probe the collection
	// with a vector of this size.
	Dimensions int

	// UserID is stamped on every document. The deployment is single-user;
	// the tag is informational provenance, not a filter dimension.
	UserID string
}

// Store is the chromem-go implementation of memory.Store.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimensions int
	userID     string
}

// New opens (or creates) the fact collection.
func New(cfg Config) (*Store, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("chromem store: dimensions must be positive, got %d", cfg.Dimensions)
	}

	var db *chromem.DB
	var err error
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	}

	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	return &Store{
		db:         db,
		collection: col,
		dimensions: cfg.Dimensions,
		userID:     cfg.UserID,
	}, nil
}

// Insert persists a fact. chromem adds the document under a write lock, so
// the vector and its metadata become visible to readers together.
func (s *Store) Insert(ctx context.Context, fact *memory.Fact) error {
	if len(fact.Embedding) != s.dimensions {
		return fmt.Errorf("embedding dimension mismatch: got %d, store uses %d", len(fact.Embedding), s.dimensions)
	}

	doc := chromem.Document{
		ID:        fact.ID,
		Content:   fact.Text,
		Embedding: fact.Embedding,
		Metadata:  s.encodeMetadata(fact),
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	log.Printf("[CHROMEM] Stored fact id=%s project=%s category=%s", fact.ID, fact.Project, fact.Category)
	return nil
}

// Query returns up to limit facts by descending cosine similarity.
// chromem rejects result counts larger than the candidate set, so the limit
// is clamped to the collection size and walked down when a where-filter
// shrinks the set further.
func (s *Store) Query(ctx context.Context, embedding []float32, limit int, where map[string]string) ([]memory.Result, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	var raw []chromem.Result
	for n := limit; n >= 1; n-- {
		var err error
		raw, err = s.collection.QueryEmbedding(ctx, embedding, n, where, nil)
		if err == nil {
			break
		}
		if isTooFewDocsError(err) {
			if n == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	results := make([]memory.Result, 0, len(raw))
	for _, r := range raw {
		fact, err := s.decodeResult(r)
		if err != nil {
			log.Printf("[CHROMEM] Skipping undecodable document %s: %v", r.ID, err)
			continue
		}
		results = append(results, memory.Result{Fact: fact, Similarity: r.Similarity})
	}
	return results, nil
}

// Scan returns every stored fact. chromem has no enumeration API, so the
// scan issues a similarity query sized to the full collection with a probe
// vector; ordering of the result is irrelevant to callers.
func (s *Store) Scan(ctx context.Context) ([]*memory.Fact, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	probe := make([]float32, s.dimensions)
	probe[0] = 1

	raw, err := s.collection.QueryEmbedding(ctx, probe, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("scan collection: %w", err)
	}

	facts := make([]*memory.Fact, 0, len(raw))
	for _, r := range raw {
		fact, err := s.decodeResult(r)
		if err != nil {
			log.Printf("[CHROMEM] Skipping undecodable document %s: %v", r.ID, err)
			continue
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

// Delete removes a fact by id. Missing ids map to memory.ErrNotFound so the
// manager can treat repeat deletes as no-ops.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.collection.GetByID(ctx, id); err != nil {
		return fmt.Errorf("%w: %s", memory.ErrNotFound, id)
	}
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	log.Printf("[CHROMEM] Deleted fact id=%s", id)
	return nil
}

// Close is a no-op for in-memory databases; persistent state is flushed on
// every write by chromem itself.
func (s *Store) Close() error {
	return nil
}

func (s *Store) encodeMetadata(fact *memory.Fact) map[string]string {
	meta := map[string]string{
		metaProject:   fact.Project,
		metaCategory:  fact.Category,
		metaCreatedAt: fact.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if fact.Source != "" {
		meta[metaSource] = fact.Source
	}
	if s.userID != "" {
		meta[metaUserID] = s.userID
	}
	if fact.ExpiresAt != nil {
		meta[metaExpiresAt] = fact.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return meta
}

func (s *Store) decodeResult(r chromem.Result) (*memory.Fact, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, r.Metadata[metaCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	fact := &memory.Fact{
		ID:        r.ID,
		Text:      r.Content,
		Embedding: r.Embedding,
		Project:   r.Metadata[metaProject],
		Category:  r.Metadata[metaCategory],
		Source:    r.Metadata[metaSource],
		CreatedAt: createdAt,
	}

	if raw, ok := r.Metadata[metaExpiresAt]; ok && raw != "" {
		expires, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		fact.ExpiresAt = &expires
	}
	return fact, nil
}

// isTooFewDocsError matches chromem's complaint when nResults exceeds the
// number of documents surviving the where-filter.
func isTooFewDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
