package memory

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProject is the catch-all project assigned when a caller records a
// fact without one.
const DefaultProject = "general"

// DefaultCategory is assigned when a caller records a fact without a
// category.
const DefaultCategory = "general"

// Fact is a single stored memory record. All fields are fixed at creation;
// there is no update-in-place.
type Fact struct {
	// ID is the opaque unique identifier assigned at creation.
	ID string `json:"id"`

	// Text is the fact content.
	Text string `json:"text"`

	// Embedding is the vector derived from Text at write time. Its
	// dimension is fixed by the embedding provider for the lifetime of a
	// store.
	Embedding []float32 `json:"-"`

	// Project is the namespace the fact belongs to.
	Project string `json:"project"`

	// Category is the fact's semantic type within the project.
	Category string `json:"category"`

	// Source tags the originating client. Informational only; never
	// affects retrieval.
	Source string `json:"source,omitempty"`

	// CreatedAt is the insertion timestamp.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt, when set, is CreatedAt plus the resolved TTL. A fact
	// without it never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// newFact builds a fact with a fresh id. uuid collisions are treated as
// practically impossible, matching the id-uniqueness contract.
func newFact(text, project, category, source string, createdAt time.Time) *Fact {
	return &Fact{
		ID:        uuid.New().String(),
		Text:      text,
		Project:   project,
		Category:  category,
		Source:    source,
		CreatedAt: createdAt,
	}
}

// Expired reports whether the fact's lifetime has passed at the given
// instant. Facts without an expiration never expire.
func (f *Fact) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && f.ExpiresAt.Before(now)
}
