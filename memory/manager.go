package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// DefaultOverfetchFactor is the multiplier applied to a caller's limit when
// querying the vector store. Because project and expiration filtering happen
// after the similarity query (the store's where-filter only does exact
// equality), requesting exactly limit raw results could under-fill the
// response. Over-fetching bounds that risk probabilistically; it is a
// documented best-effort tradeoff, not a guarantee.
const DefaultOverfetchFactor = 3

// minOverfetchFactor is the floor; anything below defeats the post-filter.
const minOverfetchFactor = 2

// Manager owns the write path (embed + attach metadata + persist), the read
// path (embed query + vector search + post-filter + truncate), the
// expiration sweep and statistics. It is stateless between calls: the only
// shared mutable resource is the externally-owned Store, so every operation
// may run concurrently with the others.
type Manager struct {
	store     Store
	embedder  Embedder
	registry  *Registry
	overfetch int
	notifier  Notifier
	now       func() time.Time
}

// Option configures the manager.
type Option func(*Manager)

// WithOverfetchFactor overrides DefaultOverfetchFactor. Values below 2 are
// clamped; tests use low limits with a forced factor to exercise under-fill.
func WithOverfetchFactor(n int) Option {
	return func(m *Manager) {
		if n < minOverfetchFactor {
			n = minOverfetchFactor
		}
		m.overfetch = n
	}
}

// WithNotifier registers a notifier for store mutations.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithClock overrides the time source. Tests use it to advance past TTLs.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager. registry may be nil, in which case no
// category carries a default TTL.
func NewManager(store Store, embedder Embedder, registry *Registry, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		embedder:  embedder,
		registry:  registry,
		overfetch: DefaultOverfetchFactor,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordRequest is the write-path input.
type RecordRequest struct {
	Text     string
	Project  string
	Category string
	Source   string

	// TTLDays, when set, overrides any registry default. Zero is valid and
	// means "expires immediately"; negative values are rejected.
	TTLDays *int
}

// Record embeds the text, resolves the effective TTL (explicit TTL, then
// registry default, then none) and persists the fact as a single insert.
// Embedding failures are fatal for the call and never retried here.
func (m *Manager) Record(ctx context.Context, req RecordRequest) (*Fact, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}
	if req.TTLDays != nil && *req.TTLDays < 0 {
		return nil, fmt.Errorf("%w: negative ttl_days %d", ErrInvalidInput, *req.TTLDays)
	}

	project := req.Project
	if project == "" {
		project = DefaultProject
	}
	category := req.Category
	if category == "" {
		category = DefaultCategory
	}

	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	fact := newFact(text, project, category, req.Source, m.now())
	fact.Embedding = embedding

	ttlDays, haveTTL := 0, false
	if req.TTLDays != nil {
		ttlDays, haveTTL = *req.TTLDays, true
	} else {
		ttlDays, haveTTL = m.registry.DefaultTTL(project, category)
	}
	if haveTTL {
		expires := fact.CreatedAt.Add(time.Duration(ttlDays) * 24 * time.Hour)
		fact.ExpiresAt = &expires
	}

	if err := m.store.Insert(ctx, fact); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	log.Printf("[MEMORY] Recorded fact id=%s project=%s category=%s ttl_set=%t", fact.ID, project, category, haveTTL)
	m.notify(Event{Kind: EventRecorded, FactID: fact.ID, Project: project, Category: category, At: fact.CreatedAt})
	return fact, nil
}

// SearchRequest is the read-path input. Project and Category are optional
// filters; an empty string means "any".
type SearchRequest struct {
	Query    string
	Limit    int
	Project  string
	Category string
}

// SearchResult pairs a fact with its relevance to the query.
type SearchResult struct {
	Fact *Fact

	// Score is the cosine similarity reported by the store, i.e.
	// 1 - cosine distance. Higher is more relevant. The same normalization
	// applies to every transport.
	Score float32
}

// Search embeds the query, over-fetches Limit*overfetch nearest neighbors
// (with category pushed into the store filter when set), then drops
// non-matching projects and expired facts and truncates to Limit, keeping
// the store's similarity order.
//
// Callers must tolerate fewer than Limit results: post-filtering can thin
// the over-fetched candidate set and no second fetch is attempted.
func (m *Manager) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	if req.Limit <= 0 {
		return nil, fmt.Errorf("%w: non-positive limit %d", ErrInvalidInput, req.Limit)
	}

	embedding, err := m.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	// Category equality is the only predicate the store can evaluate
	// natively; it is an optimization, the post-filter below re-checks it.
	var where map[string]string
	if req.Category != "" {
		where = map[string]string{"category": req.Category}
	}

	candidates, err := m.store.Query(ctx, embedding, req.Limit*m.overfetch, where)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	now := m.now()
	results := make([]SearchResult, 0, req.Limit)
	for _, c := range candidates {
		if !m.visible(c.Fact, req.Project, req.Category, now) {
			continue
		}
		results = append(results, SearchResult{Fact: c.Fact, Score: c.Similarity})
		if len(results) == req.Limit {
			break
		}
	}

	log.Printf("[MEMORY] Search %q returned %d/%d after filtering %d candidates", truncateLog(req.Query, 50), len(results), req.Limit, len(candidates))
	return results, nil
}

// ListRequest is the input for recency listing.
type ListRequest struct {
	Limit   int
	Project string
}

// List returns the most recently created facts, newest first, applying the
// same project and expiration filtering as Search. No query embedding is
// computed. As with Search, fewer than Limit results may come back.
func (m *Manager) List(ctx context.Context, req ListRequest) ([]*Fact, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("%w: non-positive limit %d", ErrInvalidInput, req.Limit)
	}

	facts, err := m.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].CreatedAt.After(facts[j].CreatedAt)
	})

	now := m.now()
	out := make([]*Fact, 0, req.Limit)
	for _, f := range facts {
		if !m.visible(f, req.Project, "", now) {
			continue
		}
		out = append(out, f)
		if len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// visible applies the shared read-path post-filter: project match, category
// match, not expired.
func (m *Manager) visible(f *Fact, project, category string, now time.Time) bool {
	if f == nil {
		return false
	}
	if project != "" && f.Project != project {
		return false
	}
	if category != "" && f.Category != category {
		return false
	}
	return !f.Expired(now)
}

// PruneReport summarizes an expiration sweep.
type PruneReport struct {
	// Pruned is how many facts were (or, on a dry run, would be) deleted.
	Pruned int `json:"pruned_count"`

	// TotalBefore and TotalAfter are physical store totals around the
	// sweep. On a dry run nothing is deleted, so they are equal.
	TotalBefore int `json:"total_before"`
	TotalAfter  int `json:"total_after"`

	// ByCategory breaks the pruned set down by category.
	ByCategory map[string]int `json:"by_category"`

	DryRun bool `json:"dry_run"`
}

// Prune scans the store and deletes every expired fact unless dryRun is set.
// Deletion is idempotent per id but not atomic across ids; a sweep that
// fails midway leaves already-deleted facts gone. Retrieval correctness
// never depends on pruning, so a partial sweep is safe to rerun.
func (m *Manager) Prune(ctx context.Context, dryRun bool) (*PruneReport, error) {
	facts, err := m.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	now := m.now()
	report := &PruneReport{
		TotalBefore: len(facts),
		ByCategory:  make(map[string]int),
		DryRun:      dryRun,
	}

	var expired []*Fact
	for _, f := range facts {
		if f.Expired(now) {
			expired = append(expired, f)
			report.ByCategory[f.Category]++
		}
	}
	report.Pruned = len(expired)
	report.TotalAfter = report.TotalBefore

	if dryRun {
		log.Printf("[MEMORY] Prune dry run: %d of %d facts expired", report.Pruned, report.TotalBefore)
		return report, nil
	}

	for _, f := range expired {
		if err := m.store.Delete(ctx, f.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: delete %s: %w", ErrStoreUnavailable, f.ID, err)
		}
	}
	report.TotalAfter = report.TotalBefore - report.Pruned

	log.Printf("[MEMORY] Pruned %d expired facts (%d -> %d)", report.Pruned, report.TotalBefore, report.TotalAfter)
	if report.Pruned > 0 {
		m.notify(Event{Kind: EventPruned, Pruned: report.Pruned, At: now})
	}
	return report, nil
}

// CategoryCount is one row of a stats breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats aggregates counts over physical storage state. Expired-but-unpruned
// facts are counted on purpose so operators can see the pruning backlog.
type Stats struct {
	Total      int             `json:"total"`
	ByCategory []CategoryCount `json:"by_category"`
}

// ComputeStats scans all stored facts and groups them by category, sorted by
// descending count (ties alphabetical).
func (m *Manager) ComputeStats(ctx context.Context) (*Stats, error) {
	facts, err := m.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	counts := make(map[string]int)
	for _, f := range facts {
		counts[f.Category]++
	}

	byCategory := make([]CategoryCount, 0, len(counts))
	for category, count := range counts {
		byCategory = append(byCategory, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(byCategory, func(i, j int) bool {
		if byCategory[i].Count != byCategory[j].Count {
			return byCategory[i].Count > byCategory[j].Count
		}
		return byCategory[i].Category < byCategory[j].Category
	})

	return &Stats{Total: len(facts), ByCategory: byCategory}, nil
}

// Delete removes a fact by id. Deleting an id that does not exist (or was
// already deleted) succeeds silently.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	err := m.store.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	log.Printf("[MEMORY] Deleted fact id=%s", id)
	m.notify(Event{Kind: EventDeleted, FactID: id, At: m.now()})
	return nil
}

func (m *Manager) notify(ev Event) {
	if m.notifier != nil {
		m.notifier.Notify(ev)
	}
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
