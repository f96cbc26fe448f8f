// Package httpapi exposes the memory manager over a local HTTP server:
// JSON endpoints for the write and read paths, a Prometheus scrape
// endpoint and a websocket event feed.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/membridge/membridge/config"
	"github.com/membridge/membridge/extract"
	"github.com/membridge/membridge/memory"
	"github.com/membridge/membridge/observability"
)

const defaultLimit = 5

// Server routes HTTP requests to the memory manager.
type Server struct {
	cfg       config.Config
	manager   *memory.Manager
	extractor extract.Extractor
	hub       *EventHub
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

// New builds the server. extractor may be nil when extraction is not
// configured; hub and metrics may be nil in tests.
func New(cfg config.Config, manager *memory.Manager, extractor extract.Extractor, hub *EventHub, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		manager:   manager,
		extractor: extractor,
		hub:       hub,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// Router assembles the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.cfg.AllowAnyOrigin {
		r.Use(allowAllCORS)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.Handler().ServeHTTP(w, r)
	})
	r.Get("/events", s.handleEvents)

	r.Post("/add", s.handleAdd)
	r.Get("/search", s.handleSearch)
	r.Get("/list", s.handleList)
	r.Get("/context", s.handleContext)
	r.Get("/stats", s.handleStats)
	r.Post("/prune", s.handlePrune)
	r.Delete("/delete/{id}", s.handleDelete)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"user_id": s.cfg.UserID,
	})
}

type addRequest struct {
	Text     string `json:"text"`
	Project  string `json:"project,omitempty"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
	TTLDays  *int   `json:"ttl_days,omitempty"`

	// Extract runs the raw text through the configured extractor before
	// storing. Ignored when no extractor is available.
	Extract bool `json:"extract,omitempty"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	text := req.Text
	if req.Extract && s.extractor != nil {
		condensed, err := s.extractor.Extract(r.Context(), text)
		if err != nil {
			respondError(w, http.StatusServiceUnavailable, "extract_failed", err.Error())
			return
		}
		text = condensed
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	fact, err := s.manager.Record(r.Context(), memory.RecordRequest{
		Text:     text,
		Project:  req.Project,
		Category: req.Category,
		Source:   source,
		TTLDays:  req.TTLDays,
	})
	if err != nil {
		s.respondMemoryError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.FactsRecorded.Inc()
	}
	respondJSON(w, http.StatusCreated, fact)
}

type searchResponse struct {
	Results []searchHit `json:"results"`
}

type searchHit struct {
	*memory.Fact
	Score float32 `json:"score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := limitParam(q, defaultLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	start := time.Now()
	results, err := s.manager.Search(r.Context(), memory.SearchRequest{
		Query:    q.Get("q"),
		Limit:    limit,
		Project:  q.Get("project"),
		Category: q.Get("category"),
	})
	if s.metrics != nil {
		s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.Searches.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		s.respondMemoryError(w, err)
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{Fact: res.Fact, Score: res.Score})
	}
	respondJSON(w, http.StatusOK, searchResponse{Results: hits})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := limitParam(q, 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	facts, err := s.manager.List(r.Context(), memory.ListRequest{
		Limit:   limit,
		Project: q.Get("project"),
	})
	if err != nil {
		s.respondMemoryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"facts": facts})
}

// handleContext renders the facts most relevant to a project as a plain
// text block suitable for pasting into an assistant prompt.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	project := strings.TrimSpace(q.Get("project"))
	if project == "" {
		respondError(w, http.StatusBadRequest, "missing_project", "query parameter project is required")
		return
	}
	limit, err := limitParam(q, 10)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	results, err := s.manager.Search(r.Context(), memory.SearchRequest{
		Query:   project,
		Limit:   limit,
		Project: project,
	})
	if err != nil {
		s.respondMemoryError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"project": project,
		"count":   len(results),
		"context": FormatContext(project, results),
	})
}

// FormatContext renders search results as a bulleted text block grouped
// under the project name.
func FormatContext(project string, results []memory.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No stored context for project %q.", project)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Context for %s:\n", project)
	for _, res := range results {
		fmt.Fprintf(&b, "- [%s] %s\n", res.Fact.Category, res.Fact.Text)
	}
	return b.String()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.ComputeStats(r.Context())
	if err != nil {
		s.respondMemoryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_dry_run", err.Error())
			return
		}
		dryRun = parsed
	}

	report, err := s.manager.Prune(r.Context(), dryRun)
	if err != nil {
		s.respondMemoryError(w, err)
		return
	}
	if s.metrics != nil && !dryRun {
		s.metrics.FactsPruned.Add(float64(report.Pruned))
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Delete(r.Context(), id); err != nil {
		s.respondMemoryError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.FactsDeleted.Inc()
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "event feed not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.hub.Serve(conn)
}

// respondMemoryError maps manager error kinds onto HTTP statuses. Unknown
// errors are internal.
func (s *Server) respondMemoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, memory.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, memory.ErrEmbeddingUnavailable):
		respondError(w, http.StatusServiceUnavailable, "embedding_unavailable", err.Error())
	case errors.Is(err, memory.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func limitParam(q url.Values, fallback int) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("limit: %w", err)
	}
	return n, nil
}

// allowAllCORS opens the API to browser clients on any origin. The server
// binds to localhost for a single user; callers that expose it further set
// MEMBRIDGE_ALLOW_ANY_ORIGIN=false.
func allowAllCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
