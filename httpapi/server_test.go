package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/membridge/membridge/config"
	"github.com/membridge/membridge/httpapi"
	"github.com/membridge/membridge/memory"
	"github.com/membridge/membridge/memory/embedder/mock"
	"github.com/membridge/membridge/memory/store/chromem"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	embedder := mock.New()
	store, err := chromem.New(chromem.Config{Dimensions: embedder.Dimensions(), UserID: "tester"})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	manager := memory.NewManager(store, embedder, memory.BuiltinRegistry())

	cfg := config.Config{UserID: "tester", AllowAnyOrigin: true}
	api := httpapi.New(cfg, manager, nil, httpapi.NewEventHub(nil), nil)

	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["status"] != "ok" || body["user_id"] != "tester" {
		t.Errorf("Unexpected health body: %v", body)
	}
}

func TestAddAndSearch(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/add", map[string]any{
		"text":     "prefers tabs over spaces",
		"project":  "general",
		"category": "preference",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var fact memory.Fact
	decodeBody(t, resp, &fact)
	if fact.ID == "" || fact.Text != "prefers tabs over spaces" {
		t.Errorf("Unexpected fact: %+v", fact)
	}

	resp, err := http.Get(srv.URL + "/search?q=" + "prefers+tabs+over+spaces")
	if err != nil {
		t.Fatalf("GET /search failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var search struct {
		Results []struct {
			ID    string  `json:"id"`
			Text  string  `json:"text"`
			Score float32 `json:"score"`
		} `json:"results"`
	}
	decodeBody(t, resp, &search)
	if len(search.Results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(search.Results))
	}
	if search.Results[0].ID != fact.ID {
		t.Errorf("Expected stored fact back, got %+v", search.Results[0])
	}
	if search.Results[0].Score < 0.99 {
		t.Errorf("Expected near-identical similarity for same text, got %v", search.Results[0].Score)
	}
}

func TestAddValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/add", map[string]any{"text": "   "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty text, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/add", map[string]any{"text": "x", "ttl_days": -3})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative ttl, got %d", resp.StatusCode)
	}

	for _, body := range []string{"{not json", "", `{"text":`} {
		raw, err := http.Post(srv.URL+"/add", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		raw.Body.Close()
		if raw.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400 for body %q, got %d", body, raw.StatusCode)
		}
	}
}

func TestSearchValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/search")
	if err != nil {
		t.Fatalf("GET /search failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing query, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/search?q=x&limit=abc")
	if err != nil {
		t.Fatalf("GET /search failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestListAndDelete(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/add", map[string]any{"text": "remember me"})
	var fact memory.Fact
	decodeBody(t, resp, &fact)

	resp, err := http.Get(srv.URL + "/list")
	if err != nil {
		t.Fatalf("GET /list failed: %v", err)
	}
	var list struct {
		Facts []memory.Fact `json:"facts"`
	}
	decodeBody(t, resp, &list)
	if len(list.Facts) != 1 || list.Facts[0].ID != fact.ID {
		t.Fatalf("Expected the stored fact in list, got %d", len(list.Facts))
	}

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/delete/"+fact.ID, nil)
	if err != nil {
		t.Fatalf("Build request: %v", err)
	}
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", delResp.StatusCode)
	}

	// Deleting an unknown id still succeeds.
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/delete/unknown-id", nil)
	delResp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for unknown id, got %d", delResp.StatusCode)
	}
}

func TestStatsAndPrune(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := postJSON(t, srv.URL+"/add", map[string]any{
			"text":     fmt.Sprintf("note %d", i),
			"category": "learning",
		})
		resp.Body.Close()
	}
	// Expires immediately, so it is prunable right away.
	resp := postJSON(t, srv.URL+"/add", map[string]any{"text": "ephemeral", "ttl_days": 0})
	resp.Body.Close()

	statsResp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats failed: %v", err)
	}
	var stats memory.Stats
	decodeBody(t, statsResp, &stats)
	if stats.Total != 4 {
		t.Errorf("Expected 4 total facts, got %d", stats.Total)
	}

	dryResp := postJSON(t, srv.URL+"/prune?dry_run=true", nil)
	var dry memory.PruneReport
	decodeBody(t, dryResp, &dry)
	if !dry.DryRun || dry.Pruned != 1 || dry.TotalAfter != dry.TotalBefore {
		t.Errorf("Unexpected dry run report: %+v", dry)
	}

	pruneResp := postJSON(t, srv.URL+"/prune", nil)
	var report memory.PruneReport
	decodeBody(t, pruneResp, &report)
	if report.Pruned != 1 || report.TotalAfter != 3 {
		t.Errorf("Unexpected prune report: %+v", report)
	}
}

func TestContext(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/context")
	if err != nil {
		t.Fatalf("GET /context failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without project, got %d", resp.StatusCode)
	}

	add := postJSON(t, srv.URL+"/add", map[string]any{
		"text":     "job-search targets backend roles",
		"project":  "job-search",
		"category": "role_preference",
	})
	add.Body.Close()

	resp, err = http.Get(srv.URL + "/context?project=job-search")
	if err != nil {
		t.Fatalf("GET /context failed: %v", err)
	}
	var body struct {
		Project string `json:"project"`
		Count   int    `json:"count"`
		Context string `json:"context"`
	}
	decodeBody(t, resp, &body)
	if body.Project != "job-search" || body.Count != 1 {
		t.Errorf("Unexpected context response: %+v", body)
	}
	if !strings.Contains(body.Context, "role_preference") {
		t.Errorf("Expected category in context block, got %q", body.Context)
	}
}

func TestFormatContext(t *testing.T) {
	empty := httpapi.FormatContext("side-project", nil)
	if !strings.Contains(empty, "side-project") {
		t.Errorf("Expected project name in empty block, got %q", empty)
	}

	block := httpapi.FormatContext("side-project", []memory.SearchResult{
		{Fact: &memory.Fact{Category: "decision", Text: "uses sqlite"}},
	})
	if !strings.Contains(block, "- [decision] uses sqlite") {
		t.Errorf("Unexpected block: %q", block)
	}
}
