// membridge-mcp bridges the memory daemon into MCP-speaking assistants
// (Claude Desktop and similar). It runs over stdio and forwards every tool
// call to the daemon's HTTP API, so the daemon stays the single owner of
// the store.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	baseURL := os.Getenv("MEMBRIDGE_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8900"
	}
	api := newAPIClient(baseURL)

	s := server.NewMCPServer("membridge", "1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("save_memory",
		mcp.WithDescription("Save important information, preferences or decisions to persistent local memory. Use when the user expresses a preference, makes a project decision or asks to remember something."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The information to remember. Be specific and include context.")),
		mcp.WithString("project", mcp.Description("Project namespace, e.g. \"job-search\".")),
		mcp.WithString("category", mcp.Description("Category tag, e.g. \"preference\" or \"decision\".")),
		mcp.WithNumber("ttl_days", mcp.Description("Days until the memory expires. Omit to use the category default.")),
	), api.handleSave)

	s.AddTool(mcp.NewTool("search_memory",
		mcp.WithDescription("Search past memories by meaning. Use to recall the user's preferences, past decisions or anything they asked to remember."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to look for. A question or keywords.")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 5).")),
		mcp.WithString("project", mcp.Description("Restrict results to one project.")),
	), api.handleSearch)

	s.AddTool(mcp.NewTool("list_memories",
		mcp.WithDescription("List the most recently stored memories."),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10).")),
	), api.handleList)

	s.AddTool(mcp.NewTool("get_project_context",
		mcp.WithDescription("Load the stored context for a project. Use at the start of a conversation about that project."),
		mcp.WithString("project_name", mcp.Required(), mcp.Description("The project name, e.g. \"personal-crm\".")),
	), api.handleContext)

	s.AddTool(mcp.NewTool("memory_stats",
		mcp.WithDescription("Show how many memories are stored, broken down by category."),
	), api.handleStats)

	log.Printf("[MCP] Bridging stdio to %s", baseURL)
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}

func (c *apiClient) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"text":   content,
		"source": "mcp",
	}
	if p := req.GetString("project", ""); p != "" {
		body["project"] = p
	}
	if cat := req.GetString("category", ""); cat != "" {
		body["category"] = cat
	}
	if ttl := req.GetFloat("ttl_days", -1); ttl >= 0 {
		body["ttl_days"] = int(ttl)
	}

	var fact struct {
		ID       string `json:"id"`
		Project  string `json:"project"`
		Category string `json:"category"`
	}
	if err := c.post(ctx, "/add", body, &fact); err != nil {
		return mcp.NewToolResultError(daemonError(err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory saved to %s/%s: %s", fact.Project, fact.Category, truncate(content, 50))), nil
}

func (c *apiClient) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"q":     query,
		"limit": fmt.Sprint(int(req.GetFloat("limit", 5))),
	}
	if p := req.GetString("project", ""); p != "" {
		params["project"] = p
	}

	var resp struct {
		Results []struct {
			Text     string  `json:"text"`
			Category string  `json:"category"`
			Score    float32 `json:"score"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return mcp.NewToolResultError(daemonError(err)), nil
	}
	if len(resp.Results) == 0 {
		return mcp.NewToolResultText("No memories found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant memories:\n\n", len(resp.Results))
	for i, m := range resp.Results {
		fmt.Fprintf(&b, "%d. [%s] (relevance: %.2f)\n   %s\n\n", i+1, m.Category, m.Score, m.Text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *apiClient) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := map[string]string{
		"limit": fmt.Sprint(int(req.GetFloat("limit", 10))),
	}

	var resp struct {
		Facts []struct {
			ID       string `json:"id"`
			Text     string `json:"text"`
			Category string `json:"category"`
		} `json:"facts"`
	}
	if err := c.get(ctx, "/list", params, &resp); err != nil {
		return mcp.NewToolResultError(daemonError(err)), nil
	}
	if len(resp.Facts) == 0 {
		return mcp.NewToolResultText("No memories stored yet."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Showing %d memories:\n\n", len(resp.Facts))
	for i, m := range resp.Facts {
		fmt.Fprintf(&b, "%d. [%s] %s\n   ID: %s\n\n", i+1, m.Category, truncate(m.Text, 100), m.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *apiClient) handleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project_name")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Context string `json:"context"`
		Count   int    `json:"count"`
	}
	if err := c.get(ctx, "/context", map[string]string{"project": project, "limit": "10"}, &resp); err != nil {
		return mcp.NewToolResultError(daemonError(err)), nil
	}
	if resp.Count == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No memories found for project: %s", project)), nil
	}
	return mcp.NewToolResultText(resp.Context), nil
}

func (c *apiClient) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats struct {
		Total      int `json:"total"`
		ByCategory []struct {
			Category string `json:"category"`
			Count    int    `json:"count"`
		} `json:"by_category"`
	}
	if err := c.get(ctx, "/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(daemonError(err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Memory statistics:\nTotal memories: %d\n\nBy category:\n", stats.Total)
	for _, cat := range stats.ByCategory {
		fmt.Fprintf(&b, "  - %s: %d\n", cat.Category, cat.Count)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func daemonError(err error) string {
	return fmt.Sprintf("Local memory daemon is unreachable or failed: %v. Start it with 'membridged'.", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
