package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryInfo describes one category within a project.
type CategoryInfo struct {
	// Description is informational, surfaced by tooling.
	Description string `yaml:"description"`

	// TTLDays is the default time-to-live applied to facts recorded into
	// this category without an explicit TTL. Nil means never expires.
	TTLDays *int `yaml:"ttl_days"`
}

// Registry maps project -> category -> CategoryInfo. It is built once at
// startup and read-only afterwards; the Manager consults it on the write
// path only. Lookups for unknown pairs are not errors; the fact is simply
// stored without a default TTL.
type Registry struct {
	projects map[string]map[string]CategoryInfo
}

// NewRegistry copies the given mapping into an immutable registry.
func NewRegistry(projects map[string]map[string]CategoryInfo) *Registry {
	copied := make(map[string]map[string]CategoryInfo, len(projects))
	for project, categories := range projects {
		cats := make(map[string]CategoryInfo, len(categories))
		for name, info := range categories {
			cats[name] = info
		}
		copied[project] = cats
	}
	return &Registry{projects: copied}
}

// LoadRegistry reads a YAML file shaped as project -> category ->
// {description, ttl_days} and builds a registry from it.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	var projects map[string]map[string]CategoryInfo
	if err := yaml.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", path, err)
	}
	return NewRegistry(projects), nil
}

// DefaultTTL resolves the configured default TTL in days for a
// (project, category) pair. The second return value is false when no default
// is configured, in which case the fact never expires unless the caller
// supplied an explicit TTL.
func (r *Registry) DefaultTTL(project, category string) (int, bool) {
	if r == nil {
		return 0, false
	}
	categories, ok := r.projects[project]
	if !ok {
		return 0, false
	}
	info, ok := categories[category]
	if !ok || info.TTLDays == nil {
		return 0, false
	}
	return *info.TTLDays, true
}

// Projects returns the known project names. Used by tooling to present the
// configured schema; the store itself accepts any project string.
func (r *Registry) Projects() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.projects))
	for name := range r.projects {
		names = append(names, name)
	}
	return names
}

func days(n int) *int { return &n }

// BuiltinRegistry returns the default project/category schema shipped with
// membridge. Most categories never expire; job leads default to 30 days.
func BuiltinRegistry() *Registry {
	return NewRegistry(map[string]map[string]CategoryInfo{
		"content-refinery": {
			"content_preference":  {Description: "Style, format, platform preferences"},
			"publishing_decision": {Description: "What worked, what didn't, posting patterns"},
			"emotional_insight":   {Description: "Mood patterns, energy levels, triggers"},
			"source_learning":     {Description: "Insights from books, podcasts, commits"},
		},
		"job-search": {
			"role_preference":     {Description: "Target roles, companies, industries"},
			"application_insight": {Description: "What resonated in applications"},
			"interview_learning":  {Description: "Feedback, question patterns"},
			"match_feedback":      {Description: "Which matches were accurate"},
			"job_lead":            {Description: "Specific opportunities to pursue", TTLDays: days(30)},
		},
		"personal-crm": {
			"relationship_context":  {Description: "Key facts about contacts"},
			"communication_pattern": {Description: "Preferred channels, response times"},
			"voice_style":           {Description: "Writing patterns, greetings, closings"},
			"interaction_insight":   {Description: "What made conversations effective"},
		},
		"general": {
			"preference": {Description: "General preferences and settings"},
			"learning":   {Description: "General learnings and insights"},
			"decision":   {Description: "Decisions and their rationale"},
		},
	})
}
