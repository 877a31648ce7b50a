package api

import (
	"github.com/starford/munin/internal/index"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/mutate"
)

// Plan is a plan entry in API responses (aliased from the index layer).
type Plan = index.Plan

// Session is a session entry in API responses (aliased from the index layer).
type Session = index.Session

// Learned is a learned-pattern entry in API responses (aliased from the index layer).
type Learned = index.Learned

// PlanListResponse wraps plan listings.
type PlanListResponse struct {
	Plans []Plan `json:"plans" validate:"required"`
	Total int    `json:"total" example:"4" validate:"required"`
}

// SessionListResponse wraps session listings.
type SessionListResponse struct {
	Sessions []Session `json:"sessions" validate:"required"`
	Total    int       `json:"total" example:"7" validate:"required"`
}

// LearnedListResponse wraps learned-pattern listings.
type LearnedListResponse struct {
	Learned []Learned `json:"learned" validate:"required"`
	Total   int       `json:"total" example:"12" validate:"required"`
}

// SearchResponse wraps relevance-ranked search results.
type SearchResponse struct {
	Results []models.SearchResult `json:"results" validate:"required"`
}

// MutationRequest is the request body for POST /mutations.
type MutationRequest struct {
	Kind      string   `json:"kind" example:"plan" validate:"required"`
	Key       string   `json:"key" example:"auth" validate:"required"`
	AddTopics []string `json:"add_topics,omitempty"`
	AddFiles  []string `json:"add_files,omitempty"`
	SetStatus string   `json:"set_status,omitempty" example:"COMPLETE"`
	Content   string   `json:"content,omitempty"`
	Placement string   `json:"placement,omitempty" example:"append"`
	Section   string   `json:"section,omitempty" example:"Update"`
	Pattern   string   `json:"pattern,omitempty"`
	Shortcut  string   `json:"shortcut,omitempty" example:"done"`
}

func (r MutationRequest) toRequest() mutate.Request {
	return mutate.Request{
		Target:    mutate.Target{Kind: models.Kind(r.Kind), Key: r.Key},
		AddTopics: r.AddTopics,
		AddFiles:  r.AddFiles,
		SetStatus: r.SetStatus,
		Content:   r.Content,
		Placement: mutate.Placement(r.Placement),
		Section:   r.Section,
		Pattern:   r.Pattern,
		Shortcut:  r.Shortcut,
	}
}

// DocumentResponse is the raw content of one knowledge document.
type DocumentResponse struct {
	Path    string `json:"path" example:"PLAN_auth.md" validate:"required"`
	Content string `json:"content" validate:"required"`
}
