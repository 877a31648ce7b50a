// Package models defines the domain types for Munin.
package models

import (
	"time"

	"github.com/starford/munin/internal/apperr"
)

// Kind classifies a knowledge document by its role in the root directory.
type Kind string

// Document kinds.
const (
	KindSession Kind = "session"
	KindPlan    Kind = "plan"
	KindLearned Kind = "learned"
	KindPointer Kind = "pointer"
)

// Status is the plan lifecycle state. The set is closed; anything else is
// rejected with an InvalidEnum error naming the valid values.
type Status string

// Plan statuses.
const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusPlanned   Status = "PLANNED"
	StatusComplete  Status = "COMPLETE"
	StatusCancelled Status = "CANCELLED"
)

// ValidStatuses returns every allowed status value, in display order.
func ValidStatuses() []string {
	return []string{
		string(StatusActive),
		string(StatusPaused),
		string(StatusPlanned),
		string(StatusComplete),
		string(StatusCancelled),
	}
}

// ParseStatus validates s against the closed status set.
func ParseStatus(s string) (Status, error) {
	for _, v := range ValidStatuses() {
		if s == v {
			return Status(s), nil
		}
	}
	return "", apperr.InvalidEnum("status", s, ValidStatuses())
}

// Scope restricts a search to one document category.
type Scope string

// Search scopes.
const (
	ScopeAll      Scope = "all"
	ScopePlans    Scope = "plans"
	ScopeSessions Scope = "sessions"
	ScopeLearned  Scope = "learned"
)

// ParseScope validates s, treating the empty string as ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeAll, nil
	case ScopeAll, ScopePlans, ScopeSessions, ScopeLearned:
		return Scope(s), nil
	}
	valid := []string{string(ScopeAll), string(ScopePlans), string(ScopeSessions), string(ScopeLearned)}
	return "", apperr.InvalidEnum("scope", s, valid)
}

// FileInfo describes one markdown file discovered by the scanner.
type FileInfo struct {
	Name    string    `json:"name"`
	AbsPath string    `json:"abs_path"`
	RelPath string    `json:"rel_path"`
	Size    int64     `json:"size"`
	Kind    Kind      `json:"kind"`
	ModTime time.Time `json:"mod_time"`
}

// ScanResult is the outcome of one full walk of the knowledge root.
// Errors collects per-file failures; a failing file never aborts the scan.
type ScanResult struct {
	Sessions []FileInfo `json:"sessions"`
	Plans    []FileInfo `json:"plans"`
	Learned  []FileInfo `json:"learned"`
	Total    int        `json:"total"`
	Errors   []string   `json:"errors,omitempty"`
}

// NewestModTime returns the most recent modification time across every
// scanned file, or the zero time when the root is empty.
func (r ScanResult) NewestModTime() time.Time {
	var newest time.Time
	for _, group := range [][]FileInfo{r.Sessions, r.Plans, r.Learned} {
		for _, f := range group {
			if f.ModTime.After(newest) {
				newest = f.ModTime
			}
		}
	}
	return newest
}

// All returns every scanned file in scan order (sessions, plans, learned).
func (r ScanResult) All() []FileInfo {
	out := make([]FileInfo, 0, r.Total)
	out = append(out, r.Sessions...)
	out = append(out, r.Plans...)
	out = append(out, r.Learned...)
	return out
}

// SearchResult is one relevance-ranked hit. It is constructed per query and
// never persisted.
type SearchResult struct {
	Kind    Kind    `json:"kind"`
	Path    string  `json:"path"`
	Snippet string  `json:"snippet"`
	Line    int     `json:"line,omitempty"`
	Score   float64 `json:"score"`
}

// MutationResult reports the outcome of one mutation call.
type MutationResult struct {
	Updated  bool     `json:"updated"`
	FilePath string   `json:"file_path"`
	Message  string   `json:"message"`
	Changes  []string `json:"changes"`
}
