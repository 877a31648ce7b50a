package index

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/munin/internal/models"
)

// Plan is a queryable plan entry.
type Plan struct {
	Path      string    `json:"path"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Status    string    `json:"status"`
	Topics    []string  `json:"topics"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is a queryable session entry.
type Session struct {
	Path   string   `json:"path"`
	Date   string   `json:"date"`
	Topics []string `json:"topics"`
	PlanID string   `json:"plan_id,omitempty"`
	Status string   `json:"status,omitempty"`
}

// Learned is a queryable learned-pattern entry.
type Learned struct {
	Path     string   `json:"path"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// PlanFilter narrows QueryPlans. All fields are optional and combine with
// logical AND; the zero filter matches every plan.
type PlanFilter struct {
	Status        string    // exact, validated against the closed enum
	Author        string    // case-insensitive substring
	Topic         string    // case-insensitive substring against any topic
	UpdatedAfter  time.Time // inclusive lower bound
	UpdatedBefore time.Time // inclusive upper bound
}

// SessionFilter narrows QuerySessions. Dates are YYYY-MM-DD strings, which
// order lexicographically. Fields combine with logical AND.
type SessionFilter struct {
	Date   string // exact date
	After  string // inclusive lower bound
	Before string // inclusive upper bound
	Topic  string // case-insensitive substring against any topic
	PlanID string // exact associated plan id
}

// QueryPlans returns plans matching f, ordered by path. An invalid status
// value is rejected with an InvalidEnum error; it is never silently
// ignored.
func (db *DB) QueryPlans(f PlanFilter) ([]Plan, error) {
	if f.Status != "" {
		if _, err := models.ParseStatus(f.Status); err != nil {
			return nil, err
		}
	}

	rows, err := db.conn.Query(`SELECT path, plan_id, title, author, status, topics, updated_at
		FROM plans ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: query plans: %w", err)
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		var p Plan
		var topicsJSON string
		if err := rows.Scan(&p.Path, &p.ID, &p.Title, &p.Author, &p.Status, &topicsJSON, &p.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(topicsJSON), &p.Topics)
		if p.Topics == nil {
			p.Topics = []string{}
		}
		if matchPlan(p, f) {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

func matchPlan(p Plan, f PlanFilter) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Author != "" && !containsFold(p.Author, f.Author) {
		return false
	}
	if f.Topic != "" && !anyTopicMatch(p.Topics, f.Topic) {
		return false
	}
	if !f.UpdatedAfter.IsZero() && p.UpdatedAt.Before(f.UpdatedAfter) {
		return false
	}
	if !f.UpdatedBefore.IsZero() && p.UpdatedAt.After(f.UpdatedBefore) {
		return false
	}
	return true
}

// QuerySessions returns sessions matching f, ordered by date then path.
func (db *DB) QuerySessions(f SessionFilter) ([]Session, error) {
	rows, err := db.conn.Query(`SELECT path, date, topics, plan_id, status
		FROM sessions ORDER BY date, path`)
	if err != nil {
		return nil, fmt.Errorf("index: query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var topicsJSON string
		if err := rows.Scan(&s.Path, &s.Date, &topicsJSON, &s.PlanID, &s.Status); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(topicsJSON), &s.Topics)
		if s.Topics == nil {
			s.Topics = []string{}
		}
		if matchSession(s, f) {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}

func matchSession(s Session, f SessionFilter) bool {
	if f.Date != "" && s.Date != f.Date {
		return false
	}
	if f.After != "" && s.Date < f.After {
		return false
	}
	if f.Before != "" && s.Date > f.Before {
		return false
	}
	if f.Topic != "" && !anyTopicMatch(s.Topics, f.Topic) {
		return false
	}
	if f.PlanID != "" && s.PlanID != f.PlanID {
		return false
	}
	return true
}

// QueryLearned returns learned patterns, optionally narrowed by category.
func (db *DB) QueryLearned(category string) ([]Learned, error) {
	rows, err := db.conn.Query(`SELECT path, category, keywords FROM learned ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: query learned: %w", err)
	}
	defer rows.Close()

	var out []Learned
	for rows.Next() {
		var l Learned
		var kwJSON string
		if err := rows.Scan(&l.Path, &l.Category, &kwJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(kwJSON), &l.Keywords)
		if l.Keywords == nil {
			l.Keywords = []string{}
		}
		if category == "" || containsFold(l.Category, category) {
			out = append(out, l)
		}
	}
	return out, rows.Err()
}

// PlanPathByID resolves a plan id to its document path.
func (db *DB) PlanPathByID(id string) (string, bool, error) {
	var path string
	err := db.conn.QueryRow(`SELECT path FROM plans WHERE plan_id = ? ORDER BY path LIMIT 1`, id).Scan(&path)
	if err != nil {
		return "", false, nil
	}
	return path, true, nil
}

// SessionPathByDate resolves a session date to its document path.
func (db *DB) SessionPathByDate(date string) (string, bool, error) {
	var path string
	err := db.conn.QueryRow(`SELECT path FROM sessions WHERE date = ? ORDER BY path LIMIT 1`, date).Scan(&path)
	if err != nil {
		return "", false, nil
	}
	return path, true, nil
}

// PlanIDs returns every known plan id, for not-found suggestions.
func (db *DB) PlanIDs() ([]string, error) {
	return db.stringColumn(`SELECT DISTINCT plan_id FROM plans ORDER BY plan_id`)
}

// SessionDates returns every known session date, for not-found suggestions.
func (db *DB) SessionDates() ([]string, error) {
	return db.stringColumn(`SELECT DISTINCT date FROM sessions ORDER BY date`)
}

func (db *DB) stringColumn(query string) ([]string, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func anyTopicMatch(topics []string, needle string) bool {
	for _, t := range topics {
		if containsFold(t, needle) {
			return true
		}
	}
	return false
}
