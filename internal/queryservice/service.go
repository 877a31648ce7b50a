// Package queryservice is the façade every surface (CLI, HTTP, MCP) calls.
// It owns the freshness contract: before any read the knowledge root is
// scanned, the newest source mtime is compared against the index watermark,
// and a stale index is rebuilt before the query runs. Callers never see
// stale answers and never manage the index themselves.
package queryservice

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/munin/internal/apperr"
	"github.com/starford/munin/internal/index"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/mutate"
	"github.com/starford/munin/internal/scanner"
	"github.com/starford/munin/internal/storage"
)

const dateLayout = "2006-01-02"

// defaultSessionWindow is how far back Sessions looks when the caller gives
// no date constraint.
const defaultSessionWindow = 7 * 24 * time.Hour

// Service wires the scanner, index, and mutation engine behind one API.
type Service struct {
	root   string
	store  storage.Provider
	db     *index.DB
	engine *mutate.Engine
	logger *slog.Logger
	now    func() time.Time
}

// New creates a service over the knowledge root.
func New(root string, store storage.Provider, db *index.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		root:   root,
		store:  store,
		db:     db,
		engine: mutate.New(store, db, logger),
		logger: logger,
		now:    time.Now,
	}
}

// PlansQuery filters the plan listing. Dates are YYYY-MM-DD strings.
type PlansQuery struct {
	Status        string
	Author        string
	Topic         string
	UpdatedAfter  string
	UpdatedBefore string
}

// SessionsQuery filters the session listing. DaysBack is sugar for
// After = today minus N days. With no date constraint the listing defaults
// to the last seven days.
type SessionsQuery struct {
	Date     string
	After    string
	Before   string
	Topic    string
	PlanID   string
	DaysBack int
}

// Plans lists plans matching q, refreshing the index first.
func (s *Service) Plans(q PlansQuery) ([]index.Plan, error) {
	if err := s.ensureFresh(); err != nil {
		return nil, err
	}

	f := index.PlanFilter{Status: q.Status, Author: q.Author, Topic: q.Topic}
	var err error
	if f.UpdatedAfter, err = parseDate(q.UpdatedAfter, "updated-after"); err != nil {
		return nil, err
	}
	if f.UpdatedBefore, err = parseDate(q.UpdatedBefore, "updated-before"); err != nil {
		return nil, err
	}
	return s.db.QueryPlans(f)
}

// Sessions lists sessions matching q, refreshing the index first. Dates are
// validated up front so a typo fails loudly instead of matching nothing.
func (s *Service) Sessions(q SessionsQuery) ([]index.Session, error) {
	if err := s.ensureFresh(); err != nil {
		return nil, err
	}

	for _, d := range []struct{ name, val string }{
		{"date", q.Date}, {"after", q.After}, {"before", q.Before},
	} {
		if _, err := parseDate(d.val, d.name); err != nil {
			return nil, err
		}
	}

	f := index.SessionFilter{
		Date:   q.Date,
		After:  q.After,
		Before: q.Before,
		Topic:  q.Topic,
		PlanID: q.PlanID,
	}
	if q.DaysBack > 0 && f.After == "" {
		f.After = s.now().AddDate(0, 0, -q.DaysBack).Format(dateLayout)
	}
	if f.Date == "" && f.After == "" && f.Before == "" {
		f.After = s.now().Add(-defaultSessionWindow).Format(dateLayout)
	}
	return s.db.QuerySessions(f)
}

// Learned lists learned patterns, optionally narrowed by category.
func (s *Service) Learned(category string) ([]index.Learned, error) {
	if err := s.ensureFresh(); err != nil {
		return nil, err
	}
	return s.db.QueryLearned(category)
}

// Search runs a relevance-ranked search. An empty scope means all
// categories.
func (s *Service) Search(query, scope string, limit int) ([]models.SearchResult, error) {
	sc, err := models.ParseScope(scope)
	if err != nil {
		return nil, err
	}
	if err := s.ensureFresh(); err != nil {
		return nil, err
	}
	return s.db.Search(query, sc, limit)
}

// Scan walks the knowledge root and returns the classified inventory. It
// never touches the index.
func (s *Service) Scan() models.ScanResult {
	return scanner.Scan(s.root)
}

// Read returns the raw content of a knowledge document by root-relative
// path.
func (s *Service) Read(rel string) ([]byte, error) {
	data, err := s.store.Read(rel)
	if err != nil {
		return nil, apperr.NotFound(fmt.Sprintf("no document at %s", rel))
	}
	return data, nil
}

// Mutate applies one mutation and refreshes the index so the change is
// immediately queryable.
func (s *Service) Mutate(req mutate.Request) (models.MutationResult, error) {
	// Resolution goes through the index; it has to be fresh first.
	if err := s.ensureFresh(); err != nil {
		return models.MutationResult{}, err
	}
	res, err := s.engine.Apply(req)
	if err != nil {
		return models.MutationResult{}, err
	}
	if res.Updated {
		if err := s.Rebuild(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Rebuild unconditionally rebuilds the index from a fresh scan.
func (s *Service) Rebuild() error {
	scan := scanner.Scan(s.root)
	return index.Rebuild(s.db, s.store, scan, s.logger)
}

// ensureFresh rebuilds the index when any source file is newer than the
// rebuild watermark.
func (s *Service) ensureFresh() error {
	scan := scanner.Scan(s.root)
	stale, err := s.db.Stale(scan.NewestModTime())
	if err != nil {
		return err
	}
	if !stale {
		return nil
	}
	s.logger.Debug("index stale, rebuilding", slog.Int("documents", scan.Total))
	return index.Rebuild(s.db, s.store, scan, s.logger)
}

func parseDate(val, name string) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, apperr.Usage(fmt.Sprintf("invalid %s date %q, want YYYY-MM-DD", name, val))
	}
	return ts, nil
}
