package index

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/starford/munin/internal/models"
)

// candidateDoc is one document considered for scoring.
type candidateDoc struct {
	Path  string
	Kind  string
	Title string
	Body  string
}

// Search runs a relevance-ranked full-text search over the index. Scoring
// is bucketed — exact phrase, all words, any word, substring — and the
// result order is deterministic for a given index state: score descending,
// then path ascending.
func (db *DB) Search(query string, scope models.Scope, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	phrase := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return nil, nil
	}

	docs, err := db.candidates(scope, words)
	if err != nil {
		return nil, err
	}

	var out []models.SearchResult
	for _, d := range docs {
		score, snippet, line := scoreDocument(phrase, words, d.Title, d.Body)
		if score == 0 {
			continue
		}
		out = append(out, models.SearchResult{
			Kind:    models.Kind(d.Kind),
			Path:    d.Path,
			Snippet: snippet,
			Line:    line,
			Score:   score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// scopeKinds maps a search scope to the document kinds it covers.
func scopeKinds(scope models.Scope) []string {
	switch scope {
	case models.ScopePlans:
		return []string{string(models.KindPlan), string(models.KindPointer)}
	case models.ScopeSessions:
		return []string{string(models.KindSession)}
	case models.ScopeLearned:
		return []string{string(models.KindLearned)}
	}
	return nil // all kinds
}

func scanCandidates(rows *sql.Rows) ([]candidateDoc, error) {
	var out []candidateDoc
	for rows.Next() {
		var d candidateDoc
		if err := rows.Scan(&d.Path, &d.Kind, &d.Title, &d.Body); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
