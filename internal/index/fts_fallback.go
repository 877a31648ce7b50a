//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/munin/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; search scores every document in scope.
	return nil
}

func ftsClear(_ *sql.Tx) error { return nil }

func ftsInsert(_ *sql.Tx, _, _, _ string) error { return nil }

// candidates returns every document in scope. Corpora are hundreds of
// files, so scoring all of them stays well under the soft latency budget.
func (db *DB) candidates(scope models.Scope, _ []string) ([]candidateDoc, error) {
	query := `SELECT path, kind, title, body FROM documents`
	var args []any
	if kinds := scopeKinds(scope); kinds != nil {
		query += ` WHERE kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	query += ` ORDER BY path`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
