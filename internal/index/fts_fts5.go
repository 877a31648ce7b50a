//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/munin/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS docs_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM docs_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

func ftsInsert(tx *sql.Tx, path, title, body string) error {
	_, err := tx.Exec(`INSERT INTO docs_fts (path, title, body) VALUES (?, ?, ?)`, path, title, body)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

// candidates narrows the scoring set with an FTS5 OR-query over the search
// words. Bucketed scoring still runs in Go; FTS only prunes documents that
// cannot match at all.
func (db *DB) candidates(scope models.Scope, words []string) ([]candidateDoc, error) {
	terms := make([]string, len(words))
	for i, w := range words {
		terms[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	match := strings.Join(terms, " OR ")

	query := `
		SELECT d.path, d.kind, d.title, d.body
		FROM documents d
		WHERE d.path IN (SELECT path FROM docs_fts WHERE docs_fts MATCH ?)`
	args := []any{match}
	if kinds := scopeKinds(scope); kinds != nil {
		query += ` AND d.kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	query += ` ORDER BY d.path`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: fts candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
