package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/munin/internal/frontmatter"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/storage"
)

// Meta keys.
const (
	metaWatermark = "watermark"
	metaRebuiltAt = "rebuilt_at"
)

// Rebuild replaces the whole derived index from a scan of the knowledge
// root. The replacement happens inside one transaction, so the index is
// never observed half-built. Per-file read and parse failures are logged
// and skipped; they never fail the rebuild.
func Rebuild(db *DB, store storage.Provider, scan models.ScanResult, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"documents", "plans", "sessions", "learned"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	for _, fi := range scan.All() {
		data, readErr := store.Read(fi.RelPath)
		if readErr != nil {
			logger.Warn("rebuild: read failed", slog.String("path", fi.RelPath), slog.String("error", readErr.Error()))
			continue
		}
		doc, parseErr := frontmatter.Parse(string(data))
		if parseErr != nil {
			// Best-effort: the body is still recovered, only typed
			// fields are lost for this file.
			logger.Warn("rebuild: frontmatter malformed", slog.String("path", fi.RelPath), slog.String("error", parseErr.Error()))
		}
		if err := insertDocument(tx, fi, doc); err != nil {
			return err
		}
	}

	newest := scan.NewestModTime()
	if err := setMeta(tx, metaWatermark, newest.Format(time.RFC3339Nano)); err != nil {
		return err
	}
	if err := setMeta(tx, metaRebuiltAt, time.Now().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit rebuild: %w", err)
	}
	logger.Debug("rebuild: done", slog.Int("documents", scan.Total))
	return nil
}

func insertDocument(tx *sql.Tx, fi models.FileInfo, doc *frontmatter.Doc) error {
	title := deriveTitle(doc)

	_, err := tx.Exec(`INSERT INTO documents (path, kind, title, body) VALUES (?, ?, ?, ?)`,
		fi.RelPath, string(fi.Kind), title, doc.Body)
	if err != nil {
		return fmt.Errorf("index: insert document %s: %w", fi.RelPath, err)
	}
	if err := ftsInsert(tx, fi.RelPath, title, doc.Body); err != nil {
		return err
	}

	switch fi.Kind {
	case models.KindPlan, models.KindPointer:
		row := extractPlan(fi, doc)
		topics, _ := json.Marshal(emptyIfNil(row.Topics))
		_, err = tx.Exec(`INSERT INTO plans (path, plan_id, title, author, status, topics, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.Path, row.ID, row.Title, row.Author, row.Status, string(topics), row.UpdatedAt)
	case models.KindSession:
		row := extractSession(fi, doc)
		topics, _ := json.Marshal(emptyIfNil(row.Topics))
		_, err = tx.Exec(`INSERT INTO sessions (path, date, topics, plan_id, status)
			VALUES (?, ?, ?, ?, ?)`,
			row.Path, row.Date, string(topics), row.PlanID, row.Status)
	case models.KindLearned:
		row := extractLearned(fi, doc)
		keywords, _ := json.Marshal(emptyIfNil(row.Keywords))
		_, err = tx.Exec(`INSERT INTO learned (path, category, keywords) VALUES (?, ?, ?)`,
			row.Path, row.Category, string(keywords))
	}
	if err != nil {
		return fmt.Errorf("index: insert %s entry %s: %w", fi.Kind, fi.RelPath, err)
	}
	return nil
}

func setMeta(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("index: set meta %s: %w", key, err)
	}
	return nil
}

// Watermark returns the newest source modification time recorded at the
// last rebuild. ok is false when the index has never been built.
func (db *DB) Watermark() (time.Time, bool, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaWatermark).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("index: read watermark: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, nil // unreadable watermark forces a rebuild
	}
	return ts, true, nil
}

// Stale reports whether a source file newer than the rebuild watermark
// exists, i.e. whether queries must rebuild before answering.
func (db *DB) Stale(newestSource time.Time) (bool, error) {
	wm, ok, err := db.Watermark()
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return newestSource.After(wm), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
