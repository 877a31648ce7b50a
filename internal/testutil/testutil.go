// Package testutil provides shared helpers for package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/munin/internal/index"
	"github.com/starford/munin/internal/storage"
)

// TestDB opens a fresh index database in a temp directory and closes it
// when the test finishes.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRoot creates a temp knowledge root populated with the given files
// (root-relative path to content) and returns the root and a storage
// provider over it.
func TestRoot(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	return root, store
}
