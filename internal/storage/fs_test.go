package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newFS(t *testing.T) (*FS, string) {
	t.Helper()
	root := t.TempDir()
	fs, err := NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return fs, root
}

func TestNewFS_MissingRoot(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestAbs_RejectsTraversal(t *testing.T) {
	fs, _ := newFS(t)
	for _, rel := range []string{"../outside.md", "a/../../outside.md", "/etc/passwd"} {
		if _, err := fs.Abs(rel); err == nil {
			t.Errorf("Abs(%q) should be rejected", rel)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs, _ := newFS(t)
	content := []byte("---\ntitle: x\n---\nbody\n")
	if err := fs.Write("sessions/2026-01-01-session.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := fs.Read("sessions/2026-01-01-session.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("read back %q", got)
	}
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	fs, root := newFS(t)
	if err := fs.Write("a.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".munin-tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestExists(t *testing.T) {
	fs, _ := newFS(t)
	if fs.Exists("missing.md") {
		t.Error("missing file reported as existing")
	}
	_ = fs.Write("present.md", []byte("x"))
	if !fs.Exists("present.md") {
		t.Error("written file not reported as existing")
	}
}
