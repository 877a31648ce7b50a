package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// changeCollector records onChange batches from a running watcher.
type changeCollector struct {
	mu      sync.Mutex
	changed []string
}

func (c *changeCollector) record(paths []string) {
	c.mu.Lock()
	c.changed = append(c.changed, paths...)
	c.mu.Unlock()
}

func (c *changeCollector) has(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.changed {
		if p == path {
			return true
		}
	}
	return false
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatcher_NewFileReported(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var col changeCollector
	go Watch(ctx, root, quietLogger(), col.record)

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "PLAN_new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return col.has("PLAN_new.md")
	}, "new file not reported by watcher")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var col changeCollector
	go Watch(ctx, root, quietLogger(), col.record)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(root, "learned")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(300 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return col.has("learned/deep.md")
	}, "file in new subdir not reported by watcher")
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	batches := 0
	go Watch(ctx, root, quietLogger(), func(changed []string) {
		mu.Lock()
		batches++
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	// A burst of writes inside the debounce window collapses into one
	// callback.
	for i := 0; i < 5; i++ {
		_ = os.WriteFile(filepath.Join(root, "PLAN_burst.md"), []byte("# Burst"), 0o644)
		time.Sleep(10 * time.Millisecond)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return batches >= 1
	}, "no callback after burst")

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if batches > 2 {
		t.Errorf("batches = %d, want burst collapsed into at most 2", batches)
	}
}

func TestWatcher_IgnoresNonMarkdown(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var col changeCollector
	go Watch(ctx, root, quietLogger(), col.record)

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("not markdown"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "PLAN_real.md"), []byte("# Real"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return col.has("PLAN_real.md")
	}, "markdown change not reported")

	if col.has("notes.txt") {
		t.Error("non-markdown file reported")
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, quietLogger(), nil)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}
}
