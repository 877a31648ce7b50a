package mutate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/munin/internal/apperr"
	"github.com/starford/munin/internal/index"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/scanner"
	"github.com/starford/munin/internal/storage"
	"github.com/starford/munin/internal/testutil"
)

func newEngine(t *testing.T, files map[string]string) (*Engine, *storage.FS) {
	t.Helper()
	root, store := testutil.TestRoot(t, files)
	db := testutil.TestDB(t)
	if err := index.Rebuild(db, store, scanner.Scan(root), nil); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	return New(store, db, nil), store
}

func planTarget(id string) Target {
	return Target{Kind: models.KindPlan, Key: id}
}

func sessionTarget(date string) Target {
	return Target{Kind: models.KindSession, Key: date}
}

func TestAddTopicIsIdempotent(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"PLAN_auth.md": "---\ntopics:\n  - auth\n---\n# Auth\n",
	})

	res, err := eng.Apply(Request{Target: planTarget("auth"), AddTopics: []string{"security"}})
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if !res.Updated || len(res.Changes) != 1 {
		t.Fatalf("first apply = %+v", res)
	}

	// Same topic again: nothing to do, nothing written.
	res, err = eng.Apply(Request{Target: planTarget("auth"), AddTopics: []string{"security"}})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if res.Updated {
		t.Fatalf("duplicate topic reported as update: %+v", res)
	}

	data, err := store.Read("PLAN_auth.md")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if strings.Count(string(data), "security") != 1 {
		t.Errorf("topic duplicated:\n%s", data)
	}
}

func TestDoneShortcutSetsComplete(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"PLAN_auth.md": "---\nstatus: ACTIVE\n---\n# Auth\n",
	})

	res, err := eng.Apply(Request{Target: planTarget("auth"), Shortcut: "done"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Updated {
		t.Fatalf("result = %+v", res)
	}

	data, _ := store.Read("PLAN_auth.md")
	if !strings.Contains(string(data), "status: COMPLETE") {
		t.Errorf("status not set:\n%s", data)
	}
}

func TestSetStatusRejectsInvalidValue(t *testing.T) {
	eng, _ := newEngine(t, map[string]string{
		"PLAN_auth.md": "# Auth\n",
	})

	_, err := eng.Apply(Request{Target: planTarget("auth"), SetStatus: "FINISHED"})
	if !apperr.Is(err, apperr.KindInvalidEnum) {
		t.Fatalf("err = %v, want invalid enum", err)
	}
	if ae := apperr.As(err); ae == nil || len(ae.Valid) == 0 {
		t.Errorf("error does not list valid values: %v", err)
	}
}

func TestContentRequiresPlacement(t *testing.T) {
	eng, _ := newEngine(t, map[string]string{
		"PLAN_auth.md": "# Auth\n",
	})

	_, err := eng.Apply(Request{Target: planTarget("auth"), Content: "some text"})
	if !apperr.Is(err, apperr.KindUsage) {
		t.Fatalf("err = %v, want usage error", err)
	}
}

func TestAppendAddsSection(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"sessions/2026-08-10-session.md": "---\ntopics: [auth]\n---\n# Session\n\nMorning notes.\n",
	})

	res, err := eng.Apply(Request{
		Target:    sessionTarget("2026-08-10"),
		Content:   "Rotated all refresh tokens.",
		Placement: PlaceAppend,
		Section:   "Afternoon",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Updated {
		t.Fatalf("result = %+v", res)
	}

	data, _ := store.Read("sessions/2026-08-10-session.md")
	text := string(data)
	if !strings.HasSuffix(text, "## Afternoon\nRotated all refresh tokens.\n") {
		t.Errorf("section not appended:\n%s", text)
	}
	if !strings.Contains(text, "Morning notes.") {
		t.Errorf("existing body lost:\n%s", text)
	}
	if strings.Index(text, "Morning notes.") > strings.Index(text, "## Afternoon") {
		t.Errorf("append landed before existing body:\n%s", text)
	}
}

func TestAppendShortcutDefaultsSection(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"sessions/2026-08-10-session.md": "# Session\n",
	})

	_, err := eng.Apply(Request{
		Target:   sessionTarget("2026-08-10"),
		Content:  "quick note",
		Shortcut: "append",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	data, _ := store.Read("sessions/2026-08-10-session.md")
	if !strings.Contains(string(data), "## Update") {
		t.Errorf("default section missing:\n%s", data)
	}
}

func TestPrependAddsSectionBeforeBody(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"sessions/2026-08-10-session.md": "---\ntopics: [auth]\n---\n# Session\n\nExisting notes.\n",
	})

	_, err := eng.Apply(Request{
		Target:    sessionTarget("2026-08-10"),
		Content:   "Read this first.",
		Placement: PlacePrepend,
		Section:   "Context",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	data, _ := store.Read("sessions/2026-08-10-session.md")
	text := string(data)
	ctxAt := strings.Index(text, "## Context")
	bodyAt := strings.Index(text, "Existing notes.")
	fmEnd := strings.LastIndex(text, "---")
	if !(fmEnd < ctxAt && ctxAt < bodyAt) {
		t.Errorf("section not between frontmatter and body:\n%s", text)
	}
}

func TestContentFileAppendsToContent(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"sessions/2026-08-10-session.md": "# Session\n",
	})
	src := filepath.Join(t.TempDir(), "snippet.md")
	if err := os.WriteFile(src, []byte("Details from the file.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := eng.Apply(Request{
		Target:      sessionTarget("2026-08-10"),
		Content:     "Summary line.",
		ContentFile: src,
		Placement:   PlaceAppend,
		Section:     "Notes",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	data, _ := store.Read("sessions/2026-08-10-session.md")
	text := string(data)
	if !strings.Contains(text, "Summary line.\nDetails from the file.") {
		t.Errorf("content file not appended:\n%s", text)
	}
}

func TestContentFileMissingIsHardError(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"sessions/2026-08-10-session.md": "# Session\n",
	})

	before, _ := store.Read("sessions/2026-08-10-session.md")
	_, err := eng.Apply(Request{
		Target:      sessionTarget("2026-08-10"),
		ContentFile: filepath.Join(t.TempDir(), "nope.md"),
		Placement:   PlaceAppend,
	})
	if !apperr.Is(err, apperr.KindIO) {
		t.Fatalf("err = %v, want io error", err)
	}
	after, _ := store.Read("sessions/2026-08-10-session.md")
	if string(before) != string(after) {
		t.Error("file modified despite missing content source")
	}
}

func TestInsertAfterExtendsSection(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"PLAN_auth.md": "# Auth\n\n## Goals\n\nRotate tokens.\n\n## Risks\n\nDowntime.\n",
	})

	_, err := eng.Apply(Request{
		Target:    planTarget("auth"),
		Content:   "Shorter sessions.",
		Placement: PlaceAfter,
		Pattern:   "## Goals",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	data, _ := store.Read("PLAN_auth.md")
	text := string(data)
	goals := strings.Index(text, "Rotate tokens.")
	added := strings.Index(text, "Shorter sessions.")
	risks := strings.Index(text, "## Risks")
	if !(goals < added && added < risks) {
		t.Errorf("insertion not at end of section:\n%s", text)
	}
}

func TestInsertBeforePattern(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"PLAN_auth.md": "# Auth\n\n## Risks\n\nDowntime.\n",
	})

	_, err := eng.Apply(Request{
		Target:    planTarget("auth"),
		Content:   "## Goals",
		Placement: PlaceBefore,
		Pattern:   "## Risks",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	data, _ := store.Read("PLAN_auth.md")
	text := string(data)
	if strings.Index(text, "## Goals") > strings.Index(text, "## Risks") {
		t.Errorf("content not inserted before pattern:\n%s", text)
	}
}

func TestPatternNotFound(t *testing.T) {
	eng, _ := newEngine(t, map[string]string{
		"PLAN_auth.md": "# Auth\n",
	})

	_, err := eng.Apply(Request{
		Target:    planTarget("auth"),
		Content:   "x",
		Placement: PlaceAfter,
		Pattern:   "## Missing",
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestAmbiguousPatternListsLines(t *testing.T) {
	eng, _ := newEngine(t, map[string]string{
		"PLAN_auth.md": "# Auth\n\nretry logic\n\nmore retry logic\n",
	})

	_, err := eng.Apply(Request{
		Target:    planTarget("auth"),
		Content:   "x",
		Placement: PlaceAfter,
		Pattern:   "retry logic",
	})
	if !apperr.Is(err, apperr.KindAmbiguous) {
		t.Fatalf("err = %v, want ambiguous", err)
	}
	ae := apperr.As(err)
	if len(ae.Lines) != 2 {
		t.Fatalf("lines = %v, want 2 matches", ae.Lines)
	}
}

func TestUnknownPlanSuggests(t *testing.T) {
	eng, _ := newEngine(t, map[string]string{
		"PLAN_auth.md":    "# Auth\n",
		"PLAN_billing.md": "# Billing\n",
	})

	_, err := eng.Apply(Request{Target: planTarget("aut"), AddTopics: []string{"x"}})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	ae := apperr.As(err)
	found := false
	for _, s := range ae.Suggestions {
		if s == "auth" {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions %v missing auth", ae.Suggestions)
	}
}

func TestMalformedFrontmatterBlocksMutation(t *testing.T) {
	eng, store := newEngine(t, map[string]string{
		"PLAN_auth.md": "---\nstatus: [unclosed\n---\n# Auth\n",
	})

	before, _ := store.Read("PLAN_auth.md")
	_, err := eng.Apply(Request{Target: planTarget("auth"), AddTopics: []string{"x"}})
	if !apperr.Is(err, apperr.KindParse) {
		t.Fatalf("err = %v, want parse error", err)
	}
	after, _ := store.Read("PLAN_auth.md")
	if string(before) != string(after) {
		t.Error("file modified despite parse failure")
	}
}

func TestNoOperationRejected(t *testing.T) {
	eng, _ := newEngine(t, map[string]string{
		"PLAN_auth.md": "# Auth\n",
	})

	_, err := eng.Apply(Request{Target: planTarget("auth")})
	if !apperr.Is(err, apperr.KindUsage) {
		t.Fatalf("err = %v, want usage error", err)
	}
}
