package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/munin/internal/queryservice"
	"github.com/starford/munin/internal/testutil"
)

func newTestRouter(t *testing.T, files map[string]string) http.Handler {
	t.Helper()
	root, store := testutil.TestRoot(t, files)
	db := testutil.TestDB(t)
	svc := queryservice.New(root, store, db, nil)
	return NewRouter(svc, false, "", nil)
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, w.Body.String())
	}
}

func TestListPlans(t *testing.T) {
	h := newTestRouter(t, map[string]string{
		"PLAN_auth.md":    "---\nstatus: ACTIVE\nauthor: alice\n---\n# Auth\n",
		"PLAN_billing.md": "---\nstatus: COMPLETE\n---\n# Billing\n",
	})

	w := doRequest(t, h, http.MethodGet, "/plans", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PlanListResponse
	decodeJSON(t, w, &resp)
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}

	w = doRequest(t, h, http.MethodGet, "/plans?status=ACTIVE&author=alice", "")
	decodeJSON(t, w, &resp)
	if resp.Total != 1 || resp.Plans[0].ID != "auth" {
		t.Fatalf("filtered = %+v", resp)
	}
}

func TestListPlansInvalidStatus(t *testing.T) {
	h := newTestRouter(t, nil)

	w := doRequest(t, h, http.MethodGet, "/plans?status=DONE", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp errResponse
	decodeJSON(t, w, &resp)
	if len(resp.Valid) == 0 {
		t.Errorf("response does not list valid values: %s", w.Body.String())
	}
}

func TestListSessionsInvalidDate(t *testing.T) {
	h := newTestRouter(t, nil)

	w := doRequest(t, h, http.MethodGet, "/sessions?after=not-a-date", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSearch(t *testing.T) {
	h := newTestRouter(t, map[string]string{
		"learned/go/a.md": "# A\n\nUse token rotation everywhere.\n",
		"learned/go/b.md": "# B\n\nThe token cache.\n",
	})

	w := doRequest(t, h, http.MethodGet, "/search?q=token+rotation", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	decodeJSON(t, w, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Path != "learned/go/a.md" {
		t.Errorf("phrase match not first: %+v", resp.Results)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	h := newTestRouter(t, nil)

	w := doRequest(t, h, http.MethodGet, "/search", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetDocument(t *testing.T) {
	h := newTestRouter(t, map[string]string{
		"PLAN_auth.md": "# Auth\n",
	})

	w := doRequest(t, h, http.MethodGet, "/documents/PLAN_auth.md", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp DocumentResponse
	decodeJSON(t, w, &resp)
	if resp.Content != "# Auth\n" {
		t.Errorf("content = %q", resp.Content)
	}

	w = doRequest(t, h, http.MethodGet, "/documents/PLAN_missing.md", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing doc status = %d, want 404", w.Code)
	}
}

func TestMutationEndpoint(t *testing.T) {
	h := newTestRouter(t, map[string]string{
		"PLAN_auth.md": "---\nstatus: ACTIVE\n---\n# Auth\n",
	})

	w := doRequest(t, h, http.MethodPost, "/mutations",
		`{"kind":"plan","key":"auth","shortcut":"done"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Updated bool `json:"updated"`
	}
	decodeJSON(t, w, &resp)
	if !resp.Updated {
		t.Fatalf("mutation not applied: %s", w.Body.String())
	}

	// The change is queryable straight away.
	listw := doRequest(t, h, http.MethodGet, "/plans?status=COMPLETE", "")
	var list PlanListResponse
	decodeJSON(t, listw, &list)
	if list.Total != 1 {
		t.Errorf("mutated plan not visible: %s", listw.Body.String())
	}
}

func TestMutationAmbiguousPattern(t *testing.T) {
	h := newTestRouter(t, map[string]string{
		"PLAN_auth.md": "# Auth\n\nretry here\n\nretry here too\n",
	})

	w := doRequest(t, h, http.MethodPost, "/mutations",
		`{"kind":"plan","key":"auth","content":"x","placement":"after","pattern":"retry here"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", w.Code, w.Body.String())
	}
	var resp errResponse
	decodeJSON(t, w, &resp)
	if len(resp.Lines) != 2 {
		t.Errorf("lines = %v, want both match locations", resp.Lines)
	}
}

func TestMutationUnknownTarget(t *testing.T) {
	h := newTestRouter(t, map[string]string{
		"PLAN_auth.md": "# Auth\n",
	})

	w := doRequest(t, h, http.MethodPost, "/mutations",
		`{"kind":"plan","key":"aut","add_topics":["x"]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", w.Code, w.Body.String())
	}
	var resp errResponse
	decodeJSON(t, w, &resp)
	if len(resp.Suggestions) == 0 {
		t.Errorf("no suggestions in %s", w.Body.String())
	}
}

func TestRebuildEndpoint(t *testing.T) {
	h := newTestRouter(t, map[string]string{
		"PLAN_auth.md": "# Auth\n",
	})

	w := doRequest(t, h, http.MethodPost, "/rebuild", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestScanEndpoint(t *testing.T) {
	h := newTestRouter(t, map[string]string{
		"sessions/2026-08-10-session.md": "# S\n",
		"PLAN_auth.md":                   "# P\n",
	})

	w := doRequest(t, h, http.MethodGet, "/scan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	decodeJSON(t, w, &resp)
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestAuthMiddleware(t *testing.T) {
	root, store := testutil.TestRoot(t, map[string]string{
		"PLAN_auth.md": "# Auth\n",
	})
	db := testutil.TestDB(t)
	svc := queryservice.New(root, store, db, nil)
	h := NewRouter(svc, true, "secret", nil)

	w := doRequest(t, h, http.MethodGet, "/plans", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/plans", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", w.Code)
	}
}
