package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/munin/internal/index"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/queryservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *queryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *queryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// docPath extracts the document path from the URL (everything after
// /documents/). Supports encoded slashes (e.g. sessions%2F2026-08-10-session.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListPlans handles GET /api/plans.
//
//	@Summary		List plans with optional filters
//	@Tags			plans
//	@Produce		json
//	@Param			status			query		string	false	"Plan status"	Enums(ACTIVE, PAUSED, PLANNED, COMPLETE, CANCELLED)
//	@Param			author			query		string	false	"Author substring"
//	@Param			topic			query		string	false	"Topic substring"
//	@Param			updated-after	query		string	false	"Inclusive lower bound, YYYY-MM-DD"
//	@Param			updated-before	query		string	false	"Inclusive upper bound, YYYY-MM-DD"
//	@Success		200	{object}	PlanListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans [get]
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	plans, err := h.svc.Plans(queryservice.PlansQuery{
		Status:        q.Get("status"),
		Author:        q.Get("author"),
		Topic:         q.Get("topic"),
		UpdatedAfter:  q.Get("updated-after"),
		UpdatedBefore: q.Get("updated-before"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if plans == nil {
		plans = []index.Plan{}
	}
	writeJSON(w, http.StatusOK, PlanListResponse{Plans: plans, Total: len(plans)})
}

// ListSessions handles GET /api/sessions.
//
//	@Summary		List sessions, defaulting to the last seven days
//	@Tags			sessions
//	@Produce		json
//	@Param			date	query		string	false	"Exact date, YYYY-MM-DD"
//	@Param			after	query		string	false	"Inclusive lower bound, YYYY-MM-DD"
//	@Param			before	query		string	false	"Inclusive upper bound, YYYY-MM-DD"
//	@Param			topic	query		string	false	"Topic substring"
//	@Param			plan	query		string	false	"Associated plan id"
//	@Param			days	query		int		false	"Shorthand for after = today minus N days"
//	@Success		200	{object}	SessionListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, _ := strconv.Atoi(q.Get("days"))
	sessions, err := h.svc.Sessions(queryservice.SessionsQuery{
		Date:     q.Get("date"),
		After:    q.Get("after"),
		Before:   q.Get("before"),
		Topic:    q.Get("topic"),
		PlanID:   q.Get("plan"),
		DaysBack: days,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []index.Session{}
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: sessions, Total: len(sessions)})
}

// ListLearned handles GET /api/learned.
//
//	@Summary		List learned patterns
//	@Tags			learned
//	@Produce		json
//	@Param			category	query		string	false	"Category substring"
//	@Success		200	{object}	LearnedListResponse
//	@Security		BearerAuth
//	@Router			/learned [get]
func (h *Handler) ListLearned(w http.ResponseWriter, r *http.Request) {
	learned, err := h.svc.Learned(r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	if learned == nil {
		learned = []index.Learned{}
	}
	writeJSON(w, http.StatusOK, LearnedListResponse{Learned: learned, Total: len(learned)})
}

// Search handles GET /api/search.
//
//	@Summary		Relevance-ranked search across the knowledge root
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			scope	query		string	false	"Search scope"	Enums(all, plans, sessions, learned)
//	@Param			limit	query		int		false	"Max results"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(q, r.URL.Query().Get("scope"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Scan handles GET /api/scan.
//
//	@Summary		Classified inventory of the knowledge root
//	@Tags			scan
//	@Produce		json
//	@Success		200	{object}	models.ScanResult
//	@Security		BearerAuth
//	@Router			/scan [get]
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Scan())
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Read one knowledge document by path
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Root-relative document path"
//	@Success		200	{object}	DocumentResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	data, err := h.svc.Read(path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Path: path, Content: string(data)})
}

// Mutate handles POST /api/mutations.
//
//	@Summary		Apply one structured mutation to a session or plan
//	@Tags			mutations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MutationRequest	true	"Mutation to apply"
//	@Success		200	{object}	models.MutationResult
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mutations [post]
func (h *Handler) Mutate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.Mutate(req.toRequest())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Rebuild handles POST /api/rebuild.
//
//	@Summary		Force a full index rebuild
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Security		BearerAuth
//	@Router			/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Rebuild(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}
