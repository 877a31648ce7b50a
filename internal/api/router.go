package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/munin/internal/queryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *queryservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Listings.
	r.Get("/plans", h.ListPlans)
	r.Get("/sessions", h.ListSessions)
	r.Get("/learned", h.ListLearned)

	// Search and inventory.
	r.Get("/search", h.Search)
	r.Get("/scan", h.Scan)

	// Raw documents.
	r.Get("/documents/*", h.GetDocument)

	// Mutations and index control.
	r.Post("/mutations", h.Mutate)
	r.Post("/rebuild", h.Rebuild)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
