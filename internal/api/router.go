package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/library"
	"github.com/starford/raido/internal/maintenance"
	"github.com/starford/raido/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, is mounted at GET /events inside the auth group and
// receives plan outcome events from the mutating endpoints.
func NewRouter(svc *maintenance.Service, hist history.Store, ix *library.Index, authEnabled bool, token string, broker *sse.Broker) chi.Router {
	h := NewHandler(svc, hist, ix, broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Library index.
	r.Get("/assets", h.ListAssets)
	r.Post("/scan", h.Rescan)

	// Sanitization runs.
	r.Get("/changes", h.Changes)
	r.Post("/sanitize", h.Sanitize)
	r.Post("/execute", h.Execute)

	// Missing-reference reconciliation.
	r.Get("/missing", h.Missing)
	r.Post("/resolve", h.Resolve)
	r.Post("/resolve/auto", h.AutoResolve)

	// History store.
	r.Get("/history", h.ListHistory)
	r.Get("/history/search", h.SearchHistory)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}
