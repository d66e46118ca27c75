package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/wikilinker/internal/build"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *build.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/entries", h.ListEntries)
	r.Get("/entries/*", h.GetEntry)

	r.Post("/rewrite", h.Rewrite)
	r.Get("/resolve", h.Resolve)
	r.Post("/build", h.Build)
	r.Get("/outputs/*", h.GetOutput)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
