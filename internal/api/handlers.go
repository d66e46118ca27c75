package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/wikilinker/internal/build"
)

// Handler holds API route handlers.
type Handler struct {
	svc *build.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *build.Service) *Handler {
	return &Handler{svc: svc}
}

// entryPath extracts the entry path from the wildcard URL segment.
// Supports encoded slashes from OpenAPI clients (e.g. posts%2Fhello.md).
func entryPath(r *http.Request) string {
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

// ListEntries handles GET /api/entries.
//
//	@Summary		List the corpus
//	@Tags			entries
//	@Produce		json
//	@Success		200	{object}	EntryListResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Entries(r.Context())
	if err != nil {
		slog.Error("list entries failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: nonNil(entries), Total: len(entries)})
}

// GetEntry handles GET /api/entries/*.
//
//	@Summary		Get an entry with its wikilinks rewritten
//	@Tags			entries
//	@Produce		json
//	@Param			path	path		string	true	"Entry path"
//	@Success		200		{object}	Rendered
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{path} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	path := entryPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	rendered, err := h.svc.Render(r.Context(), path)
	if err != nil {
		writeServiceError(w, "render entry", path, err)
		return
	}
	writeJSON(w, http.StatusOK, rendered)
}

// GetOutput handles GET /api/outputs/*.
//
//	@Summary		Get the build record of an entry
//	@Tags			build
//	@Produce		json
//	@Param			path	path		string	true	"Entry path"
//	@Success		200		{object}	OutputRecord
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outputs/{path} [get]
func (h *Handler) GetOutput(w http.ResponseWriter, r *http.Request) {
	path := entryPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	row, err := h.svc.Output(r.Context(), path)
	if err != nil {
		if errors.Is(err, build.ErrNoManifest) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("manifest is not configured"))
			return
		}
		writeServiceError(w, "get output", path, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Rewrite handles POST /api/rewrite.
//
//	@Summary		Rewrite wikilinks in arbitrary text
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RewriteRequest	true	"Text and source entry"
//	@Success		200		{object}	Rendered
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rewrite [post]
func (h *Handler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req RewriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source is required"))
		return
	}
	rendered, err := h.svc.RewriteText(r.Context(), req.Source, req.Content)
	if err != nil {
		writeServiceError(w, "rewrite", req.Source, err)
		return
	}
	writeJSON(w, http.StatusOK, rendered)
}

// Resolve handles GET /api/resolve.
//
//	@Summary		Resolve a single wikilink reference
//	@Tags			links
//	@Produce		json
//	@Param			ref		query		string	true	"Reference (entry stem)"
//	@Param			source	query		string	true	"Path of the linking entry"
//	@Success		200		{object}	Link
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref, source := q.Get("ref"), q.Get("source")
	if ref == "" || source == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'ref' and 'source' are required"))
		return
	}
	link, err := h.svc.ResolveReference(r.Context(), ref, source)
	if err != nil {
		writeServiceError(w, "resolve", source, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// Build handles POST /api/build.
//
//	@Summary		Rebuild the output directory
//	@Tags			build
//	@Produce		json
//	@Success		200	{object}	Summary
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/build [post]
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Build(r.Context())
	if err != nil {
		if errors.Is(err, build.ErrNoOutput) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("output is not configured"))
			return
		}
		writeServiceError(w, "build", "", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
