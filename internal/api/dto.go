package api

import (
	"github.com/starford/wikilinker/internal/build"
	"github.com/starford/wikilinker/internal/manifest"
	"github.com/starford/wikilinker/internal/models"
	"github.com/starford/wikilinker/internal/wikilink"
)

// RewriteRequest is the request body for rewriting ad-hoc text.
type RewriteRequest struct {
	Source  string `json:"source" example:"posts/draft.md" validate:"required"`
	Content string `json:"content" example:"See [[hello-world]]."`
}

// EntryListResponse wraps the corpus listing.
type EntryListResponse struct {
	Entries []models.EntryMetadata `json:"entries" validate:"required"`
	Total   int                    `json:"total" example:"42" validate:"required"`
}

// Rendered is an entry with its wikilinks rewritten (aliased from the build layer).
type Rendered = build.Rendered

// Summary is the build report (aliased from the build layer).
type Summary = build.Summary

// Link is a single resolved wikilink (aliased from the resolver).
type Link = wikilink.Link

// OutputRecord is the manifest row of one built entry.
type OutputRecord = manifest.Row
