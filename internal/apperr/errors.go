// Package apperr holds sentinel errors shared across the API, MCP, and CLI layers.
package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidPath = errors.New("invalid path")
)
