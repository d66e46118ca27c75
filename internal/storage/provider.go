// Package storage defines the vault file-system abstraction.
package storage

import (
	"io"

	"github.com/starford/wikilinker/internal/models"
)

// Provider is the interface for vault file operations. All paths are
// slash-separated and relative to the vault root.
type Provider interface {
	// List returns metadata for every .md file under dir, sorted by path.
	List(dir string) ([]models.EntryMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Open returns a reader over the file at path.
	Open(path string) (io.ReadCloser, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
