// Package models defines the domain types shared by storage, build, and API.
package models

import "time"

// EntryMetadata describes one markdown entry found in a vault.
type EntryMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
