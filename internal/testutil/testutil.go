// Package testutil provides shared test helpers for setting up vaults and manifests.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/wikilinker/internal/manifest"
	"github.com/starford/wikilinker/internal/storage"
)

// TestManifest creates a temporary SQLite manifest that is automatically cleaned up.
func TestManifest(t *testing.T) *manifest.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "wikilinker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := manifest.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory seeded with files
// (slash path -> content) and returns it with its storage.Provider.
func TestVault(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	return vaultDir, store
}
