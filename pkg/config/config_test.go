package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Count < 0 {
		return errors.New("count must be non-negative")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("WIKILINKER_TEST_NAME", "vault")
	p := writeFile(t, "name: ${WIKILINKER_TEST_NAME}\ncount: 3\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "vault" || s.Count != 3 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	p := writeFile(t, "count: 2\n")

	s := sample{Name: "default"}
	if err := Load(p, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "default" {
		t.Errorf("name = %q, want default", s.Name)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeFile(t, "count: -1\n")

	var s sample
	if err := Load(p, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	s := sample{Name: "default", Count: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &s)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("found = true for missing file")
	}
	if s.Name != "default" {
		t.Errorf("defaults lost: %+v", s)
	}
}

func TestLoadOptional_MissingFileStillValidates(t *testing.T) {
	s := sample{Count: -5}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &s); err == nil {
		t.Fatal("expected validation error")
	}
}
