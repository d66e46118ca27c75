// Package pathdiff computes relative paths between corpus entries.
package pathdiff

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// ErrUnavailable is returned when no relative path exists between two entries,
// e.g. one path is absolute and the other is relative.
var ErrUnavailable = errors.New("pathdiff: relative path unavailable")

// Relative returns the slash-separated path from the directory containing
// source to target. A single leading ".." segment is dropped because the site
// serves every entry from one flattened directory level.
func Relative(source, target string) (string, error) {
	base := filepath.Dir(filepath.FromSlash(source))
	rel, err := filepath.Rel(base, filepath.FromSlash(target))
	if err != nil {
		return "", errors.Join(ErrUnavailable, err)
	}
	return stripParent(filepath.ToSlash(rel)), nil
}

func stripParent(rel string) string {
	switch {
	case rel == "..":
		return ""
	case strings.HasPrefix(rel, "../"):
		return rel[len("../"):]
	}
	return rel
}

// Stem returns the final path component without its extension.
// "posts/hello world.md" -> "hello world". Dot files keep their full name.
func Stem(p string) string {
	base := path.Base(filepath.ToSlash(p))
	if base == "." || base == "/" {
		return ""
	}
	ext := path.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}
