// Package frontmatter reads the YAML block delimited by "---" lines at the
// head of an entry and exposes the slug override declared in it.
package frontmatter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Document is the parsed front-matter block of one entry.
//
// Malformed is set when the collected block was not valid YAML; Fields is
// empty in that case.
type Document struct {
	Fields    map[string]any
	Malformed bool
}

// Slug returns the "slug" field when it is a string, otherwise "".
func (d Document) Slug() string {
	if s, ok := d.Fields["slug"].(string); ok {
		return s
	}
	return ""
}

// Extract reads r line by line. The first "---" line opens the block and the
// next one closes it; nothing after the closing line is read. Lines have no
// length limit, so only read failures are returned as errors.
func Extract(r io.Reader) (Document, error) {
	br := bufio.NewReader(r)

	var (
		lines  []string
		inside bool
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Document{}, fmt.Errorf("frontmatter: read: %w", err)
		}
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if line == delim {
				if inside {
					break
				}
				inside = true
			} else if inside {
				lines = append(lines, line)
			}
		}
		if err != nil {
			break
		}
	}

	doc := Document{Fields: map[string]any{}}
	if len(lines) == 0 {
		return doc, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &fields); err != nil {
		// Invalid YAML degrades to an empty document.
		doc.Malformed = true
		return doc, nil
	}
	if fields != nil {
		doc.Fields = fields
	}
	return doc, nil
}

// Opener opens an entry's content by its corpus path.
type Opener interface {
	Open(path string) (io.ReadCloser, error)
}

// OSOpener opens entry paths directly on the local file system.
type OSOpener struct{}

// Open implements Opener.
func (OSOpener) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Reader reads front matter of corpus entries through an Opener.
type Reader struct {
	opener Opener
	logger *slog.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets the logger that reports malformed blocks.
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReader returns a Reader backed by opener, or by the local file system
// when opener is nil.
func NewReader(opener Opener, opts ...ReaderOption) *Reader {
	if opener == nil {
		opener = OSOpener{}
	}
	r := &Reader{opener: opener, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read opens path and extracts its front matter. Open failures are returned;
// malformed content is not an error.
func (r *Reader) Read(path string) (Document, error) {
	f, err := r.opener.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("frontmatter: open %s: %w", path, err)
	}
	defer f.Close()
	return Extract(f)
}

// ReadSlug returns the slug declared by the entry at path, or "" if none.
func (r *Reader) ReadSlug(path string) (string, error) {
	doc, err := r.Read(path)
	if err != nil {
		return "", err
	}
	if doc.Malformed {
		r.logger.Debug("frontmatter: ignoring malformed block", slog.String("path", path))
	}
	return doc.Slug(), nil
}
