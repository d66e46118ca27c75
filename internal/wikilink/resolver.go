// Package wikilink rewrites [[Reference]] tokens into relative markdown links.
package wikilink

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/wikilinker/internal/frontmatter"
	"github.com/starford/wikilinker/internal/pathdiff"
)

// FallbackRoute is the href used for references that match no entry.
const FallbackRoute = "/blog/"

const currentDir = "./"

var tokenRe = regexp.MustCompile(`\[\[(.+?)\]\]`)

// SlugSource looks up the slug override of a corpus entry.
type SlugSource interface {
	ReadSlug(path string) (string, error)
}

// Resolver turns wikilink tokens into markdown links. A Resolver without a
// SlugSource always links to the filename stem.
//
// Resolver holds no mutable state and is safe for concurrent use.
type Resolver struct {
	slugs  SlugSource
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSlugSource enables slug substitution from front matter.
func WithSlugSource(src SlugSource) Option {
	return func(r *Resolver) {
		r.slugs = src
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite resolves entries' wikilinks in text as seen from source, reading
// slugs from the local file system.
func Rewrite(text string, entries []string, source, pathPrefix string) string {
	r := NewResolver(WithSlugSource(frontmatter.NewReader(nil)))
	return r.Rewrite(text, NewCorpus(entries), source, pathPrefix)
}

// Rewrite replaces every wikilink token in text. Text outside tokens is
// returned unchanged.
func (r *Resolver) Rewrite(text string, corpus *Corpus, source, pathPrefix string) string {
	out, _ := r.RewriteLinks(text, corpus, source, pathPrefix)
	return out
}

// RewriteLinks is Rewrite that also returns the link produced for each token,
// in order of appearance.
func (r *Resolver) RewriteLinks(text string, corpus *Corpus, source, pathPrefix string) (string, []Link) {
	matches := tokenRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	links := make([]Link, 0, len(matches))
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		reference := text[m[2]:m[3]]
		link := r.Resolve(reference, corpus, source, pathPrefix)
		links = append(links, link)

		b.WriteString(text[last:m[0]])
		b.WriteString(link.Text)
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), links
}

// Resolve maps reference to the first corpus entry with an equal stem. An
// unmatched reference yields the fallback link, never an error.
func (r *Resolver) Resolve(reference string, corpus *Corpus, source, pathPrefix string) Link {
	target, ok := corpus.Find(reference)
	if !ok {
		return Link{
			Reference: reference,
			Href:      FallbackRoute,
			Text:      markdownLink(reference, FallbackRoute),
			Kind:      LinkUnresolved,
		}
	}
	return r.Format(target, reference, source, pathPrefix)
}

// Format builds the link from source to target. When no relative path exists
// the returned link is empty and of kind LinkBroken.
//
// The href is "./<final>" for an empty pathPrefix, otherwise pathPrefix with
// any trailing "/" removed, then "/<final>": "/blog" and "/blog/" both give
// "/blog/<final>".
func (r *Resolver) Format(target, reference, source, pathPrefix string) Link {
	rel, err := pathdiff.Relative(source, target)
	if err != nil {
		r.logger.Warn("wikilink: unable to compute relative path",
			slog.String("source", source),
			slog.String("target", target),
			slog.String("error", err.Error()))
		return Link{Reference: reference, Target: target, Kind: LinkBroken}
	}

	final := r.slug(target)
	if final == "" {
		final = strings.ReplaceAll(pathdiff.Stem(rel), " ", "%20")
	}

	href := currentDir + final
	if pathPrefix != "" {
		href = strings.TrimSuffix(pathPrefix, "/") + "/" + final
	}

	return Link{
		Reference: reference,
		Target:    target,
		Href:      href,
		Text:      markdownLink(reference, href),
		Kind:      LinkResolved,
	}
}

// slug returns target's slug override, or "" in plain mode or when the
// target's front matter cannot be read.
func (r *Resolver) slug(target string) string {
	if r.slugs == nil {
		return ""
	}
	s, err := r.slugs.ReadSlug(target)
	if err != nil {
		r.logger.Debug("wikilink: front matter unreadable",
			slog.String("target", target),
			slog.String("error", err.Error()))
		return ""
	}
	return s
}

func markdownLink(display, href string) string {
	return fmt.Sprintf("[%s](%s)", display, href)
}
