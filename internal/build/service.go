// Package build rewrites a vault's wikilinks into an output directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/wikilinker/internal/apperr"
	"github.com/starford/wikilinker/internal/frontmatter"
	"github.com/starford/wikilinker/internal/manifest"
	"github.com/starford/wikilinker/internal/metrics"
	"github.com/starford/wikilinker/internal/models"
	"github.com/starford/wikilinker/internal/storage"
	"github.com/starford/wikilinker/internal/wikilink"
)

const defaultWorkers = 4

var (
	// ErrNoOutput is returned by Build when no output store is configured.
	ErrNoOutput = errors.New("build: output store is not configured")
	// ErrNoManifest is returned by Output when no manifest is configured.
	ErrNoManifest = errors.New("build: manifest is not configured")
)

// Rendered is one entry (or ad-hoc text) with its wikilinks rewritten.
type Rendered struct {
	Path    string          `json:"path"`
	Content string          `json:"content"`
	Links   []wikilink.Link `json:"links"`
	Counts  wikilink.Counts `json:"counts"`
}

// Summary reports the outcome of a Build.
type Summary struct {
	Entries   int             `json:"entries"`
	Written   []string        `json:"written"`
	Unchanged int             `json:"unchanged"`
	Failed    []string        `json:"failed"`
	Removed   []string        `json:"removed"`
	Links     wikilink.Counts `json:"links"`
	Duration  time.Duration   `json:"duration"`
}

// Service coordinates the vault, the resolver, the output store and the manifest.
type Service struct {
	store       storage.Provider
	out         storage.Provider
	manifest    manifest.Store
	resolver    *wikilink.Resolver
	prefix      string
	frontMatter bool
	workers     int
	logger      *slog.Logger
	recorder    metrics.Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithOutput sets the store rewritten entries are written to.
func WithOutput(out storage.Provider) Option {
	return func(s *Service) { s.out = out }
}

// WithManifest enables incremental writes and stale-output pruning.
func WithManifest(m manifest.Store) Option {
	return func(s *Service) { s.manifest = m }
}

// WithPathPrefix sets the directory component of generated hrefs.
func WithPathPrefix(prefix string) Option {
	return func(s *Service) { s.prefix = prefix }
}

// WithFrontMatter toggles slug substitution from target front matter.
func WithFrontMatter(enabled bool) Option {
	return func(s *Service) { s.frontMatter = enabled }
}

// WithWorkers bounds the number of entries rewritten concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates a build service reading entries from store.
func NewService(store storage.Provider, opts ...Option) *Service {
	s := &Service{
		store:       store,
		frontMatter: true,
		workers:     defaultWorkers,
		logger:      slog.Default(),
		recorder:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	ropts := []wikilink.Option{wikilink.WithLogger(s.logger)}
	if s.frontMatter {
		ropts = append(ropts, wikilink.WithSlugSource(frontmatter.NewReader(store, frontmatter.WithLogger(s.logger))))
	}
	s.resolver = wikilink.NewResolver(ropts...)
	return s
}

// Entries lists the vault's markdown entries in path order.
func (s *Service) Entries(_ context.Context) ([]models.EntryMetadata, error) {
	return s.store.List("")
}

// Corpus builds a corpus from the current vault listing.
func (s *Service) Corpus(ctx context.Context) (*wikilink.Corpus, []models.EntryMetadata, error) {
	metas, err := s.Entries(ctx)
	if err != nil {
		return nil, nil, err
	}
	paths := make([]string, len(metas))
	for i, m := range metas {
		paths[i] = m.Path
	}
	return wikilink.NewCorpus(paths), metas, nil
}

// Render rewrites the entry at path against the current corpus without
// writing anything.
func (s *Service) Render(ctx context.Context, path string) (*Rendered, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
		}
		return nil, err
	}
	corpus, _, err := s.Corpus(ctx)
	if err != nil {
		return nil, err
	}
	return s.render(path, string(data), corpus), nil
}

// Output returns the manifest record of the last build of path.
func (s *Service) Output(_ context.Context, path string) (*manifest.Row, error) {
	if s.manifest == nil {
		return nil, ErrNoManifest
	}
	row, err := s.manifest.Get(path)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	return row, nil
}

// RewriteText rewrites arbitrary text as if it were the entry at source.
func (s *Service) RewriteText(ctx context.Context, source, text string) (*Rendered, error) {
	corpus, _, err := s.Corpus(ctx)
	if err != nil {
		return nil, err
	}
	return s.render(source, text, corpus), nil
}

// ResolveReference resolves a single reference as seen from source.
func (s *Service) ResolveReference(ctx context.Context, reference, source string) (wikilink.Link, error) {
	corpus, _, err := s.Corpus(ctx)
	if err != nil {
		return wikilink.Link{}, err
	}
	link := s.resolver.Resolve(reference, corpus, source, s.prefix)
	s.recorder.IncLink(link.Kind.String())
	return link, nil
}

func (s *Service) render(path, text string, corpus *wikilink.Corpus) *Rendered {
	out, links := s.resolver.RewriteLinks(text, corpus, path, s.prefix)
	for _, l := range links {
		s.recorder.IncLink(l.Kind.String())
	}
	if links == nil {
		links = []wikilink.Link{}
	}
	return &Rendered{
		Path:    path,
		Content: out,
		Links:   links,
		Counts:  wikilink.Count(links),
	}
}

type entryResult struct {
	path   string
	result string
	counts wikilink.Counts
}

// Build rewrites every vault entry into the output store. Failures on single
// entries are logged and reported in the Summary; only listing and context
// errors abort the build.
func (s *Service) Build(ctx context.Context) (*Summary, error) {
	if s.out == nil {
		return nil, ErrNoOutput
	}
	start := time.Now()

	corpus, metas, err := s.Corpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("build: list vault: %w", err)
	}

	var previous map[string]string
	if s.manifest != nil {
		previous, err = s.manifest.AllChecksums()
		if err != nil {
			return nil, fmt.Errorf("build: load manifest: %w", err)
		}
	}

	results := make([]entryResult, len(metas))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, m := range metas {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = s.buildEntry(m, corpus, previous[m.Path])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	summary := &Summary{
		Entries: len(metas),
		Written: []string{},
		Failed:  []string{},
		Removed: []string{},
	}
	onDisk := make(map[string]struct{}, len(metas))
	for _, r := range results {
		onDisk[r.path] = struct{}{}
		summary.Links.Resolved += r.counts.Resolved
		summary.Links.Unresolved += r.counts.Unresolved
		summary.Links.Broken += r.counts.Broken
		switch r.result {
		case metrics.EntryWritten:
			summary.Written = append(summary.Written, r.path)
		case metrics.EntryUnchanged:
			summary.Unchanged++
		case metrics.EntryFailed:
			summary.Failed = append(summary.Failed, r.path)
		}
		s.recorder.IncEntry(r.result)
	}

	for p := range previous {
		if _, ok := onDisk[p]; ok {
			continue
		}
		if err := s.removeOutput(p); err != nil {
			s.logger.Warn("build: remove stale output failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		summary.Removed = append(summary.Removed, p)
		s.recorder.IncEntry(metrics.EntryRemoved)
		s.logger.Debug("build: removed stale output", slog.String("path", p))
	}

	summary.Duration = time.Since(start)
	s.recorder.ObserveBuildDuration(summary.Duration)
	s.logger.Info("build: completed",
		slog.Int("entries", summary.Entries),
		slog.Int("written", len(summary.Written)),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("failed", len(summary.Failed)),
		slog.Int("removed", len(summary.Removed)),
		slog.Int("unresolved_links", summary.Links.Unresolved),
		slog.Duration("duration", summary.Duration))
	return summary, nil
}

func (s *Service) buildEntry(m models.EntryMetadata, corpus *wikilink.Corpus, previousSum string) entryResult {
	res := entryResult{path: m.Path}

	data, err := s.store.Read(m.Path)
	if err != nil {
		s.logger.Warn("build: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		res.result = metrics.EntryFailed
		return res
	}

	out, links := s.resolver.RewriteLinks(string(data), corpus, m.Path, s.prefix)
	for _, l := range links {
		s.recorder.IncLink(l.Kind.String())
	}
	res.counts = wikilink.Count(links)

	outSum := storage.Checksum([]byte(out))
	if previousSum == outSum && s.outputExists(m.Path) {
		res.result = metrics.EntryUnchanged
		return res
	}

	if err := s.out.Write(m.Path, []byte(out)); err != nil {
		s.logger.Warn("build: write failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		res.result = metrics.EntryFailed
		return res
	}
	if s.manifest != nil {
		if err := s.manifest.Record(manifest.Row{
			Path:           m.Path,
			SourceChecksum: m.Checksum,
			OutputChecksum: outSum,
			Resolved:       res.counts.Resolved,
			Unresolved:     res.counts.Unresolved,
			Broken:         res.counts.Broken,
		}); err != nil {
			s.logger.Warn("build: record manifest failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		}
	}
	s.logger.Debug("build: wrote entry", slog.String("path", m.Path))
	res.result = metrics.EntryWritten
	return res
}

func (s *Service) outputExists(path string) bool {
	rc, err := s.out.Open(path)
	if err != nil {
		return false
	}
	_ = rc.Close()
	return true
}

func (s *Service) removeOutput(path string) error {
	if err := s.out.Delete(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return s.manifest.Delete(path)
}
