package wikilink

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mapSlugs serves slugs from memory; paths absent from the map are unreadable.
type mapSlugs map[string]string

func (m mapSlugs) ReadSlug(path string) (string, error) {
	s, ok := m[path]
	if !ok {
		return "", fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	return s, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestResolver(slugs SlugSource) *Resolver {
	return NewResolver(WithSlugSource(slugs), WithLogger(quietLogger()))
}

func TestRewrite_NoTokensIsIdentity(t *testing.T) {
	r := newTestResolver(mapSlugs{})
	corpus := NewCorpus([]string{"posts/hello-world.md"})
	for _, text := range []string{
		"",
		"plain text",
		"[single](brackets) and [[unclosed",
		"]] reversed [[",
		"[[]] empty reference",
	} {
		if got := r.Rewrite(text, corpus, "posts/other.md", ""); got != text {
			t.Errorf("Rewrite(%q) = %q, want unchanged", text, got)
		}
	}
}

func TestRewrite_Matched(t *testing.T) {
	r := newTestResolver(mapSlugs{"posts/hello-world.md": ""})
	corpus := NewCorpus([]string{"posts/hello-world.md"})

	got := r.Rewrite("See [[hello-world]].", corpus, "posts/other.md", "")
	want := "See [hello-world](./hello-world)."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_Unmatched(t *testing.T) {
	r := newTestResolver(mapSlugs{})
	corpus := NewCorpus([]string{"posts/hello-world.md"})

	got := r.Rewrite("See [[missing]].", corpus, "posts/other.md", "")
	want := "See [missing](/blog/)."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_MultipleTokensPreserveSurroundings(t *testing.T) {
	r := newTestResolver(mapSlugs{"a.md": "", "b.md": "bee"})
	corpus := NewCorpus([]string{"a.md", "b.md"})

	text := "# Title\n\n- [[a]]\n- **[[b]]** and [[c]]\n\t[[a]]  end\n"
	got := r.Rewrite(text, corpus, "index.md", "/docs")
	want := "# Title\n\n- [a](/docs/a)\n- **[b](/docs/bee)** and [c](/blog/)\n\t[a](/docs/a)  end\n"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestRewrite_NonGreedyTokens(t *testing.T) {
	r := newTestResolver(mapSlugs{})
	corpus := NewCorpus(nil)

	got := r.Rewrite("[[a]] x [[b]]", corpus, "s.md", "")
	if got != "[a](/blog/) x [b](/blog/)" {
		t.Errorf("got %q", got)
	}
	// A newline cannot be part of a reference.
	text := "[[broken\nline]]"
	if got := r.Rewrite(text, corpus, "s.md", ""); got != text {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestResolve_DisplayTextVerbatim(t *testing.T) {
	r := newTestResolver(mapSlugs{"notes/My Note (Draft).md": ""})
	corpus := NewCorpus([]string{"notes/My Note (Draft).md"})

	link := r.Resolve("My Note (Draft)", corpus, "notes/index.md", "")
	if link.Kind != LinkResolved {
		t.Fatalf("kind = %v, want resolved", link.Kind)
	}
	if !strings.HasPrefix(link.Text, "[My Note (Draft)](") {
		t.Errorf("display text altered: %q", link.Text)
	}
	if link.Href != "./My%20Note%20(Draft)" {
		t.Errorf("href = %q, want %q", link.Href, "./My%20Note%20(Draft)")
	}
}

func TestResolve_CaseSensitive(t *testing.T) {
	r := newTestResolver(mapSlugs{"Hello.md": ""})
	corpus := NewCorpus([]string{"Hello.md"})

	if link := r.Resolve("hello", corpus, "x.md", ""); link.Kind != LinkUnresolved {
		t.Errorf("kind = %v, want unresolved", link.Kind)
	}
	if link := r.Resolve("Hello", corpus, "x.md", ""); link.Kind != LinkResolved {
		t.Errorf("kind = %v, want resolved", link.Kind)
	}
}

func TestResolve_FirstListedWins(t *testing.T) {
	r := newTestResolver(mapSlugs{"a/dup.md": "first", "b/dup.md": "second"})
	corpus := NewCorpus([]string{"a/dup.md", "b/dup.md"})

	link := r.Resolve("dup", corpus, "index.md", "")
	if link.Target != "a/dup.md" {
		t.Errorf("target = %q, want %q", link.Target, "a/dup.md")
	}
	if link.Href != "./first" {
		t.Errorf("href = %q, want %q", link.Href, "./first")
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r := newTestResolver(mapSlugs{"posts/x.md": "x-slug"})
	corpus := NewCorpus([]string{"posts/x.md"})

	first := r.Resolve("x", corpus, "posts/y.md", "/p")
	second := r.Resolve("x", corpus, "posts/y.md", "/p")
	if first != second {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestFormat_SlugPrecedence(t *testing.T) {
	r := newTestResolver(mapSlugs{"posts/hello-world.md": "my-post"})

	link := r.Format("posts/hello-world.md", "hello-world", "posts/other.md", "")
	if link.Text != "[hello-world](./my-post)" {
		t.Errorf("text = %q", link.Text)
	}
}

func TestFormat_PercentEncodesOnlySpaces(t *testing.T) {
	r := newTestResolver(mapSlugs{"posts/a b&c#d.md": ""})

	link := r.Format("posts/a b&c#d.md", "a b&c#d", "posts/other.md", "")
	if link.Href != "./a%20b&c#d" {
		t.Errorf("href = %q, want %q", link.Href, "./a%20b&c#d")
	}
}

func TestFormat_PathPrefix(t *testing.T) {
	r := newTestResolver(mapSlugs{"p/t.md": ""})

	cases := map[string]string{
		"":       "./t",
		"/blog":  "/blog/t",
		"/blog/": "/blog/t",
		"..":     "../t",
	}
	for prefix, want := range cases {
		link := r.Format("p/t.md", "t", "p/s.md", prefix)
		if link.Href != want {
			t.Errorf("prefix %q: href = %q, want %q", prefix, link.Href, want)
		}
		if prefix != "" && !strings.HasPrefix(link.Href, strings.TrimSuffix(prefix, "/")) {
			t.Errorf("prefix %q: href %q does not start with prefix", prefix, link.Href)
		}
	}
}

func TestFormat_UnreadableFrontMatterFallsBackToStem(t *testing.T) {
	r := newTestResolver(mapSlugs{})

	link := r.Format("posts/gone.md", "gone", "posts/other.md", "")
	if link.Kind != LinkResolved || link.Href != "./gone" {
		t.Errorf("link = %+v, want resolved ./gone", link)
	}
}

func TestRewrite_BrokenLinkKeepsDocument(t *testing.T) {
	var logs bytes.Buffer
	r := NewResolver(
		WithSlugSource(mapSlugs{}),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	corpus := NewCorpus([]string{"posts/a.md"})

	got, links := r.RewriteLinks("before [[a]] middle [[nope]] after", corpus, "/abs/source.md", "")
	want := "before  middle [nope](/blog/) after"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if len(links) != 2 || links[0].Kind != LinkBroken || links[1].Kind != LinkUnresolved {
		t.Errorf("links = %+v", links)
	}
	if !strings.Contains(logs.String(), "unable to compute relative path") {
		t.Errorf("expected diagnostic, got %q", logs.String())
	}
}

func TestFormat_PathDiffUnavailable(t *testing.T) {
	var logs bytes.Buffer
	r := NewResolver(
		WithSlugSource(mapSlugs{}),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	link := r.Format("relative/target.md", "target", "/abs/source.md", "")
	if link.Kind != LinkBroken {
		t.Fatalf("kind = %v, want broken", link.Kind)
	}
	if link.Text != "" {
		t.Errorf("text = %q, want empty", link.Text)
	}
	if !strings.Contains(logs.String(), "unable to compute relative path") {
		t.Errorf("expected diagnostic, got %q", logs.String())
	}
}

func TestPlainMode_IgnoresSlug(t *testing.T) {
	r := NewResolver(WithLogger(quietLogger()))
	corpus := NewCorpus([]string{"posts/hello world.md"})

	got := r.Rewrite("[[hello world]]", corpus, "posts/other.md", "")
	if got != "[hello world](./hello%20world)" {
		t.Errorf("got %q", got)
	}
}

func TestRewriteLinks_ReportsKinds(t *testing.T) {
	r := newTestResolver(mapSlugs{"a.md": ""})
	corpus := NewCorpus([]string{"a.md", "rel/b.md"})

	_, links := r.RewriteLinks("[[a]] [[nope]] [[a]]", corpus, "s.md", "")
	if len(links) != 3 {
		t.Fatalf("len(links) = %d, want 3", len(links))
	}
	c := Count(links)
	if c.Resolved != 2 || c.Unresolved != 1 || c.Broken != 0 {
		t.Errorf("counts = %+v", c)
	}
}

func TestRewrite_ReadsFrontMatterFromDisk(t *testing.T) {
	dir := t.TempDir()
	posts := filepath.Join(dir, "posts")
	if err := os.MkdirAll(posts, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(posts, "hello-world.md")
	slugged := filepath.Join(posts, "renamed.md")
	source := filepath.Join(posts, "other.md")
	if err := os.WriteFile(target, []byte("# Hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(slugged, []byte("---\nslug: my-post\n---\n# Renamed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := Rewrite("See [[hello-world]] and [[renamed]].", []string{target, slugged}, source, "")
	want := "See [hello-world](./hello-world) and [renamed](./my-post)."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
