package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/wikilinker/internal/build"
	"github.com/starford/wikilinker/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	_, store := testutil.TestVault(t, map[string]string{
		"posts/hello-world.md": "# Hello\n",
		"posts/slugged.md":     "---\nslug: my-post\n---\n",
		"posts/other.md":       "See [[hello-world]].",
	})
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := build.NewService(store, build.WithLogger(logger), build.WithPathPrefix("/notes"))
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "resolve_wikilinks":
		result, err = srv.resolveWikilinks(ctx, req)
	case "resolve_reference":
		result, err = srv.resolveReference(ctx, req)
	case "render_entry":
		result, err = srv.renderEntry(ctx, req)
	case "list_entries":
		result, err = srv.listEntries(ctx, req)
	case "get_link_contract":
		result, err = srv.getLinkContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestResolveWikilinks(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "resolve_wikilinks", map[string]interface{}{
		"source":  "posts/draft.md",
		"content": "[[hello-world]], [[slugged]], [[ghost]]",
	})
	want := "[hello-world](/notes/hello-world), [slugged](/notes/my-post), [ghost](/blog/)"
	if got := resultText(r); got != want {
		t.Errorf("result = %q, want %q", got, want)
	}
}

func TestResolveWikilinks_MissingArgs(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "resolve_wikilinks", map[string]interface{}{"content": "x"})
	if !r.IsError {
		t.Error("expected error without source")
	}
}

func TestResolveReference(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "resolve_reference", map[string]interface{}{
		"reference": "slugged",
		"source":    "posts/other.md",
	})
	var link struct {
		Href string `json:"href"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &link); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if link.Href != "/notes/my-post" || link.Kind != "resolved" {
		t.Errorf("link = %+v", link)
	}
}

func TestRenderEntry(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "render_entry", map[string]interface{}{"path": "posts/other.md"})
	if got := resultText(r); got != "See [hello-world](/notes/hello-world)." {
		t.Errorf("render = %q", got)
	}
}

func TestRenderEntryMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "render_entry", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing entry")
	}
}

func TestListEntries(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "list_entries", map[string]interface{}{})
	want := "posts/hello-world.md\nposts/other.md\nposts/slugged.md"
	if got := resultText(r); got != want {
		t.Errorf("list = %q, want %q", got, want)
	}
}

func TestGetLinkContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_link_contract", nil)
	if !strings.Contains(resultText(r), "/blog/") {
		t.Error("contract should document the fallback route")
	}
}
