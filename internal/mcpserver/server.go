// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes wikilink resolution tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/wikilinker/internal/apperr"
	"github.com/starford/wikilinker/internal/build"
)

const contractURI = "wikilinker://link-format"

// Server wraps the MCP server with wikilinker tools.
type Server struct {
	mcp *server.MCPServer
	svc *build.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *build.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"wikilinker",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_wikilinks",
		mcp.WithDescription("Rewrite every [[wikilink]] in the given Markdown text into a relative "+
			"Markdown link, as if the text were the entry at `source`. Read the link contract via "+
			"get_link_contract for the exact rules."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Vault path of the linking entry (e.g. posts/draft.md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown text containing [[wikilinks]]")),
	), s.resolveWikilinks)

	s.mcp.AddTool(mcp.NewTool("resolve_reference",
		mcp.WithDescription("Resolve one wikilink reference (an entry filename without extension)."),
		mcp.WithString("reference", mcp.Required(), mcp.Description("Reference text as written inside [[ ]]")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Vault path of the linking entry")),
	), s.resolveReference)

	s.mcp.AddTool(mcp.NewTool("render_entry",
		mcp.WithDescription("Return a vault entry with its wikilinks rewritten."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the entry (e.g. posts/hello.md)")),
	), s.renderEntry)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List every entry in the vault, one path per line."),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("get_link_contract",
		mcp.WithDescription("Returns the rules used to turn wikilinks into Markdown links."),
	), s.getLinkContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Link Format Contract",
			mcp.WithResourceDescription("How [[wikilinks]] are matched and rewritten."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) resolveWikilinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rendered, err := s.svc.RewriteText(ctx, source, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(rendered.Content), nil
}

func (s *Server) resolveReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reference, err := req.RequireString("reference")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	link, err := s.svc.ResolveReference(ctx, reference, source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(link, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) renderEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rendered, err := s.svc.Render(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(rendered.Content), nil
}

func (s *Server) listEntries(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.svc.Entries(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, 0, len(metas))
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getLinkContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LinkFormatContract), nil
}

func (s *Server) readLinkContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     LinkFormatContract,
		},
	}, nil
}
