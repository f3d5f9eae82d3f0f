// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Raido maintenance tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/library"
	"github.com/starford/raido/internal/maintenance"
	"github.com/starford/raido/internal/rename"
)

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *maintenance.Service
	hist  history.Store
	index *library.Index
}

// New creates a new MCP server with all Raido tools registered.
func New(svc *maintenance.Service, hist history.Store, ix *library.Index) *Server {
	s := &Server{svc: svc, hist: hist, index: ix}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_assets",
		mcp.WithDescription("List indexed library assets (LoRAs, embeddings)."),
		mcp.WithString("kind", mcp.Description("Optional kind filter: lora, embedding or other")),
	), s.listAssets)

	s.mcp.AddTool(mcp.NewTool("rescan_library",
		mcp.WithDescription("Rebuild the library index from the filesystem. "+
			"Invalidates any rename proposals derived earlier."),
	), s.rescanLibrary)

	s.mcp.AddTool(mcp.NewTool("scan_changes",
		mcp.WithDescription("List the rename proposals a sanitization run would apply: "+
			"assets whose filename is not in portable form, with target names, affected "+
			"sidecars and affected history records. Nothing is changed."),
	), s.scanChanges)

	s.mcp.AddTool(mcp.NewTool("sanitize_library",
		mcp.WithDescription("Derive and execute every sanitization rename. Each rename "+
			"propagates to sidecars, embedded metadata and history prompts, and rolls "+
			"back alone on failure. Returns the per-plan report."),
	), s.sanitizeLibrary)

	s.mcp.AddTool(mcp.NewTool("missing_references",
		mcp.WithDescription("List history prompt references that fail to resolve against "+
			"the current library index, with ranked similarity candidates. Read the "+
			"raido://reference-syntax resource for the tag forms being matched."),
	), s.missingReferences)

	s.mcp.AddTool(mcp.NewTool("resolve_missing",
		mcp.WithDescription("Rewrite one broken reference name to an existing asset's "+
			"display name across all history prompts. History-only; no files move."),
		mcp.WithString("broken", mcp.Required(), mcp.Description("The broken name as it appears in prompts")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Display name of an indexed asset")),
	), s.resolveMissing)

	s.mcp.AddTool(mcp.NewTool("search_history",
		mcp.WithDescription("Full-text search through history prompt text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchHistory)

	s.mcp.AddTool(mcp.NewTool("get_reference_contract",
		mcp.WithDescription("Returns the reference tag syntax contract. Call this before "+
			"interpreting or editing prompt text so tag forms are handled correctly."),
	), s.getReferenceContract)

	// Resource: reference tag syntax contract.
	s.mcp.AddResource(
		mcp.NewResource("raido://reference-syntax", "Reference Tag Syntax",
			mcp.WithResourceDescription("The reference tag forms embedded in prompt text and the sidecar naming convention."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readReferenceResource,
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

func (s *Server) listAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := ""
	if k, err := req.RequireString("kind"); err == nil {
		kind = k
	}

	assets := s.index.All()
	if kind != "" {
		filtered := assets[:0]
		for _, a := range assets {
			if string(a.Kind) == kind {
				filtered = append(filtered, a)
			}
		}
		assets = filtered
	}
	if len(assets) == 0 {
		return mcp.NewToolResultText("no assets indexed"), nil
	}
	out, _ := json.MarshalIndent(assets, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) rescanLibrary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Rescan(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("indexed %d assets (generation %d)",
		len(s.index.All()), s.index.Generation())), nil
}

func (s *Server) scanChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plans, err := s.svc.ScanForChanges(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(plans) == 0 {
		return mcp.NewToolResultText("library is clean; no renames proposed"), nil
	}
	out, _ := json.MarshalIndent(plans, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) sanitizeLibrary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.svc.SanitizeLibrary(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("library is clean; nothing to do"), nil
	}
	return mcp.NewToolResultText(formatReport(results)), nil
}

func (s *Server) missingReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	missing, err := s.svc.MissingReferences(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(missing) == 0 {
		return mcp.NewToolResultText("every history reference resolves"), nil
	}
	out, _ := json.MarshalIndent(missing, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resolveMissing(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	broken, err := req.RequireString("broken")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.ResolveMissing(ctx, map[string]string{broken: target})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatReport(results)), nil
}

func (s *Server) searchHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.hist.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getReferenceContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ReferenceSyntaxContract), nil
}

func (s *Server) readReferenceResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://reference-syntax",
			MIMEType: "text/markdown",
			Text:     ReferenceSyntaxContract,
		},
	}, nil
}

// formatReport renders per-plan results as one line each.
func formatReport(results []*rename.Result) string {
	var b strings.Builder
	for _, res := range results {
		switch res.State {
		case rename.StateCommitted:
			fmt.Fprintf(&b, "committed: %s -> %s (%d prompt replacements)\n",
				res.Plan.OldName, res.Plan.NewName, res.Replacements)
		default:
			fmt.Fprintf(&b, "%s: %s -> %s at step %s: %s\n",
				res.State, res.Plan.OldName, res.Plan.NewName, res.FailedStep, res.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
