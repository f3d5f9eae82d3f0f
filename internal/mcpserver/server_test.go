package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/library"
	"github.com/starford/raido/internal/maintenance"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/rename"
	"github.com/starford/raido/internal/resolve"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
)

func testServer(t *testing.T) (*Server, string, *history.DB) {
	t.Helper()

	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}

	db, err := history.Open(filepath.Join(t.TempDir(), "raido-mcp-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ix := library.NewIndex()
	scanner := library.NewScanner(store, []string{".safetensors"}, logger)
	co := rename.NewCoordinator(store, db, ix, sidecar.NewRegistry(sidecar.DefaultSuffixes()), logger)
	svc := maintenance.NewService(store, db, ix, scanner, co, resolve.New(0.5, 0.95, 5), logger)

	srv := New(svc, db, ix)
	return srv, root, db
}

func writeAsset(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we test
	// through the tool handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_assets":
		result, err = srv.listAssets(ctx, req)
	case "rescan_library":
		result, err = srv.rescanLibrary(ctx, req)
	case "scan_changes":
		result, err = srv.scanChanges(ctx, req)
	case "sanitize_library":
		result, err = srv.sanitizeLibrary(ctx, req)
	case "missing_references":
		result, err = srv.missingReferences(ctx, req)
	case "resolve_missing":
		result, err = srv.resolveMissing(ctx, req)
	case "search_history":
		result, err = srv.searchHistory(ctx, req)
	case "get_reference_contract":
		result, err = srv.getReferenceContract(ctx, req)
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

func TestRescanAndListAssets(t *testing.T) {
	srv, root, _ := testServer(t)
	writeAsset(t, root, "loras/style_anime.safetensors")
	writeAsset(t, root, "embeddings/neg_quality.safetensors")

	r := callTool(t, srv, "rescan_library", nil)
	if text := resultText(r); !strings.Contains(text, "indexed 2 assets") {
		t.Errorf("rescan result = %q", text)
	}

	r = callTool(t, srv, "list_assets", map[string]interface{}{"kind": "embedding"})
	text := resultText(r)
	if !strings.Contains(text, "neg_quality") || strings.Contains(text, "style_anime") {
		t.Errorf("filtered list = %q", text)
	}
}

func TestScanChangesAndSanitize(t *testing.T) {
	srv, root, db := testServer(t)
	writeAsset(t, root, "loras/My Style.safetensors")
	callTool(t, srv, "rescan_library", nil)

	err := db.Insert(models.HistoryRecord{ID: "rec-1", Prompt: "<lora:My Style:0.5>", Timestamp: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "scan_changes", nil)
	if text := resultText(r); !strings.Contains(text, "my_style") {
		t.Errorf("scan_changes = %q", text)
	}

	r = callTool(t, srv, "sanitize_library", nil)
	text := resultText(r)
	if !strings.Contains(text, "committed: My Style -> my_style") {
		t.Errorf("sanitize report = %q", text)
	}

	rec, err := db.Get("rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Prompt != "<lora:my_style:0.5>" {
		t.Errorf("prompt = %q", rec.Prompt)
	}

	r = callTool(t, srv, "scan_changes", nil)
	if text := resultText(r); !strings.Contains(text, "clean") {
		t.Errorf("second scan = %q", text)
	}
}

func TestMissingAndResolve(t *testing.T) {
	srv, root, db := testServer(t)
	writeAsset(t, root, "loras/style_anime.safetensors")
	callTool(t, srv, "rescan_library", nil)

	err := db.Insert(models.HistoryRecord{ID: "rec-1", Prompt: "<lora:style-anime:0.8>", Timestamp: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "missing_references", nil)
	if text := resultText(r); !strings.Contains(text, "style-anime") {
		t.Errorf("missing = %q", text)
	}

	r = callTool(t, srv, "resolve_missing", map[string]interface{}{
		"broken": "style-anime",
		"target": "style_anime",
	})
	if r.IsError {
		t.Fatalf("resolve failed: %q", resultText(r))
	}

	rec, err := db.Get("rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Prompt != "<lora:style_anime:0.8>" {
		t.Errorf("prompt = %q", rec.Prompt)
	}
}

func TestResolveMissingUnknownTarget(t *testing.T) {
	srv, _, _ := testServer(t)
	callTool(t, srv, "rescan_library", nil)

	r := callTool(t, srv, "resolve_missing", map[string]interface{}{
		"broken": "x",
		"target": "no_such_asset",
	})
	if !r.IsError {
		t.Error("expected error for unknown target")
	}
}

func TestSearchHistory(t *testing.T) {
	srv, _, db := testServer(t)
	err := db.Insert(models.HistoryRecord{ID: "rec-1", Prompt: "castle at dusk", Timestamp: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "search_history", map[string]interface{}{"query": "castle"})
	if text := resultText(r); !strings.Contains(text, "rec-1") {
		t.Errorf("search = %q", text)
	}
}

func TestReferenceContract(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_reference_contract", nil)
	text := resultText(r)
	if !strings.Contains(text, "<lora:Name:weight>") {
		t.Errorf("contract missing tag form: %q", text)
	}
}
