package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notecheck/internal/index"
	"github.com/starford/notecheck/internal/models"
	"github.com/starford/notecheck/internal/resultservice"
	"github.com/starford/notecheck/internal/standards"
	"github.com/starford/notecheck/internal/storage"
	"github.com/starford/notecheck/internal/testutil"
)

const (
	genRel  = "3/llama3/gen/1000.000000/gen_note.txt"
	evalRel = "3/llama3/gen/1000.000000/eval_report.json"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	root, stdDir := testutil.TestResults(t)
	db := testutil.TestDB(t)
	testutil.WriteArtifact(t, root, genRel, "Patient reports orthopnea.")
	testutil.WriteArtifact(t, root, evalRel, testutil.EvalReport(t, standards.Reference, 0.25))
	if err := index.Sync(db, root, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatal(err)
	}

	svc := resultservice.NewService(storage.NewFS(), db, root, standards.New(stdDir), map[int]string{3: "reference note"})
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked
	// directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "locate_results":
		result, err = srv.locateResults(ctx, req)
	case "read_artifact":
		result, err = srv.readArtifact(ctx, req)
	case "get_standard":
		result, err = srv.getStandard(ctx, req)
	case "get_scores":
		result, err = srv.getScores(ctx, req)
	case "search_artifacts":
		result, err = srv.searchArtifacts(ctx, req)
	case "get_results_layout":
		result, err = srv.getResultsLayout(ctx, req)
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

func TestLocateAndReadArtifact(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "locate_results", map[string]any{"filename": "gen_note.txt", "idx": "3"})
	if text := resultText(r); text != genRel {
		t.Fatalf("locate result = %q", text)
	}

	r = callTool(t, srv, "read_artifact", map[string]any{"path": genRel})
	if text := resultText(r); text != "Patient reports orthopnea." {
		t.Errorf("read result = %q", text)
	}
}

func TestLocateNoMatches(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "locate_results", map[string]any{"filename": "gen_note.txt", "model": "gpt"})
	if text := resultText(r); text != "no results found" {
		t.Errorf("locate result = %q", text)
	}
}

func TestReadArtifactMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_artifact", map[string]any{"path": "3/llama3/gen/1000.000000/nope.txt"})
	if !r.IsError {
		t.Error("expected error for missing artifact")
	}
	r = callTool(t, srv, "read_artifact", map[string]any{"path": "nope.txt"})
	if !r.IsError {
		t.Error("expected error for malformed path")
	}
}

func TestGetStandard(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_standard", map[string]any{"idx": float64(3)})
	var std models.Standard
	if err := json.Unmarshal([]byte(resultText(r)), &std); err != nil {
		t.Fatalf("decode: %v (%q)", err, resultText(r))
	}
	if !std.Reference || std.Content != "reference note" {
		t.Errorf("std = %+v", std)
	}

	r = callTool(t, srv, "get_standard", map[string]any{"idx": float64(8)})
	if !r.IsError {
		t.Error("expected error for unknown idx")
	}
}

func TestGetScores(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_scores", map[string]any{"most_recent": true})
	var rows []models.ScoreRow
	if err := json.Unmarshal([]byte(resultText(r)), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].R != 0.25 {
		t.Errorf("recall = %v, want 0.25", rows[0].R)
	}
}

func TestSearchArtifacts(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_artifacts", map[string]any{"query": "orthopnea"})
	if text := resultText(r); !strings.Contains(text, genRel) {
		t.Errorf("search result = %q", text)
	}
}

func TestResultsLayout(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_results_layout", map[string]any{})
	if text := resultText(r); !strings.Contains(text, "<idx>/<model>/<prompt>/<timestamp>/<filename>") {
		t.Errorf("layout = %q", text)
	}
}
