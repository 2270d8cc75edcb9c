// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notecheck results for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notecheck/internal/address"
	"github.com/starford/notecheck/internal/index"
	"github.com/starford/notecheck/internal/resultservice"
)

const layoutURI = "notecheck://results-layout"

// Server wraps the MCP server with notecheck tools.
type Server struct {
	mcp *server.MCPServer
	svc *resultservice.Service
}

// New creates a new MCP server with all notecheck tools registered.
func New(svc *resultservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"notecheck",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("locate_results",
		mcp.WithDescription("Find result files by filename under the results tree. "+
			"Returns results-relative paths sorted by idx, model, prompt and timestamp."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Exact filename, e.g. gen_note.txt or eval_report.json")),
		mcp.WithString("idx", mcp.Description("Case filter: all, 3 or 3,4")),
		mcp.WithString("model", mcp.Description("Model filter")),
		mcp.WithString("prompt", mcp.Description("Prompt filter")),
	), s.locateResults)

	s.mcp.AddTool(mcp.NewTool("read_artifact",
		mcp.WithDescription("Read one result file by its results-relative path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("idx/model/prompt/timestamp/filename")),
	), s.readArtifact)

	s.mcp.AddTool(mcp.NewTool("get_standard",
		mcp.WithDescription("Return the standard note currently used as ground truth for a case."),
		mcp.WithNumber("idx", mcp.Required(), mcp.Description("Case index")),
	), s.getStandard)

	s.mcp.AddTool(mcp.NewTool("get_scores",
		mcp.WithDescription("Mean ROUGE precision, recall and F1 per case, model, prompt and rouge type."),
		mcp.WithString("idx", mcp.Description("Case filter")),
		mcp.WithString("model", mcp.Description("Model filter")),
		mcp.WithString("prompt", mcp.Description("Prompt filter")),
		mcp.WithBoolean("current", mcp.Description("Only records scored against the current standard")),
		mcp.WithBoolean("most_recent", mcp.Description("Only the latest run per case")),
	), s.getScores)

	s.mcp.AddTool(mcp.NewTool("search_artifacts",
		mcp.WithDescription("Full-text search through generated notes and reports."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("filename", mcp.Description("Only search files with this name")),
		mcp.WithString("idx", mcp.Description("Case filter")),
		mcp.WithString("model", mcp.Description("Model filter")),
		mcp.WithString("prompt", mcp.Description("Prompt filter")),
	), s.searchArtifacts)

	s.mcp.AddTool(mcp.NewTool("get_results_layout",
		mcp.WithDescription("Describes the results tree layout. Call this before building artifact paths."),
	), s.getResultsLayout)

	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Results Layout",
			mcp.WithResourceDescription("Addressing scheme of the notecheck results tree."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// Serve runs the stdio transport over in and out until ctx is cancelled or
// in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func filters(req mcp.CallToolRequest) (idx, model, prompt address.Filter) {
	return address.ParseFilter(req.GetString("idx", "")),
		address.ParseFilter(req.GetString("model", "")),
		address.ParseFilter(req.GetString("prompt", ""))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) locateResults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idx, model, prompt := filters(req)
	addrs, err := s.svc.Locate(ctx, filename, idx, model, prompt)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(addrs) == 0 {
		return mcp.NewToolResultText("no results found"), nil
	}
	paths := make([]string, len(addrs))
	for i, a := range addrs {
		paths[i] = a.Path()
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readArtifact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetArtifact(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(d.Content), nil
}

func (s *Server) getStandard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, err := req.RequireInt("idx")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	std, err := s.svc.GetStandard(ctx, idx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(std), nil
}

func (s *Server) getScores(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, model, prompt := filters(req)
	rows, err := s.svc.Scores(ctx, idx, model, prompt, req.GetBool("current", false), req.GetBool("most_recent", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rows), nil
}

func (s *Server) searchArtifacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, index.SearchQuery{
		Text:     query,
		Filename: req.GetString("filename", ""),
		Idx:      address.ParseFilter(req.GetString("idx", "")),
		Model:    address.ParseFilter(req.GetString("model", "")),
		Prompt:   address.ParseFilter(req.GetString("prompt", "")),
		Limit:    20,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return jsonResult(results), nil
}

func (s *Server) getResultsLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ResultsLayout), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     ResultsLayout,
		},
	}, nil
}
