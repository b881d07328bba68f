package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jcdickinson/applefetch/internal/daemon"
	"github.com/jcdickinson/applefetch/internal/markdown"
	"github.com/jcdickinson/applefetch/internal/rpc"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

const resourceScheme = "appledoc://"

type Server struct {
	mcpServer *server.MCPServer
	client    *daemon.Client
}

func NewServer(socketPath string) (*Server, error) {
	client, err := daemon.ConnectOrSpawn(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}

	s := &Server{client: client}

	mcpServer := server.NewMCPServer(
		"applefetch",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s, nil
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("list_technologies",
			mcp.WithDescription("List Apple developer technologies (frameworks) with their documentation URIs and abstracts. Optionally filter by tag such as \"UI\" or \"Graphics\"."),
			mcp.WithString("tag",
				mcp.Description("Optional tag to filter by (case-insensitive)"),
			),
		),
		s.handleListTechnologies,
	)

	mcpServer.AddTool(
		mcp.NewTool("search_docs",
			mcp.WithDescription("Full-text search over Apple technologies and symbols. Returns appledoc:// URIs that can be read as resources. Symbols of a technology become searchable once its index is loaded; pass `technologies` to load them first."),
			mcp.WithString("query",
				mcp.Description("Search query"),
				mcp.Required(),
			),
			mcp.WithArray("kinds",
				mcp.Description("Optional document kinds: \"technology\" or \"symbol\""),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithArray("technologies",
				mcp.Description("Optional technology paths whose symbol index to load before searching, e.g. \"/documentation/swiftui\""),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default 10)"),
			),
		),
		s.handleSearchDocs,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_index",
			mcp.WithDescription("Show the symbol tree of the technology that owns a documentation path, as a markdown list of appledoc:// links."),
			mcp.WithString("path",
				mcp.Description("Documentation path, e.g. \"/documentation/swiftui\""),
				mcp.Required(),
			),
			mcp.WithNumber("depth",
				mcp.Description("Maximum tree depth (default 2, 0 for all)"),
			),
		),
		s.handleGetIndex,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_changes",
			mcp.WithDescription("List API changes (added, modified, deprecated) since the latest minor, major or beta SDK release."),
			mcp.WithString("path",
				mcp.Description("Documentation path (default: the technologies list)"),
			),
			mcp.WithString("key",
				mcp.Description("Release delta: minor (default), major or beta"),
			),
		),
		s.handleGetChanges,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			resourceScheme+"{+path}",
			"Apple documentation page",
			mcp.WithTemplateDescription("Read an Apple documentation page as markdown. Search and index results return these URIs."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

func (s *Server) handleListTechnologies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, _ := req.GetArguments()["tag"].(string)

	resp, err := s.client.Technologies(ctx, tag)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list technologies: %v", err)), nil
	}

	var b strings.Builder
	for _, t := range resp.Technologies {
		fmt.Fprintf(&b, "- [%s](%s%s)", t.Title, markdown.ResourceBase, t.Destination.Value)
		if len(t.Tags) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(t.Tags, ", "))
		}
		if t.Destination.Abstract != "" {
			b.WriteString(": " + t.Destination.Abstract)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return mcp.NewToolResultText("no technologies match"), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleSearchDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	searchReq := rpc.SearchRequest{
		Query:        query,
		Kinds:        stringSlice(args["kinds"]),
		Technologies: stringSlice(args["technologies"]),
	}
	if limit, ok := args["limit"].(float64); ok {
		searchReq.Limit = int(limit)
	}

	resp, err := s.client.Search(ctx, searchReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp.Results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleGetIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	depth := 2
	if d, ok := args["depth"].(float64); ok {
		depth = int(d)
	}

	resp, err := s.client.GetIndex(ctx, rpc.GetIndexRequest{Path: path, Depth: depth})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get index: %v", err)), nil
	}
	return mcp.NewToolResultText(markdown.RenderIndex(resp.Nodes, 0)), nil
}

func (s *Server) handleGetChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	key, _ := args["key"].(string)

	resp, err := s.client.Changes(ctx, rpc.ChangesRequest{Path: path, Key: key})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get changes: %v", err)), nil
	}

	if len(resp.Changes) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no changes since the latest %s release", resp.Key)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Changes since the latest %s release:\n\n", resp.Key)
	for _, c := range resp.Changes {
		fmt.Fprintf(&b, "- %s: %s\n", c.Change, c.Identifier)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	path, err := resourcePath(uri)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.GetDoc(ctx, rpc.GetDocRequest{Path: path})
	if err != nil {
		return nil, fmt.Errorf("getting doc: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Markdown,
		},
	}, nil
}

// resourcePath turns appledoc://documentation/swiftui/view#anchor into
// /documentation/swiftui/view.
func resourcePath(uri string) (string, error) {
	trimmed, ok := strings.CutPrefix(uri, resourceScheme)
	if !ok {
		return "", fmt.Errorf("invalid resource URI: %s", uri)
	}
	if i := strings.IndexByte(trimmed, '#'); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", fmt.Errorf("invalid resource URI: %s", uri)
	}
	return "/" + trimmed, nil
}

func stringSlice(v any) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
