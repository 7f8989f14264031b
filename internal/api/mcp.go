package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/electroschematic/internal/appstate"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/pipeline"
	"github.com/kalambet/electroschematic/internal/schematic"
)

const recentHistoryLimit = 10

// MCPPipeline is the orchestrator surface the MCP tools use.
type MCPPipeline interface {
	Run(ctx context.Context, up pipeline.Upload) (schematic.HistoryItem, error)
	State() appstate.AppState
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline MCPPipeline
	Version  string
}

// NewMCPServer creates an MCP server with the analysis tools and the recent
// history resource registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"electroschematic",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("electroschematic: photograph a device, get an explanation of its parts and a textbook-style diagram."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("analyze_device",
			mcp.WithDescription("Analyze a photo of an electronic device and draw an educational diagram of how it works."),
			mcp.WithString("path", mcp.Description("Path to a JPEG, PNG or WEBP photo on the local filesystem"), mcp.Required()),
		),
		mcpAnalyzeDevice(deps),
	)

	s.AddTool(
		mcp.NewTool("list_history",
			mcp.WithDescription("List past analyses, newest first (summaries only)."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default all)")),
		),
		mcpListHistory(deps),
	)

	s.AddTool(
		mcp.NewTool("get_history_item",
			mcp.WithDescription("Return the full analysis and the diagram of one past run."),
			mcp.WithString("id", mcp.Description("History item id"), mcp.Required()),
		),
		mcpGetHistoryItem(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"history://recent",
			"Recent Analyses",
			mcp.WithResourceDescription("Last 10 analyses (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAnalyzeDevice(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}

		item, err := deps.Pipeline.Run(ctx, pipeline.FileUpload(path))
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return mcpItem(item)
	}
}

func mcpListHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		history := deps.Pipeline.State().History
		if limit := req.GetInt("limit", 0); limit > 0 && limit < len(history) {
			history = history[:limit]
		}

		out := make([]HistorySummary, 0, len(history))
		for _, item := range history {
			out = append(out, summarize(item))
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal history: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetHistoryItem(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		item, ok := deps.Pipeline.State().Find(id)
		if !ok {
			return mcpError(fmt.Sprintf("history item %s not found", id)), nil
		}
		return mcpItem(item)
	}
}

// mcpItem renders a run as its analysis JSON followed by the diagram.
func mcpItem(item schematic.HistoryItem) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(struct {
		ID        string                   `json:"id"`
		Timestamp int64                    `json:"timestamp"`
		Analysis  schematic.AnalysisResult `json:"analysis"`
		ShareText string                   `json:"shareText"`
	}{item.ID, item.Timestamp, item.Analysis, schematic.ShareText(item.Analysis)})
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal analysis: %v", err)), nil
	}

	result := mcpText(string(b))
	if item.GeneratedImage != "" {
		mimeType := "image/png"
		if raw, err := imagecodec.Decode(item.GeneratedImage); err == nil {
			mimeType = imagecodec.DetectMIME(raw)
		}
		result.Content = append(result.Content, mcp.ImageContent{
			Type:     "image",
			Data:     item.GeneratedImage,
			MIMEType: mimeType,
		})
	}
	return result, nil
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		history := deps.Pipeline.State().History
		if len(history) > recentHistoryLimit {
			history = history[:recentHistoryLimit]
		}
		out := make([]HistorySummary, 0, len(history))
		for _, item := range history {
			out = append(out, summarize(item))
		}

		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
