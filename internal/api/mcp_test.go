package api

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/electroschematic/internal/appstate"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/pipeline"
	"github.com/kalambet/electroschematic/internal/storage"
)

// --- helpers ---

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func writePhoto(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.png")
	if err := os.WriteFile(path, pngBytes, 0o644); err != nil {
		t.Fatalf("writing photo: %v", err)
	}
	return path
}

func completedEnv(t *testing.T, runs int) *testEnv {
	t.Helper()
	env := newTestEnv(t, false)
	for range runs {
		if _, err := env.orch.Run(context.Background(), pipelineUpload()); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	return env
}

// --- tests ---

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(MCPDeps{Pipeline: newTestEnv(t, false).orch})
	if s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_AnalyzeDevice(t *testing.T) {
	env := newTestEnv(t, false)
	handler := mcpAnalyzeDevice(MCPDeps{Pipeline: env.orch})

	result, err := handler(context.Background(), makeCallToolRequest("analyze_device", map[string]interface{}{
		"path": writePhoto(t),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var body struct {
		ID       string `json:"id"`
		Analysis struct {
			DeviceName string `json:"deviceName"`
		} `json:"analysis"`
		ShareText string `json:"shareText"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &body); err != nil {
		t.Fatalf("tool text is not JSON: %v", err)
	}
	if body.Analysis.DeviceName != "Toaster" || body.ID == "" {
		t.Errorf("body = %+v", body)
	}
	if !strings.Contains(body.ShareText, "Toaster") {
		t.Errorf("ShareText = %q", body.ShareText)
	}

	if len(result.Content) != 2 {
		t.Fatalf("content len = %d, want 2", len(result.Content))
	}
	img, ok := result.Content[1].(mcp.ImageContent)
	if !ok {
		t.Fatalf("expected ImageContent, got %T", result.Content[1])
	}
	if img.MIMEType != "image/png" || img.Data != imagecodec.Encode(diagramBytes) {
		t.Errorf("image = %s, %d chars", img.MIMEType, len(img.Data))
	}

	if s := env.orch.State(); s.Status != appstate.StatusComplete || len(s.History) != 1 {
		t.Errorf("state = %s with %d history items", s.Status, len(s.History))
	}
}

func TestMCPTool_AnalyzeDevice_MissingPath(t *testing.T) {
	handler := mcpAnalyzeDevice(MCPDeps{Pipeline: newTestEnv(t, false).orch})

	result, err := handler(context.Background(), makeCallToolRequest("analyze_device", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing path")
	}
}

func TestMCPTool_AnalyzeDevice_ReadFailure(t *testing.T) {
	env := newTestEnv(t, false)
	handler := mcpAnalyzeDevice(MCPDeps{Pipeline: env.orch})

	result, _ := handler(context.Background(), makeCallToolRequest("analyze_device", map[string]interface{}{
		"path": filepath.Join(t.TempDir(), "nope.png"),
	}))
	if !result.IsError {
		t.Fatal("expected tool error for a missing file")
	}
	if !strings.Contains(toolText(t, result), "read image") {
		t.Errorf("message = %q", toolText(t, result))
	}
	if s := env.orch.State(); s.Status != appstate.StatusError {
		t.Errorf("Status = %s, want error", s.Status)
	}
}

func TestMCPTool_AnalyzeDevice_AnalysisFailure(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	history := storage.NewHistoryFromBackend(store)
	defer history.Close()

	orch := pipeline.New(pipeline.Deps{
		Analyzer: stubAnalyzer{err: errBoom},
		Diagrams: stubDiagrams{},
		History:  history,
	})
	handler := mcpAnalyzeDevice(MCPDeps{Pipeline: orch})

	result, _ := handler(context.Background(), makeCallToolRequest("analyze_device", map[string]interface{}{
		"path": writePhoto(t),
	}))
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if !strings.Contains(toolText(t, result), "boom") {
		t.Errorf("message = %q", toolText(t, result))
	}
	if items := history.LoadAll(context.Background()); len(items) != 0 {
		t.Errorf("stored %d items after failure", len(items))
	}
}

func TestMCPTool_ListHistory(t *testing.T) {
	env := completedEnv(t, 3)
	handler := mcpListHistory(MCPDeps{Pipeline: env.orch})

	result, err := handler(context.Background(), makeCallToolRequest("list_history", map[string]interface{}{
		"limit": float64(2),
	}))
	if err != nil || result.IsError {
		t.Fatalf("unexpected error: %v", err)
	}

	var list []HistorySummary
	if err := json.Unmarshal([]byte(toolText(t, result)), &list); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	want := env.orch.State().History
	if list[0].ID != want[0].ID || list[1].ID != want[1].ID {
		t.Error("list is not newest first")
	}
}

func TestMCPTool_ListHistory_Empty(t *testing.T) {
	handler := mcpListHistory(MCPDeps{Pipeline: newTestEnv(t, false).orch})

	result, _ := handler(context.Background(), makeCallToolRequest("list_history", nil))
	if got := toolText(t, result); got != "[]" {
		t.Errorf("text = %q, want []", got)
	}
}

func TestMCPTool_GetHistoryItem(t *testing.T) {
	env := completedEnv(t, 1)
	id := env.orch.State().History[0].ID
	handler := mcpGetHistoryItem(MCPDeps{Pipeline: env.orch})

	result, _ := handler(context.Background(), makeCallToolRequest("get_history_item", map[string]interface{}{"id": id}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), id) {
		t.Error("text does not mention the item id")
	}
	if len(result.Content) != 2 {
		t.Errorf("content len = %d, want 2", len(result.Content))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("get_history_item", map[string]interface{}{"id": "missing"}))
	if !result.IsError {
		t.Error("expected tool error for unknown id")
	}
}

func TestMCPResource_Recent(t *testing.T) {
	env := completedEnv(t, 12)
	handler := mcpResourceRecent(MCPDeps{Pipeline: env.orch})

	contents, err := handler(context.Background(), makeReadResourceRequest("history://recent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents len = %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "history://recent" || tc.MIMEType != "application/json" {
		t.Errorf("URI = %q, MIMEType = %q", tc.URI, tc.MIMEType)
	}

	var list []HistorySummary
	if err := json.Unmarshal([]byte(tc.Text), &list); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if len(list) != recentHistoryLimit {
		t.Errorf("len = %d, want %d", len(list), recentHistoryLimit)
	}
}
