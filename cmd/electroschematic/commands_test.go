package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/electroschematic/internal/config"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/pipeline"
	"github.com/kalambet/electroschematic/internal/schematic"
	"github.com/kalambet/electroschematic/internal/storage"
)

var ctx = context.Background()

var (
	photoBytes   = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR photo")
	diagramBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR diagram")
)

var radio = schematic.AnalysisResult{
	DeviceName: "Radio",
	Summary:    "It turns invisible waves into sound.",
	Components: []schematic.ComponentInfo{
		{Name: "Antenna", Description: "Metal rod", WorkflowRole: "Catches the waves", Analogy: "Like a net", ScientificPrinciple: "Electromagnetic induction"},
		{Name: "Speaker", Description: "Paper cone", WorkflowRole: "Makes the sound", Analogy: "Like a drum", ScientificPrinciple: "Magnetism"},
	},
}

// captureOutput redirects stdout and stderr writers for one test.
func captureOutput(t *testing.T) (out, errOut *bytes.Buffer) {
	t.Helper()
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr, prevColor := stdout, stderr, noColor
	stdout, stderr, noColor = out, errOut, true
	t.Cleanup(func() { stdout, stderr, noColor = prevOut, prevErr, prevColor })
	return out, errOut
}

type stubAnalyzer struct{ err error }

func (s stubAnalyzer) Analyze(context.Context, imagecodec.Image) (schematic.AnalysisResult, error) {
	return radio, s.err
}

type stubDiagrams struct{}

func (stubDiagrams) Generate(context.Context, imagecodec.Image, schematic.AnalysisResult) (string, error) {
	return imagecodec.Encode(diagramBytes), nil
}

func newTestHistory(t *testing.T) *storage.History {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	h := storage.NewHistoryFromBackend(store)
	t.Cleanup(func() { h.Close() })
	return h
}

func newTestOrchestrator(t *testing.T, analyzeErr error) (*pipeline.Orchestrator, *storage.History) {
	t.Helper()
	h := newTestHistory(t)
	return pipeline.New(pipeline.Deps{
		Analyzer: stubAnalyzer{err: analyzeErr},
		Diagrams: stubDiagrams{},
		History:  h,
	}), h
}

func writePhoto(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radio.png")
	if err := os.WriteFile(path, photoBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func seedHistory(t *testing.T, h *storage.History, items ...schematic.HistoryItem) {
	t.Helper()
	for _, it := range items {
		if err := h.Save(ctx, it); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
}

func historyItem(id string, ts int64) schematic.HistoryItem {
	return schematic.HistoryItem{
		ID:             id,
		Timestamp:      ts,
		OriginalImage:  imagecodec.Encode(photoBytes),
		GeneratedImage: imagecodec.Encode(diagramBytes),
		Analysis:       radio,
	}
}

func TestRunAnalyze_WritesDiagramAndPrints(t *testing.T) {
	out, errOut := captureOutput(t)
	orch, h := newTestOrchestrator(t, nil)
	diagramPath := filepath.Join(t.TempDir(), "diagram.png")

	if err := runAnalyze(ctx, orch, writePhoto(t), diagramPath, false); err != nil {
		t.Fatalf("runAnalyze: %v", err)
	}

	got, err := os.ReadFile(diagramPath)
	if err != nil {
		t.Fatalf("reading diagram: %v", err)
	}
	if !bytes.Equal(got, diagramBytes) {
		t.Error("diagram file content differs")
	}

	text := out.String()
	for _, want := range []string{"Radio", "Antenna", "Speaker", "I just found out how a Radio works"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(errOut.String(), "Diagram written to") {
		t.Errorf("stderr = %q", errOut.String())
	}

	items, err := h.Items(ctx)
	if err != nil || len(items) != 1 {
		t.Errorf("stored items = %d, %v", len(items), err)
	}
}

func TestRunAnalyze_JSON(t *testing.T) {
	out, _ := captureOutput(t)
	orch, _ := newTestOrchestrator(t, nil)

	if err := runAnalyze(ctx, orch, writePhoto(t), "", true); err != nil {
		t.Fatalf("runAnalyze: %v", err)
	}

	var body struct {
		ID        string                   `json:"id"`
		Analysis  schematic.AnalysisResult `json:"analysis"`
		ShareText string                   `json:"shareText"`
	}
	if err := json.Unmarshal(out.Bytes(), &body); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if body.ID == "" || body.Analysis.DeviceName != "Radio" || body.ShareText == "" {
		t.Errorf("body = %+v", body)
	}
	if strings.Contains(out.String(), "generatedImage") {
		t.Error("JSON output should not carry image payloads")
	}
}

func TestRunAnalyze_Failure(t *testing.T) {
	captureOutput(t)
	orch, h := newTestOrchestrator(t, schematic.ErrAnalysis)
	diagramPath := filepath.Join(t.TempDir(), "diagram.png")

	err := runAnalyze(ctx, orch, writePhoto(t), diagramPath, false)
	if !errors.Is(err, schematic.ErrAnalysis) {
		t.Fatalf("err = %v, want ErrAnalysis", err)
	}
	if _, statErr := os.Stat(diagramPath); !os.IsNotExist(statErr) {
		t.Error("diagram file written despite failure")
	}
	if items := h.LoadAll(ctx); len(items) != 0 {
		t.Errorf("stored %d items after failure", len(items))
	}
}

func TestRunAnalyze_MissingFile(t *testing.T) {
	captureOutput(t)
	orch, _ := newTestOrchestrator(t, nil)

	err := runAnalyze(ctx, orch, filepath.Join(t.TempDir(), "nope.jpg"), "", false)
	if !errors.Is(err, schematic.ErrRead) {
		t.Errorf("err = %v, want ErrRead", err)
	}
}

func TestListHistory(t *testing.T) {
	out, _ := captureOutput(t)
	h := newTestHistory(t)
	seedHistory(t, h, historyItem("old", 1000), historyItem("new", 2000), historyItem("mid", 1500))

	if err := listHistory(ctx, h, 0); err != nil {
		t.Fatalf("listHistory: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("header = %q", lines[0])
	}
	for i, id := range []string{"new", "mid", "old"} {
		if !strings.HasPrefix(lines[i+1], id) {
			t.Errorf("line %d = %q, want prefix %q", i+1, lines[i+1], id)
		}
	}

	out.Reset()
	if err := listHistory(ctx, h, 1); err != nil {
		t.Fatal(err)
	}
	if n := len(strings.Split(strings.TrimSpace(out.String()), "\n")); n != 2 {
		t.Errorf("limit 1 printed %d lines", n)
	}
}

func TestListHistory_Empty(t *testing.T) {
	out, errOut := captureOutput(t)

	if err := listHistory(ctx, newTestHistory(t), 0); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty", out.String())
	}
	if !strings.Contains(errOut.String(), "No analyses yet") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestShowHistory(t *testing.T) {
	out, _ := captureOutput(t)
	h := newTestHistory(t)
	seedHistory(t, h, historyItem("abc", 1000))

	if err := showHistory(ctx, h, "abc", false); err != nil {
		t.Fatalf("showHistory: %v", err)
	}
	if !strings.Contains(out.String(), "Electromagnetic induction") {
		t.Errorf("output missing component detail:\n%s", out.String())
	}

	err := showHistory(ctx, h, "missing", false)
	if err == nil || !strings.Contains(err.Error(), "no analysis with id missing") {
		t.Errorf("err = %v", err)
	}
}

func TestExportImage(t *testing.T) {
	captureOutput(t)
	h := newTestHistory(t)
	seedHistory(t, h, historyItem("abc", 1000))
	dir := t.TempDir()

	tests := []struct {
		kind string
		want []byte
	}{
		{"generated", diagramBytes},
		{"original", photoBytes},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			path := filepath.Join(dir, tt.kind+".png")
			if err := exportImage(ctx, h, "abc", tt.kind, path); err != nil {
				t.Fatalf("exportImage: %v", err)
			}
			got, _ := os.ReadFile(path)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("%s image content differs", tt.kind)
			}
		})
	}

	if err := exportImage(ctx, h, "abc", "thumbnail", filepath.Join(dir, "x.png")); err == nil {
		t.Error("expected error for unknown kind")
	}
	if err := exportImage(ctx, h, "missing", "generated", filepath.Join(dir, "y.png")); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestShowStatus_Running(t *testing.T) {
	_, errOut := captureOutput(t)

	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			w.Write([]byte(`{"status":"ok"}`))
		case "/state":
			w.Write([]byte(`{"status":"complete","history":[{"id":"a"},{"id":"b"}],"historyCount":2,"version":7}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := config.Config{}
	cfg.Server.Port = 4100
	cfg.Gemini.AnalysisModel = "gemini-2.5-flash"
	cfg.Storage.Backend = "sqlite"
	client := &apiClient{baseURL: srv.URL, httpClient: srv.Client()}

	showStatus(ctx, client, cfg)

	text := errOut.String()
	for _, want := range []string{"running on port 4100", "Status: complete", "History: 2 items", "API key: missing", "Storage: sqlite"} {
		if !strings.Contains(text, want) {
			t.Errorf("status output missing %q:\n%s", want, text)
		}
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}
}

func TestShowStatus_Stopped(t *testing.T) {
	_, errOut := captureOutput(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := &apiClient{baseURL: url, httpClient: http.DefaultClient}
	showStatus(ctx, client, config.Config{})

	if !strings.Contains(errOut.String(), "Server: stopped") {
		t.Errorf("status output:\n%s", errOut.String())
	}
}

func TestStorageOptions(t *testing.T) {
	cfg := config.Config{}
	cfg.Storage.Backend = "minio"
	cfg.Storage.DataDir = "/tmp/x"
	cfg.Storage.RedisAddr = "redis:6379"
	cfg.Storage.RedisDB = 2
	cfg.Storage.MinioEndpoint = "minio:9000"
	cfg.Storage.MinioBucket = "b"
	cfg.Storage.MinioSecretKey = "s"
	cfg.Storage.MinioUseSSL = true

	opts := storageOptions(cfg)
	if opts.Backend != storage.BackendMinio || opts.DataDir != "/tmp/x" || opts.RedisAddr != "redis:6379" || opts.RedisDB != 2 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Minio.Endpoint != "minio:9000" || opts.Minio.Bucket != "b" || opts.Minio.SecretKey != "s" || !opts.Minio.UseSSL {
		t.Errorf("minio = %+v", opts.Minio)
	}
}

func TestAnalysisMarkdown(t *testing.T) {
	md := analysisMarkdown(radio)
	if !strings.HasPrefix(md, "# Radio\n") {
		t.Errorf("markdown starts %q", md[:20])
	}
	if strings.Index(md, "Antenna") > strings.Index(md, "Speaker") {
		t.Error("components out of order")
	}

	empty := analysisMarkdown(schematic.AnalysisResult{DeviceName: "Rock", Summary: "A rock."})
	if !strings.Contains(empty, "No components identified") {
		t.Errorf("empty markdown = %q", empty)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "warn", "json").Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}

	newLogger(&buf, "debug", "json").Debug("shown", "k", "v")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json handler output: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("record = %v", rec)
	}

	buf.Reset()
	newLogger(&buf, "bogus", "bogus").Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text handler output = %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
