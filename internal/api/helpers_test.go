package api

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalambet/electroschematic/internal/appstate"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/pipeline"
	"github.com/kalambet/electroschematic/internal/schematic"
	"github.com/kalambet/electroschematic/internal/storage"
)

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR fake image body")

var diagramBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR fake diagram")

var testAnalysis = schematic.AnalysisResult{
	DeviceName: "Toaster",
	Summary:    "It heats bread with glowing wires.",
	Components: []schematic.ComponentInfo{{
		Name:                "Heating element",
		Description:         "Coiled nichrome wire",
		WorkflowRole:        "Turns current into heat",
		Analogy:             "Like a campfire",
		ScientificPrinciple: "Joule heating",
	}},
}

type stubAnalyzer struct {
	err error
}

func (s stubAnalyzer) Analyze(_ context.Context, _ imagecodec.Image) (schematic.AnalysisResult, error) {
	if s.err != nil {
		return schematic.AnalysisResult{}, s.err
	}
	return testAnalysis, nil
}

// stubDiagrams returns diagramBytes, waiting on release first when set.
type stubDiagrams struct {
	release chan struct{}
}

func (s stubDiagrams) Generate(ctx context.Context, _ imagecodec.Image, _ schematic.AnalysisResult) (string, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return imagecodec.Encode(diagramBytes), nil
}

type testEnv struct {
	orch    *pipeline.Orchestrator
	history *storage.History
	release chan struct{}
}

func newTestEnv(t *testing.T, blockDiagrams bool) *testEnv {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	history := storage.NewHistoryFromBackend(store)
	t.Cleanup(func() { history.Close() })

	env := &testEnv{history: history}
	diagrams := stubDiagrams{}
	if blockDiagrams {
		env.release = make(chan struct{})
		diagrams.release = env.release
	}

	env.orch = pipeline.New(pipeline.Deps{
		Analyzer: stubAnalyzer{},
		Diagrams: diagrams,
		History:  history,
	})
	env.orch.LoadHistory(context.Background())
	return env
}

func (e *testEnv) unblock() {
	if e.release != nil {
		close(e.release)
		e.release = nil
	}
}

// waitForStatus polls until the orchestrator reaches want.
func waitForStatus(t *testing.T, p interface{ State() appstate.AppState }, want appstate.Status) appstate.AppState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := p.State(); s.Status == want {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", p.State().Status, want)
	return appstate.AppState{}
}

func pipelineUpload() pipeline.Upload {
	return pipeline.ReaderUpload("device.png", "image/png", bytes.NewReader(pngBytes))
}

var errBoom = errors.New("boom")
