// Package analysis asks a vision model for a structured breakdown of the
// device in a photo.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/kalambet/electroschematic/internal/gemini"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/schematic"
)

// DefaultModel is the vision model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// ContentGenerator is the subset of the Gemini client the Analyzer needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Analyzer turns a device photo into a schematic.AnalysisResult.
type Analyzer struct {
	client ContentGenerator
	model  string
}

// NewAnalyzer creates an Analyzer. An empty model selects DefaultModel.
func NewAnalyzer(client ContentGenerator, model string) *Analyzer {
	if model == "" {
		model = DefaultModel
	}
	return &Analyzer{client: client, model: model}
}

// Analyze sends img to the vision model and parses the structured reply.
// Every failure, including a reply that parses but is missing required
// fields, is reported as schematic.ErrAnalysis. There is no retry.
func (a *Analyzer) Analyze(ctx context.Context, img imagecodec.Image) (schematic.AnalysisResult, error) {
	if img.Data == "" {
		return schematic.AnalysisResult{}, fmt.Errorf("%w: empty image", schematic.ErrAnalysis)
	}

	part, err := gemini.ImagePart(img)
	if err != nil {
		return schematic.AnalysisResult{}, fmt.Errorf("%w: %w", schematic.ErrAnalysis, err)
	}

	resp, err := a.client.GenerateContent(ctx, a.model,
		gemini.UserContent(part, genai.NewPartFromText(instruction)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   resultSchema(),
		},
	)
	if err != nil {
		return schematic.AnalysisResult{}, fmt.Errorf("%w: %w", schematic.ErrAnalysis, err)
	}

	raw := strings.TrimSpace(gemini.ResponseText(resp))
	if raw == "" {
		return schematic.AnalysisResult{}, fmt.Errorf("%w: no analysis text returned", schematic.ErrAnalysis)
	}

	var result schematic.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		slog.Warn("failed to unmarshal analysis from model response", "error", err, "response", raw)
		return schematic.AnalysisResult{}, fmt.Errorf("%w: parsing response: %w", schematic.ErrAnalysis, err)
	}
	if err := result.Validate(); err != nil {
		return schematic.AnalysisResult{}, fmt.Errorf("%w: %w", schematic.ErrAnalysis, err)
	}
	if result.Components == nil {
		result.Components = []schematic.ComponentInfo{}
	}

	return result, nil
}
